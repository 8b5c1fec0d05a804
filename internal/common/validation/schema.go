// Package validation checks untrusted input at the lead and tool boundaries.
package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (vr *ValidationResult) add(field, message, code string) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Message: message, Code: code})
}

func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// Error joins all messages; it is only meaningful when Valid is false.
func (vr *ValidationResult) Error() string {
	return strings.Join(vr.GetErrorMessages(), "; ")
}

var (
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	linkedInPattern = regexp.MustCompile(`^/(in|pub)/[A-Za-z0-9_%\-]+/?$`)
)

func ValidateEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidateURL accepts absolute http(s) URLs with a host.
func ValidateURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ValidateLinkedInURL accepts personal profile URLs such as
// https://www.linkedin.com/in/jane-doe.
func ValidateLinkedInURL(raw string) bool {
	if !ValidateURL(raw) {
		return false
	}
	u, _ := url.Parse(strings.TrimSpace(raw))
	host := strings.ToLower(u.Hostname())
	if host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com") {
		return false
	}
	return linkedInPattern.MatchString(u.Path)
}

// LeadFields is the subset of a lead that arrives from outside the system.
type LeadFields struct {
	FullName    string
	CompanyName string
	Email       string
	LinkedInURL string
	Website     string
}

func ValidateLead(in LeadFields) *ValidationResult {
	res := &ValidationResult{Valid: true}

	if strings.TrimSpace(in.FullName) == "" {
		res.add("fullName", "required field missing", "REQUIRED_FIELD_MISSING")
	}
	if strings.TrimSpace(in.CompanyName) == "" {
		res.add("companyName", "required field missing", "REQUIRED_FIELD_MISSING")
	}
	if in.Email != "" && !ValidateEmail(in.Email) {
		res.add("email", "invalid email address", "INVALID_FORMAT")
	}
	if in.LinkedInURL != "" && !ValidateLinkedInURL(in.LinkedInURL) {
		res.add("linkedinUrl", "not a LinkedIn profile URL", "INVALID_FORMAT")
	}
	if in.Website != "" && !ValidateURL(in.Website) {
		res.add("website", "invalid URL", "INVALID_FORMAT")
	}

	return res
}
