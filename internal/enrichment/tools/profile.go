package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	commonhttp "lead-enricher/internal/common/http"
	"lead-enricher/internal/common/validation"
)

// ProfileAPIScraper resolves LinkedIn profiles through a third-party profile
// data provider (GET {base}?url=...&include_experience=...).
type ProfileAPIScraper struct {
	client  *commonhttp.Client
	baseURL string
	apiKey  string
}

func NewProfileAPIScraper(client *commonhttp.Client, baseURL, apiKey string) *ProfileAPIScraper {
	return &ProfileAPIScraper{client: client, baseURL: baseURL, apiKey: apiKey}
}

func (s *ProfileAPIScraper) ScrapeProfile(ctx context.Context, req ProfileRequest) (map[string]interface{}, error) {
	if !validation.ValidateLinkedInURL(req.URL) {
		return nil, fmt.Errorf("not a LinkedIn profile url: %q", req.URL)
	}
	if s.baseURL == "" {
		return nil, fmt.Errorf("profile provider not configured")
	}

	q := url.Values{}
	q.Set("url", req.URL)
	q.Set("include_experience", strconv.FormatBool(req.IncludeExperience))
	q.Set("include_education", strconv.FormatBool(req.IncludeEducation))

	header := http.Header{"Accept": []string{"application/json"}}
	if s.apiKey != "" {
		header.Set("Authorization", "Bearer "+s.apiKey)
	}

	status, body, err := s.client.Get(ctx, s.baseURL+"?"+q.Encode(), header)
	if err != nil {
		return nil, fmt.Errorf("profile provider: %w", err)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("profile not found")
	}
	if status >= 400 {
		return nil, fmt.Errorf("profile provider: status %d", status)
	}

	var profile map[string]interface{}
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("profile provider: decode: %w", err)
	}
	if profile == nil {
		return nil, fmt.Errorf("profile provider: empty profile")
	}

	if !req.IncludeExperience {
		delete(profile, "experience")
	}
	if !req.IncludeEducation {
		delete(profile, "education")
	}
	profile["url"] = req.URL
	return profile, nil
}
