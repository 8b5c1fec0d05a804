// Package errors provides the enrichment error taxonomy and its mapping onto
// Zeebe job failures (retry) and BPMN errors (no retry).
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeLeadNotFound          ErrorCode = "LEAD_NOT_FOUND"
	ErrCodeSchemaValidation      ErrorCode = "SCHEMA_VALIDATION_ERROR"
	ErrCodeBudgetExceeded        ErrorCode = "BUDGET_EXCEEDED"
	ErrCodeTurnsExhausted        ErrorCode = "TURNS_EXHAUSTED"
	ErrCodeToolExecution         ErrorCode = "TOOL_EXECUTION_ERROR"
	ErrCodeInfrastructure        ErrorCode = "INFRASTRUCTURE_ERROR"
	ErrCodeConfigInvalid         ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigNotFound        ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeInvalidStatusChange   ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeDatabaseQueryFailed   ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseUpdateFailed  ErrorCode = "DATABASE_UPDATE_FAILED"
	ErrCodeInvalidJobInput       ErrorCode = "INVALID_JOB_INPUT"
	ErrCodeInvalidLead           ErrorCode = "INVALID_LEAD"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
	ErrCodeExternalServiceFailed ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// Sentinels. Packages wrap them with fmt.Errorf("%w: ...") so that
// errors.Is keeps working across layers.
var (
	ErrLeadNotFound        = stderrors.New(string(ErrCodeLeadNotFound))
	ErrSchemaValidation    = stderrors.New(string(ErrCodeSchemaValidation))
	ErrBudgetExceeded      = stderrors.New(string(ErrCodeBudgetExceeded))
	ErrTurnsExhausted      = stderrors.New(string(ErrCodeTurnsExhausted))
	ErrToolExecution       = stderrors.New(string(ErrCodeToolExecution))
	ErrInfrastructure      = stderrors.New(string(ErrCodeInfrastructure))
	ErrConfigInvalid       = stderrors.New(string(ErrCodeConfigInvalid))
	ErrConfigNotFound      = stderrors.New(string(ErrCodeConfigNotFound))
	ErrInvalidStatusChange = stderrors.New(string(ErrCodeInvalidStatusChange))
	ErrQueryFailed         = stderrors.New(string(ErrCodeDatabaseQueryFailed))
	ErrUpdateFailed        = stderrors.New(string(ErrCodeDatabaseUpdateFailed))
	ErrInvalidJobInput     = stderrors.New(string(ErrCodeInvalidJobInput))
	ErrInvalidLead         = stderrors.New(string(ErrCodeInvalidLead))
)

// sentinelCodes is consulted in order; the first sentinel found in the chain wins.
var sentinelCodes = []struct {
	err  error
	code ErrorCode
}{
	{ErrLeadNotFound, ErrCodeLeadNotFound},
	{ErrSchemaValidation, ErrCodeSchemaValidation},
	{ErrBudgetExceeded, ErrCodeBudgetExceeded},
	{ErrTurnsExhausted, ErrCodeTurnsExhausted},
	{ErrToolExecution, ErrCodeToolExecution},
	{ErrConfigInvalid, ErrCodeConfigInvalid},
	{ErrConfigNotFound, ErrCodeConfigNotFound},
	{ErrInvalidStatusChange, ErrCodeInvalidStatusChange},
	{ErrInvalidJobInput, ErrCodeInvalidJobInput},
	{ErrInvalidLead, ErrCodeInvalidLead},
	{ErrQueryFailed, ErrCodeDatabaseQueryFailed},
	{ErrUpdateFailed, ErrCodeDatabaseUpdateFailed},
	{ErrInfrastructure, ErrCodeInfrastructure},
}

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

var messages = map[ErrorCode]string{
	ErrCodeLeadNotFound:          "Lead not found",
	ErrCodeSchemaValidation:      "Model output did not match the tier schema",
	ErrCodeBudgetExceeded:        "Enrichment budget exceeded",
	ErrCodeTurnsExhausted:        "Enrichment turn limit reached without a final answer",
	ErrCodeToolExecution:         "Tool execution failed",
	ErrCodeInfrastructure:        "Model or network infrastructure failure",
	ErrCodeConfigInvalid:         "Enrichment configuration is invalid",
	ErrCodeConfigNotFound:        "Enrichment configuration not found",
	ErrCodeInvalidStatusChange:   "Lead status transition not allowed",
	ErrCodeDatabaseQueryFailed:   "Database query execution error",
	ErrCodeDatabaseUpdateFailed:  "Database update failed",
	ErrCodeInvalidJobInput:       "Job variables could not be parsed",
	ErrCodeInvalidLead:           "Lead fields failed validation",
	ErrCodeInternal:              "Unexpected error",
	ErrCodeExternalServiceFailed: "External service error",
}

// New builds a StandardError for code, using err as details and cause.
func New(code ErrorCode, err error) *StandardError {
	se := &StandardError{
		Code:      code,
		Message:   messages[code],
		Retryable: GetRetryCount(code) > 0,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
	if se.Message == "" {
		se.Message = string(code)
	}
	if err != nil {
		se.Details = err.Error()
	}
	return se
}

// Classify maps any error chain onto a StandardError. Context deadline and
// cancellation errors count as infrastructure failures.
func Classify(err error) *StandardError {
	if err == nil {
		return nil
	}
	var se *StandardError
	if stderrors.As(err, &se) {
		return se
	}
	for _, sc := range sentinelCodes {
		if stderrors.Is(err, sc.err) {
			return New(sc.code, err)
		}
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return New(ErrCodeInfrastructure, err)
	}
	return New(ErrCodeInternal, err)
}

// NewExternalServiceError reports a failing dependency (broker, SNS, search).
func NewExternalServiceError(service string, err error) *StandardError {
	se := New(ErrCodeExternalServiceFailed, err)
	se.Message = fmt.Sprintf("External service '%s' error", service)
	return se
}

// GetRetryCount returns the recommended retry count for the job system.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeInfrastructure,
		ErrCodeDatabaseQueryFailed,
		ErrCodeDatabaseUpdateFailed,
		ErrCodeExternalServiceFailed:
		return 3

	case ErrCodeSchemaValidation:
		// A fresh attempt usually produces conforming output.
		return 1

	default:
		// Lead missing, invalid input, and policy stops (budget / turns) need
		// an operator change before another attempt makes sense.
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "BUDGET") || strings.Contains(codeStr, "TURNS"):
		return "POLICY"
	case strings.Contains(codeStr, "CONFIG"):
		return "CONFIG"
	case strings.Contains(codeStr, "SCHEMA") || strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "TOOL"):
		return "TOOL"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "INFRASTRUCTURE") || strings.Contains(codeStr, "EXTERNAL"):
		return "INFRASTRUCTURE"
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "NOT_FOUND"
	default:
		return "OTHER"
	}
}
