package providers

import (
	"errors"
	"fmt"
	"strings"
)

// ProviderError carries structured failure detail from an LLM backend.
// The loop only sees it through the error interface; callers that want
// the status code or request ID unwrap with errors.As.
type ProviderError struct {
	Provider  string
	Model     string
	Status    int
	Code      string
	Message   string
	RequestID string
	Cause     error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	if e.Model != "" {
		fmt.Fprintf(&b, " (%s)", e.Model)
	}
	b.WriteString(": ")
	switch {
	case e.Message != "":
		b.WriteString(e.Message)
	case e.Cause != nil:
		b.WriteString(e.Cause.Error())
	default:
		b.WriteString("request failed")
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " [request_id=%s]", e.RequestID)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// Retryable reports whether the failure is worth another attempt.
// Rate limits, overload responses, and 5xx all qualify; auth and
// validation failures do not.
func (e *ProviderError) Retryable() bool {
	switch e.Status {
	case 408, 429, 500, 502, 503, 504, 529:
		return true
	case 400, 401, 403, 404, 413, 422:
		return false
	}
	return retryableMessage(e.Message) || (e.Cause != nil && retryableMessage(e.Cause.Error()))
}

func newProviderError(provider, model string, cause error) *ProviderError {
	return &ProviderError{Provider: provider, Model: model, Cause: cause}
}

// isRetryableError classifies arbitrary errors, preferring structured
// detail when the error chain carries a ProviderError.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return retryableMessage(err.Error())
}

func retryableMessage(msg string) bool {
	msg = strings.ToLower(msg)
	for _, marker := range []string{
		"rate_limit", "rate limit", "too many requests", "429",
		"overloaded", "internal server error", "bad gateway",
		"service unavailable", "gateway timeout",
		"500", "502", "503", "504",
		"timeout", "deadline exceeded",
		"connection reset", "connection refused", "no such host",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
