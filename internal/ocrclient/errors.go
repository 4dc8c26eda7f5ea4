package ocrclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type ErrorKind int

const (
	// KindAuth covers bad or missing credentials. Never retried.
	KindAuth ErrorKind = iota
	// KindRateLimit covers provider 429 responses. Retryable with backoff.
	KindRateLimit
	// KindProvider covers other non-2xx provider responses.
	KindProvider
	// KindNoContent means extraction succeeded but yielded nothing.
	KindNoContent
	// KindValidation covers malformed or missing input. Never retried.
	KindValidation
	// KindTransport covers network-level failures before a response arrived.
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "Auth"
	case KindRateLimit:
		return "RateLimit"
	case KindProvider:
		return "Provider"
	case KindNoContent:
		return "NoContent"
	case KindValidation:
		return "Validation"
	case KindTransport:
		return "Transport"
	default:
		return "Unknown"
	}
}

// APIError is the error type for all gateway operations. Callers inspect
// Kind to decide retry and HTTP mapping; no control flow rides on panics.
type APIError struct {
	Kind       ErrorKind
	Status     int
	Message    string
	RetryAfter time.Duration
	Cause      error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("[%s] %s (status %d)", e.Kind, e.Message, e.Status)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the error is worth another attempt:
// rate limits, transport failures and provider 5xx responses.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case KindRateLimit, KindTransport:
		return true
	case KindProvider:
		return e.Status >= 500
	default:
		return false
	}
}

// IsKind reports whether err is an APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

func newTransportError(err error) *APIError {
	return &APIError{
		Kind:    KindTransport,
		Message: err.Error(),
		Cause:   err,
	}
}

func newValidationError(message string) *APIError {
	return &APIError{Kind: KindValidation, Message: message}
}

// providerErrorBody is the provider's error payload. The detail field is
// either a string or a list of objects carrying messages.
type providerErrorBody struct {
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
}

// classifyResponse turns a non-2xx provider response into an APIError,
// extracting the provider's message from the body on a best-effort basis.
func classifyResponse(status int, body []byte) *APIError {
	message := fmt.Sprintf("provider returned status %d", status)
	if parsed := extractProviderMessage(body); parsed != "" {
		message = parsed
	}

	switch {
	case status == 401:
		return &APIError{Kind: KindAuth, Status: status, Message: message}
	case status == 429:
		return &APIError{Kind: KindRateLimit, Status: status, Message: message}
	default:
		return &APIError{Kind: KindProvider, Status: status, Message: message}
	}
}

func extractProviderMessage(body []byte) string {
	var parsed providerErrorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	if len(parsed.Detail) == 0 {
		return ""
	}

	var detailStr string
	if err := json.Unmarshal(parsed.Detail, &detailStr); err == nil {
		return detailStr
	}

	var detailList []struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(parsed.Detail, &detailList); err == nil {
		parts := make([]string, 0, len(detailList))
		for _, d := range detailList {
			if d.Message != "" {
				parts = append(parts, d.Message)
			}
		}
		return strings.Join(parts, "; ")
	}
	return ""
}
