// Package errors renders RFC 7807 problem details for the care API.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// ProblemDetail is an application/problem+json body.
// See: https://www.rfc-editor.org/rfc/rfc7807
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	// Extensions carries the machine-readable "code" and, for validation
	// problems, the per-field "fields" map.
	Extensions map[string]any `json:"extensions,omitempty"`
	// RetryAfter is sent as the Retry-After header when positive.
	RetryAfter time.Duration `json:"-"`
}

func (p ProblemDetail) Error() string {
	if p.Detail != "" {
		return fmt.Sprintf("%s: %s", p.Title, p.Detail)
	}
	return p.Title
}

// WithDetail returns a copy with the given detail message.
func (p ProblemDetail) WithDetail(detail string) ProblemDetail {
	p.Detail = detail
	return p
}

// WithCode attaches the machine-readable error code clients switch on.
func (p ProblemDetail) WithCode(code string) ProblemDetail {
	return p.with("code", code)
}

// WithRetryAfter returns a copy that instructs clients to wait before retrying.
func (p ProblemDetail) WithRetryAfter(d time.Duration) ProblemDetail {
	p.RetryAfter = d
	return p
}

// with copies the extension map so templates below are never mutated.
func (p ProblemDetail) with(key string, value any) ProblemDetail {
	ext := make(map[string]any, len(p.Extensions)+1)
	for k, v := range p.Extensions {
		ext[k] = v
	}
	ext[key] = value
	p.Extensions = ext
	return p
}

func template(status int, slug string) ProblemDetail {
	return ProblemDetail{
		Type:   "/problems/" + slug,
		Title:  http.StatusText(status),
		Status: status,
	}
}

// Problem templates. Handlers copy them with WithDetail / WithCode.
var (
	ErrBadRequest      = template(http.StatusBadRequest, "bad-request")
	ErrValidation      = template(http.StatusBadRequest, "validation-error")
	ErrUnauthorized    = template(http.StatusUnauthorized, "unauthorized")
	ErrPaymentRequired = template(http.StatusPaymentRequired, "payment-required")
	ErrForbidden       = template(http.StatusForbidden, "forbidden")
	ErrNotFound        = template(http.StatusNotFound, "not-found")
	ErrConflict        = template(http.StatusConflict, "conflict")
	ErrUnprocessable   = template(http.StatusUnprocessableEntity, "unprocessable-entity")
	ErrTooManyRequests = template(http.StatusTooManyRequests, "too-many-requests")
	ErrInternal        = template(http.StatusInternalServerError, "internal-error")
)

// NewValidationProblem reports field-level validation failures.
func NewValidationProblem(fieldErrors map[string]string) ProblemDetail {
	return ErrValidation.with("fields", fieldErrors)
}

// NewNotFoundProblem reports a missing resource of the given kind.
func NewNotFoundProblem(kind string, identifier any) ProblemDetail {
	return ErrNotFound.
		WithDetail(fmt.Sprintf("%s %v not found", kind, identifier)).
		with("resource", kind)
}
