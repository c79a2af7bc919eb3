package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/invoicely/invoicely/internal/platform/httpx"
)

var (
	// ErrNotFound indicates the invoice does not exist.
	ErrNotFound = fmt.Errorf("ledger: invoice not found: %w", httpx.ErrNotFound)
	// ErrDuplicate indicates a clashing invoice number or order id.
	ErrDuplicate = fmt.Errorf("ledger: duplicate invoice: %w", httpx.ErrDuplicate)
	// ErrValidation wraps field validation failures.
	ErrValidation = fmt.Errorf("ledger: %w", httpx.ErrValidation)
)

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// FieldErrors exposes the per-field messages to the HTTP layer.
func (e *ValidationError) FieldErrors() map[string]string { return e.Fields }

func newValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields[fe.Namespace()] = describe(fe)
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind().String() == "slice" {
			return "needs at least " + fe.Param() + " entries"
		}
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "email":
		return "must be a valid email"
	case "stored_date":
		return "must be a DD/MM/YYYY date"
	case "currency":
		return "is not a supported currency"
	default:
		return "is invalid"
	}
}
