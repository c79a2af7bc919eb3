// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound   = errors.New("resource not found")
	ErrDuplicate  = errors.New("duplicate entry")
	ErrValidation = errors.New("validation failed")
	ErrBadRequest = errors.New("bad request")
	ErrSuperseded = errors.New("superseded by a newer request")
)

// fieldErrors is implemented by validation errors that know which fields failed.
type fieldErrors interface {
	FieldErrors() map[string]string
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		var fe fieldErrors
		if errors.As(err, &fe) {
			JSON(w, http.StatusUnprocessableEntity, ProblemDetail{
				Title:  "Validation Failed",
				Status: http.StatusUnprocessableEntity,
				Detail: ErrValidation.Error(),
				Errors: fe.FieldErrors(),
			})
			return
		}
		Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	case errors.Is(err, ErrBadRequest):
		Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, ErrSuperseded):
		Problem(w, http.StatusConflict, "Superseded", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
