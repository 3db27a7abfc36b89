package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sillsdev/silauto-backend/internal/platform/apierr"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("conflict")
)

// ReferenceError lists every id of one entity kind that a request referenced
// but the catalog does not hold.
type ReferenceError struct {
	Entity string
	IDs    []string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("unknown %s: %s", e.Entity, strings.Join(e.IDs, ", "))
}

func (e *ReferenceError) Unwrap() error { return ErrValidation }

// ValidationError carries all problems found in one request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Problems) == 0 {
		return nil
	}
	return e
}

func notFound(code, format string, args ...any) error {
	return apierr.New(http.StatusNotFound, code, fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound))
}

func invalid(code string, err error) error {
	return apierr.New(http.StatusBadRequest, code, err)
}

func internal(code string, err error) error {
	return apierr.New(http.StatusInternalServerError, code, err)
}
