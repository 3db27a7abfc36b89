package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error attaches an HTTP status and a stable machine code to a service error.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Err != nil:
		return e.Err.Error()
	case e.Code != "":
		return e.Code
	default:
		return fmt.Sprintf("api error (%d)", e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// From returns the status, code and inner error carried by err. Errors that never
// went through New map to 500 with fallbackCode.
func From(err error, fallbackCode string) (status int, code string, inner error) {
	var ae *Error
	if errors.As(err, &ae) && ae != nil {
		status, code, inner = ae.Status, ae.Code, ae.Err
		if status == 0 {
			status = http.StatusInternalServerError
		}
		if code == "" {
			code = fallbackCode
		}
		if inner == nil {
			inner = ae
		}
		return status, code, inner
	}
	return http.StatusInternalServerError, fallbackCode, err
}
