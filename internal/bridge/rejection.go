package bridge

import (
	"fmt"

	"github.com/tphakala/callctl/internal/audioroute"
	"github.com/tphakala/callctl/internal/capture"
	"github.com/tphakala/callctl/internal/errors"
)

// Code is a stable rejection code returned to the UI layer.
type Code string

const (
	CodeInvalidRoute     Code = "INVALID_ROUTE"
	CodePlatformRejected Code = "PLATFORM_REJECTED"
	CodeNotAuthorized    Code = "NOT_AUTHORIZED"
	CodeUnsupported      Code = "UNSUPPORTED"
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeUnknownMethod    Code = "UNKNOWN_METHOD"
	CodeInternal         Code = "INTERNAL"
)

// Rejection is the error form of every bridge command.
type Rejection struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}

func (r *Rejection) Unwrap() error { return r.cause }

// ErrorCategory implements errors.CategorizedError.
func (r *Rejection) ErrorCategory() errors.ErrorCategory {
	switch r.Code {
	case CodeInvalidRoute, CodeInvalidArgument, CodeUnknownMethod:
		return errors.CategoryValidation
	case CodePlatformRejected:
		return errors.CategoryPlatform
	case CodeNotAuthorized:
		return errors.CategoryAuthorization
	case CodeUnsupported:
		return errors.CategoryUnsupported
	default:
		return errors.CategoryGeneric
	}
}

func reject(code Code, format string, args ...any) *Rejection {
	return &Rejection{Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsRejection converts any error from the controllers into a Rejection.
func AsRejection(err error) *Rejection {
	if err == nil {
		return nil
	}

	var rej *Rejection
	if errors.As(err, &rej) {
		return rej
	}

	code := CodeInternal
	switch {
	case errors.Is(err, audioroute.ErrInvalidRoute):
		code = CodeInvalidRoute
	case errors.Is(err, audioroute.ErrPlatformRejected), errors.Is(err, capture.ErrPlatformRejected):
		code = CodePlatformRejected
	case errors.Is(err, capture.ErrNotAuthorized):
		code = CodeNotAuthorized
	case errors.Is(err, capture.ErrUnsupported):
		code = CodeUnsupported
	}
	return &Rejection{Code: code, Message: err.Error(), cause: err}
}
