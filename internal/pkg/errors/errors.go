package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInvalidToken      = "INVALID_TOKEN"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeConfiguration     = "CONFIGURATION_ERROR"
	ErrCodeUpstream          = "UPSTREAM_FAILURE"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// Kind classifies a failure for translation into an HTTP response.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindInvalidToken
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
	KindConfiguration
	KindUpstream
)

var kindStatus = map[Kind]struct {
	status int
	code   string
}{
	KindInternal:      {http.StatusInternalServerError, ErrCodeInternal},
	KindBadRequest:    {http.StatusBadRequest, ErrCodeInvalidInput},
	KindUnauthorized:  {http.StatusUnauthorized, ErrCodeUnauthorized},
	KindInvalidToken:  {http.StatusUnauthorized, ErrCodeInvalidToken},
	KindForbidden:     {http.StatusForbidden, ErrCodeForbidden},
	KindNotFound:      {http.StatusNotFound, ErrCodeNotFound},
	KindConflict:      {http.StatusConflict, ErrCodeConflict},
	KindRateLimited:   {http.StatusTooManyRequests, ErrCodeRateLimitExceeded},
	KindConfiguration: {http.StatusInternalServerError, ErrCodeConfiguration},
	KindUpstream:      {http.StatusInternalServerError, ErrCodeUpstream},
}

// Error is the typed failure returned by services. Err is the underlying cause
// and is only ever logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	Details interface{}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Status() int {
	return kindStatus[e.Kind].status
}

func (e *Error) Code() string {
	return kindStatus[e.Kind].code
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func BadRequest(message string) *Error { return New(KindBadRequest, message) }
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }
func InvalidToken(message string) *Error { return New(KindInvalidToken, message) }
func Forbidden(message string) *Error { return New(KindForbidden, message) }
func NotFound(message string) *Error { return New(KindNotFound, message) }
func Conflict(message string) *Error { return New(KindConflict, message) }
func Configuration(message string) *Error { return New(KindConfiguration, message) }
func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}

// Upstream reports a failed call to an external provider. details is surfaced to
// the caller and must not contain client secrets.
func Upstream(message string, err error, details interface{}) *Error {
	return &Error{Kind: KindUpstream, Message: message, Err: err, Details: details}
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// KindOf returns the Kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func WriteError(w http.ResponseWriter, status int, code, message string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
		Details: details,
	})
}

// Write translates err into the JSON error envelope. Internal failures are
// logged and replaced with a generic message.
func Write(w http.ResponseWriter, r *http.Request, err error) {
	var e *Error
	if !stderrors.As(err, &e) {
		e = Internal("Internal server error", err)
	}

	switch e.Kind {
	case KindInternal:
		log.Error().Err(e.Err).Str("path", r.URL.Path).Str("method", r.Method).Msg(e.Message)
		WriteError(w, e.Status(), e.Code(), "Internal server error", nil)
		return
	case KindUpstream, KindConfiguration:
		log.Error().Err(e.Err).Str("path", r.URL.Path).Interface("details", e.Details).Msg(e.Message)
	}

	WriteError(w, e.Status(), e.Code(), e.Message, e.Details)
}
