package ocrapi

import (
	"errors"
	"fmt"
)

// User-facing messages. These mirror the service's own wording.
const (
	MsgMissingCredential = "API 키가 설정되지 않았습니다. MEDIVIEW_API_KEY 환경 변수를 설정해주세요."
	MsgInProgress        = "작업이 아직 진행 중입니다."
	MsgNoFile            = "파일을 선택해주세요"
)

// ErrMissingCredential is wrapped by every ConfigurationError.
var ErrMissingCredential = errors.New("credential not configured")

// ConfigurationError means the process is missing configuration required
// for the attempted action. No network I/O was performed.
type ConfigurationError struct {
	Message string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Cause)
	}
	return "configuration error: " + e.Message
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

func missingCredential() *ConfigurationError {
	return &ConfigurationError{Message: MsgMissingCredential, Cause: ErrMissingCredential}
}

// ValidationError means user input was missing or unusable. No network I/O
// was performed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return "validation error: " + e.Message
}

// InProgressError means the job has not reached a terminal state yet.
// It is an expected, recoverable condition.
type InProgressError struct {
	JobID  string
	Detail string
}

func (e *InProgressError) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("job %s is still processing", e.JobID)
	}
	return "job is still processing"
}

// RequestError is any other transport or server failure. Status is zero
// when no response was received.
type RequestError struct {
	Status int
	Detail string
	Err    error
}

func (e *RequestError) Error() string {
	switch {
	case e.Status != 0 && e.Detail != "":
		return fmt.Sprintf("server error (%d): %s", e.Status, e.Detail)
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("server error (%d): %v", e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("server error (%d)", e.Status)
	case e.Err != nil:
		return fmt.Sprintf("request failed: %v", e.Err)
	}
	return "request failed"
}

func (e *RequestError) Unwrap() error { return e.Err }

// Kind classifies an error for display.
type Kind string

const (
	KindNone          Kind = ""
	KindConfiguration Kind = "configuration"
	KindValidation    Kind = "validation"
	KindInProgress    Kind = "in_progress"
	KindRequest       Kind = "request"
)

// KindOf classifies err. Unknown errors are treated as request failures.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var cfgErr *ConfigurationError
	var valErr *ValidationError
	var progErr *InProgressError
	switch {
	case errors.As(err, &cfgErr):
		return KindConfiguration
	case errors.As(err, &valErr):
		return KindValidation
	case errors.As(err, &progErr):
		return KindInProgress
	}
	return KindRequest
}

// UserMessage returns the message to show for err. The server-supplied
// detail wins when present; otherwise fallback is used.
func UserMessage(err error, fallback string) string {
	var cfgErr *ConfigurationError
	var valErr *ValidationError
	var progErr *InProgressError
	var reqErr *RequestError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfgErr):
		return cfgErr.Message
	case errors.As(err, &valErr):
		return valErr.Message
	case errors.As(err, &progErr):
		return MsgInProgress
	case errors.As(err, &reqErr) && reqErr.Detail != "":
		return reqErr.Detail
	}
	return fallback
}
