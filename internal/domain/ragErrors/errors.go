package ragErrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindIngestion       Kind = "ingestion"
	KindEmbedding       Kind = "embedding"
	KindIndexCorruption Kind = "index_corruption"
	KindSessionPersist  Kind = "session_persist"
	KindCompletion      Kind = "completion"
	KindNotFound        Kind = "not_found"
	KindInvalidArgument Kind = "invalid_argument"
)

// Sentinels for errors.Is; any *Error of the same kind matches.
var (
	ErrIngestion       = &Error{Kind: KindIngestion}
	ErrEmbedding       = &Error{Kind: KindEmbedding}
	ErrIndexCorruption = &Error{Kind: KindIndexCorruption}
	ErrSessionPersist  = &Error{Kind: KindSessionPersist}
	ErrCompletion      = &Error{Kind: KindCompletion}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
)

// Error is the typed failure returned across package boundaries of the rag core.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func New(kind Kind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: msg, Err: cause}
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func Ingestion(op string, format string, args ...any) *Error {
	return New(KindIngestion, op, fmt.Sprintf(format, args...), nil)
}

func InvalidArgument(op string, format string, args ...any) *Error {
	return New(KindInvalidArgument, op, fmt.Sprintf(format, args...), nil)
}

func NotFound(op string, format string, args ...any) *Error {
	return New(KindNotFound, op, fmt.Sprintf(format, args...), nil)
}

func Corruption(op, msg string, cause error) *Error {
	return New(KindIndexCorruption, op, msg, cause)
}

// HTTPStatus maps err to the status code the API answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindIngestion:
		return http.StatusUnprocessableEntity
	case KindEmbedding, KindCompletion:
		return http.StatusBadGateway
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	}
	return http.StatusInternalServerError
}
