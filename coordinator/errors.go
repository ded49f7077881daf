package coordinator

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/moyoez/scangate/types"
)

// ErrorKind tags every failure the coordinator returns so callers can branch
// on it with KindOf instead of matching messages.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindSessionNotFound   ErrorKind = "session_not_found"
	KindInvalidState      ErrorKind = "invalid_state"
	KindIncompleteUpload  ErrorKind = "incomplete_upload"
	KindIntegrityMismatch ErrorKind = "integrity_mismatch"
	KindUpstream          ErrorKind = "upstream"
)

type Error struct {
	Kind    ErrorKind
	Message string
	// Missing lists the chunk indices still absent (KindIncompleteUpload).
	Missing []int
	// Status is the backend status code (KindUpstream), 0 when unreachable.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a coordinator error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return ""
}

// HTTPStatus maps an error to the status code the API answers with.
// Upstream errors keep the backend status when it is a 4xx/5xx.
func HTTPStatus(err error) int {
	var cerr *Error
	if !errors.As(err, &cerr) {
		return http.StatusInternalServerError
	}
	switch cerr.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindSessionNotFound:
		return http.StatusNotFound
	case KindInvalidState, KindIncompleteUpload:
		return http.StatusConflict
	case KindIntegrityMismatch:
		return http.StatusUnprocessableEntity
	case KindUpstream:
		if cerr.Status >= 400 && cerr.Status <= 599 {
			return cerr.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(sessionId string) *Error {
	return &Error{Kind: KindSessionNotFound, Message: fmt.Sprintf("upload session %s not found", sessionId)}
}

func invalidStateError(sessionId string, state types.SessionState, op string) *Error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf("cannot %s session %s in state %s", op, sessionId, state)}
}

func incompleteError(sessionId string, missing []int) *Error {
	return &Error{
		Kind:    KindIncompleteUpload,
		Message: fmt.Sprintf("upload session %s is missing %d chunk(s)", sessionId, len(missing)),
		Missing: missing,
	}
}

func integrityError(sessionId, declared, computed string, err error) *Error {
	msg := fmt.Sprintf("content hash of session %s does not match the declared hash %s", sessionId, declared)
	if computed != "" {
		msg = fmt.Sprintf("content hash %s of session %s does not match the declared hash %s", computed, sessionId, declared)
	}
	return &Error{Kind: KindIntegrityMismatch, Message: msg, Err: err}
}

func upstreamError(op string, err error) *Error {
	cerr := &Error{Kind: KindUpstream, Message: op + " failed", Err: err}
	var be *types.BackendError
	if errors.As(err, &be) {
		cerr.Status = be.Status
		if be.Message != "" {
			cerr.Message = be.Message
		}
	}
	return cerr
}
