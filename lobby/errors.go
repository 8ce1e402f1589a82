package lobby

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain error so the HTTP layer can pick a status code
// without inspecting message strings.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindConflict
	KindAuthorization
	KindState
	KindTimeLimit
	KindInternal
)

// Error is the typed error raised by the session state machine.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// HTTPStatus maps the error kind to a transport status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindAuthorization:
		return http.StatusForbidden
	case KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...interface{}) *Error {
	return newError(KindValidation, format, args...)
}

func notFoundError(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

func conflictError(format string, args ...interface{}) *Error {
	return newError(KindConflict, format, args...)
}

func authorizationError(format string, args ...interface{}) *Error {
	return newError(KindAuthorization, format, args...)
}

func stateError(format string, args ...interface{}) *Error {
	return newError(KindState, format, args...)
}

func timeLimitError(elapsedSeconds, windowSeconds float64) *Error {
	return newError(KindTimeLimit, "answer window closed %.1fs ago", elapsedSeconds-windowSeconds)
}

// errLobbyCodeTaken marks a code candidate lost to a concurrent create,
// either at the existence pre-check or on the insert itself. Create treats
// it as a collision and retries the next candidate.
var errLobbyCodeTaken = conflictError("lobby code already in use")

// Internal faults surfaced as 500s and logged server-side.
var (
	ErrCodeGenerationExhausted = &Error{Kind: KindInternal, Message: "could not generate a unique lobby code"}
	ErrQuestionDataCorrupt     = &Error{Kind: KindInternal, Message: "question data is corrupt"}
)

// ErrQuestionSetNotFound is returned by QuestionSource implementations when
// the referenced set does not exist.
var ErrQuestionSetNotFound = &Error{Kind: KindNotFound, Message: "question set not found"}

// IsKind reports whether err is a lobby error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
