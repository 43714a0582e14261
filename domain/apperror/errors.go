package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can decide whether to retry, report or ignore it.
type Kind string

const (
	Validation              Kind = "validation"
	NotFound                Kind = "not_found"
	Unauthorized            Kind = "unauthorized"
	Conflict                Kind = "conflict"
	TransientStore          Kind = "transient_store"
	CodeGenerationExhausted Kind = "code_generation_exhausted"
)

// Error carries a Kind, a human readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
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

// Is matches another *Error of the same kind. A target without a message matches
// every error of its kind; a target with a message must match it too.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Kind sentinels, usable with errors.Is.
var (
	ErrValidation              = &Error{Kind: Validation}
	ErrNotFound                = &Error{Kind: NotFound}
	ErrUnauthorized            = &Error{Kind: Unauthorized}
	ErrConflict                = &Error{Kind: Conflict}
	ErrTransientStore          = &Error{Kind: TransientStore}
	ErrCodeGenerationExhausted = &Error{Kind: CodeGenerationExhausted}
)

var (
	ErrRoomNotFound        = New(NotFound, "room not found")
	ErrJoinRequestNotFound = New(NotFound, "join request not found")
	ErrRoomCodeTaken       = New(Conflict, "room code already in use")
	ErrDuplicateRequest    = New(Conflict, "an active join request already exists for this user and room")
	ErrNotRoomHost         = New(Unauthorized, "only the room host can perform this action")
	ErrEmptyRoomName       = New(Validation, "room name cannot be empty")
	ErrMalformedRoomCode   = New(Validation, "room code must be 6 uppercase letters or digits")
)

// KindOf returns the Kind of the first *Error in err's chain, or "" when there is none.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
