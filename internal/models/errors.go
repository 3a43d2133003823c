package models

import (
	"errors"
)

// Kind classifies a caller-facing failure. Handlers map kinds to HTTP status
// codes; services never leak raw storage errors past KindInternal.
type Kind string

const (
	KindUnauthenticated   Kind = "unauthenticated"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindDuplicateInvite   Kind = "duplicate_invite"
	KindInvalidTransition Kind = "invalid_transition"
	KindChatGone          Kind = "chat_gone"
	KindValidationFailed  Kind = "validation_failed"
	KindInternal          Kind = "internal"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from err, defaulting to KindInternal so storage
// details never reach a caller unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	ErrUserNotFound    = E(KindNotFound, "user not found")
	ErrChatNotFound    = E(KindNotFound, "chat not found")
	ErrMessageNotFound = E(KindNotFound, "message not found")
	ErrInviteNotFound  = E(KindNotFound, "invite not found")
	ErrNotParticipant  = E(KindForbidden, "user is not a participant of this chat")
)
