package state

import "errors"

// error kinds. Every *Error unwraps to exactly one of these.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

// Error is a user-facing state error. Message is safe to send to clients.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

var (
	ErrRoomIDRequired    = &Error{Kind: ErrValidation, Message: "room id must not be empty"}
	ErrNotInRoom         = &Error{Kind: ErrValidation, Message: "not in a room"}
	ErrNotRegistered     = &Error{Kind: ErrNotFound, Message: "connection is not registered"}
	ErrUserNotFound      = &Error{Kind: ErrNotFound, Message: "user does not exist or is offline"}
	ErrInvalidRequest    = &Error{Kind: ErrNotFound, Message: "invalid friend request"}
	ErrNotFriends        = &Error{Kind: ErrNotFound, Message: "not friends"}
	ErrSelfFriend        = &Error{Kind: ErrConflict, Message: "cannot add yourself as a friend"}
	ErrAlreadyFriends    = &Error{Kind: ErrConflict, Message: "already friends"}
	ErrUsernameTaken     = &Error{Kind: ErrConflict, Message: "username is already in use"}
	ErrAlreadyRegistered = &Error{Kind: ErrConflict, Message: "connection is already registered"}
)

// Validation builds an ad-hoc validation error with a client-facing message.
func Validation(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}
