package domain

import "errors"

// Every failure surfaced to a connection wraps one of these.
var (
	ErrInvalidRoom       = errors.New("invalid room")
	ErrInvalidUser       = errors.New("invalid user")
	ErrInvalidMessage    = errors.New("invalid message")
	ErrNotInRoom         = errors.New("not in this room")
	ErrForbidden         = errors.New("forbidden")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrPollAlreadyActive = errors.New("there is already an active poll in this channel")
	ErrPollNotFound      = errors.New("poll not found")
	ErrRoomMismatch      = errors.New("poll does not belong to this room")
	ErrPollClosed        = errors.New("this poll is closed")
	ErrPollAlreadyClosed = errors.New("poll is already closed")
	ErrInvalidOption     = errors.New("invalid option index")
	ErrInvalidOptions    = errors.New("poll must have a question and at least 2 options")
)
