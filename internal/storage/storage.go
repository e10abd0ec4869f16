// Package storage defines the persistence contract for messages and polls.
package storage

import (
	"context"
	"errors"

	"github.com/dkeye/TeamChat/internal/domain"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness constraint rejected the write,
	// including a second open poll for one room.
	ErrAlreadyExists = errors.New("record already exists")
)

// PollUpdate carries the fields UpdatePoll replaces. Nil fields are left as
// they are; Options always replaces the whole option set.
type PollUpdate struct {
	Options  []domain.PollOption
	IsClosed *bool
}

// Store persists chat messages and polls. Implementations return copies;
// mutating a returned value never changes stored state.
type Store interface {
	SaveMessage(ctx context.Context, msg domain.Message) (domain.Message, error)
	// GetMessages returns at most limit of the newest messages for room,
	// oldest first.
	GetMessages(ctx context.Context, room domain.RoomName, limit int) ([]domain.Message, error)

	SavePoll(ctx context.Context, poll domain.Poll) (domain.Poll, error)
	GetPoll(ctx context.Context, id string) (domain.Poll, error)
	GetActivePoll(ctx context.Context, room domain.RoomName) (domain.Poll, error)
	UpdatePoll(ctx context.Context, id string, update PollUpdate) (domain.Poll, error)

	// Kind names the backend for health reporting.
	Kind() string
	Close() error
}

func Closed() *bool {
	v := true
	return &v
}
