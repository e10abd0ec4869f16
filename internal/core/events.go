package core

import (
	"context"

	"github.com/dkeye/TeamChat/internal/domain"
)

// Event kinds as they appear on the wire.
const (
	EventMessage    = "message"
	EventPollActive = "pollActive"
	EventPollUpdate = "pollUpdate"
	EventError      = "error"
)

// EventPublisher mirrors accepted room events outside the process.
// Implementations must not block the caller for long.
type EventPublisher interface {
	Publish(ctx context.Context, room domain.RoomName, kind string, payload any) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, domain.RoomName, string, any) error { return nil }
