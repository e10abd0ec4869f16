package core

import (
	"github.com/dkeye/TeamChat/internal/domain"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	SID  SessionID   `json:"sid"`
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Room() domain.Room
	MemberCount() int
	MembersSnapshot() []MemberDTO

	AddMember(ms MemberSession)
	RemoveMember(sid SessionID)
	// Broadcast queues data for every current member, sender included.
	Broadcast(data Frame) PublishResult
	// Serialize runs fn while holding the room's operation lock, so
	// room-scoped persist-and-fanout sequences never interleave.
	Serialize(fn func() error) error
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	DisplayName string          `json:"displayName"`
	HROnly      bool            `json:"hrOnly"`
	MemberCount int             `json:"client_count"`
	Members     []MemberDTO     `json:"members"`
}

type RoomManager interface {
	Get(name domain.RoomName) (RoomService, bool)
	List() []RoomInfo
}
