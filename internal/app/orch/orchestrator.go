// Package orch is the session/room manager: it checks every room-scoped
// event against the session's own recorded room and user, drives the poll
// engine and fans results out to room members.
package orch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkeye/TeamChat/internal/app"
	"github.com/dkeye/TeamChat/internal/core"
	"github.com/dkeye/TeamChat/internal/domain"
	"github.com/dkeye/TeamChat/internal/metrics"
	"github.com/dkeye/TeamChat/internal/storage"
	"github.com/rs/zerolog/log"
)

const DefaultHistoryLimit = 50

type Orchestrator struct {
	Registry     *app.Registry
	Rooms        core.RoomManager
	Policy       app.Policy
	Polls        *app.PollEngine
	Bot          *app.HRBot
	Store        storage.Store
	Events       core.EventPublisher
	Metrics      *metrics.Metrics
	HistoryLimit int
	Now          func() time.Time
}

type messageFrame struct {
	Type    string         `json:"type"`
	Message domain.Message `json:"message"`
}

type pollFrame struct {
	Type string      `json:"type"`
	Poll domain.Poll `json:"poll"`
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) historyLimit() int {
	if o.HistoryLimit > 0 {
		return o.HistoryLimit
	}
	return DefaultHistoryLimit
}

// Connect registers a fresh, unjoined session.
func (o *Orchestrator) Connect(sess core.MemberSession, cancel context.CancelFunc) {
	o.Registry.BindSignal(sess, cancel)
	o.Metrics.ConnOpened()
}

func encode(v any) (core.Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return b, nil
}

// unicast queues v for one session only.
func (o *Orchestrator) unicast(sess core.MemberSession, v any) error {
	frame, err := encode(v)
	if err != nil {
		return err
	}
	if err := sess.Signal().TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sess.ID())).Msg("unicast dropped")
		o.Metrics.Dropped(1)
		o.KickBySID(sess.ID())
	}
	return nil
}

// broadcast queues v for every member of room and applies the backpressure
// policy to members that could not take it. Callers hold room.Serialize.
func (o *Orchestrator) broadcast(room core.RoomService, v any) error {
	frame, err := encode(v)
	if err != nil {
		return err
	}
	res := room.Broadcast(frame)
	o.Metrics.Dropped(len(res.Dropped))
	if o.Policy == nil {
		return nil
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			o.KickBySID(slow.ID())
		case app.NoAction:
		}
	}
	return nil
}

// publishMessage persists msg, then delivers it to the room. Callers hold
// room.Serialize so storage order is delivery order.
func (o *Orchestrator) publishMessage(ctx context.Context, room core.RoomService, msg domain.Message) error {
	saved, err := o.Store.SaveMessage(ctx, msg)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	if err := o.broadcast(room, messageFrame{Type: core.EventMessage, Message: saved}); err != nil {
		return err
	}
	o.Metrics.Message(string(saved.Room), string(saved.Role))
	o.mirror(ctx, saved.Room, core.EventMessage, saved)
	return nil
}

func (o *Orchestrator) publishPoll(ctx context.Context, room core.RoomService, kind string, poll domain.Poll) error {
	if err := o.broadcast(room, pollFrame{Type: kind, Poll: poll}); err != nil {
		return err
	}
	o.mirror(ctx, poll.Room, kind, poll)
	return nil
}

// mirror forwards an accepted event to the external publisher. Failures
// there never fail the client request.
func (o *Orchestrator) mirror(ctx context.Context, room domain.RoomName, kind string, payload any) {
	if o.Events == nil {
		return
	}
	if err := o.Events.Publish(ctx, room, kind, payload); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("room", string(room)).Str("kind", kind).Msg("event mirror failed")
	}
}

// KickBySID closes a session's transport; its read loop then runs OnDisconnect.
func (o *Orchestrator) KickBySID(sid core.SessionID) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return
	}
	log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("kicking member")
	o.Registry.Cancel(sid)
	sess.Signal().Close()
}

// joined resolves the session's room and user, failing unless the session
// is currently joined to roomName. Payload room values are never trusted.
func (o *Orchestrator) joined(sid core.SessionID, roomName string) (core.RoomService, core.MemberSession, *domain.User, error) {
	current, sess, ok := o.Registry.RoomOf(sid)
	if !ok || string(current) != roomName {
		return nil, nil, nil, fmt.Errorf("%w: %q", domain.ErrNotInRoom, roomName)
	}
	room, ok := o.Rooms.Get(current)
	if !ok {
		return nil, nil, nil, fmt.Errorf("%w: %q", domain.ErrInvalidRoom, roomName)
	}
	u := sess.Meta().User()
	if u == nil {
		return nil, nil, nil, fmt.Errorf("%w: %q", domain.ErrNotInRoom, roomName)
	}
	return room, sess, u, nil
}
