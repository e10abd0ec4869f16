package orch

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dkeye/TeamChat/internal/core"
	"github.com/dkeye/TeamChat/internal/domain"
	"github.com/rs/zerolog/log"
)

const MaxMessageRunes = 2000

// Join moves the session into roomName as user. The joiner alone receives
// the room history and active poll; then everyone, joiner included, gets
// the join announcement.
func (o *Orchestrator) Join(ctx context.Context, sid core.SessionID, roomName string, user domain.User) error {
	meta, err := domain.LookupRoom(roomName)
	if err != nil {
		return err
	}
	u, err := domain.NewUser(user.Name, user.Role)
	if err != nil {
		return err
	}
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return fmt.Errorf("session %s is not connected", sid)
	}
	room, ok := o.Rooms.Get(meta.Name)
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrInvalidRoom, roomName)
	}

	if previous, _, ok := o.Registry.RoomOf(sid); ok && previous != meta.Name {
		// Fail before touching the old room if the new one cannot be loaded.
		if _, _, _, err := o.roomState(ctx, meta.Name); err != nil {
			return err
		}
		o.leave(ctx, sess, previous)
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_room", string(previous)).Msg("left previous room")
	}
	sess.Meta().SetUser(u)

	return room.Serialize(func() error {
		history, poll, hasPoll, err := o.roomState(ctx, meta.Name)
		if err != nil {
			return err
		}

		room.AddMember(sess)
		o.Registry.UpdateRoom(sid, meta.Name)
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("user", u.Name).Str("role", string(u.Role)).Str("room", roomName).Msg("joined room")

		for _, msg := range history {
			if err := o.unicast(sess, messageFrame{Type: core.EventMessage, Message: msg}); err != nil {
				return err
			}
		}
		if hasPoll {
			if err := o.unicast(sess, pollFrame{Type: core.EventPollActive, Poll: poll}); err != nil {
				return err
			}
		}
		text := fmt.Sprintf("%s joined the channel", u.Name)
		return o.publishMessage(ctx, room, domain.NewSystemMessage(meta.Name, text, o.now()))
	})
}

// roomState loads what a joiner is sent before the join announcement.
func (o *Orchestrator) roomState(ctx context.Context, name domain.RoomName) ([]domain.Message, domain.Poll, bool, error) {
	history, err := o.Store.GetMessages(ctx, name, o.historyLimit())
	if err != nil {
		return nil, domain.Poll{}, false, fmt.Errorf("load history: %w", err)
	}
	poll, hasPoll, err := o.Polls.ActivePoll(ctx, name)
	if err != nil {
		return nil, domain.Poll{}, false, err
	}
	return history, poll, hasPoll, nil
}

// PostMessage stores and broadcasts text as the session's user. Slash
// commands additionally produce a bot reply, delivered right after.
func (o *Orchestrator) PostMessage(ctx context.Context, sid core.SessionID, roomName string, text string) error {
	room, _, u, err := o.joined(sid, roomName)
	if err != nil {
		return err
	}
	if !room.Room().CanPost(u) {
		return fmt.Errorf("%w: only HR can post in announcements channel", domain.ErrForbidden)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text is required", domain.ErrInvalidMessage)
	}
	if utf8.RuneCountInString(text) > MaxMessageRunes {
		return fmt.Errorf("%w: text must be at most %d characters", domain.ErrInvalidMessage, MaxMessageRunes)
	}

	name := room.Room().Name
	return room.Serialize(func() error {
		if err := o.publishMessage(ctx, room, domain.NewUserMessage(u, name, text, o.now())); err != nil {
			return err
		}
		reply, ok := o.Bot.Respond(text, u)
		if !ok {
			return nil
		}
		reply.Room = name
		return o.publishMessage(ctx, room, reply)
	})
}

// OnDisconnect announces the departure to the session's room, if any, and
// forgets the session. Calling it again is a no-op.
func (o *Orchestrator) OnDisconnect(ctx context.Context, sid core.SessionID) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return
	}
	if roomName, _, ok := o.Registry.RoomOf(sid); ok {
		o.leave(ctx, sess, roomName)
	}
	o.Registry.Unbind(sid)
	o.Metrics.ConnClosed()
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("disconnected")
}

// leave drops the session from roomName and tells the remaining members.
func (o *Orchestrator) leave(ctx context.Context, sess core.MemberSession, roomName domain.RoomName) {
	room, ok := o.Rooms.Get(roomName)
	if !ok {
		return
	}
	err := room.Serialize(func() error {
		room.RemoveMember(sess.ID())
		o.Registry.RemoveRoom(sess.ID())
		name := sess.Meta().Name()
		if name == "" {
			return nil
		}
		text := fmt.Sprintf("%s left the channel", name)
		return o.publishMessage(ctx, room, domain.NewSystemMessage(roomName, text, o.now()))
	})
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("sid", string(sess.ID())).Str("room", string(roomName)).Msg("leave announcement failed")
	}
}
