package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/TeamChat/internal/core"
	"github.com/dkeye/TeamChat/internal/domain"
	"github.com/rs/zerolog/log"
)

// requireHR accepts only when both the payload's claimed user and the
// session's own user are HR.
func requireHR(claimed *domain.User, session *domain.User, action string) error {
	if claimed == nil || claimed.Role != domain.RoleHR || !session.IsHR() {
		return fmt.Errorf("%w: only HR can %s", domain.ErrForbidden, action)
	}
	return nil
}

// GetPoll sends the room's open poll, if there is one, to the caller only.
func (o *Orchestrator) GetPoll(ctx context.Context, sid core.SessionID, roomName string) error {
	meta, err := domain.LookupRoom(roomName)
	if err != nil {
		return err
	}
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return fmt.Errorf("session %s is not connected", sid)
	}
	poll, ok, err := o.Polls.ActivePoll(ctx, meta.Name)
	if err != nil || !ok {
		return err
	}
	return o.unicast(sess, pollFrame{Type: core.EventPollActive, Poll: poll})
}

func (o *Orchestrator) CreatePoll(ctx context.Context, sid core.SessionID, roomName, question string, options []string, claimed *domain.User) error {
	room, _, u, err := o.joined(sid, roomName)
	if err != nil {
		return err
	}
	if err := requireHR(claimed, u, "create polls"); err != nil {
		return err
	}
	name := room.Room().Name
	return room.Serialize(func() error {
		poll, err := o.Polls.CreatePoll(ctx, name, question, options, u.Name)
		if err != nil {
			return err
		}
		o.Metrics.Poll(string(name), "create")
		if err := o.publishPoll(ctx, room, core.EventPollActive, poll); err != nil {
			return err
		}
		text := fmt.Sprintf("%s created a new poll: \"%s\"", u.Name, poll.Question)
		return o.publishMessage(ctx, room, domain.NewSystemMessage(name, text, o.now()))
	})
}

// Vote records the session user's vote; the payload user is ignored.
func (o *Orchestrator) Vote(ctx context.Context, sid core.SessionID, pollID, roomName string, optionIndex int) error {
	room, _, u, err := o.joined(sid, roomName)
	if err != nil {
		return err
	}
	name := room.Room().Name
	return room.Serialize(func() error {
		poll, err := o.Polls.Vote(ctx, pollID, name, optionIndex, u.Name)
		if err != nil {
			return err
		}
		o.Metrics.Poll(string(name), "vote")
		return o.publishPoll(ctx, room, core.EventPollUpdate, poll)
	})
}

func (o *Orchestrator) ClosePoll(ctx context.Context, sid core.SessionID, pollID, roomName string, claimed *domain.User) error {
	room, _, u, err := o.joined(sid, roomName)
	if err != nil {
		return err
	}
	if err := requireHR(claimed, u, "close polls"); err != nil {
		return err
	}
	name := room.Room().Name
	return room.Serialize(func() error {
		poll, err := o.Polls.ClosePoll(ctx, pollID, name)
		if err != nil {
			return err
		}
		o.Metrics.Poll(string(name), "close")
		log.Info().Str("module", "orch").Str("poll", poll.ID).Str("by", u.Name).Msg("poll closed")
		if err := o.publishPoll(ctx, room, core.EventPollUpdate, poll); err != nil {
			return err
		}
		text := fmt.Sprintf("Poll \"%s\" has been closed by %s", poll.Question, u.Name)
		return o.publishMessage(ctx, room, domain.NewSystemMessage(name, text, o.now()))
	})
}
