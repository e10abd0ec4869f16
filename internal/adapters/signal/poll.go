package signal

import (
	"context"

	"github.com/dkeye/TeamChat/internal/core"
	"github.com/dkeye/TeamChat/internal/domain"
)

func (ctl *SignalWSController) handlePollGet(ctx context.Context, sid core.SessionID, data []byte) error {
	var p struct {
		Room string `json:"room"`
	}
	if err := decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.GetPoll(ctx, sid, p.Room)
}

func (ctl *SignalWSController) handlePollCreate(ctx context.Context, sid core.SessionID, data []byte) error {
	var p struct {
		Room     string       `json:"room"`
		Question string       `json:"question"`
		Options  []string     `json:"options"`
		User     *domain.User `json:"user"`
	}
	if err := decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.CreatePoll(ctx, sid, p.Room, p.Question, p.Options, p.User)
}

func (ctl *SignalWSController) handlePollVote(ctx context.Context, sid core.SessionID, data []byte) error {
	var p struct {
		PollID      string `json:"pollId"`
		Room        string `json:"room"`
		OptionIndex *int   `json:"optionIndex"`
	}
	if err := decode(data, &p); err != nil {
		return err
	}
	if p.OptionIndex == nil {
		return domain.ErrInvalidOption
	}
	return ctl.Orch.Vote(ctx, sid, p.PollID, p.Room, *p.OptionIndex)
}

func (ctl *SignalWSController) handlePollClose(ctx context.Context, sid core.SessionID, data []byte) error {
	var p struct {
		PollID string       `json:"pollId"`
		Room   string       `json:"room"`
		User   *domain.User `json:"user"`
	}
	if err := decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.ClosePoll(ctx, sid, p.PollID, p.Room, p.User)
}
