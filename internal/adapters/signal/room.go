package signal

import (
	"context"

	"github.com/dkeye/TeamChat/internal/core"
	"github.com/dkeye/TeamChat/internal/domain"
)

func (ctl *SignalWSController) handleJoin(
	ctx context.Context,
	sid core.SessionID,
	data []byte,
) error {
	type joinPayload struct {
		Type string      `json:"type"`
		Room string      `json:"room"`
		User domain.User `json:"user"`
	}
	var p joinPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	return ctl.Orch.Join(ctx, sid, p.Room, p.User)
}

// handleChat ignores the payload user: the author is whoever the session
// joined as.
func (ctl *SignalWSController) handleChat(
	ctx context.Context,
	sid core.SessionID,
	data []byte,
) error {
	type chatPayload struct {
		Type string       `json:"type"`
		Room string       `json:"room"`
		Text string       `json:"text"`
		User *domain.User `json:"user,omitempty"`
	}
	var p chatPayload
	if err := decode(data, &p); err != nil {
		return err
	}
	if !ctl.Limiter.Allow(sid) {
		return domain.ErrRateLimited
	}
	return ctl.Orch.PostMessage(ctx, sid, p.Room, p.Text)
}
