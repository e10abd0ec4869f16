package signal

import (
	"github.com/dkeye/TeamChat/internal/core"
	"github.com/dkeye/TeamChat/internal/domain"
)

func (ctl *SignalWSController) handleWhoAmI(
	sid core.SessionID,
	conn *WsSignalConn,
) {
	resp := struct {
		Type   string          `json:"type"`
		SID    core.SessionID  `json:"sid"`
		Client string          `json:"client,omitempty"`
		User   *domain.User    `json:"user,omitempty"`
		Room   domain.RoomName `json:"room,omitempty"`
	}{
		Type:   "whoami",
		SID:    sid,
		Client: conn.client,
	}
	if u, ok := ctl.Orch.Registry.UserOf(sid); ok {
		resp.User = u
	}
	if room, _, ok := ctl.Orch.Registry.RoomOf(sid); ok {
		resp.Room = room
	}
	ctl.sendJSON(conn, resp)
}
