package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/TeamChat/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

var errBadPayload = errors.New("bad_payload")

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, sid core.SessionID, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		c.Close()
		opCtx, cancel := ctl.opContext(ctx)
		defer cancel()
		ctl.Orch.OnDisconnect(opCtx, sid)
		ctl.Limiter.Forget(sid)
	}()

	pongWait := ctl.opts.PingPeriod * 10 / 9
	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				}
				return
			}
			_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
			ctl.handleSignal(ctx, sid, c, data)
		}
	}
}

// opContext detaches event work from the connection so a disconnect lets
// in-flight writes finish; OpTimeout still bounds it.
func (ctl *SignalWSController) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), ctl.opts.OpTimeout)
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, sid core.SessionID, c *WsSignalConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendError(c, env.Type, errBadPayload)
		return
	}

	opCtx, cancel := ctl.opContext(ctx)
	defer cancel()

	var err error
	switch env.Type {
	case "join":
		err = ctl.handleJoin(opCtx, sid, data)
	case "chatMessage":
		err = ctl.handleChat(opCtx, sid, data)
	case "pollGet":
		err = ctl.handlePollGet(opCtx, sid, data)
	case "pollCreate":
		err = ctl.handlePollCreate(opCtx, sid, data)
	case "pollVote":
		err = ctl.handlePollVote(opCtx, sid, data)
	case "pollClose":
		err = ctl.handlePollClose(opCtx, sid, data)
	case "ping":
		ctl.handlePing(c)
	case "whoami":
		ctl.handleWhoAmI(sid, c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		err = errors.New("unknown event type")
	}
	if err != nil {
		log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("type", env.Type).Msg("event rejected")
		ctl.sendError(c, env.Type, err)
	}
}

// decode unmarshals a client frame, mapping any failure to bad_payload.
func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad payload")
		return errBadPayload
	}
	return nil
}

// sendError reports err to the originating connection only.
func (ctl *SignalWSController) sendError(c *WsSignalConn, event string, err error) {
	ctl.Orch.Metrics.EventError(eventLabel(event))
	ctl.sendJSON(c, struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{
		Type:    core.EventError,
		Message: err.Error(),
	})
}

func eventLabel(event string) string {
	switch event {
	case "join", "chatMessage", "pollGet", "pollCreate", "pollVote", "pollClose":
		return event
	}
	return "unknown"
}

func (ctl *SignalWSController) sendJSON(c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
