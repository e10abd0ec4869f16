// Package natsbus mirrors accepted room events onto NATS subjects of the
// form <prefix>.<room>.<kind>, so other services can follow the chat.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/TeamChat/internal/domain"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

type Publisher struct {
	nc     *nats.Conn
	prefix string
}

// Connect dials url. The caller owns the returned publisher and must Close it.
func Connect(url, prefix string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("teamchat"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Str("module", "natsbus").Msg("disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("module", "natsbus").Str("url", c.ConnectedUrl()).Msg("reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	log.Info().Str("module", "natsbus").Str("url", url).Msg("connected")
	return &Publisher{nc: nc, prefix: prefix}, nil
}

// Subject builds the subject for one room event.
func Subject(prefix string, room domain.RoomName, kind string) string {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		prefix = "hrchat"
	}
	// NATS tokens cannot contain dots or whitespace.
	token := strings.Map(func(r rune) rune {
		switch r {
		case '.', ' ', '\t', '*', '>':
			return '_'
		}
		return r
	}, string(room))
	return prefix + "." + token + "." + kind
}

func (p *Publisher) Publish(ctx context.Context, room domain.RoomName, kind string, payload any) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.nc.Publish(Subject(p.prefix, room, kind), data)
}

func (p *Publisher) Close() {
	if p == nil || p.nc == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		log.Warn().Err(err).Str("module", "natsbus").Msg("drain")
	}
}
