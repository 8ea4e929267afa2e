package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSBus maps broadcast channels onto core NATS subjects so replicas in
// different processes share the same channels.
type NATSBus struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSBus connects to url. prefix namespaces the subjects, e.g. "mesaqr".
func NewNATSBus(url, prefix string) (*NATSBus, error) {
	conn, err := nats.Connect(url,
		nats.Name("mesaqr"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSBus{conn: conn, prefix: prefix}, nil
}

func (b *NATSBus) subject(channel string) string {
	return subjectFor(b.prefix, channel)
}

func subjectFor(prefix, channel string) string {
	if prefix == "" {
		return channel
	}
	return prefix + "." + channel
}

// Publish sends payload on the channel's subject.
func (b *NATSBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.conn.Publish(b.subject(channel), payload); err != nil {
		return fmt.Errorf("nats publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe runs fn for every message on the channel's subject. NATS
// delivers one subscription's messages sequentially.
func (b *NATSBus) Subscribe(channel string, fn func(payload []byte)) (func(), error) {
	sub, err := b.conn.Subscribe(b.subject(channel), func(msg *nats.Msg) {
		fn(msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", channel, err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Debug().Err(err).Str("channel", channel).Msg("nats unsubscribe")
		}
	}, nil
}

// Close drains pending messages and closes the connection.
func (b *NATSBus) Close() error {
	return b.conn.Drain()
}
