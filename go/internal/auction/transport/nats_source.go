package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds configuration for consuming auction events from NATS
type NATSConfig struct {
	URL           string
	SubjectPrefix string // events for auction X arrive on <prefix>.X
	AuctionID     string
	MaxReconnects int
	ReconnectWait time.Duration
	BufferSize    int
}

// DefaultNATSConfig returns default NATS configuration
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "auction.events",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
		BufferSize:    256,
	}
}

// Subject returns the subject carrying events for the configured auction, or
// every auction when none is set.
func (c NATSConfig) Subject() string {
	if c.AuctionID == "" {
		return c.SubjectPrefix + ".>"
	}
	return c.SubjectPrefix + "." + c.AuctionID
}

// NATSSource reads the same envelopes the websocket carries from a NATS
// subject, for deployments that mirror the broadcast onto a bus
type NATSSource struct {
	config      NATSConfig
	nc          *nats.Conn
	frames      chan []byte
	reconnected chan struct{}
}

// NewNATSSource connects to NATS. Reconnects are handled by the client library
// and reported on Reconnected.
func NewNATSSource(config NATSConfig) (*NATSSource, error) {
	if config.SubjectPrefix == "" {
		return nil, errors.New("nats subject prefix is required")
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 256
	}

	s := &NATSSource{
		config:      config,
		frames:      make(chan []byte, config.BufferSize),
		reconnected: make(chan struct{}, 1),
	}

	opts := []nats.Option{
		nats.Name("auctionsync"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
			select {
			case s.reconnected <- struct{}{}:
			default:
			}
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	s.nc = nc
	return s, nil
}

func (s *NATSSource) Frames() <-chan []byte        { return s.frames }
func (s *NATSSource) Reconnected() <-chan struct{} { return s.reconnected }

// Close drops the connection. Run closes it too; Close is for a source that
// never ran.
func (s *NATSSource) Close() error {
	s.nc.Close()
	return nil
}

// Run implements Source. The connection is closed when Run returns.
func (s *NATSSource) Run(ctx context.Context) error {
	defer close(s.frames)
	defer s.nc.Close()

	msgCh := make(chan *nats.Msg, s.config.BufferSize)
	sub, err := s.nc.ChanSubscribe(s.config.Subject(), msgCh)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.config.Subject(), err)
	}
	defer func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			log.Warn().Err(err).Msg("failed to unsubscribe")
		}
	}()

	log.Info().Str("subject", s.config.Subject()).Msg("consuming auction events from NATS")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("NATS event source shutting down")
			return nil
		case msg := <-msgCh:
			select {
			case s.frames <- msg.Data:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
