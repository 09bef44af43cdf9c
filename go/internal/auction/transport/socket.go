package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/chzzk-auction/auctionsync/go/clients/auction_client"
)

// SocketConfig holds configuration for the push connection
type SocketConfig struct {
	URL              string // ws(s) or http(s) base of the auction server
	AuctionID        string
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	MaxMessageSize   int64
	HandshakeTimeout time.Duration
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	Header           http.Header
	Clock            clockwork.Clock
}

// DefaultSocketConfig returns default push connection configuration
func DefaultSocketConfig() SocketConfig {
	return SocketConfig{
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		MaxMessageSize:   1 << 20, // state frames carry the full bid log
		HandshakeTimeout: 10 * time.Second,
		ReconnectInitial: 500 * time.Millisecond,
		ReconnectMax:     15 * time.Second,
	}
}

// Socket is the websocket push connection. It reconnects with backoff until
// its context is cancelled.
type Socket struct {
	config      SocketConfig
	dialer      *websocket.Dialer
	clock       clockwork.Clock
	frames      chan []byte
	reconnected chan struct{}

	writeMu sync.Mutex
}

func NewSocket(config SocketConfig) (*Socket, error) {
	if config.URL == "" {
		return nil, errors.New("socket url is required")
	}
	if config.Clock == nil {
		config.Clock = clockwork.NewRealClock()
	}
	return &Socket{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
		},
		clock:       config.Clock,
		frames:      make(chan []byte, 256),
		reconnected: make(chan struct{}, 1),
	}, nil
}

func (s *Socket) Frames() <-chan []byte        { return s.frames }
func (s *Socket) Reconnected() <-chan struct{} { return s.reconnected }

// Run implements Source. It returns nil once ctx is cancelled; an invalid URL is
// the only error.
func (s *Socket) Run(ctx context.Context) error {
	defer close(s.frames)

	target, err := SocketURL(s.config.URL, s.config.AuctionID)
	if err != nil {
		return err
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = s.config.ReconnectInitial
	retry.MaxInterval = s.config.ReconnectMax
	retry.MaxElapsedTime = 0
	retry.Reset()

	connected := false
	for {
		conn, _, err := s.dialer.DialContext(ctx, target, s.config.Header)
		if err == nil {
			if connected {
				s.signalReconnected()
			}
			connected = true
			retry.Reset()
			s.serve(ctx, conn)
		} else if ctx.Err() == nil {
			log.Warn().Err(err).Str("url", target).Msg("auction socket dial failed")
		}

		if ctx.Err() != nil {
			return nil
		}

		wait := retry.NextBackOff()
		select {
		case <-ctx.Done():
			return nil
		case <-s.clock.After(wait):
		}
	}
}

// serve pumps one connection until it fails or ctx is cancelled.
func (s *Socket) serve(ctx context.Context, conn *websocket.Conn) {
	connID := uuid.New().String()
	log.Info().Str("connection_id", connID).Str("auction_id", s.config.AuctionID).Msg("auction socket connected")

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-connCtx.Done()
		if ctx.Err() != nil {
			s.writeControl(conn, websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		}
		conn.Close()
	}()
	go s.pingLoop(connCtx, conn, connID)

	s.readPump(connCtx, conn, connID)
}

// readPump reads frames in order and hands them to the consumer
func (s *Socket) readPump(ctx context.Context, conn *websocket.Conn, connID string) {
	if s.config.MaxMessageSize > 0 {
		conn.SetReadLimit(s.config.MaxMessageSize)
	}
	s.extendReadDeadline(conn)
	conn.SetPongHandler(func(string) error {
		s.extendReadDeadline(conn)
		return nil
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Error().Err(err).Str("connection_id", connID).Msg("unexpected auction socket close")
				} else {
					log.Info().Err(err).Str("connection_id", connID).Msg("auction socket closed")
				}
			}
			return
		}
		s.extendReadDeadline(conn)

		select {
		case s.frames <- message:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Socket) pingLoop(ctx context.Context, conn *websocket.Conn, connID string) {
	if s.config.PingInterval <= 0 {
		return
	}
	ticker := s.clock.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := s.writeControl(conn, websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Str("connection_id", connID).Msg("failed to send ping")
				conn.Close()
				return
			}
		}
	}
}

func (s *Socket) writeControl(conn *websocket.Conn, messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteControl(messageType, data, time.Now().Add(s.config.WriteTimeout))
}

func (s *Socket) extendReadDeadline(conn *websocket.Conn) {
	if s.config.ReadTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
	}
}

func (s *Socket) signalReconnected() {
	select {
	case s.reconnected <- struct{}{}:
	default:
	}
}

// SocketURL builds the push endpoint for base, switching http schemes to their
// websocket counterparts and scoping the stream to auctionID when set.
func SocketURL(base, auctionID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid socket url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid socket url scheme %q", u.Scheme)
	}

	if !strings.HasSuffix(u.Path, auction_client.SocketEndpoint) {
		u.Path = strings.TrimSuffix(u.Path, "/") + auction_client.SocketEndpoint
	}
	if auctionID != "" {
		q := u.Query()
		q.Set("auctionId", auctionID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
