package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/chatview"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/core"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
)

const (
	ProtocolBase       = "orya-chat.v1"
	ProtocolAuthPrefix = "orya-chat.auth."

	DefaultPingInterval = 25 * time.Second
	DefaultMinBackoff   = 500 * time.Millisecond
	DefaultMaxBackoff   = 10 * time.Second
	backoffFactor       = 1.7
)

var errNotConnected = errors.New("stream not connected")

// StreamConfig configures a Stream.
type StreamConfig struct {
	URL          string
	Token        string
	PingInterval time.Duration
	MinBackoff   time.Duration
	MaxBackoff   time.Duration
	Logger       *slog.Logger
}

// Stream is the real-time event feed over a websocket. It reconnects with
// backoff until its context ends, and reports every change of connection
// state as a chatview.ConnectionMsg.
type Stream struct {
	cfg    StreamConfig
	logger *slog.Logger
	dialer websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	writeMu sync.Mutex
}

var _ chatview.TypingSender = (*Stream)(nil)

// NewStream builds a stream; call Run to connect.
func NewStream(cfg StreamConfig) *Stream {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = DefaultMinBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	protocols := []string{ProtocolBase}
	if cfg.Token != "" {
		protocols = append(protocols, ProtocolAuthPrefix+cfg.Token)
	}
	return &Stream{
		cfg:    cfg,
		logger: core.OrDiscard(cfg.Logger),
		dialer: websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
			Subprotocols:     protocols,
		},
	}
}

// NextBackoff returns the reconnect delay after delay.
func NextBackoff(delay, max time.Duration) time.Duration {
	next := time.Duration(float64(delay) * backoffFactor)
	if next > max {
		return max
	}
	return next
}

// Run connects and delivers events to out until ctx is cancelled.
func (s *Stream) Run(ctx context.Context, out chan<- tea.Msg) error {
	delay := s.cfg.MinBackoff
	for {
		connected, err := s.session(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			delay = s.cfg.MinBackoff
		}
		state := types.ConnectionReconnecting
		if delay >= s.cfg.MaxBackoff {
			state = types.ConnectionOffline
		}
		s.logger.Info("stream disconnected", "err", err, "retry_in", delay, "state", state)
		emit(ctx, out, chatview.ConnectionMsg{State: state})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = NextBackoff(delay, s.cfg.MaxBackoff)
	}
}

func (s *Stream) session(ctx context.Context, out chan<- tea.Msg) (bool, error) {
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, http.Header{})
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		conn.Close()
	}()

	emit(ctx, out, chatview.ConnectionMsg{State: types.ConnectionConnected})
	if err := s.write(conn, map[string]string{"type": "conversation:sync"}); err != nil {
		return true, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return conn.Close()
	})
	g.Go(func() error {
		ticker := time.NewTicker(s.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := s.write(conn, map[string]string{"type": "ping"}); err != nil {
					return err
				}
			}
		}
	})
	g.Go(func() error {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return err
			}
			var event types.Event
			if err := json.Unmarshal(data, &event); err != nil {
				s.logger.Warn("dropping malformed frame", "err", err, "size", len(data))
				continue
			}
			if event.Type == "" || event.Type == "pong" {
				continue
			}
			if !emit(gctx, out, chatview.EventMsg{Event: event}) {
				return gctx.Err()
			}
		}
	})
	return true, g.Wait()
}

func (s *Stream) write(conn *websocket.Conn, v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(v)
}

// SendTyping publishes a typing signal on the open connection.
func (s *Stream) SendTyping(_ context.Context, signal types.TypingSignal) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errNotConnected
	}
	return s.write(conn, signal)
}

func emit(ctx context.Context, out chan<- tea.Msg, msg tea.Msg) bool {
	select {
	case out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}
