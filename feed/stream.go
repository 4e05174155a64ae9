package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"garden-notifier/pkg/notifier"
)

// DefaultReconnectDelay is the fixed wait between reconnect attempts.
const DefaultReconnectDelay = 5 * time.Second

const (
	streamPongWait   = 60 * time.Second
	streamPingPeriod = 30 * time.Second
)

// streamMessage is one websocket frame: a channel tag plus the same JSON
// body the polled endpoint for that channel would return.
type streamMessage struct {
	Channel notifier.Channel `json:"channel"`
	Data    json.RawMessage  `json:"data"`
}

// Stream holds a persistent websocket connection to the feed and pushes
// every tagged payload into the pipeline. It reconnects forever with a
// fixed delay; the pollers cover the gaps.
type Stream struct {
	url            string
	pipeline       *Pipeline
	reconnectDelay time.Duration
	dialer         *websocket.Dialer
	logger         *slog.Logger
}

// NewStream creates a stream source. A non-positive delay falls back to
// DefaultReconnectDelay.
func NewStream(streamURL string, pipeline *Pipeline, reconnectDelay time.Duration, logger *slog.Logger) *Stream {
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &Stream{
		url:            streamURL,
		pipeline:       pipeline,
		reconnectDelay: reconnectDelay,
		dialer:         websocket.DefaultDialer,
		logger:         logger,
	}
}

// Run connects and reads until ctx is cancelled, reconnecting after every
// disconnect.
func (s *Stream) Run(ctx context.Context) {
	s.logger.Info("Stream starting", "url", s.url)
	for {
		if err := s.connectAndRead(ctx); err != nil {
			s.logger.Warn("Stream disconnected", "url", s.url, "error", err)
		}

		select {
		case <-ctx.Done():
			s.logger.Info("Stream stopping", "reason", ctx.Err())
			return
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *Stream) connectAndRead(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			s.logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()
	s.logger.Info("Stream connected", "url", s.url)

	// A dead peer is detected via the ping/pong deadline.
	if err := conn.SetReadDeadline(time.Now().Add(streamPongWait)); err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	// Close the connection when ctx is cancelled so ReadMessage unblocks,
	// and ping on a timer while connected.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(streamPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("Dropping unparseable stream frame", "error", err)
			continue
		}
		if msg.Channel != notifier.ChannelStock && msg.Channel != notifier.ChannelWeather {
			s.logger.Debug("Ignoring stream frame for unknown channel", "channel", string(msg.Channel))
			continue
		}

		if err := s.pipeline.Handle(ctx, msg.Channel, msg.Data); err != nil {
			s.logger.Warn("Stream frame rejected", "channel", string(msg.Channel), "error", err)
		}
	}
}
