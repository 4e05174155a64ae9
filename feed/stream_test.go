package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"garden-notifier/pkg/notifier"
)

func TestStreamDeliversTaggedFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		frames := []string{
			`{"channel":"stock","data":{"seeds":[{"item_id":"carrot","display_name":"Carrot","quantity":2}]}}`,
			`not json at all`,
			`{"channel":"moon","data":{}}`,
			`{"channel":"weather","data":{"weather":[{"weather_id":"rain","weather_name":"Rain","active":true}]}}`,
		}
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				t.Errorf("write frame: %v", err)
				return
			}
		}
		// Give the client a moment to drain before closing.
		time.Sleep(100 * time.Millisecond)
	}))
	defer server.Close()

	planner := &fakePlanner{jobs: []notifier.Job{{Email: "a@example.com"}}}
	dispatcher := &fakeDispatcher{}
	pipeline := newTestPipeline(planner, dispatcher)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	s := NewStream(wsURL, pipeline, time.Second, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// The server closes after sending its frames, so this returns.
	_ = s.connectAndRead(ctx)

	if planner.stockCalls != 1 {
		t.Errorf("stockCalls = %d, want 1", planner.stockCalls)
	}
	if planner.weatherCalls != 1 {
		t.Errorf("weatherCalls = %d, want 1", planner.weatherCalls)
	}
	if len(dispatcher.batches) != 2 {
		t.Errorf("dispatched batches = %d, want 2", len(dispatcher.batches))
	}
}

func TestStreamRunStopsOnCancel(t *testing.T) {
	// No server listening: Run should keep retrying until the context ends.
	pipeline := newTestPipeline(&fakePlanner{}, &fakeDispatcher{})
	s := NewStream("ws://127.0.0.1:1/ws", pipeline, 10*time.Millisecond, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestNewStreamDefaultsReconnectDelay(t *testing.T) {
	s := NewStream("ws://example.com/ws", nil, 0, discardLogger())
	if s.reconnectDelay != DefaultReconnectDelay {
		t.Errorf("reconnectDelay = %v, want %v", s.reconnectDelay, DefaultReconnectDelay)
	}
}
