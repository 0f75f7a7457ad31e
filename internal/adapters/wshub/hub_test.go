package wshub

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"niftyGreeksBot/internal/domain"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func TestHubBroadcastsEvents(t *testing.T) {
	hub := NewHub(&mockLogger{})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + EventsPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	event := domain.LifecycleEvent{
		Type:      domain.EventClose,
		Position:  domain.Position{ID: 3, Symbol: "NIFTY", Side: domain.Long, Quantity: 50},
		Reason:    domain.CloseReasonStopLoss,
		Signal:    domain.SignalNone,
		Price:     99,
		Timestamp: ts,
	}
	require.NoError(t, hub.Publish(context.Background(), event))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got domain.LifecycleEvent
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, domain.EventClose, got.Type)
	assert.Equal(t, domain.CloseReasonStopLoss, got.Reason)
	assert.Equal(t, int64(3), got.Position.ID)
	assert.True(t, ts.Equal(got.Timestamp))
}

func TestHubDropsClosedClients(t *testing.T) {
	hub := NewHub(&mockLogger{})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 10*time.Millisecond)
	assert.NoError(t, hub.Publish(context.Background(), domain.LifecycleEvent{Type: domain.EventOpen}))
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	hub := NewHub(&mockLogger{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
}
