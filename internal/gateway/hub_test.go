package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"toursync/internal/events"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStreamServer(t *testing.T) (*harness, *Hub, *httptest.Server) {
	t.Helper()
	h := newHarness(t)
	hub := NewHub(h.bus, []string{"http://localhost:5173"}, nil)
	srv := NewServer(testGatewayConfig(), h.gw, hub, nil, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hub.Close()
		ts.Close()
	})
	return h, hub, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + eventsPath
}

func readEvent(t *testing.T, ctx context.Context, ws *websocket.Conn) events.Event {
	t.Helper()
	_, data, err := ws.Read(ctx)
	require.NoError(t, err)
	var e events.Event
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

func TestHubStreamsEvents(t *testing.T) {
	h, hub, ts := newStreamServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("x-api-key", testKey)
	ws, _, err := websocket.Dial(ctx, wsURL(ts), &websocket.DialOptions{HTTPHeader: header})
	require.NoError(t, err)
	defer ws.CloseNow()

	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err = h.invoke(t, ChannelWindowMaximize, nil)
	require.NoError(t, err)
	_, err = h.invoke(t, ChannelCreateTour, map[string]any{"client_name": "Dana", "tour_time": "2025-03-14T15:00:00Z"})
	require.NoError(t, err)

	e := readEvent(t, ctx, ws)
	assert.Equal(t, events.EventWindowCommand, e.Type)
	var cmd events.WindowCommandPayload
	require.NoError(t, json.Unmarshal(e.Payload, &cmd))
	assert.Equal(t, WindowMaximize, cmd.Command)

	e = readEvent(t, ctx, ws)
	assert.Equal(t, events.EventTourCreated, e.Type)
	assert.Greater(t, e.ID, int64(0))

	require.NoError(t, ws.Close(websocket.StatusNormalClosure, ""))
	assert.Eventually(t, func() bool { return hub.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubAcceptsQueryKey(t *testing.T) {
	_, hub, ts := newStreamServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, wsURL(ts)+"?api_key="+testKey, nil)
	require.NoError(t, err)
	defer ws.CloseNow()
	assert.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubRejectsMissingKey(t *testing.T) {
	_, hub, ts := newStreamServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, wsURL(ts), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, hub.ConnectionCount())
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	h, hub, ts := newStreamServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, wsURL(ts)+"?api_key="+testKey, nil)
	require.NoError(t, err)
	defer ws.CloseNow()
	require.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Eventually(t, func() bool { return hub.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	// The bus subscription is gone; publishing must not reach a closed hub.
	require.NoError(t, h.bus.PublishJSON(events.EventUpdateStatus, events.UpdateStatusPayload{Message: "late"}))
	_, _, err = ws.Read(ctx)
	assert.Error(t, err)
}

func TestOriginPatterns(t *testing.T) {
	assert.Equal(t,
		[]string{"localhost:5173", "app.example.com", "*.example.org"},
		originPatterns([]string{"http://localhost:5173", "https://app.example.com", "*.example.org"}),
	)
}
