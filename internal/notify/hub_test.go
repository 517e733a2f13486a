package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Bus, *Hub, string) {
	t.Helper()
	bus := NewBus(nil)
	hub := NewHub(bus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("websiteId"))
	}))
	t.Cleanup(srv.Close)

	return bus, hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, wsURL, websiteID string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL+"?websiteId="+websiteID, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var event Event
	require.NoError(t, json.Unmarshal(msg, &event))
	return event
}

func TestHubDeliversEventsForWatchedWebsite(t *testing.T) {
	bus, hub, wsURL := startHub(t)
	conn := dial(t, wsURL, "site-1")

	require.Eventually(t, func() bool {
		return hub.ConnectionCount("site-1") == 1
	}, time.Second, 10*time.Millisecond)

	bus.Publish(Event{Type: ContentChanged, WebsiteID: "site-1", PageID: "p1"})
	bus.Publish(Event{Type: ContentChanged, WebsiteID: "other-site"})
	bus.Publish(Event{Type: SaveCompleted, WebsiteID: "site-1"})

	first := readEvent(t, conn)
	assert.Equal(t, ContentChanged, first.Type)
	assert.Equal(t, "p1", first.PageID)

	// The other website's event never arrives; the next frame is the
	// save completion.
	second := readEvent(t, conn)
	assert.Equal(t, SaveCompleted, second.Type)
	assert.Equal(t, "site-1", second.WebsiteID)
}

func TestHubTracksDisconnects(t *testing.T) {
	_, hub, wsURL := startHub(t)
	conn := dial(t, wsURL, "site-1")

	require.Eventually(t, func() bool {
		return hub.ConnectionCount("site-1") == 1
	}, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		return hub.ConnectionCount("site-1") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestHubShutdownReleasesClients(t *testing.T) {
	bus := NewBus(nil)
	hub := NewHub(bus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(ran)
	}()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, "site-1")
	}))
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn := dial(t, wsURL, "site-1")
	require.Eventually(t, func() bool {
		return hub.ConnectionCount("site-1") == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-ran

	// A client arriving after shutdown is turned away instead of
	// wedging its handler on the register channel.
	late := dial(t, wsURL, "site-1")
	late.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := late.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 1, hub.ConnectionCount("site-1"))

	// An already-connected client can still disconnect; its read pump
	// must not block on an unregister channel nothing drains anymore.
	conn.Close()
}

func TestHubConnectionCountPerWebsite(t *testing.T) {
	_, hub, wsURL := startHub(t)
	dial(t, wsURL, "site-1")
	dial(t, wsURL, "site-1")
	dial(t, wsURL, "site-2")

	require.Eventually(t, func() bool {
		return hub.ConnectionCount("site-1") == 2 && hub.ConnectionCount("site-2") == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.ConnectionCount("site-3"))
}
