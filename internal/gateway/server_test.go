package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waggleboard/waggle/pkg/board"
)

func setupServer(t *testing.T) (*Server, *board.Client, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := board.NewClient(&redis.Options{Addr: mr.Addr()}, "test-workspace")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return NewServer(client, Options{}), client, mr
}

// startBridged runs the hub and the Redis bridges without binding an HTTP
// listener, so tests can drive the handlers through httptest.
func startBridged(t *testing.T, s *Server, client *board.Client) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	presenceSub, err := client.SubscribePresence(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { presenceSub.Close() })

	changeSub, err := client.SubscribeChanges(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { changeSub.Close() })

	go s.hub.Run(ctx)
	go s.bridge(ctx, presenceSub, changeSub)
}

func dialWS(t *testing.T, ts *httptest.Server, session string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "?session=" + session
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	return payload
}

func TestHubFanOut(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	a := &Client{hub: hub, send: make(chan []byte, 4), sessionID: "session-a"}
	b := &Client{hub: hub, send: make(chan []byte, 4), sessionID: "session-b"}
	c := &Client{hub: hub, send: make(chan []byte, 4), sessionID: "session-c"}
	hub.Register(a)
	hub.Register(b)
	hub.Register(c)

	t.Run("excluded session is skipped", func(t *testing.T) {
		hub.Broadcast([]byte("hello"), "session-b")

		for _, cl := range []*Client{a, c} {
			select {
			case payload := <-cl.send:
				assert.Equal(t, "hello", string(payload))
			case <-time.After(time.Second):
				t.Fatalf("session %s never received the frame", cl.sessionID)
			}
		}

		select {
		case <-b.send:
			t.Fatal("originating session received its own frame")
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("empty exclusion reaches everyone", func(t *testing.T) {
		hub.Broadcast([]byte("all"), "")
		for _, cl := range []*Client{a, b, c} {
			select {
			case payload := <-cl.send:
				assert.Equal(t, "all", string(payload))
			case <-time.After(time.Second):
				t.Fatalf("session %s never received the frame", cl.sessionID)
			}
		}
	})

	t.Run("unregistered client stops receiving", func(t *testing.T) {
		hub.Unregister(c)
		hub.Broadcast([]byte("after"), "")

		select {
		case payload, ok := <-a.send:
			require.True(t, ok)
			assert.Equal(t, "after", string(payload))
		case <-time.After(time.Second):
			t.Fatal("remaining client never received the frame")
		}
		<-b.send

		// c's channel was closed by the hub.
		_, ok := <-c.send
		assert.False(t, ok)
	})
}

func TestHubShutdownUnblocksCallers(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(runDone)
	}()
	cancel()
	<-runDone

	// A websocket upgrade racing shutdown must not hang forever.
	completed := make(chan struct{})
	go func() {
		late := &Client{hub: hub, send: make(chan []byte, 4), sessionID: "late"}
		hub.Register(late)
		hub.Unregister(late)
		hub.Broadcast([]byte("lost"), "")
		close(completed)
	}()

	select {
	case <-completed:
	case <-time.After(time.Second):
		t.Fatal("hub call blocked after shutdown")
	}
}

func TestWebSocketPresenceRelay(t *testing.T) {
	s, client, _ := setupServer(t)
	startBridged(t, s, client)

	ts := httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	defer ts.Close()

	connA := dialWS(t, ts, "browser-a")
	connB := dialWS(t, ts, "browser-b")
	time.Sleep(50 * time.Millisecond) // let registrations land

	// Browser A moves its cursor; the event goes A → Redis → hub → B.
	ev := board.CursorEvent(board.Identity{UserID: "user-1", Name: "Maya"}, 12, 34, "board")
	payload, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, connA.WriteMessage(websocket.TextMessage, payload))

	var received board.Event
	require.NoError(t, json.Unmarshal(readFrame(t, connB), &received))
	assert.Equal(t, board.EventTypeCursor, received.Type)
	assert.Equal(t, "browser-a", received.SessionID, "gateway stamps the browser session")
	require.NotNil(t, received.Cursor)
	assert.Equal(t, 12, received.Cursor.X)

	t.Run("sender does not hear its own echo", func(t *testing.T) {
		connA.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		_, _, err := connA.ReadMessage()
		assert.Error(t, err, "expected read timeout, not an echo")
	})
}

func TestWebSocketChangeRelay(t *testing.T) {
	s, client, _ := setupServer(t)
	startBridged(t, s, client)

	ts := httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	defer ts.Close()

	conn := dialWS(t, ts, "browser-a")
	time.Sleep(50 * time.Millisecond)

	// A durable write from any session reaches every browser.
	require.NoError(t, client.ReplaceColumnOrder(context.Background(), "mon", []string{"t1"}))

	var frame changeFrame
	require.NoError(t, json.Unmarshal(readFrame(t, conn), &frame))
	assert.Equal(t, "changed", frame.Type)
	assert.Equal(t, "order", frame.Data)
}

func TestHandleHealth(t *testing.T) {
	s, _, mr := setupServer(t)

	ts := httptest.NewServer(http.HandlerFunc(s.handleHealth))
	defer ts.Close()

	t.Run("healthy while Redis responds", func(t *testing.T) {
		resp, err := http.Get(ts.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var health healthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
		assert.Equal(t, "healthy", health.Status)
		assert.Equal(t, "connected", health.Redis)
	})

	t.Run("unhealthy once Redis is gone", func(t *testing.T) {
		mr.Close()

		resp, err := http.Get(ts.URL)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var health healthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
		assert.Equal(t, "unhealthy", health.Status)
	})
}
