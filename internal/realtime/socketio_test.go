package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeSocketServer speaks enough Engine.IO/Socket.IO to drive the client.
// Each connection gets the events in script, then the server hangs up.
func fakeSocketServer(t *testing.T, joined chan<- string, script ...string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var conns atomic.Int32
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/socket.io/" || r.URL.Query().Get("EIO") != "4" {
			http.NotFound(w, r)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conns.Add(1)

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`0{"sid":"s1","pingInterval":25000,"pingTimeout":20000}`))
		_, msg, err := conn.ReadMessage()
		if err != nil || string(msg) != "40" {
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`40{"sid":"n1"}`))
		_, msg, err = conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case joined <- string(msg):
		default:
		}

		_ = conn.WriteMessage(websocket.TextMessage, []byte("2"))
		_, msg, err = conn.ReadMessage()
		if err != nil || string(msg) != "3" {
			return
		}
		for _, s := range script {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(s))
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte("41"))
		time.Sleep(50 * time.Millisecond)
	}))
	return srv, &conns
}

type zeroRand struct{}

func (zeroRand) Int63n(int64) int64 { return 0 }

func TestSocketIO_JoinsRoomAndPublishes(t *testing.T) {
	joined := make(chan string, 4)
	srv, _ := fakeSocketServer(t, joined,
		`42["parcel-updated",{"_id":"p1","trackingId":"CMS1","status":"delivered"}]`,
		`42["unrelated",{}]`,
		`42["new-parcel",{"_id":"p2","trackingId":"CMS2","status":"pending"}]`,
	)
	defer srv.Close()

	hub := NewHub(16)
	sub := hub.Subscribe()
	defer sub.Close()

	sio := NewSocketIO(srv.URL, "u1", NewBackoff(BackoffConfig{Min: 10 * time.Millisecond, Max: 20 * time.Millisecond}, zeroRand{}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sio.Run(ctx, hub.Publish) }()

	select {
	case msg := <-joined:
		require.Equal(t, `42["join-room","u1"]`, msg)
	case <-time.After(3 * time.Second):
		t.Fatal("client did not join the room")
	}

	ev := recvEvent(t, sub)
	require.Equal(t, KindParcelUpdated, ev.Kind)
	require.Equal(t, "p1", ev.Parcel.ID)
	ev = recvEvent(t, sub)
	require.Equal(t, KindNewParcel, ev.Kind)
	require.Equal(t, "CMS2", ev.Parcel.TrackingID)

	// server hangs up, client reconnects and signals it
	ev = recvEvent(t, sub)
	for ev.Kind != KindReconnected {
		ev = recvEvent(t, sub)
	}
	require.GreaterOrEqual(t, sio.Reconnects(), int64(1))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not stop")
	}
	require.False(t, sio.Connected())
}

func TestSocketIO_StopsWhileDialFails(t *testing.T) {
	sio := NewSocketIO("http://127.0.0.1:1", "u1", NewBackoff(BackoffConfig{Min: 5 * time.Millisecond, Max: 5 * time.Millisecond}, zeroRand{}))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	require.NoError(t, sio.Run(ctx, func(Event) {}))
}

func recvEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev := <-sub.C():
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("no event")
	}
	return Event{}
}
