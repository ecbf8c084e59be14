package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/BearBump/ParcelDesk/internal/models"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const joinRoomEvent = "join-room"

var errServerClosed = errors.New("socket closed by server")

// SocketIO is the websocket transport. It joins the room of userID and
// reconnects with backoff until ctx is done.
type SocketIO struct {
	baseURL string
	userID  string
	dialer  *websocket.Dialer
	backoff *Backoff

	connected  atomic.Bool
	reconnects atomic.Int64
}

func NewSocketIO(baseURL, userID string, backoff *Backoff) *SocketIO {
	if backoff == nil {
		backoff = NewBackoff(DefaultBackoffConfig(), nil)
	}
	return &SocketIO{
		baseURL: baseURL,
		userID:  userID,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		},
		backoff: backoff,
	}
}

func (s *SocketIO) Connected() bool { return s.connected.Load() }

func (s *SocketIO) Reconnects() int64 { return s.reconnects.Load() }

func (s *SocketIO) Run(ctx context.Context, publish func(Event)) error {
	var (
		attempt    int32
		everJoined bool
	)
	for {
		joined, err := s.session(ctx, publish, everJoined)
		if joined {
			everJoined = true
			attempt = 0
		}
		if ctx.Err() != nil {
			return nil
		}
		attempt++
		delay := s.backoff.Delay(attempt)
		slog.Warn("realtime disconnected", "error", errString(err), "attempt", attempt, "retry_in", delay.String())

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// session runs one connection. joined reports whether the room was joined.
func (s *SocketIO) session(ctx context.Context, publish func(Event), rejoin bool) (joined bool, err error) {
	u, err := socketURL(s.baseURL)
	if err != nil {
		return false, err
	}
	conn, _, err := s.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return false, errors.Wrap(err, "dial socket")
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer s.connected.Store(false)

	timeout := 45 * time.Second
	for {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return joined, errors.Wrap(err, "read socket")
		}
		f, err := parseFrame(string(data))
		if err != nil {
			slog.Warn("realtime bad frame", "error", err.Error())
			continue
		}

		switch f.kind {
		case frameOpen:
			timeout = f.open.readTimeout()
			if err := conn.WriteMessage(websocket.TextMessage, []byte(connectPacket())); err != nil {
				return joined, errors.Wrap(err, "write connect")
			}
		case frameConnect:
			msg, err := encodeEvent(joinRoomEvent, s.userID)
			if err != nil {
				return joined, err
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return joined, errors.Wrap(err, "write join-room")
			}
			joined = true
			s.connected.Store(true)
			slog.Info("realtime connected", "room", s.userID)
			if rejoin {
				s.reconnects.Add(1)
				publish(Event{Kind: KindReconnected, At: time.Now()})
			}
		case framePing:
			if err := conn.WriteMessage(websocket.TextMessage, []byte(pongPacket(f.data))); err != nil {
				return joined, errors.Wrap(err, "write pong")
			}
		case frameEvent:
			ev, ok := eventFromFrame(f)
			if ok {
				publish(ev)
			}
		case frameConnectError:
			return joined, errors.Errorf("socket connect error: %s", f.data)
		case frameDisconnect, frameClose:
			return joined, errServerClosed
		}
	}
}

func eventFromFrame(f frame) (Event, bool) {
	kind := Kind(f.event)
	if kind != KindParcelUpdated && kind != KindNewParcel {
		return Event{}, false
	}
	if len(f.args) == 0 {
		slog.Warn("realtime event without payload", "event", f.event)
		return Event{}, false
	}
	var p models.Parcel
	if err := json.Unmarshal(f.args[0], &p); err != nil {
		slog.Warn("realtime event payload", "event", f.event, "error", err.Error())
		return Event{}, false
	}
	return Event{Kind: kind, Parcel: &p, At: time.Now()}, true
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
