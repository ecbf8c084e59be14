package realtime

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Engine.IO v4 packet types.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
)

// Socket.IO v5 packet types, carried inside an Engine.IO message.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

type frameKind int

const (
	frameOpen frameKind = iota
	frameClose
	framePing
	framePong
	frameConnect
	frameDisconnect
	frameConnectError
	frameEvent
	frameOther
)

type openPayload struct {
	SID          string `json:"sid"`
	PingInterval int64  `json:"pingInterval"`
	PingTimeout  int64  `json:"pingTimeout"`
}

type frame struct {
	kind  frameKind
	open  openPayload
	event string
	args  []json.RawMessage
	data  string
}

// parseFrame decodes one websocket text message.
func parseFrame(s string) (frame, error) {
	if s == "" {
		return frame{}, errors.New("empty frame")
	}
	switch s[0] {
	case eioOpen:
		var op openPayload
		if err := json.Unmarshal([]byte(s[1:]), &op); err != nil {
			return frame{}, errors.Wrap(err, "decode open packet")
		}
		return frame{kind: frameOpen, open: op}, nil
	case eioClose:
		return frame{kind: frameClose}, nil
	case eioPing:
		return frame{kind: framePing, data: s[1:]}, nil
	case eioPong:
		return frame{kind: framePong, data: s[1:]}, nil
	case eioMessage:
		return parseMessage(s[1:])
	}
	return frame{kind: frameOther, data: s}, nil
}

func parseMessage(s string) (frame, error) {
	if s == "" {
		return frame{}, errors.New("empty socket.io packet")
	}
	kind, rest := s[0], s[1:]
	// optional namespace, only the default one is joined
	if strings.HasPrefix(rest, "/") {
		if i := strings.IndexByte(rest, ','); i >= 0 {
			rest = rest[i+1:]
		} else {
			rest = ""
		}
	}
	switch kind {
	case sioConnect:
		return frame{kind: frameConnect, data: rest}, nil
	case sioDisconnect:
		return frame{kind: frameDisconnect}, nil
	case sioConnectError:
		return frame{kind: frameConnectError, data: rest}, nil
	case sioEvent:
		// skip ack id
		i := 0
		for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
			i++
		}
		var arr []json.RawMessage
		if err := json.Unmarshal([]byte(rest[i:]), &arr); err != nil {
			return frame{}, errors.Wrap(err, "decode event packet")
		}
		if len(arr) == 0 {
			return frame{}, errors.New("event packet without name")
		}
		var name string
		if err := json.Unmarshal(arr[0], &name); err != nil {
			return frame{}, errors.Wrap(err, "decode event name")
		}
		return frame{kind: frameEvent, event: name, args: arr[1:]}, nil
	}
	return frame{kind: frameOther, data: s}, nil
}

func encodeEvent(name string, args ...any) (string, error) {
	arr := make([]any, 0, len(args)+1)
	arr = append(arr, name)
	arr = append(arr, args...)
	b, err := json.Marshal(arr)
	if err != nil {
		return "", errors.Wrap(err, "encode event")
	}
	return string([]byte{eioMessage, sioEvent}) + string(b), nil
}

func connectPacket() string {
	return string([]byte{eioMessage, sioConnect})
}

func pongPacket(data string) string {
	return string(eioPong) + data
}

// socketURL maps the API base URL to the Engine.IO websocket endpoint.
func socketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrap(err, "parse socket url")
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws", "":
		u.Scheme = "ws"
	default:
		return "", errors.Errorf("unsupported socket url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/socket.io/"
	q := url.Values{}
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (o openPayload) readTimeout() time.Duration {
	d := time.Duration(o.PingInterval+o.PingTimeout) * time.Millisecond
	if d <= 0 {
		d = 45 * time.Second
	}
	return d
}
