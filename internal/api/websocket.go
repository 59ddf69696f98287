package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bbernstein/lacylights-live/internal/services/pubsub"
	"github.com/bbernstein/lacylights-live/internal/state"
	"github.com/bbernstein/lacylights-live/internal/store"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 30 * time.Second
	pingInterval   = 10 * time.Second
	maxMessageSize = maxBodySize
	streamBuffer   = 256
)

// StateMessage is sent on /ws for every matching state change. The first
// message carries no action. State holds the whole state, or only the
// requested slices when the stream is filtered.
type StateMessage struct {
	Action json.RawMessage `json:"action,omitempty"`
	State  any             `json:"state"`
	Error  string          `json:"error,omitempty"`
}

// parseFilters reads repeated or comma separated query values.
func parseFilters(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func project(s state.State, slices []state.Slice) any {
	if len(slices) == 0 {
		return s
	}
	out := make(map[state.Slice]any, len(slices))
	for _, sl := range slices {
		if v, ok := s.Get(sl); ok {
			out[sl] = v
		}
	}
	return out
}

func (s *Server) handleStateStream(w http.ResponseWriter, r *http.Request) {
	var slices []state.Slice
	for _, name := range parseFilters(r, "slice") {
		sl := state.Slice(name)
		if _, ok := state.Initial().Get(sl); !ok {
			writeError(w, http.StatusBadRequest, "unknown slice %q", name)
			return
		}
		slices = append(slices, sl)
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	sub := s.store.Subscribe(slices...)

	first := StateMessage{State: project(s.store.GetState(), slices)}
	encode := func(msg interface{}) (any, bool) {
		change, ok := msg.(store.Change)
		if !ok {
			return nil, false
		}
		out := StateMessage{State: project(change.State, slices)}
		if data, err := state.EncodeAction(change.Action); err == nil {
			out.Action = data
		}
		if change.Err != nil {
			out.Error = change.Err.Error()
		}
		return out, true
	}
	// Clients may send actions on the same socket
	receive := func(data []byte) {
		action, err := state.DecodeAction(data)
		if err != nil {
			log.Printf("WebSocket: ignoring message: %v", err)
			return
		}
		_ = s.store.Dispatch(action)
	}

	s.stream(conn, s.store.PubSub(), sub, first, encode, receive)
}

func (s *Server) handleDMXStream(w http.ResponseWriter, r *http.Request) {
	s.streamTopic(w, r, pubsub.TopicDMXOutput, parseFilters(r, "universe"))
}

func (s *Server) handleMIDIStream(w http.ResponseWriter, r *http.Request) {
	s.streamTopic(w, r, pubsub.TopicMIDIEvent, parseFilters(r, "controller"))
}

// streamTopic forwards every message of topic as JSON.
func (s *Server) streamTopic(w http.ResponseWriter, r *http.Request, topic pubsub.Topic, filters []string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	ps := s.store.PubSub()
	sub := ps.Subscribe(topic, streamBuffer, filters...)
	s.stream(conn, ps, sub, nil, func(msg interface{}) (any, bool) { return msg, true }, nil)
}

// stream writes first (when non-nil) and then every subscription message
// until the client goes away. Incoming messages are passed to receive.
func (s *Server) stream(
	conn *websocket.Conn,
	ps *pubsub.PubSub,
	sub *pubsub.Subscriber,
	first any,
	encode func(interface{}) (any, bool),
	receive func([]byte),
) {
	defer func() { _ = conn.Close() }()
	defer ps.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if receive != nil {
				receive(data)
			}
		}
	}()

	write := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(v) == nil
	}

	if first != nil && !write(first) {
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg, ok := <-sub.Channel:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			out, ok := encode(msg)
			if !ok {
				continue
			}
			if !write(out) {
				return
			}
		}
	}
}
