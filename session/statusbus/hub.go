// Package statusbus implements the lossy fan-out control channel a
// session multiplexes against: many writers (front-end UI, multiple
// sessions) and many readers, carrying both front-to-lib control
// directives (e.g. CancelTransfer) and lib-to-front status updates (phase
// changes, PIN display). It also exposes the same stream over a
// websocket so an external UI process can subscribe without sharing
// process memory.
package statusbus

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/sage-x-project/nearbylink/internal/logger"
)

// Direction tags which side originated a Message.
type Direction int

const (
	DirectionLibToFront Direction = iota
	DirectionFrontToLib
)

// Action is a FrontToLib control directive.
type Action int

const (
	ActionNone Action = iota
	ActionCancelTransfer
)

// Message is the single envelope type carried on the bus: control
// directives flow FrontToLib, status updates flow LibToFront. A session
// only acts on FrontToLib messages whose SessionID matches its own.
type Message struct {
	SessionID string    `json:"session_id"`
	Direction Direction `json:"direction"`
	Action    Action    `json:"action,omitempty"`
	Phase     string    `json:"phase,omitempty"`
	PinCode   string    `json:"pin_code,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// subscriberBuffer bounds how far a slow reader may lag before messages
// are dropped for it; the bus is lossy by design (§5: writers must
// tolerate backpressure by dropping oldest messages).
const subscriberBuffer = 32

// Hub is a multi-producer, multi-consumer broadcast channel.
type Hub struct {
	mu       sync.RWMutex
	subs     map[chan Message]struct{}
	upgrader websocket.Upgrader
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[chan Message]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Subscribe registers a new reader and returns its channel plus an
// unsubscribe function. The caller must call the returned function
// exactly once when done.
func (h *Hub) Subscribe() (<-chan Message, func()) {
	ch := make(chan Message, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish fans msg out to every current subscriber. A subscriber whose
// buffer is full has its oldest buffered message dropped to make room
// (ControlChannelLag is non-fatal per the error taxonomy); publishing
// never blocks.
func (h *Hub) Publish(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- msg:
			continue
		default:
		}
		logger.Warn("statusbus: subscriber lagging, dropping oldest message", logger.String("session_id", msg.SessionID))
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- msg:
		default:
		}
	}
}

// ServeWS upgrades an HTTP request to a websocket and bridges it to the
// hub: inbound JSON Messages are published (as a front-end's control
// directives), and the hub's broadcast stream is written back out (as
// status updates to the UI).
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("statusbus: websocket upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	ch, cancel := h.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			h.Publish(msg)
		}
	}()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
