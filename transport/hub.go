// Package transport is the websocket edge of the room server. The Hub owns
// the session directory (connection id -> deliverable sink) and the
// broadcast groups (room code -> member connections); it is the only place
// where a connection identifier is resolved to an actual channel, which
// keeps the registry transport-agnostic.
package transport

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"roomhub/contract"
	"roomhub/observability"
)

type memberSet map[string]struct{}

type Hub struct {
	mu       sync.RWMutex
	log      *slog.Logger
	monitor  *observability.Monitor
	handler  contract.EventHandler
	sessions map[string]contract.EventSink
	groups   map[string]memberSet

	sendBufferSize int
	upgrader       websocket.Upgrader
}

func NewHub(log *slog.Logger, monitor *observability.Monitor, sendBufferSize int, allowedOrigins []string) *Hub {
	return &Hub{
		log:            log,
		monitor:        monitor,
		sessions:       make(map[string]contract.EventSink),
		groups:         make(map[string]memberSet),
		sendBufferSize: sendBufferSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// SetHandler breaks the construction cycle: the router needs the hub as its
// emitter and the hub needs the router for inbound events.
func (h *Hub) SetHandler(handler contract.EventHandler) {
	h.handler = handler
}

// ServeWS upgrades an HTTP request into a managed websocket session with a
// fresh connection identifier, stable for the lifetime of the session.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := newClient(uuid.NewString(), conn, h, h.log, h.sendBufferSize)

	h.mu.Lock()
	h.sessions[client.id] = client
	sessionCount := len(h.sessions)
	h.mu.Unlock()

	h.monitor.IncrConnectionsOpened()
	h.log.Info("Client connected", "connection_id", client.id, "remote", r.RemoteAddr, "sessions", sessionCount)

	go client.writePump()
	go client.readPump()
}

// JoinGroup assigns a connection to a room's broadcast group, initializing
// the group on the fly.
func (h *Hub) JoinGroup(connectionID, roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.groups[roomCode]; !ok {
		h.groups[roomCode] = make(memberSet)
	}
	h.groups[roomCode][connectionID] = struct{}{}
}

// LeaveGroup removes a connection from a room's broadcast group. Empty
// groups are removed entirely so no stale sets accumulate over time.
func (h *Hub) LeaveGroup(connectionID, roomCode string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.groups[roomCode]; ok {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(h.groups, roomCode)
		}
	}
}

func (h *Hub) ToConnection(connectionID, event string, payload any) {
	h.mu.RLock()
	sink, ok := h.sessions[connectionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.deliver(connectionID, sink, event, payload)
}

func (h *Hub) ToRoom(roomCode, event string, payload any) {
	h.fanout(h.sinksForGroup(roomCode, ""), event, payload)
}

func (h *Hub) ToRoomExcept(roomCode, exceptConnectionID, event string, payload any) {
	h.fanout(h.sinksForGroup(roomCode, exceptConnectionID), event, payload)
}

func (h *Hub) ToAll(event string, payload any) {
	h.mu.RLock()
	targets := make(map[string]contract.EventSink, len(h.sessions))
	for id, sink := range h.sessions {
		targets[id] = sink
	}
	h.mu.RUnlock()

	h.fanout(targets, event, payload)
}

// sinksForGroup resolves a group's member ids into live sinks. Two-step
// lookup: membership names connections, the session directory resolves them.
// Returns nil when the group doesn't exist or has no members.
func (h *Hub) sinksForGroup(roomCode, exceptConnectionID string) map[string]contract.EventSink {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.groups[roomCode]
	if !ok {
		return nil
	}
	targets := make(map[string]contract.EventSink, len(members))
	for connectionID := range members {
		if connectionID == exceptConnectionID {
			continue
		}
		if sink, exists := h.sessions[connectionID]; exists {
			targets[connectionID] = sink
		}
	}
	return targets
}

// fanout delivers outside the lock so a slow client never stalls the rest
// of the scope.
func (h *Hub) fanout(targets map[string]contract.EventSink, event string, payload any) {
	for connectionID, sink := range targets {
		h.deliver(connectionID, sink, event, payload)
	}
}

// deliver pushes one event to one sink. A sink that cannot accept the event
// (full send buffer, closed connection) gets its session dropped rather
// than blocking the fanout.
func (h *Hub) deliver(connectionID string, sink contract.EventSink, event string, payload any) {
	if err := sink.Consume(event, payload); err != nil {
		h.log.Warn("Dropping unresponsive client", "connection_id", connectionID, "event", event, "error", err)
		if client, ok := sink.(*Client); ok {
			client.close()
		}
	}
}

// disconnect tears one session down: directory entry, group memberships,
// then the router's cleanup path. Client pumps guarantee this runs at most
// once per session; the registry tolerates repeats regardless.
func (h *Hub) disconnect(connectionID string) {
	h.mu.Lock()
	if _, ok := h.sessions[connectionID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, connectionID)
	for roomCode, members := range h.groups {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(h.groups, roomCode)
		}
	}
	sessionCount := len(h.sessions)
	h.mu.Unlock()

	h.monitor.IncrConnectionsClosed()
	h.log.Info("Client disconnected", "connection_id", connectionID, "sessions", sessionCount)

	if h.handler != nil {
		h.handler.Disconnect(connectionID)
	}
}

// SessionCount reports the number of live websocket sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil // gorilla's default same-origin policy
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		allowedSet[origin] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := allowedSet["*"]; ok {
			return true
		}
		_, ok := allowedSet[origin]
		return ok
	}
}
