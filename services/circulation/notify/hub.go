// Copyright (C) 2025 Stacksys (engineering@stacksys.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// client is one websocket connection's send side. The hub never writes to a
// connection directly; it hands bytes to the client's buffered channel and
// drops the client if the channel is full.
type client struct {
	userID uint
	send   chan []byte
}

// Hub routes events to connected clients, keyed by member ID. One member may
// hold several connections (browser tabs, devices); an event addressed to a
// member goes to all of them.
//
// # Thread Safety
//
// Register, Unregister, and Publish are safe from any goroutine. All state
// mutation happens on the Run goroutine; the mutex only guards the registry
// for the connection-count metric readers.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[*client]struct{}

	register   chan *client
	unregister chan *client
	events     chan Event

	log *slog.Logger
}

// NewHub builds a hub. Call Run before publishing.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients:    make(map[uint]map[*client]struct{}),
		register:   make(chan *client),
		unregister: make(chan *client),
		events:     make(chan Event, 64),
		log:        log,
	}
}

// Run processes registrations and events until ctx is cancelled. Intended to
// run as a single goroutine for the life of the server.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case evt := <-h.events:
			h.dispatch(evt)
		}
	}
}

// Publish queues an event for delivery. Never blocks: when the hub's queue
// is full the event is dropped and logged, since notifications are advisory
// and must not stall a loan or reservation transaction.
func (h *Hub) Publish(evt Event) {
	select {
	case h.events <- evt:
	default:
		h.log.Warn("notify: event queue full, dropping event",
			"type", string(evt.Type),
			"user_id", evt.UserID)
	}
}

// Connections reports the number of open connections, for metrics.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	h.log.Debug("notify: client connected", "user_id", c.userID, "connections", len(set))
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
	h.log.Debug("notify: client disconnected", "user_id", c.userID)
}

func (h *Hub) dispatch(evt Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		h.log.Error("notify: marshaling event failed", "type", string(evt.Type), "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	deliver := func(set map[*client]struct{}) {
		for c := range set {
			select {
			case c.send <- payload:
			default:
				// Slow consumer; drop the connection rather than block
				// delivery to everyone else.
				delete(set, c)
				close(c.send)
			}
		}
	}

	if evt.UserID != 0 {
		if set, ok := h.clients[evt.UserID]; ok {
			deliver(set)
			if len(set) == 0 {
				delete(h.clients, evt.UserID)
			}
		}
		return
	}
	for userID, set := range h.clients {
		deliver(set)
		if len(set) == 0 {
			delete(h.clients, userID)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, set := range h.clients {
		for c := range set {
			close(c.send)
		}
		delete(h.clients, userID)
	}
}
