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
	"testing"
	"time"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("hub did not stop")
		}
	})
	return hub
}

func connect(t *testing.T, hub *Hub, userID uint) *client {
	t.Helper()
	c := &client{userID: userID, send: make(chan []byte, 4)}
	hub.register <- c
	waitFor(t, func() bool { return hub.Connections() > 0 })
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not reached")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func recv(t *testing.T, c *client) Event {
	t.Helper()
	select {
	case payload := <-c.send:
		var evt Event
		if err := json.Unmarshal(payload, &evt); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return Event{}
	}
}

func TestHubDeliversToAddressedUser(t *testing.T) {
	hub := startHub(t)
	alice := connect(t, hub, 1)
	bob := &client{userID: 2, send: make(chan []byte, 4)}
	hub.register <- bob
	waitFor(t, func() bool { return hub.Connections() == 2 })

	hub.Publish(NewEvent(EventLoanDueSoon, 1, map[string]any{"loanId": 7}))

	evt := recv(t, alice)
	if evt.Type != EventLoanDueSoon {
		t.Errorf("type = %q, want %q", evt.Type, EventLoanDueSoon)
	}
	if evt.UserID != 1 {
		t.Errorf("userID = %d, want 1", evt.UserID)
	}

	select {
	case <-bob.send:
		t.Error("event leaked to another member")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubBroadcastReachesAllConnections(t *testing.T) {
	hub := startHub(t)
	a := connect(t, hub, 1)
	b := &client{userID: 2, send: make(chan []byte, 4)}
	hub.register <- b
	waitFor(t, func() bool { return hub.Connections() == 2 })

	// UserID 0 addresses everyone.
	hub.Publish(NewEvent(EventReservationReady, 0, nil))

	recv(t, a)
	recv(t, b)
}

func TestHubMultipleConnectionsPerMember(t *testing.T) {
	hub := startHub(t)
	tab1 := connect(t, hub, 1)
	tab2 := &client{userID: 1, send: make(chan []byte, 4)}
	hub.register <- tab2
	waitFor(t, func() bool { return hub.Connections() == 2 })

	hub.Publish(NewEvent(EventLoanReturned, 1, nil))

	recv(t, tab1)
	recv(t, tab2)
}

func TestHubDropsSlowConsumer(t *testing.T) {
	hub := startHub(t)
	slow := &client{userID: 1, send: make(chan []byte)} // unbuffered, never read
	hub.register <- slow
	waitFor(t, func() bool { return hub.Connections() == 1 })

	hub.Publish(NewEvent(EventLoanOverdue, 1, nil))
	waitFor(t, func() bool { return hub.Connections() == 0 })
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := startHub(t)
	c := connect(t, hub, 1)

	hub.unregister <- c
	waitFor(t, func() bool { return hub.Connections() == 0 })

	select {
	case _, open := <-c.send:
		if open {
			t.Error("expected closed send channel")
		}
	case <-time.After(time.Second):
		t.Error("send channel not closed")
	}
}

func TestHubPublishNeverBlocksWhenStopped(t *testing.T) {
	hub := NewHub(nil)
	// No Run goroutine; fill the queue past capacity.
	for i := 0; i < 200; i++ {
		hub.Publish(NewEvent(EventLoanCreated, 1, nil))
	}
}
