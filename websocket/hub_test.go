package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch chan []byte) []byte {
	t.Helper()
	select {
	case payload := <-ch:
		return payload
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ops feed message")
		return nil
	}
}

func TestHubBroadcastsToRegisteredClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	a := &Client{Hub: hub, UserID: 1, Send: make(chan []byte, 4)}
	b := &Client{Hub: hub, UserID: 2, Send: make(chan []byte, 4)}
	hub.Register <- a
	hub.Register <- b

	hub.Publish(&Message{Type: "booking_approved", Timestamp: time.Now(), Data: map[string]interface{}{"booking_id": 7}})

	for _, c := range []*Client{a, b} {
		var msg Message
		require.NoError(t, json.Unmarshal(receive(t, c.Send), &msg))
		assert.Equal(t, "booking_approved", msg.Type)
	}
}

func TestHubReconnectReplacesOldClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	old := &Client{Hub: hub, UserID: 1, Send: make(chan []byte, 4)}
	hub.Register <- old

	// Same user reconnects; the stale connection's channel is closed.
	fresh := &Client{Hub: hub, UserID: 1, Send: make(chan []byte, 4)}
	hub.Register <- fresh

	select {
	case _, open := <-old.Send:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("old client channel was not closed on reconnect")
	}

	hub.Publish(&Message{Type: "booking_cancelled", Timestamp: time.Now()})
	var msg Message
	require.NoError(t, json.Unmarshal(receive(t, fresh.Send), &msg))
	assert.Equal(t, "booking_cancelled", msg.Type)
}

func TestHubUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	c := &Client{Hub: hub, UserID: 1, Send: make(chan []byte, 4)}
	hub.Register <- c
	hub.Unregister <- c

	select {
	case _, open := <-c.Send:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("unregistered client channel was not closed")
	}
}
