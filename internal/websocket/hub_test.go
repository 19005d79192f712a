package websocket

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestBroadcastDeviceStatePayload(t *testing.T) {
	hub := NewHub(testLogger())

	hub.BroadcastDeviceState("42", "ON", "schedule")

	select {
	case payload := <-hub.broadcast:
		var message Message
		require.NoError(t, json.Unmarshal(payload, &message))
		assert.Equal(t, "device_state", message.Type)
		assert.Equal(t, "42", message.Data["deviceId"])
		assert.Equal(t, "ON", message.Data["state"])
		assert.Equal(t, "schedule", message.Data["source"])
	case <-time.After(time.Second):
		t.Fatal("no broadcast queued")
	}
}

func TestBroadcastDeliversToClients(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	defer hub.Stop()

	client := &Client{ID: "test", hub: hub, send: make(chan []byte, 4)}
	hub.register <- client

	// Wait for the hub to pick up the registration
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast("device_state", map[string]interface{}{"deviceId": "1", "state": "OFF"})

	select {
	case payload := <-client.send:
		var message Message
		require.NoError(t, json.Unmarshal(payload, &message))
		assert.Equal(t, "device_state", message.Type)
	case <-time.After(time.Second):
		t.Fatal("client did not receive broadcast")
	}

	hub.unregister <- client
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}
