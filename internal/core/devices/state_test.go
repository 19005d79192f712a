package devices

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/espcontrol/espcontrol-backend-go/internal/database/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestGetDefaultsToOff(t *testing.T) {
	store := NewStateStore(testLogger())
	assert.Equal(t, models.StateOff, store.Get("never-seen"))
}

func TestSetNotifiesListeners(t *testing.T) {
	store := NewStateStore(testLogger())

	var gotDevice, gotState, gotSource string
	store.Subscribe(func(deviceID, state, source string) {
		gotDevice, gotState, gotSource = deviceID, state, source
	})

	store.Set("42", models.StateOn, SourceManual)

	assert.Equal(t, models.StateOn, store.Get("42"))
	assert.Equal(t, "42", gotDevice)
	assert.Equal(t, models.StateOn, gotState)
	assert.Equal(t, SourceManual, gotSource)
}

func TestSetDefaultDoesNotNotifyOrOverwrite(t *testing.T) {
	store := NewStateStore(testLogger())

	var notified bool
	store.Subscribe(func(string, string, string) { notified = true })

	store.SetDefault("1")
	assert.Equal(t, models.StateOff, store.Get("1"))
	assert.False(t, notified)

	store.Set("1", models.StateOn, SourceManual)
	store.SetDefault("1")
	assert.Equal(t, models.StateOn, store.Get("1"), "SetDefault must not clobber a live state")
}

func TestSnapshot(t *testing.T) {
	store := NewStateStore(testLogger())
	store.Set("1", models.StateOn, SourceManual)
	store.Set("2", models.StateOff, SourceSchedule)

	snapshot := store.Snapshot()
	assert.Equal(t, map[string]string{"1": models.StateOn, "2": models.StateOff}, snapshot)

	// Mutating the snapshot must not touch the store
	snapshot["1"] = models.StateOff
	assert.Equal(t, models.StateOn, store.Get("1"))
}

func TestIsValidState(t *testing.T) {
	assert.True(t, IsValidState(models.StateOn))
	assert.True(t, IsValidState(models.StateOff))
	assert.False(t, IsValidState("on"))
	assert.False(t, IsValidState("TOGGLE"))
	assert.False(t, IsValidState(""))
}
