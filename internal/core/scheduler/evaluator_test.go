package scheduler

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espcontrol/espcontrol-backend-go/internal/core/devices"
	"github.com/espcontrol/espcontrol-backend-go/internal/database/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestEvaluator(t *testing.T) (*Evaluator, *devices.StateStore) {
	t.Helper()
	store := devices.NewStateStore(testLogger())
	return NewEvaluator(store, testLogger()), store
}

func TestEvaluateFiresOnMatchingMinute(t *testing.T) {
	evaluator, store := newTestEvaluator(t)

	var fired int
	store.Subscribe(func(deviceID, state, source string) {
		fired++
		assert.Equal(t, "1", deviceID)
		assert.Equal(t, models.StateOn, state)
		assert.Equal(t, devices.SourceSchedule, source)
	})

	evaluator.schedules["1"] = []Event{{Time: "07:00", State: models.StateOn, minutes: 7 * 60}}
	evaluator.timezones["1"] = "UTC"

	now := time.Date(2026, 3, 10, 7, 0, 12, 0, time.UTC)
	evaluator.Evaluate(now)

	assert.Equal(t, models.StateOn, store.Get("1"))
	assert.Equal(t, 1, fired)
}

func TestEvaluateFiresOncePerMinute(t *testing.T) {
	evaluator, store := newTestEvaluator(t)

	var fired int
	store.Subscribe(func(string, string, string) { fired++ })

	evaluator.schedules["1"] = []Event{{Time: "07:00", State: models.StateOn, minutes: 7 * 60}}
	evaluator.timezones["1"] = "UTC"

	// Several ticks landing in the same calendar minute
	evaluator.Evaluate(time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC))
	evaluator.Evaluate(time.Date(2026, 3, 10, 7, 0, 30, 0, time.UTC))
	evaluator.Evaluate(time.Date(2026, 3, 10, 7, 0, 59, 0, time.UTC))

	assert.Equal(t, 1, fired)

	// The next day's 07:00 is a fresh minute
	evaluator.Evaluate(time.Date(2026, 3, 11, 7, 0, 0, 0, time.UTC))
	assert.Equal(t, 2, fired)
}

func TestEvaluateConvertsToDeviceTimezone(t *testing.T) {
	evaluator, store := newTestEvaluator(t)

	evaluator.schedules["1"] = []Event{
		{Time: "07:00", State: models.StateOn, minutes: 7 * 60},
		{Time: "22:00", State: models.StateOff, minutes: 22 * 60},
	}
	evaluator.timezones["1"] = "America/Cancun"

	// 12:00 UTC is 07:00 in Cancun (UTC-5, no DST)
	evaluator.Evaluate(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	assert.Equal(t, models.StateOn, store.Get("1"))

	// 03:00 UTC is 22:00 the previous evening in Cancun
	evaluator.Evaluate(time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC))
	assert.Equal(t, models.StateOff, store.Get("1"))
}

func TestEvaluateNoMatchLeavesStateAlone(t *testing.T) {
	evaluator, store := newTestEvaluator(t)

	evaluator.schedules["1"] = []Event{{Time: "07:00", State: models.StateOn, minutes: 7 * 60}}
	evaluator.timezones["1"] = "UTC"

	evaluator.Evaluate(time.Date(2026, 3, 10, 7, 1, 0, 0, time.UTC))
	assert.Equal(t, models.StateOff, store.Get("1"))
}

func TestEvaluateSkipsInvalidTimezone(t *testing.T) {
	evaluator, store := newTestEvaluator(t)

	evaluator.schedules["1"] = []Event{{Time: "07:00", State: models.StateOn, minutes: 7 * 60}}
	evaluator.timezones["1"] = "Not/AZone"

	evaluator.schedules["2"] = []Event{{Time: "07:00", State: models.StateOn, minutes: 7 * 60}}
	evaluator.timezones["2"] = "UTC"

	evaluator.Evaluate(time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC))

	// The broken device is skipped, the healthy one still fires
	assert.Equal(t, models.StateOff, store.Get("1"))
	assert.Equal(t, models.StateOn, store.Get("2"))
}

func TestEvaluatePrunesStaleDedupEntries(t *testing.T) {
	evaluator, _ := newTestEvaluator(t)

	evaluator.schedules["1"] = []Event{{Time: "07:00", State: models.StateOn, minutes: 7 * 60}}
	evaluator.timezones["1"] = "UTC"

	evaluator.Evaluate(time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC))
	require.Len(t, evaluator.lastFired, 1)

	evaluator.Evaluate(time.Date(2026, 3, 10, 7, 1, 0, 0, time.UTC))
	assert.Empty(t, evaluator.lastFired)
}

func TestParseEventTime(t *testing.T) {
	tests := []struct {
		input   string
		minutes int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"07:00", 420, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"7", 0, true},
		{"ab:cd", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			minutes, err := ParseEventTime(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.minutes, minutes)
		})
	}
}
