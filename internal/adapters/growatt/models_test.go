package growatt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveCapability(t *testing.T) {
	panelFamilies := []string{"SPH"}
	completeStatus := &StatusData{Status: "Normal", Capacity: "80"}

	tests := []struct {
		name     string
		device   *DeviceData
		apiOnly  map[string]bool
		usePanel bool
	}{
		{
			name:     "complete API data stays on API",
			device:   &DeviceData{Serial: "A1", DeviceType: "max", StatusData: completeStatus},
			usePanel: false,
		},
		{
			name:     "panel family device uses panel",
			device:   &DeviceData{Serial: "S1", DeviceType: "sph5000", StatusData: completeStatus},
			usePanel: true,
		},
		{
			name:     "missing status data uses panel",
			device:   &DeviceData{Serial: "A2", DeviceType: "max"},
			usePanel: true,
		},
		{
			name:     "empty status string uses panel",
			device:   &DeviceData{Serial: "A3", DeviceType: "max", StatusData: &StatusData{}},
			usePanel: true,
		},
		{
			name:     "missing device type uses panel",
			device:   &DeviceData{Serial: "A4", StatusData: completeStatus},
			usePanel: true,
		},
		{
			name:     "pinned serial never uses panel",
			device:   &DeviceData{Serial: "S2", DeviceType: "sph5000"},
			apiOnly:  map[string]bool{"S2": true},
			usePanel: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capability := ResolveCapability(tt.device, tt.apiOnly, panelFamilies)
			assert.Equal(t, tt.device.Serial, capability.Serial)
			assert.Equal(t, tt.usePanel, capability.UsePanel, capability.Reason)
			assert.NotEmpty(t, capability.Reason)
		})
	}
}

func TestOrNA(t *testing.T) {
	assert.Equal(t, "42.5", orNA("42.5"))
	assert.Equal(t, NA, orNA(""))
}

func TestNegated(t *testing.T) {
	assert.Equal(t, "-1500", negated("1500"))
	assert.Equal(t, "300.5", negated("-300.5"))
	assert.Equal(t, "0", negated("0"))
	assert.Equal(t, NA, negated(""))
	assert.Equal(t, NA, negated("n/a"))
}
