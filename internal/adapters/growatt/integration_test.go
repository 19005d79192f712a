package growatt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIntegration(t *testing.T, stub *vendorStub, settings Settings) *Integration {
	t.Helper()
	client, _ := newTestClient(t, stub)
	if settings.Username == "" {
		settings.Username = "john"
		settings.Password = "abc"
	}
	return NewIntegration(client, settings, []string{"SPH"}, nil, testLogger())
}

func findInverter(t *testing.T, result *FetchResult, serial string) InverterSummary {
	t.Helper()
	for _, inverter := range result.Inverters {
		if inverter.InverterID == serial {
			return inverter
		}
	}
	t.Fatalf("inverter %s not in result", serial)
	return InverterSummary{}
}

func TestFetchDataBuildsSummaries(t *testing.T) {
	stub := &vendorStub{loginOK: true, panelOK: true}
	integration := newTestIntegration(t, stub, Settings{})

	result, err := integration.FetchData(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Inverters, 2)

	api := findInverter(t, result, "SN100")
	assert.Equal(t, SourceAPI, api.Source)
	assert.Equal(t, "Casa", api.PlantName)
	assert.Equal(t, "Normal", api.SystemStatus)
	assert.Equal(t, "85", api.BatteryPercentage)
	// Vendor reports charging positive; summaries flip the sign
	assert.Equal(t, "-1200", api.BatteryPower)
	assert.Equal(t, "500", api.ACInputPower)
	assert.Equal(t, "900", api.ACOutputPower)
	assert.Equal(t, "2000", api.SolarPanelPower)

	panel := findInverter(t, result, "SPH200")
	assert.Equal(t, SourcePanel, panel.Source)
	assert.Equal(t, "60", panel.BatteryPercentage)
	assert.Equal(t, "800", panel.BatteryPower)
}

func TestFetchDataPanelFallbackToAPIData(t *testing.T) {
	stub := &vendorStub{loginOK: true, panelOK: false}
	integration := newTestIntegration(t, stub, Settings{})

	result, err := integration.FetchData(context.Background())
	require.NoError(t, err)

	// The SPH device has no API status either, so every metric reads N/A
	panel := findInverter(t, result, "SPH200")
	assert.Equal(t, SourceAPI, panel.Source)
	assert.Equal(t, NA, panel.SystemStatus)
	assert.Equal(t, NA, panel.BatteryPercentage)
	assert.Equal(t, NA, panel.BatteryPower)
}

func TestFetchDataSerialFilter(t *testing.T) {
	stub := &vendorStub{loginOK: true, panelOK: true}
	integration := newTestIntegration(t, stub, Settings{
		DeviceSerialNumbers: []string{"SN100"},
	})

	result, err := integration.FetchData(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Inverters, 1)
	assert.Equal(t, "SN100", result.Inverters[0].InverterID)
}

func TestFetchDataPlantFilter(t *testing.T) {
	stub := &vendorStub{loginOK: true, panelOK: true}
	integration := newTestIntegration(t, stub, Settings{PlantID: "9999"})

	result, err := integration.FetchData(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Inverters)
}

func TestAPIOnlyPinSkipsPanel(t *testing.T) {
	stub := &vendorStub{loginOK: true, panelOK: true}
	client, _ := newTestClient(t, stub)
	integration := NewIntegration(client, Settings{
		Username:       "john",
		Password:       "abc",
		APIOnlySerials: []string{"SPH200"},
	}, []string{"SPH"}, nil, testLogger())

	result, err := integration.FetchData(context.Background())
	require.NoError(t, err)

	pinned := findInverter(t, result, "SPH200")
	assert.Equal(t, SourceAPI, pinned.Source)
	assert.Equal(t, int32(0), stub.panelCalls)
}

func TestCachedData(t *testing.T) {
	stub := &vendorStub{loginOK: true, panelOK: true}
	integration := newTestIntegration(t, stub, Settings{})

	assert.Nil(t, integration.CachedData(time.Minute), "empty cache returns nil")

	_, err := integration.FetchData(context.Background())
	require.NoError(t, err)

	assert.NotNil(t, integration.CachedData(time.Minute))
	assert.Nil(t, integration.CachedData(0), "stale cache returns nil")
}

func TestFetchDataInvalidatesSessionOnError(t *testing.T) {
	stub := &vendorStub{loginOK: true}
	client, server := newTestClient(t, stub)
	integration := NewIntegration(client, Settings{Username: "john", Password: "abc"}, nil, nil, testLogger())

	require.NoError(t, client.EnsureLogin(context.Background()))
	server.Close()

	_, err := integration.FetchData(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateLoggedOut, client.State())
}
