package growatt

import (
	"strconv"
	"strings"
	"time"
)

// NA is substituted for any metric the vendor did not return;
// summaries are never left with empty fields
const NA = "N/A"

// Settings holds per-integration vendor configuration, decoded from the
// integration row's settings JSON
type Settings struct {
	Username            string   `json:"username"`
	Password            string   `json:"password"`
	Server              string   `json:"server,omitempty"`
	PlantID             string   `json:"plantId,omitempty"`
	DeviceSerialNumbers []string `json:"deviceSerialNumbers,omitempty"`
	APIOnlySerials      []string `json:"apiOnlySerials,omitempty"`
}

// Plant represents a solar installation site
type Plant struct {
	PlantID   string `json:"plantId"`
	PlantName string `json:"plantName"`
}

// StatusData carries the status fields the vendor API reports per device.
// The vendor quotes numbers, so everything stays a string until a consumer
// actually needs arithmetic.
type StatusData struct {
	Status     string `json:"status"`
	VBat       string `json:"vBat"`
	BatPower   string `json:"batPower"`
	Capacity   string `json:"capacity"`
	GridPower  string `json:"gridPower"`
	LoadPower  string `json:"loadPower"`
	PanelPower string `json:"panelPower"`
}

// DeviceData is one inverter as reported by the plant data API
type DeviceData struct {
	Serial     string      `json:"deviceSn"`
	DeviceType string      `json:"deviceType"`
	StatusData *StatusData `json:"statusData"`
}

// PlantData bundles a plant with its devices, keyed by serial
type PlantData struct {
	PlantName string                 `json:"plantName"`
	Devices   map[string]*DeviceData `json:"devices"`
}

// InverterSummary is the flattened per-inverter view the API serves
type InverterSummary struct {
	PlantName         string `json:"plantName"`
	InverterID        string `json:"inverterId"`
	SystemStatus      string `json:"systemStatus"`
	BatteryVoltage    string `json:"batteryVoltage"`
	BatteryPower      string `json:"batteryPower"`
	BatteryPercentage string `json:"batteryPercentage"`
	ACInputPower      string `json:"acInputPower"`
	ACOutputPower     string `json:"acOutputPower"`
	SolarPanelPower   string `json:"solarPanelPower"`
	InverterType      string `json:"inverterType"`
	Source            string `json:"source"`
}

// Summary sources
const (
	SourceAPI   = "api"
	SourcePanel = "panel"
)

// FetchResult is one complete vendor fetch
type FetchResult struct {
	Inverters []InverterSummary     `json:"inverters"`
	Plants    map[string]*PlantData `json:"allRawPlantData"`
	FetchedAt time.Time             `json:"fetchedAt"`
}

// DeviceCapability records how a device's data should be obtained.
// Computed once per device per fetch instead of re-matching vendor type
// strings at every use site.
type DeviceCapability struct {
	Serial   string
	UsePanel bool
	Reason   string
}

// ResolveCapability decides the data path for a device. Devices in panel
// families (e.g. SPH storage inverters) and devices whose API data lacks a
// status are served from the web panel, unless the serial is pinned
// API-only.
func ResolveCapability(device *DeviceData, apiOnly map[string]bool, panelFamilies []string) DeviceCapability {
	capability := DeviceCapability{Serial: device.Serial}

	if apiOnly[device.Serial] {
		capability.Reason = "serial pinned to API"
		return capability
	}

	deviceType := strings.ToUpper(device.DeviceType)
	for _, family := range panelFamilies {
		if family != "" && strings.Contains(deviceType, strings.ToUpper(family)) {
			capability.UsePanel = true
			capability.Reason = "panel family device type"
			return capability
		}
	}

	if device.DeviceType == "" || device.StatusData == nil || device.StatusData.Status == "" {
		capability.UsePanel = true
		capability.Reason = "incomplete API data"
		return capability
	}

	capability.Reason = "complete API data"
	return capability
}

// orNA returns the value, or NA when the vendor omitted it
func orNA(value string) string {
	if value == "" {
		return NA
	}
	return value
}

// negated returns the numeric negation of a vendor value, or NA. Battery
// power is reported with charging positive; the panel UI wants discharge
// positive.
func negated(value string) string {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return NA
	}
	return strconv.FormatFloat(-f, 'f', -1, 64)
}
