package models

import (
	"encoding/json"
	"time"
)

// Device states understood by the hardware client
const (
	StateOn  = "ON"
	StateOff = "OFF"
)

// User represents a panel operator
type User struct {
	ID           int       `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Device represents a controlled hardware endpoint (ESP8266)
type Device struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	Timezone  string    `json:"timezone" db:"timezone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ScheduleEvent is a single (time-of-day, desired state) row for a device.
// Time is "HH:MM" in the owning device's timezone.
type ScheduleEvent struct {
	ID       int    `json:"id" db:"id"`
	DeviceID int    `json:"device_id" db:"device_id"`
	Time     string `json:"time" db:"time"`
	State    string `json:"state" db:"state"`
}

// Integration is a configured connection to a third-party data source
type Integration struct {
	ID           int             `json:"id" db:"id"`
	UserID       int             `json:"user_id" db:"user_id"`
	Type         string          `json:"integration_type" db:"integration_type"`
	Name         string          `json:"name" db:"name"`
	SettingsJSON json.RawMessage `json:"settings" db:"settings_json"`
	IsActive     bool            `json:"is_active" db:"is_active"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Battery trigger directions
const (
	DirectionBelow = "below"
	DirectionAbove = "above"
)

// BatteryTrigger flips a device when an inverter's battery percentage
// crosses a threshold
type BatteryTrigger struct {
	ID             int       `json:"id" db:"id"`
	UserID         int       `json:"user_id" db:"user_id"`
	IntegrationID  int       `json:"integration_id" db:"integration_id"`
	DeviceID       int       `json:"device_id" db:"device_id"`
	InverterSerial string    `json:"inverter_serial" db:"inverter_serial"`
	ThresholdPct   float64   `json:"threshold_pct" db:"threshold_pct"`
	Direction      string    `json:"direction" db:"direction"`
	Action         string    `json:"action" db:"action"`
	Enabled        bool      `json:"enabled" db:"enabled"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// DeviceSchedule bundles a device's timezone with its events,
// the shape the schedule API speaks
type DeviceSchedule struct {
	Timezone string          `json:"timezone"`
	Events   []ScheduleEntry `json:"events"`
}

// ScheduleEntry is the wire form of a schedule event
type ScheduleEntry struct {
	Time  string `json:"time" binding:"required"`
	State string `json:"state" binding:"required"`
}
