package iot

import (
	"errors"
	"time"
)

// Site is a physical location devices belong to.
type Site struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Device is one registered sensor or gateway.
type Device struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Kind     string    `json:"kind"`
	SiteID   string    `json:"site_id"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
	// Firmware is reported only by managed devices.
	Firmware *string `json:"firmware,omitempty"`
}

// Reading is one sensor measurement.
type Reading struct {
	SensorID string    `json:"sensor_id"`
	Metric   string    `json:"metric"`
	Value    float64   `json:"value"`
	Unit     string    `json:"unit"`
	At       time.Time `json:"at"`
}

// Alert is a raised threshold or connectivity alert.
type Alert struct {
	ID           string    `json:"id"`
	DeviceID     string    `json:"device_id"`
	Severity     string    `json:"severity"`
	Message      string    `json:"message"`
	RaisedAt     time.Time `json:"raised_at"`
	Acknowledged bool      `json:"acknowledged"`
}

// Summary counts devices and alerts.
type Summary struct {
	Devices      int `json:"devices"`
	Online       int `json:"online"`
	Offline      int `json:"offline"`
	ActiveAlerts int `json:"active_alerts"`
}

// Dashboard is the dashboard view response. Summary is required; Uptime
// is only present when the backend tracks availability.
type Dashboard struct {
	Summary  *Summary  `json:"summary"`
	Readings []Reading `json:"readings"`
	Uptime   *float64  `json:"uptime,omitempty"`
}

var errMissingSummary = errors.New("dashboard response has no summary")

// Validate rejects responses missing required fields.
func (d Dashboard) Validate() error {
	if d.Summary == nil {
		return errMissingSummary
	}
	return nil
}
