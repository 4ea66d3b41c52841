package models

import (
	"time"

	"github.com/google/uuid"
)

// Installation is one configured MinderGas account together with its options.
// It is the row stored in the installations table.
type Installation struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	APIKey            string    `json:"-"`
	PostMeterReading  bool      `json:"post_meter_reading"`
	PostMeterEntityID string    `json:"post_meter_entity_id,omitempty"`
	RandomizePostTime bool      `json:"randomize_post_time"`
	PostTime          string    `json:"post_time,omitempty"` // "HH:MM", empty when randomized
	UpdateStats       bool      `json:"update_stats"`
	UpdateTime        string    `json:"update_time,omitempty"` // "HH:MM"
	UpdateJitter      int       `json:"update_jitter_minutes"` // 0 disables jitter
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ShortID returns the first eight characters of the installation ID, used in
// MQTT topics and command output.
func (i Installation) ShortID() string {
	return i.ID.String()[:8]
}

// DisplayName returns the configured name, falling back to "MinderGas".
func (i Installation) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return "MinderGas"
}

// MeterReading is one attempt to submit a daily meter reading
type MeterReading struct {
	ID             int       `json:"id"`
	InstallationID uuid.UUID `json:"installation_id"`
	Date           time.Time `json:"date"` // Just the date the reading was posted for
	Reading        float64   `json:"reading"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
