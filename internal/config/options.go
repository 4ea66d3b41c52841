package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jgoulah/mindergas/pkg/models"
)

const (
	DefaultPostTime   = "00:30"
	DefaultUpdateTime = "03:00"

	// MaxUpdateJitter bounds the random delay added to the statistics refresh.
	MaxUpdateJitter = 12 * 60
)

// MinderGas only accepts readings for the previous day shortly after midnight.
var (
	PostWindowStart = Clock{Hour: 0, Minute: 5}
	PostWindowEnd   = Clock{Hour: 1, Minute: 0}
)

// Clock is a wall-clock time of day with minute precision
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" (a trailing ":SS" is accepted and ignored)
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Clock{}, fmt.Errorf("invalid time %q (use HH:MM)", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// Minutes returns the number of minutes since midnight
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// Duration returns the offset from midnight
func (c Clock) Duration() time.Duration {
	return time.Duration(c.Minutes()) * time.Minute
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// InPostWindow reports whether c lies within 00:05-01:00, both ends inclusive
func InPostWindow(c Clock) bool {
	m := c.Minutes()
	return m >= PostWindowStart.Minutes() && m <= PostWindowEnd.Minutes()
}

// ValidationError describes one invalid installation option
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil && e.Value != "" {
		return fmt.Sprintf("invalid %s (value: %v): %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ApplyDefaults normalizes installation options the way the options form does:
// a randomized post time clears the fixed one, otherwise it defaults to 00:30.
func ApplyDefaults(inst *models.Installation) {
	inst.PostMeterEntityID = strings.TrimSpace(inst.PostMeterEntityID)
	if inst.RandomizePostTime {
		inst.PostTime = ""
	} else if inst.PostTime == "" {
		inst.PostTime = DefaultPostTime
	}
	if inst.UpdateTime == "" {
		inst.UpdateTime = DefaultUpdateTime
	}
}

// ValidateInstallation checks installation options. All problems are
// returned joined; use errors.As with *ValidationError to inspect them.
func ValidateInstallation(inst models.Installation) error {
	var errs []error

	switch {
	case inst.APIKey == "":
		errs = append(errs, &ValidationError{Field: "api_key", Message: "required"})
	case strings.TrimSpace(inst.APIKey) != inst.APIKey:
		// Keys are sent verbatim
		errs = append(errs, &ValidationError{Field: "api_key", Message: "must not start or end with whitespace"})
	}

	if inst.PostMeterReading {
		if inst.PostMeterEntityID == "" {
			errs = append(errs, &ValidationError{Field: "post_meter_entity_id", Message: "required when posting meter readings"})
		}
		if !inst.RandomizePostTime {
			if err := validatePostTime(inst.PostTime); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if inst.UpdateStats || inst.UpdateTime != "" {
		if _, err := ParseClock(inst.UpdateTime); err != nil {
			errs = append(errs, &ValidationError{Field: "update_time", Value: inst.UpdateTime, Message: err.Error()})
		}
	}

	if inst.UpdateJitter < 0 || inst.UpdateJitter > MaxUpdateJitter {
		errs = append(errs, &ValidationError{
			Field:   "update_jitter",
			Value:   inst.UpdateJitter,
			Message: fmt.Sprintf("must be between 0 and %d minutes", MaxUpdateJitter),
		})
	}

	return errors.Join(errs...)
}

func validatePostTime(s string) error {
	if s == "" {
		return &ValidationError{Field: "post_time", Message: "required when not randomized"}
	}
	c, err := ParseClock(s)
	if err != nil {
		return &ValidationError{Field: "post_time", Value: s, Message: err.Error()}
	}
	if !InPostWindow(c) {
		return &ValidationError{
			Field:   "post_time",
			Value:   s,
			Message: fmt.Sprintf("time must be between %s and %s", PostWindowStart, PostWindowEnd),
		}
	}
	return nil
}
