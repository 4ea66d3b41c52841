package mindergas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date encoded as "YYYY-MM-DD"
type Date struct {
	time.Time
}

// NewDate returns the calendar date of t in t's location
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses "YYYY-MM-DD". A trailing time component is ignored.
func ParseDate(s string) (Date, error) {
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding date: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Unit is the unit code reported by the API. Codes other than the
// constants below are kept as-is.
type Unit string

const (
	UnitCubicMeter   Unit = "cubic_meter"
	UnitKilowattHour Unit = "kilowatt_hour"
	UnitGigajoule    Unit = "gigajoule"
	UnitMegajoule    Unit = "megajoule"
)

// Quantity is a value with its unit
type Quantity struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit"`
}

// UsageRecord is the latest yearly usage
type UsageRecord struct {
	PeriodStart Date      `json:"date_from"`
	PeriodEnd   Date      `json:"date_to"`
	Heating     *Quantity `json:"heating,omitempty"`
	Total       *Quantity `json:"total,omitempty"`
}

// ForecastRecord is the projected usage for the current year
type ForecastRecord UsageRecord

// DegreeDayRecord is the average usage per degree day
type DegreeDayRecord struct {
	AvgLast365Days *Quantity `json:"avg_last_365_days,omitempty"`
}

// MeterReading is the body of a meter reading submission
type MeterReading struct {
	Date    string  `json:"date"`
	Reading float64 `json:"reading"`
}
