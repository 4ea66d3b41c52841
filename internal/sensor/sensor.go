// Package sensor derives the read-only values shown for an installation
// from its cached state. Sensors never touch the network.
package sensor

import (
	"strconv"

	"github.com/jgoulah/mindergas/internal/mindergas"
	"github.com/jgoulah/mindergas/internal/state"
)

// Kind is the type of scalar a sensor exposes
type Kind int

const (
	KindDate Kind = iota
	KindQuantity
)

// Value is the current value of one sensor. Valid is false when the
// cache holds nothing for it yet.
type Value struct {
	Kind   Kind
	Valid  bool
	Date   mindergas.Date
	Number float64
	Unit   string
}

// State renders the value the way Home Assistant expects a sensor state
func (v Value) State() string {
	if !v.Valid {
		return "unknown"
	}
	if v.Kind == KindDate {
		return v.Date.String()
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}

// Description is the static metadata of a sensor plus its accessor
type Description struct {
	Key         string
	Name        string
	Icon        string
	DeviceClass string
	StateClass  string
	Kind        Kind

	read func(state.Snapshot) Value
}

// Read extracts the sensor's value from snap
func (d Description) Read(snap state.Snapshot) Value {
	v := d.read(snap)
	v.Kind = d.Kind
	return v
}

// All lists every sensor in display order
var All = []Description{
	{
		Key: "yearly_usage_period_start", Name: "Yearly Usage Period Start",
		Icon: "mdi:calendar-start", DeviceClass: "date", Kind: KindDate,
		read: func(s state.Snapshot) Value {
			if s.Usage == nil {
				return Value{}
			}
			return dateValue(s.Usage.PeriodStart)
		},
	},
	{
		Key: "yearly_usage_period_end", Name: "Yearly Usage Period End",
		Icon: "mdi:calendar-end", DeviceClass: "date", Kind: KindDate,
		read: func(s state.Snapshot) Value {
			if s.Usage == nil {
				return Value{}
			}
			return dateValue(s.Usage.PeriodEnd)
		},
	},
	{
		Key: "yearly_heating_usage", Name: "Yearly Heating Usage",
		Icon: "mdi:fire", DeviceClass: "volume", StateClass: "total_increasing", Kind: KindQuantity,
		read: func(s state.Snapshot) Value {
			if s.Usage == nil {
				return Value{}
			}
			return quantityValue(s.Usage.Heating)
		},
	},
	{
		Key: "yearly_total_usage", Name: "Yearly Total Usage",
		Icon: "mdi:meter-gas", DeviceClass: "volume", StateClass: "total_increasing", Kind: KindQuantity,
		read: func(s state.Snapshot) Value {
			if s.Usage == nil {
				return Value{}
			}
			return quantityValue(s.Usage.Total)
		},
	},
	{
		Key: "yearly_forecast_period_start", Name: "Yearly Forecast Period Start",
		Icon: "mdi:calendar-start", DeviceClass: "date", Kind: KindDate,
		read: func(s state.Snapshot) Value {
			if s.Forecast == nil {
				return Value{}
			}
			return dateValue(s.Forecast.PeriodStart)
		},
	},
	{
		Key: "yearly_forecast_period_end", Name: "Yearly Forecast Period End",
		Icon: "mdi:calendar-end", DeviceClass: "date", Kind: KindDate,
		read: func(s state.Snapshot) Value {
			if s.Forecast == nil {
				return Value{}
			}
			return dateValue(s.Forecast.PeriodEnd)
		},
	},
	{
		Key: "yearly_heating_forecast", Name: "Yearly Heating Forecast",
		Icon: "mdi:fire", StateClass: "measurement", Kind: KindQuantity,
		read: func(s state.Snapshot) Value {
			if s.Forecast == nil {
				return Value{}
			}
			return quantityValue(s.Forecast.Heating)
		},
	},
	{
		Key: "yearly_total_forecast", Name: "Yearly Total Forecast",
		Icon: "mdi:meter-gas", StateClass: "measurement", Kind: KindQuantity,
		read: func(s state.Snapshot) Value {
			if s.Forecast == nil {
				return Value{}
			}
			return quantityValue(s.Forecast.Total)
		},
	},
	{
		Key: "usage_per_degree_day", Name: "Usage Per Degree Day",
		Icon: "mdi:thermometer-lines", StateClass: "measurement", Kind: KindQuantity,
		read: func(s state.Snapshot) Value {
			if s.DegreeDay == nil {
				return Value{}
			}
			return quantityValue(s.DegreeDay.AvgLast365Days)
		},
	},
}

// Lookup returns the sensor with key
func Lookup(key string) (Description, bool) {
	for _, d := range All {
		if d.Key == key {
			return d, true
		}
	}
	return Description{}, false
}

// Reading pairs a sensor with its current value
type Reading struct {
	Description
	Value Value
}

// Render reads every sensor from snap
func Render(snap state.Snapshot) []Reading {
	out := make([]Reading, 0, len(All))
	for _, d := range All {
		out = append(out, Reading{Description: d, Value: d.Read(snap)})
	}
	return out
}

var unitLabels = map[mindergas.Unit]string{
	mindergas.UnitCubicMeter:   "m³",
	mindergas.UnitKilowattHour: "kWh",
	mindergas.UnitGigajoule:    "GJ",
	mindergas.UnitMegajoule:    "MJ",
}

// UnitLabel maps an API unit code to its display unit. Unknown codes are
// returned unchanged.
func UnitLabel(u mindergas.Unit) string {
	if label, ok := unitLabels[u]; ok {
		return label
	}
	return string(u)
}

func dateValue(d mindergas.Date) Value {
	if d.IsZero() {
		return Value{}
	}
	return Value{Valid: true, Date: d}
}

func quantityValue(q *mindergas.Quantity) Value {
	if q == nil {
		return Value{}
	}
	return Value{Valid: true, Number: q.Value, Unit: UnitLabel(q.Unit)}
}
