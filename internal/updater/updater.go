// Package updater drives one installation: it refreshes cached MinderGas
// statistics and submits the daily meter reading. Failures are logged and
// never escape a scheduled run.
package updater

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jgoulah/mindergas/internal/metrics"
	"github.com/jgoulah/mindergas/internal/mindergas"
	"github.com/jgoulah/mindergas/internal/state"
	"github.com/jgoulah/mindergas/pkg/models"
)

var (
	// ErrNoMeterEntity is returned when no meter sensor is configured
	ErrNoMeterEntity = errors.New("no meter entity configured")
	// ErrNoStateLookup is returned when readings cannot be looked up
	ErrNoStateLookup = errors.New("no Home Assistant connection configured")
	// ErrInvalidReading is returned when the meter sensor has no numeric state
	ErrInvalidReading = errors.New("meter sensor state is not a number")
)

// API is the subset of the MinderGas client used by the updater
type API interface {
	FetchYearlyUsage(ctx context.Context) (*mindergas.UsageRecord, error)
	FetchYearlyForecast(ctx context.Context) (*mindergas.ForecastRecord, error)
	FetchDegreeDayUsage(ctx context.Context) (*mindergas.DegreeDayRecord, error)
	PostMeterReading(ctx context.Context, date time.Time, reading float64) error
}

// StateLookup returns the current state string of an external entity
type StateLookup interface {
	GetState(ctx context.Context, entityID string) (string, error)
}

// ReadingLog records meter reading submission attempts
type ReadingLog interface {
	InsertReading(r *models.MeterReading) error
}

// Updater runs refresh cycles and meter reading posts for one installation
type Updater struct {
	inst     models.Installation
	api      API
	state    *state.Installation
	logger   *slog.Logger
	lookup   StateLookup
	readings ReadingLog
	metrics  *metrics.Collector
	loc      *time.Location
	now      func() time.Time
}

// Option configures an Updater
type Option func(*Updater)

// WithStateLookup sets where the meter sensor is read from
func WithStateLookup(l StateLookup) Option {
	return func(u *Updater) { u.lookup = l }
}

// WithReadingLog records every submission attempt
func WithReadingLog(r ReadingLog) Option {
	return func(u *Updater) { u.readings = r }
}

// WithMetrics sets the metrics collector
func WithMetrics(m *metrics.Collector) Option {
	return func(u *Updater) { u.metrics = m }
}

// WithLocation sets the zone that decides the reading date
func WithLocation(loc *time.Location) Option {
	return func(u *Updater) {
		if loc != nil {
			u.loc = loc
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(u *Updater) { u.now = now }
}

// New creates an updater for inst writing into st
func New(inst models.Installation, api API, st *state.Installation, logger *slog.Logger, opts ...Option) *Updater {
	u := &Updater{
		inst:   inst,
		api:    api,
		state:  st,
		logger: logger.With("installation", inst.ShortID()),
		loc:    time.Local,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Installation returns the options the updater was built with
func (u *Updater) Installation() models.Installation {
	return u.inst
}

// State returns the cached state the updater writes to
func (u *Updater) State() *state.Installation {
	return u.state
}

// RefreshResult summarizes one refresh cycle
type RefreshResult struct {
	Fetched int // endpoints that returned data
	Empty   int // endpoints with no data yet
	Failed  int
}

// Outcome classifies the cycle as "ok", "partial" or "failed"
func (r RefreshResult) Outcome() string {
	switch {
	case r.Failed == 0:
		return "ok"
	case r.Fetched+r.Empty == 0:
		return "failed"
	default:
		return "partial"
	}
}

// Refresh fetches usage, forecast and degree-day data in turn and stores
// whatever arrived. Observers are notified once after all three calls,
// whatever their outcome.
func (u *Updater) Refresh(ctx context.Context) RefreshResult {
	ops := []struct {
		name string
		run  func() (bool, error)
	}{
		{"fetch_yearly_usage", func() (bool, error) {
			rec, err := u.api.FetchYearlyUsage(ctx)
			u.state.SetUsage(rec)
			return rec != nil, err
		}},
		{"fetch_yearly_forecast", func() (bool, error) {
			rec, err := u.api.FetchYearlyForecast(ctx)
			u.state.SetForecast(rec)
			return rec != nil, err
		}},
		{"fetch_degree_day_usage", func() (bool, error) {
			rec, err := u.api.FetchDegreeDayUsage(ctx)
			u.state.SetDegreeDay(rec)
			return rec != nil, err
		}},
	}

	var res RefreshResult
	for _, op := range ops {
		found, err := op.run()
		switch {
		case err != nil:
			res.Failed++
			u.logger.Warn("refresh step failed",
				"operation", op.name,
				"status", mindergas.StatusCode(err),
				"error", err,
			)
		case found:
			res.Fetched++
		default:
			res.Empty++
			u.logger.Debug("no data available", "operation", op.name)
		}
	}

	u.metrics.RecordRefresh(u.inst.ShortID(), res.Outcome(), u.now())
	u.logger.Info("refresh complete",
		"result", res.Outcome(),
		"fetched", res.Fetched,
		"empty", res.Empty,
		"failed", res.Failed,
	)
	u.state.Notify()
	return res
}

// PostReading reads the configured meter sensor and submits its value for
// today's date. The error is informational; scheduled runs ignore it.
func (u *Updater) PostReading(ctx context.Context) error {
	entity := u.inst.PostMeterEntityID
	if entity == "" {
		u.skip("meter reading not posted", ErrNoMeterEntity)
		return ErrNoMeterEntity
	}
	if u.lookup == nil {
		u.skip("meter reading not posted", ErrNoStateLookup)
		return ErrNoStateLookup
	}

	raw, err := u.lookup.GetState(ctx, entity)
	if err != nil {
		err = fmt.Errorf("reading %s: %w", entity, err)
		u.skip("meter reading not posted", err)
		return err
	}

	reading, err := ParseReading(raw)
	if err != nil {
		err = fmt.Errorf("%s: %w", entity, err)
		u.skip("meter reading not posted", err)
		return err
	}

	date := u.now().In(u.loc)
	err = u.api.PostMeterReading(ctx, date, reading)
	u.record(date, reading, err)

	if err != nil {
		result := "error"
		if mindergas.StatusCode(err) != 0 {
			result = "rejected"
		}
		u.metrics.RecordMeterReading(result)
		u.logger.Error("posting meter reading failed",
			"entity", entity,
			"reading", reading,
			"date", mindergas.NewDate(date).String(),
			"status", mindergas.StatusCode(err),
			"error", err,
		)
		return fmt.Errorf("posting meter reading: %w", err)
	}

	u.metrics.RecordMeterReading("ok")
	u.logger.Info("meter reading posted",
		"entity", entity,
		"reading", reading,
		"date", mindergas.NewDate(date).String(),
	)
	return nil
}

func (u *Updater) skip(msg string, err error) {
	u.metrics.RecordMeterReading("skipped")
	u.logger.Error(msg, "entity", u.inst.PostMeterEntityID, "error", err)
}

func (u *Updater) record(date time.Time, reading float64, postErr error) {
	if u.readings == nil {
		return
	}

	r := &models.MeterReading{
		InstallationID: u.inst.ID,
		Date:           mindergas.NewDate(date).Time,
		Reading:        reading,
		Success:        postErr == nil,
	}
	if postErr != nil {
		r.Error = mindergas.Detail(postErr)
		if r.Error == "" {
			r.Error = postErr.Error()
		}
	}

	if err := u.readings.InsertReading(r); err != nil {
		u.logger.Warn("recording meter reading", "error", err)
	}
}

// ParseReading converts a sensor state into a meter reading
func ParseReading(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	switch strings.ToLower(s) {
	case "", "unknown", "unavailable", "none":
		return 0, fmt.Errorf("%w: %q", ErrInvalidReading, raw)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidReading, raw)
	}
	return v, nil
}
