// Package schedule runs named daily jobs on robfig/cron. Jobs fire once per
// local day at a wall-clock time, optionally delayed by a random offset
// that is drawn again for every run.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jgoulah/mindergas/internal/config"
)

// Daily returns a schedule firing once a day at clock plus a random
// offset in [0, jitter]
func Daily(clock config.Clock, jitter time.Duration) cron.Schedule {
	return newDaily(clock, jitter, rand.Int64N)
}

// Window returns a schedule firing once a day at a time drawn uniformly
// from [start, end]
func Window(start, end config.Clock) cron.Schedule {
	span := end.Duration() - start.Duration()
	if span < 0 {
		span = 0
	}
	return Daily(start, span)
}

type dailySchedule struct {
	hour, minute int
	jitter       time.Duration
	randN        func(int64) int64
}

func newDaily(clock config.Clock, jitter time.Duration, randN func(int64) int64) *dailySchedule {
	if jitter < 0 {
		jitter = 0
	}
	return &dailySchedule{hour: clock.Hour, minute: clock.Minute, jitter: jitter, randN: randN}
}

// Next returns the first base time strictly after t, plus a fresh offset.
// A run always happens at or after its base time, so each day fires once.
func (s *dailySchedule) Next(t time.Time) time.Time {
	y, m, d := t.Date()
	base := time.Date(y, m, d, s.hour, s.minute, 0, 0, t.Location())
	for i := 1; !base.After(t); i++ {
		base = time.Date(y, m, d+i, s.hour, s.minute, 0, 0, t.Location())
	}
	return base.Add(s.offset())
}

func (s *dailySchedule) offset() time.Duration {
	secs := int64(s.jitter / time.Second)
	if secs <= 0 {
		return 0
	}
	return time.Duration(s.randN(secs+1)) * time.Second
}

// Scheduler runs named jobs in a single location
type Scheduler struct {
	cron   *cron.Cron
	loc    *time.Location
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// New creates a stopped scheduler. Panics in jobs are recovered and logged.
func New(loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		loc:     loc,
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

// Location returns the time zone jobs are scheduled in
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// Add registers fn under name
func (s *Scheduler) Add(name string, sched cron.Schedule, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("job %q already scheduled", name)
	}
	s.entries[name] = s.cron.Schedule(sched, cron.FuncJob(fn))
	s.logger.Debug("job scheduled", "job", name, "next", sched.Next(time.Now().In(s.loc)))
	return nil
}

// Remove unregisters the job with name, reporting whether it existed
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[name]
	if !ok {
		return false
	}
	s.cron.Remove(id)
	delete(s.entries, name)
	return true
}

// Next returns the next planned run of name. Before Start it is a preview
// and may differ from the actual run when the job is jittered.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}

	e := s.cron.Entry(id)
	if !e.Valid() {
		return time.Time{}, false
	}
	if e.Next.IsZero() {
		return e.Schedule.Next(time.Now().In(s.loc)), true
	}
	return e.Next, true
}

// Names returns the registered job names, sorted
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start runs the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs or ctx, whichever ends first
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for running jobs: %w", ctx.Err())
	}
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
