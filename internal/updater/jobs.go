package updater

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jgoulah/mindergas/internal/config"
	"github.com/jgoulah/mindergas/internal/schedule"
)

// Job kinds registered by Schedule
const (
	JobRefresh     = "refresh"
	JobPostReading = "post_reading"
)

// JobName returns the scheduler name of one of the installation's jobs
func (u *Updater) JobName(kind string) string {
	return u.inst.ShortID() + "/" + kind
}

// Schedule registers the daily statistics refresh and meter reading jobs
// enabled for the installation
func (u *Updater) Schedule(s *schedule.Scheduler) error {
	if u.inst.UpdateStats {
		clock, err := config.ParseClock(u.inst.UpdateTime)
		if err != nil {
			return fmt.Errorf("update_time: %w", err)
		}
		jitter := time.Duration(u.inst.UpdateJitter) * time.Minute

		err = s.Add(u.JobName(JobRefresh), schedule.Daily(clock, jitter), func() {
			u.Refresh(context.Background())
		})
		if err != nil {
			return err
		}
	}

	if u.inst.PostMeterReading {
		sched, err := u.postSchedule()
		if err != nil {
			u.Unschedule(s)
			return err
		}

		err = s.Add(u.JobName(JobPostReading), sched, func() {
			_ = u.PostReading(context.Background())
		})
		if err != nil {
			u.Unschedule(s)
			return err
		}
	}

	for _, kind := range []string{JobRefresh, JobPostReading} {
		if next, ok := s.Next(u.JobName(kind)); ok {
			u.logger.Info("job scheduled", "job", kind, "next", next.Format(time.RFC3339))
		}
	}
	return nil
}

// Unschedule removes the installation's jobs
func (u *Updater) Unschedule(s *schedule.Scheduler) {
	s.Remove(u.JobName(JobRefresh))
	s.Remove(u.JobName(JobPostReading))
}

func (u *Updater) postSchedule() (cron.Schedule, error) {
	if u.inst.RandomizePostTime {
		return schedule.Window(config.PostWindowStart, config.PostWindowEnd), nil
	}

	clock, err := config.ParseClock(u.inst.PostTime)
	if err != nil {
		return nil, fmt.Errorf("post_time: %w", err)
	}
	if !config.InPostWindow(clock) {
		return nil, fmt.Errorf("post_time %s outside %s-%s", clock, config.PostWindowStart, config.PostWindowEnd)
	}
	return schedule.Daily(clock, 0), nil
}
