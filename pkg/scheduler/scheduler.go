package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/nineking424/nificdc-sub002/pkg/errdefs"
	"github.com/nineking424/nificdc-sub002/pkg/log"
	"github.com/nineking424/nificdc-sub002/pkg/metrics"
	"github.com/nineking424/nificdc-sub002/pkg/schedule"
	"github.com/nineking424/nificdc-sub002/pkg/storage"
	"github.com/nineking424/nificdc-sub002/pkg/types"
)

// Dispatcher is the slice of the runner the scheduler needs.
type Dispatcher interface {
	Enqueue(ex *types.JobExecution) error
	DependenciesMet(job *types.Job) (bool, error)
}

// Config tunes the scheduler. Zero values fall back to defaults.
type Config struct {
	Tick time.Duration
}

func (c Config) withDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = 30 * time.Second
	}
	return c
}

// Scheduler turns due jobs into queued executions. It wakes on a fixed
// tick and on any schedule-affecting mutation.
type Scheduler struct {
	store      storage.Store
	dispatcher Dispatcher
	cfg        Config
	logger     zerolog.Logger

	notify chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
	nowFn  func() time.Time
}

// New builds a scheduler over the given store and dispatcher.
func New(store storage.Store, dispatcher Dispatcher, cfg Config) *Scheduler {
	return &Scheduler{
		store:      store,
		dispatcher: dispatcher,
		cfg:        cfg.withDefaults(),
		logger:     log.WithComponent("scheduler"),
		notify:     make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		nowFn:      time.Now,
	}
}

// Start launches the dispatch loop.
func (s *Scheduler) Start() {
	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(s.cfg.Tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.dispatchOnce()
			case <-s.notify:
				s.dispatchOnce()
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop halts the dispatch loop.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// NotifyChange wakes the loop after a schedule-affecting mutation.
func (s *Scheduler) NotifyChange() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// dispatchOnce runs one dispatch pass over every executable job.
func (s *Scheduler) dispatchOnce() {
	metrics.SchedulerTicks.Inc()
	now := s.nowFn().UTC()

	jobs, err := s.store.ListExecutableJobs(now)
	if err != nil {
		s.logger.Error().Err(err).Msg("executable job query failed")
		return
	}
	for _, job := range jobs {
		s.dispatch(job, now)
	}
}

// dispatch enqueues one due job, re-reading it first so a concurrent
// schedule edit wins over the stale snapshot.
func (s *Scheduler) dispatch(stale *types.Job, now time.Time) {
	job, err := s.store.GetJob(stale.ID)
	if err != nil {
		s.logger.Warn().Err(err).Str("job_id", stale.ID).Msg("job vanished before dispatch")
		return
	}
	if !job.Active || job.Status != types.JobScheduled ||
		job.NextExecutionAt == nil || job.NextExecutionAt.After(now) {
		return
	}

	met, err := s.dispatcher.DependenciesMet(job)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("dependency check failed")
		return
	}
	if !met {
		// Silently deferred to the next tick.
		s.logger.Debug().Str("job_id", job.ID).Msg("dependencies not met, dispatch deferred")
		return
	}

	ex := &types.JobExecution{
		JobID:       job.ID,
		Trigger:     types.TriggerScheduled,
		ScheduledAt: job.NextExecutionAt,
	}
	if err := s.dispatcher.Enqueue(ex); err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("enqueue failed")
		return
	}
	metrics.JobsDispatched.Inc()
	s.logger.Info().
		Str("job_id", job.ID).
		Str("execution_id", ex.ExecutionID).
		Time("scheduled_at", *ex.ScheduledAt).
		Msg("job dispatched")

	s.advance(job, now)
}

// advance recomputes next_execution_at after a firing. One-shot kinds
// are disarmed; recurring and cron move to the next occurrence after
// the one just fired. The runner bumps the job version the moment an
// execution is enqueued, so the write retries on a fresh read until it
// lands; dropping it would refire the slot on the next tick.
func (s *Scheduler) advance(job *types.Job, now time.Time) {
	apply := func(j *types.Job) {
		switch j.Schedule.Kind {
		case types.ScheduleImmediate:
			// A fired immediate schedule degenerates to manual.
			j.Schedule.Kind = types.ScheduleManual
			j.NextExecutionAt = nil
		case types.ScheduleOnce:
			j.NextExecutionAt = nil
		case types.ScheduleRecurring, types.ScheduleCron:
			next, err := schedule.Next(j.Schedule, now.Add(time.Second))
			if err != nil {
				s.logger.Error().Err(err).Str("job_id", j.ID).Msg("next firing computation failed")
				j.NextExecutionAt = nil
			} else {
				j.NextExecutionAt = next
			}
		default:
			j.NextExecutionAt = nil
		}
	}

	apply(job)
	err := s.store.UpdateJob(job)
	for attempt := 0; errdefs.IsConflict(err) && attempt < 3; attempt++ {
		fresh, getErr := s.store.GetJob(job.ID)
		if getErr != nil {
			err = getErr
			break
		}
		apply(fresh)
		err = s.store.UpdateJob(fresh)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", job.ID).Msg("failed to persist next firing")
	}
}

// Activate moves an inactive job into the schedule.
func (s *Scheduler) Activate(jobID string) error {
	return s.transition(jobID, func(job *types.Job) error {
		if job.Status != types.JobInactive && job.Status != types.JobCompleted && job.Status != types.JobFailed {
			return errdefs.Validation("job %s cannot be activated from status %s", job.ID, job.Status)
		}
		job.Active = true
		job.Status = types.JobScheduled
		return nil
	})
}

// Pause takes a scheduled or running job out of dispatch. A running
// execution is not interrupted; only future firings stop.
func (s *Scheduler) Pause(jobID string) error {
	return s.transition(jobID, func(job *types.Job) error {
		if job.Status != types.JobScheduled && job.Status != types.JobRunning {
			return errdefs.Validation("job %s cannot be paused from status %s", job.ID, job.Status)
		}
		job.Status = types.JobPaused
		return nil
	})
}

// Resume returns a paused job to the schedule.
func (s *Scheduler) Resume(jobID string) error {
	return s.transition(jobID, func(job *types.Job) error {
		if job.Status != types.JobPaused {
			return errdefs.Validation("job %s cannot be resumed from status %s", job.ID, job.Status)
		}
		job.Status = types.JobScheduled
		next, err := schedule.Next(job.Schedule, s.nowFn().UTC())
		if err != nil {
			return err
		}
		job.NextExecutionAt = next
		return nil
	})
}

func (s *Scheduler) transition(jobID string, mutate func(job *types.Job) error) error {
	job, err := s.store.GetJob(jobID)
	if err != nil {
		return err
	}
	if err := mutate(job); err != nil {
		return err
	}
	if err := s.store.UpdateJob(job); err != nil {
		return err
	}
	s.NotifyChange()
	return nil
}
