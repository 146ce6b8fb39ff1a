// Package scheduler runs recurring jobs for the daemon.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lifesync-hq/lifesync/internal/logging"
)

// JobFunc is the work a job performs.
type JobFunc func(ctx context.Context) error

// Schedule defines when a job runs. Exactly one of Interval or At is
// set: Interval repeats on a fixed period, At runs daily at a local
// wall-clock time such as "06:30".
type Schedule struct {
	Interval time.Duration
	At       string
}

// Job is a named recurring unit of work.
type Job struct {
	Name     string
	Schedule Schedule
	Run      JobFunc
	Timeout  time.Duration

	lastRun   time.Time
	lastError string
	runs      int64
	errors    int64
}

// Scheduler owns a set of jobs and their run loops.
type Scheduler struct {
	jobs     []*Job
	timezone *time.Location
	log      *logging.Logger

	mu      sync.Mutex
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
}

// New creates a scheduler evaluating daily schedules in tz. An
// unloadable timezone falls back to the host's local zone.
func New(tz string) *Scheduler {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.Local
	}
	return &Scheduler{
		timezone: loc,
		log:      logging.WithField("component", "scheduler"),
	}
}

// Add registers a job. Jobs added after Start are not picked up.
func (s *Scheduler) Add(job *Job) error {
	if job.Name == "" {
		return fmt.Errorf("job name is required")
	}
	if job.Run == nil {
		return fmt.Errorf("job %s has no run function", job.Name)
	}
	if job.Schedule.Interval <= 0 && job.Schedule.At == "" {
		return fmt.Errorf("job %s has no schedule", job.Name)
	}
	if job.Timeout <= 0 {
		job.Timeout = 5 * time.Minute
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
	return nil
}

// Start launches a run loop per job.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("scheduler already started")
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}

	return nil
}

// Stop cancels all run loops and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.started = false
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job *Job) {
	defer s.wg.Done()

	for {
		wait := time.Until(s.nextRun(job.Schedule))
		if wait < 0 {
			wait = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			s.execute(ctx, job)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, job *Job) {
	ctx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()

	s.mu.Lock()
	job.lastRun = time.Now()
	job.runs++
	s.mu.Unlock()

	s.log.Info("running job %s", job.Name)
	err := job.Run(ctx)

	s.mu.Lock()
	if err != nil {
		job.errors++
		job.lastError = err.Error()
	} else {
		job.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("job %s failed: %v", job.Name, err)
	}
}

// nextRun returns the next time the schedule fires, evaluated in the
// scheduler's timezone.
func (s *Scheduler) nextRun(schedule Schedule) time.Time {
	now := time.Now().In(s.timezone)

	if schedule.Interval > 0 {
		return now.Add(schedule.Interval)
	}

	hour, minute := 6, 0
	fmt.Sscanf(schedule.At, "%d:%d", &hour, &minute)

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, s.timezone)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// JobStatus is a point-in-time snapshot of a job's run history.
type JobStatus struct {
	Name      string    `json:"name"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
	Runs      int64     `json:"runs"`
	Errors    int64     `json:"errors"`
}

// Status reports each job's run counts and last outcome.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, JobStatus{
			Name:      job.Name,
			LastRun:   job.lastRun,
			LastError: job.lastError,
			Runs:      job.runs,
			Errors:    job.errors,
		})
	}
	return out
}
