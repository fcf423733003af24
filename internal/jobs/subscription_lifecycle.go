package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// LifecycleJobName identifies the subscription lifecycle job.
const LifecycleJobName = "subscription-lifecycle"

// LifecycleAdvancer moves lapsed subscriptions along the state machine.
type LifecycleAdvancer interface {
	AdvanceLifecycle(ctx context.Context) (int, error)
}

// JobScheduler runs background jobs. Singleton mode keeps a slow pass from
// overlapping with the next tick.
type JobScheduler struct {
	scheduler gocron.Scheduler
	advancer  LifecycleAdvancer
	timeout   time.Duration
	logger    zerolog.Logger
	jobs      map[string]gocron.Job
	mu        sync.RWMutex
}

// NewJobScheduler creates the scheduler and registers the lifecycle job.
func NewJobScheduler(advancer LifecycleAdvancer, every time.Duration, logger zerolog.Logger) (*JobScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	js := &JobScheduler{
		scheduler: scheduler,
		advancer:  advancer,
		timeout:   every,
		logger:    logger.With().Str("component", "jobs").Logger(),
		jobs:      make(map[string]gocron.Job),
	}

	job, err := js.scheduler.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(js.runLifecycle),
		gocron.WithName(LifecycleJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("create lifecycle job: %w", err)
	}
	js.jobs[LifecycleJobName] = job

	return js, nil
}

// Start starts the job scheduler
func (js *JobScheduler) Start() {
	js.logger.Info().Msg("starting background job scheduler")
	js.scheduler.Start()
}

// Stop waits for running jobs and stops the scheduler
func (js *JobScheduler) Stop() error {
	js.logger.Info().Msg("stopping background job scheduler")
	return js.scheduler.Shutdown()
}

func (js *JobScheduler) runLifecycle() {
	ctx, cancel := context.WithTimeout(context.Background(), js.timeout)
	defer cancel()

	start := time.Now()
	moved, err := js.advancer.AdvanceLifecycle(ctx)
	event := js.logger.Info()
	if err != nil {
		event = js.logger.Error().Err(err)
	}
	event.Int("transitions", moved).Dur("elapsed", time.Since(start)).Msg("subscription lifecycle pass finished")
}

// RunNow triggers a job immediately, outside its schedule.
func (js *JobScheduler) RunNow(name string) error {
	js.mu.RLock()
	job, ok := js.jobs[name]
	js.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return job.RunNow()
}

// JobInfo describes a scheduled job.
type JobInfo struct {
	Name    string    `json:"name"`
	LastRun time.Time `json:"last_run,omitempty"`
	NextRun time.Time `json:"next_run,omitempty"`
}

// GetJobStatus returns information about scheduled jobs
func (js *JobScheduler) GetJobStatus() []JobInfo {
	js.mu.RLock()
	defer js.mu.RUnlock()

	out := make([]JobInfo, 0, len(js.jobs))
	for name, job := range js.jobs {
		info := JobInfo{Name: name}
		if last, err := job.LastRun(); err == nil {
			info.LastRun = last
		}
		if next, err := job.NextRun(); err == nil {
			info.NextRun = next
		}
		out = append(out, info)
	}
	return out
}
