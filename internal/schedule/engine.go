// Package schedule computes reminder fire times and owns the armed timer
// set. It assumes a single scheduling authority per job store: running two
// instances against the same store risks double delivery.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"reminderd/internal/domain"
	"reminderd/internal/jobstore"
)

// FireFunc is invoked when an armed job reaches its due time. It is
// responsible for recording the job's terminal status; the engine only
// guarantees the invocation happens at or after RunAt, once per timer.
type FireFunc func(ctx context.Context, job domain.Job)

// Engine owns the mapping from job id to an armed in-memory timer. The
// durable store is the ground truth; the timer set is a disposable cache
// of it, rebuilt by Recover at startup and patched by a periodic sweep.
type Engine struct {
	store  jobstore.Store
	fire   FireFunc
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timers map[string]*time.Timer

	sweepEvery time.Duration
}

func NewEngine(store jobstore.Store, fire FireFunc, sweepEvery time.Duration) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:      store,
		fire:       fire,
		cron:       cron.New(),
		ctx:        ctx,
		cancel:     cancel,
		timers:     make(map[string]*time.Timer),
		sweepEvery: sweepEvery,
	}
}

// Recover re-arms every pending job found in the store. Called once at
// startup, before the engine accepts new work; a failure here must abort
// process startup rather than run with an empty schedule.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	jobs, err := e.store.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending jobs: %w", err)
	}
	for _, j := range jobs {
		e.Arm(j)
	}
	return len(jobs), nil
}

// Start begins the reconciliation sweep.
func (e *Engine) Start() {
	if _, err := e.cron.AddFunc(fmt.Sprintf("@every %s", e.sweepEvery), e.sweep); err != nil {
		log.Error().Err(err).Msg("register sweep")
	}
	e.cron.Start()
	log.Info().Dur("sweep_every", e.sweepEvery).Msg("scheduler engine started")
}

// Stop halts the sweep and disarms all timers. Persisted job state is
// untouched; the next Recover rebuilds the set.
func (e *Engine) Stop() {
	e.cron.Stop()
	e.cancel()
	e.mu.Lock()
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
	}
	e.mu.Unlock()
	log.Info().Msg("scheduler engine stopped")
}

// Arm registers a one-shot timer for the job. An already-due RunAt fires
// as soon as practicable. Arming an id twice is a no-op.
func (e *Engine) Arm(job domain.Job) {
	delay := time.Until(job.RunAt)
	if delay < 0 {
		delay = 0
	}

	e.mu.Lock()
	if _, ok := e.timers[job.ID]; ok {
		e.mu.Unlock()
		return
	}
	e.timers[job.ID] = time.AfterFunc(delay, func() { e.fireJob(job) })
	e.mu.Unlock()

	log.Info().Str("job_id", job.ID).Time("run_at", job.RunAt).Dur("in", delay).Msg("job armed")
}

// Cancel removes an armed timer without touching the persisted record.
// Reports whether a timer was armed for the id.
func (e *Engine) Cancel(id string) bool {
	e.mu.Lock()
	t, ok := e.timers[id]
	if ok {
		t.Stop()
		delete(e.timers, id)
	}
	e.mu.Unlock()
	if ok {
		log.Info().Str("job_id", id).Msg("job canceled")
	}
	return ok
}

// Armed reports the number of currently armed timers.
func (e *Engine) Armed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}

// fireJob runs the dispatch callback. The id stays in the timer set until
// the callback returns, so the sweep never re-arms a job whose dispatch is
// still in flight.
func (e *Engine) fireJob(job domain.Job) {
	log.Info().Str("job_id", job.ID).Time("run_at", job.RunAt).Msg("job fired")
	e.fire(e.ctx, job)

	e.mu.Lock()
	delete(e.timers, job.ID)
	e.mu.Unlock()
}

// sweep re-arms any pending row missing from the timer set. Timers are
// normally armed at creation or recovery; the sweep covers anything lost
// to an arm failure or a job inserted out-of-band.
func (e *Engine) sweep() {
	jobs, err := e.store.ListPending(e.ctx)
	if err != nil {
		log.Error().Err(err).Msg("sweep: list pending jobs")
		return
	}
	for _, j := range jobs {
		e.mu.Lock()
		_, armed := e.timers[j.ID]
		e.mu.Unlock()
		if armed {
			continue
		}
		log.Warn().Str("job_id", j.ID).Time("run_at", j.RunAt).Msg("sweep re-armed job missing from timer set")
		e.Arm(j)
	}
}
