package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	config "github.com/anjiri1684/studio_booking/configs"
)

var (
	ErrUnknownJob     = errors.New("unknown job")
	ErrAlreadyRunning = errors.New("job is already running")
)

// Job is one batch run over a candidate set. Each record is handled in its own
// transaction, so a failure is counted in the report rather than aborting the run.
type Job interface {
	Name() string
	Run(ctx context.Context) (any, error)
}

type Runner struct {
	jobs map[string]Job
	lock RunLock
	ttl  time.Duration
}

func NewRunner(lock RunLock, ttl time.Duration, jobs ...Job) *Runner {
	if lock == nil {
		lock = NoopRunLock{}
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	r := &Runner{jobs: make(map[string]Job, len(jobs)), lock: lock, ttl: ttl}
	for _, job := range jobs {
		r.jobs[job.Name()] = job
	}
	return r
}

func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes the named job while holding its run lock.
func (r *Runner) Run(ctx context.Context, name string) (any, error) {
	job, ok := r.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	release, acquired, err := r.lock.Acquire(ctx, name, r.ttl)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}
	defer release()

	log.Printf("Running job: %s...", name)
	started := time.Now()
	report, err := job.Run(ctx)
	if err != nil {
		log.Printf("🔥 Job %s failed after %s: %v", name, time.Since(started).Round(time.Millisecond), err)
		return report, err
	}
	log.Printf("✅ Job %s finished in %s: %+v", name, time.Since(started).Round(time.Millisecond), report)
	return report, nil
}

// RunLogged is Run for callers with nowhere to send the result, such as cron.
func (r *Runner) RunLogged(name string) {
	if _, err := r.Run(context.Background(), name); err != nil && !errors.Is(err, ErrAlreadyRunning) {
		log.Printf("🔥 Scheduled job %s: %v", name, err)
	} else if errors.Is(err, ErrAlreadyRunning) {
		log.Printf("Job %s skipped, another run holds the lock.", name)
	}
}

// Subscriptions is what the expiry jobs need from the subscription ledger.
type Subscriptions interface {
	Expirer
	ExpiryReminder
}

// NewDefaultRunner wires the four scheduled jobs.
func NewDefaultRunner(lock RunLock, cfg config.JobsConfig, billing Biller, subs Subscriptions, resolver Reconciler) *Runner {
	return NewRunner(lock, cfg.LockTTL,
		NewRecurringBillingJob(billing),
		NewExpirySweepJob(subs),
		NewIntentReconcileJob(resolver, cfg.ReconcileAfter),
		NewExpiryReminderJob(subs, cfg.ExpiryReminder),
	)
}
