package jobs

import (
	"fmt"
	"time"

	config "github.com/anjiri1684/studio_booking/configs"
	"github.com/robfig/cron/v3"
)

// NewScheduler registers every job with its cron schedule. Schedules are
// evaluated in UTC. The caller starts and stops the returned cron.
func NewScheduler(runner *Runner, cfg config.JobsConfig) (*cron.Cron, error) {
	schedules := map[string]string{
		"recurring-billing": cfg.BillingSchedule,
		"expiry-sweep":      cfg.ExpirySchedule,
		"intent-reconcile":  cfg.ReconcileSchedule,
		"expiry-reminder":   cfg.ReminderSchedule,
	}

	c := cron.New(cron.WithLocation(time.UTC))
	for _, name := range runner.Names() {
		spec, ok := schedules[name]
		if !ok || spec == "" {
			continue
		}
		name := name
		if _, err := c.AddFunc(spec, func() { runner.RunLogged(name) }); err != nil {
			return nil, fmt.Errorf("schedule %s (%q): %w", name, spec, err)
		}
	}
	return c, nil
}
