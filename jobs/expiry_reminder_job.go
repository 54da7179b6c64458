package jobs

import (
	"context"
	"time"
)

type ExpiryReminder interface {
	SendExpiryReminders(ctx context.Context, lead time.Duration) (int, error)
}

type ReminderReport struct {
	Sent int `json:"sent"`
}

// ExpiryReminderJob warns customers whose non-recurring subscription runs out
// within the lead time.
type ExpiryReminderJob struct {
	subs ExpiryReminder
	lead time.Duration
}

func NewExpiryReminderJob(subs ExpiryReminder, lead time.Duration) *ExpiryReminderJob {
	return &ExpiryReminderJob{subs: subs, lead: lead}
}

func (j *ExpiryReminderJob) Name() string { return "expiry-reminder" }

func (j *ExpiryReminderJob) Run(ctx context.Context) (any, error) {
	sent, err := j.subs.SendExpiryReminders(ctx, j.lead)
	return ReminderReport{Sent: sent}, err
}
