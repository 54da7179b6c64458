package jobs

import (
	"context"
	"log"

	"github.com/anjiri1684/studio_booking/models"
	"github.com/google/uuid"
)

type Expirer interface {
	DueForExpiry(ctx context.Context) ([]uuid.UUID, error)
	Expire(ctx context.Context, id uuid.UUID) (bool, []models.Booking, error)
}

type SweepReport struct {
	Processed        int `json:"processed"`
	Expired          int `json:"expired"`
	BookingsCanceled int `json:"bookings_canceled"`
	Failed           int `json:"failed"`
}

// ExpirySweepJob expires subscriptions past their expiry and cancels the
// bookings they still hold in the future.
type ExpirySweepJob struct {
	subs Expirer
}

func NewExpirySweepJob(subs Expirer) *ExpirySweepJob {
	return &ExpirySweepJob{subs: subs}
}

func (j *ExpirySweepJob) Name() string { return "expiry-sweep" }

func (j *ExpirySweepJob) Run(ctx context.Context) (any, error) {
	ids, err := j.subs.DueForExpiry(ctx)
	if err != nil {
		return SweepReport{}, err
	}

	var report SweepReport
	for _, id := range ids {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Processed++

		expired, canceled, err := j.subs.Expire(ctx, id)
		if err != nil {
			log.Printf("🔥 Could not expire subscription %s: %v", id, err)
			report.Failed++
			continue
		}
		if expired {
			report.Expired++
		}
		report.BookingsCanceled += len(canceled)
	}
	return report, nil
}
