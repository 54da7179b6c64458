package jobs

import (
	"context"
	"log"

	"github.com/anjiri1684/studio_booking/services"
	"github.com/google/uuid"
)

type Biller interface {
	DueSubscriptionIDs(ctx context.Context) ([]uuid.UUID, error)
	ChargeRenewal(ctx context.Context, id uuid.UUID) (services.ChargeOutcome, error)
}

type BillingReport struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
	Skipped   int `json:"skipped"`
}

// RecurringBillingJob charges every recurring subscription due today.
type RecurringBillingJob struct {
	billing Biller
}

func NewRecurringBillingJob(billing Biller) *RecurringBillingJob {
	return &RecurringBillingJob{billing: billing}
}

func (j *RecurringBillingJob) Name() string { return "recurring-billing" }

func (j *RecurringBillingJob) Run(ctx context.Context) (any, error) {
	ids, err := j.billing.DueSubscriptionIDs(ctx)
	if err != nil {
		return BillingReport{}, err
	}

	var report BillingReport
	for _, id := range ids {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Processed++

		outcome, err := j.billing.ChargeRenewal(ctx, id)
		if err != nil {
			log.Printf("🔥 Renewal charge for subscription %s failed: %v", id, err)
			report.Failed++
			continue
		}
		switch outcome {
		case services.ChargeApproved:
			report.Succeeded++
		case services.ChargePending:
			report.Pending++
		case services.ChargeSkipped:
			report.Skipped++
		default:
			report.Failed++
		}
	}
	return report, nil
}
