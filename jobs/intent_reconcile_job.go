package jobs

import (
	"context"
	"log"
	"time"

	"github.com/anjiri1684/studio_booking/services"
	"github.com/google/uuid"
)

type Reconciler interface {
	StaleIntentIDs(ctx context.Context, olderThan time.Duration) ([]uuid.UUID, error)
	Reconcile(ctx context.Context, intentID uuid.UUID) (services.Outcome, error)
}

type ReconcileReport struct {
	Processed int `json:"processed"`
	Approved  int `json:"approved"`
	Failed    int `json:"failed"`
	Unchanged int `json:"unchanged"`
	Errors    int `json:"errors"`
}

// IntentReconcileJob polls the gateway for intents whose webhook never came.
type IntentReconcileJob struct {
	resolver  Reconciler
	olderThan time.Duration
}

func NewIntentReconcileJob(resolver Reconciler, olderThan time.Duration) *IntentReconcileJob {
	return &IntentReconcileJob{resolver: resolver, olderThan: olderThan}
}

func (j *IntentReconcileJob) Name() string { return "intent-reconcile" }

func (j *IntentReconcileJob) Run(ctx context.Context) (any, error) {
	ids, err := j.resolver.StaleIntentIDs(ctx, j.olderThan)
	if err != nil {
		return ReconcileReport{}, err
	}
	if len(ids) == 0 {
		log.Println("No stale payment intents found.")
		return ReconcileReport{}, nil
	}

	var report ReconcileReport
	for _, id := range ids {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Processed++

		outcome, err := j.resolver.Reconcile(ctx, id)
		if err != nil {
			log.Printf("🔥 Could not reconcile intent %s: %v", id, err)
			report.Errors++
			continue
		}
		switch outcome {
		case services.OutcomeApproved:
			report.Approved++
		case services.OutcomeFailed:
			report.Failed++
		default:
			report.Unchanged++
		}
	}
	return report, nil
}
