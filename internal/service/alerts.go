package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/solutions224/payments-core/internal/observability"
)

// IntentFailure describes an intent that exhausted its options.
type IntentFailure struct {
	IntentID uuid.UUID
	Type     string
	Attempts int32
	Code     string
	Detail   string
}

// Alerter is notified whenever an intent reaches terminal failure. Funds
// may be owed to a user at that point, so someone has to look.
type Alerter interface {
	IntentFailed(ctx context.Context, failure IntentFailure)
}

// LogAlerter raises alerts as error logs plus a counter the alerting
// pipeline scrapes.
type LogAlerter struct{}

func (LogAlerter) IntentFailed(_ context.Context, failure IntentFailure) {
	zap.L().Error("intent permanently failed",
		zap.String("intent_id", failure.IntentID.String()),
		zap.String("type", failure.Type),
		zap.Int32("attempts", failure.Attempts),
		zap.String("error_code", failure.Code),
		zap.String("error_detail", failure.Detail))
	observability.IncrementIntentAlert(failure.Type)
}
