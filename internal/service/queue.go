package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/solutions224/payments-core/internal/domain"
	"github.com/solutions224/payments-core/internal/ledger"
	"github.com/solutions224/payments-core/internal/models"
	"github.com/solutions224/payments-core/internal/observability"
)

// retryBackoff is the delay before attempt N+1 after N failures. Past the
// last entry the delay stays capped.
var retryBackoff = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	15 * time.Second,
	60 * time.Second,
}

func backoffDelay(attempts int32) time.Duration {
	idx := int(attempts) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(retryBackoff) {
		idx = len(retryBackoff) - 1
	}
	return retryBackoff[idx]
}

// EnqueueCommand asks for a money movement to be executed asynchronously.
type EnqueueCommand struct {
	Type     string
	Payload  models.IntentPayload
	Priority int32
}

// QueueService owns the durable intent queue: synchronous validation at
// enqueue, claim-based batch processing, retry with backoff for transient
// failures, and operator alerts on terminal failure. The intent ID is the
// ledger idempotency key for the intent's single mutation, so redelivery
// can never double-move funds.
type QueueService struct {
	store           IntentStore
	transfers       *TransferService
	payments        *PaymentMethodService
	gateway         ledger.Gateway
	fees            *FeeCalculator
	audit           *AuditService
	alerter         Alerter
	maxAttempts     int32
	staleAfter      time.Duration
	dispatchTimeout time.Duration
}

func NewQueueService(store IntentStore, transfers *TransferService, payments *PaymentMethodService, gateway ledger.Gateway, fees *FeeCalculator, audit *AuditService, alerter Alerter, maxAttempts int32, dispatchTimeout time.Duration) *QueueService {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if dispatchTimeout <= 0 {
		dispatchTimeout = 10 * time.Second
	}
	if alerter == nil {
		alerter = LogAlerter{}
	}
	return &QueueService{
		store:           store,
		transfers:       transfers,
		payments:        payments,
		gateway:         gateway,
		fees:            fees,
		audit:           audit,
		alerter:         alerter,
		maxAttempts:     maxAttempts,
		staleAfter:      2 * time.Minute,
		dispatchTimeout: dispatchTimeout,
	}
}

// Enqueue validates the command and persists a pending intent. Validation
// failures are returned to the caller immediately; nothing invalid is ever
// queued.
func (s *QueueService) Enqueue(ctx context.Context, cmd EnqueueCommand) (*models.TransferIntent, error) {
	if err := s.validateEnqueue(cmd); err != nil {
		return nil, err
	}

	intent := &models.TransferIntent{
		ID:          uuid.New(),
		Type:        cmd.Type,
		Status:      domain.IntentStatusPending,
		Payload:     cmd.Payload,
		Priority:    cmd.Priority,
		MaxAttempts: s.maxAttempts,
		ScheduledAt: time.Now().UTC(),
	}
	if err := s.store.CreateIntent(ctx, intent); err != nil {
		return nil, fmt.Errorf("enqueue intent: %w", err)
	}
	if err := s.audit.Write(ctx, "intent", intent.ID, "", domain.IntentStatusPending, intent.Type); err != nil {
		zap.L().Error("failed to audit enqueue", zap.String("intent_id", intent.ID.String()), zap.Error(err))
	}
	return intent, nil
}

func (s *QueueService) validateEnqueue(cmd EnqueueCommand) error {
	if cmd.Payload.Amount <= 0 {
		return domain.NewValidation(domain.CodeInvalidAmount, "amount must be positive, got %d", cmd.Payload.Amount)
	}
	switch cmd.Type {
	case domain.IntentTypeTransfer:
		if cmd.Payload.SenderWalletID == uuid.Nil || cmd.Payload.ReceiverWalletID == uuid.Nil {
			return domain.NewValidation(domain.CodeInvalidAmount, "transfer requires sender and receiver wallets")
		}
		if cmd.Payload.SenderWalletID == cmd.Payload.ReceiverWalletID {
			return domain.NewValidation(domain.CodeSelfTransfer, "cannot transfer to the same wallet")
		}
	case domain.IntentTypePayment:
		switch cmd.Payload.Method {
		case domain.MethodWallet, domain.MethodMobileMoney, domain.MethodCash:
		default:
			return domain.NewValidation(domain.CodeUnsupportedMethod, "unsupported payment method: %q", cmd.Payload.Method)
		}
	case domain.IntentTypeDeposit, domain.IntentTypeWithdrawal:
		if cmd.Payload.WalletID == uuid.Nil {
			return domain.NewValidation(domain.CodeInvalidAmount, "%s requires a wallet", cmd.Type)
		}
		if cmd.Type == domain.IntentTypeDeposit {
			breakdown, err := s.fees.Calculate(cmd.Payload.Role, cmd.Payload.Amount)
			if err != nil {
				return err
			}
			if cmd.Payload.Amount <= breakdown.Fee {
				return domain.NewValidation(domain.CodeInvalidAmount,
					"deposit of %d does not cover the %d fee", cmd.Payload.Amount, breakdown.Fee)
			}
		}
	default:
		return domain.NewValidation(domain.CodeUnsupportedMethod, "unknown intent type: %q", cmd.Type)
	}
	return nil
}

// GetStatus returns the current state of an intent.
func (s *QueueService) GetStatus(ctx context.Context, id uuid.UUID) (*models.TransferIntent, error) {
	return s.store.GetIntent(ctx, id)
}

// Cancel flips a pending intent to cancelled. Once a worker has claimed the
// intent, or it has reached a terminal state, cancellation is refused.
func (s *QueueService) Cancel(ctx context.Context, id uuid.UUID) error {
	cancelled, err := s.store.CancelPending(ctx, id)
	if err != nil {
		return fmt.Errorf("cancel intent: %w", err)
	}
	if !cancelled {
		intent, err := s.store.GetIntent(ctx, id)
		if err != nil {
			return err
		}
		if intent.Status == domain.IntentStatusCancelled {
			return nil
		}
		return domain.ErrNotCancellable
	}
	if err := s.audit.Write(ctx, "intent", id, domain.IntentStatusPending, domain.IntentStatusCancelled, ""); err != nil {
		zap.L().Error("failed to audit cancel", zap.String("intent_id", id.String()), zap.Error(err))
	}
	observability.IncrementIntentTerminal(domain.IntentStatusCancelled)
	return nil
}

// staleCutoff is the age past which a processing claim is presumed
// abandoned. A full batch can legitimately hold its claims for one dispatch
// timeout per intent, so the cutoff never drops below that.
func (s *QueueService) staleCutoff(batchSize int32) time.Duration {
	cutoff := s.staleAfter
	if floor := time.Duration(batchSize) * s.dispatchTimeout; floor > cutoff {
		cutoff = floor
	}
	return cutoff
}

// ProcessBatch claims up to batchSize due intents and works them in claim
// order. Claimed intents left unworked when the context is cancelled are
// requeued so they are not stranded in processing.
func (s *QueueService) ProcessBatch(ctx context.Context, batchSize int32) error {
	swept, err := s.store.SweepStaleProcessing(ctx, time.Now().UTC().Add(-s.staleCutoff(batchSize)))
	if err != nil {
		zap.L().Error("failed to sweep stale intents", zap.Error(err))
	} else if swept > 0 {
		zap.L().Warn("recovered stale processing intents", zap.Int64("count", swept))
	}

	claimed, err := s.store.ClaimDue(ctx, time.Now().UTC(), batchSize)
	if err != nil {
		return fmt.Errorf("claim intents: %w", err)
	}

	for i := range claimed {
		if ctx.Err() != nil {
			remaining := make([]uuid.UUID, 0, len(claimed)-i)
			for _, intent := range claimed[i:] {
				remaining = append(remaining, intent.ID)
			}
			if requeueErr := s.store.RequeueProcessing(context.WithoutCancel(ctx), remaining); requeueErr != nil {
				zap.L().Error("failed to requeue claimed intents", zap.Int("count", len(remaining)), zap.Error(requeueErr))
			}
			return ctx.Err()
		}
		s.processIntent(ctx, &claimed[i])
	}

	if pending, err := s.store.CountPending(ctx); err == nil {
		observability.SetQueueDepth(pending)
	}
	return nil
}

func (s *QueueService) processIntent(ctx context.Context, intent *models.TransferIntent) {
	dispatchCtx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	settled, err := s.dispatch(dispatchCtx, intent)
	cancel()

	if err == nil && !settled {
		// Handed off to an external provider; the webhook callback will
		// settle the intent. The stale sweep re-dispatches if the
		// callback never arrives, so Initiate must dedupe by reference.
		zap.L().Info("intent awaiting provider confirmation", zap.String("intent_id", intent.ID.String()))
		return
	}

	if err == nil {
		if markErr := s.store.MarkCompleted(ctx, intent.ID); markErr != nil {
			zap.L().Error("failed to mark intent completed", zap.String("intent_id", intent.ID.String()), zap.Error(markErr))
			return
		}
		s.auditTransition(ctx, intent.ID, domain.IntentStatusCompleted, "")
		observability.IncrementIntentTerminal(domain.IntentStatusCompleted)
		return
	}

	attempts := intent.Attempts + 1
	code := domain.CodeOf(err)
	detail := err.Error()

	if domain.IsRetryable(err) && attempts < intent.MaxAttempts {
		next := time.Now().UTC().Add(backoffDelay(attempts))
		if markErr := s.store.MarkRetrying(ctx, intent.ID, attempts, next, code, detail); markErr != nil {
			zap.L().Error("failed to reschedule intent", zap.String("intent_id", intent.ID.String()), zap.Error(markErr))
			return
		}
		s.auditTransition(ctx, intent.ID, domain.IntentStatusRetrying, code)
		zap.L().Warn("intent attempt failed, rescheduled",
			zap.String("intent_id", intent.ID.String()),
			zap.Int32("attempts", attempts),
			zap.Time("next_attempt", next),
			zap.Error(err))
		return
	}

	if markErr := s.store.MarkFailed(ctx, intent.ID, attempts, code, detail); markErr != nil {
		zap.L().Error("failed to mark intent failed", zap.String("intent_id", intent.ID.String()), zap.Error(markErr))
		return
	}
	s.auditTransition(ctx, intent.ID, domain.IntentStatusFailed, code)
	observability.IncrementIntentTerminal(domain.IntentStatusFailed)
	s.alerter.IntentFailed(ctx, IntentFailure{
		IntentID: intent.ID,
		Type:     intent.Type,
		Attempts: attempts,
		Code:     code,
		Detail:   detail,
	})
}

// dispatch runs the intent's single money movement and reports whether it
// settled. Every path keys its ledger mutation off the intent ID.
func (s *QueueService) dispatch(ctx context.Context, intent *models.TransferIntent) (bool, error) {
	key := intent.ID.String()
	payload := intent.Payload

	switch intent.Type {
	case domain.IntentTypeTransfer:
		_, err := s.transfers.Transfer(ctx, TransferCommand{
			SenderWalletID:   payload.SenderWalletID,
			ReceiverWalletID: payload.ReceiverWalletID,
			SenderUserID:     payload.UserID,
			Amount:           payload.Amount,
			Role:             payload.Role,
			ReferenceID:      key,
			Description:      payload.Description,
		})
		return true, err

	case domain.IntentTypePayment:
		result, err := s.payments.Execute(ctx, PaymentCommand{Payload: payload, ReferenceID: key})
		if err != nil {
			return true, err
		}
		return result.Status != domain.PaymentStatusPending, nil

	case domain.IntentTypeDeposit:
		breakdown, err := s.fees.Calculate(payload.Role, payload.Amount)
		if err != nil {
			return true, err
		}
		if _, err := s.gateway.IncrementBalance(ctx, payload.WalletID, payload.Amount-breakdown.Fee, key); err != nil {
			return true, err
		}
		if breakdown.Fee > 0 {
			if _, err := s.gateway.IncrementBalance(ctx, uuid.MustParse(domain.PlatformRevenueWalletID), breakdown.Fee, key+":fee"); err != nil {
				return true, err
			}
		}
		return true, nil

	case domain.IntentTypeWithdrawal:
		breakdown, err := s.fees.Calculate(payload.Role, payload.Amount)
		if err != nil {
			return true, err
		}
		if _, err := s.gateway.IncrementBalance(ctx, payload.WalletID, -(payload.Amount + breakdown.Fee), key); err != nil {
			return true, err
		}
		if breakdown.Fee > 0 {
			if _, err := s.gateway.IncrementBalance(ctx, uuid.MustParse(domain.PlatformRevenueWalletID), breakdown.Fee, key+":fee"); err != nil {
				return true, err
			}
		}
		return true, nil

	default:
		return true, domain.NewValidation(domain.CodeUnsupportedMethod, "unknown intent type: %q", intent.Type)
	}
}

func (s *QueueService) auditTransition(ctx context.Context, id uuid.UUID, toStatus, detail string) {
	if err := s.audit.Write(ctx, "intent", id, domain.IntentStatusProcessing, toStatus, detail); err != nil {
		zap.L().Error("failed to audit intent transition",
			zap.String("intent_id", id.String()), zap.String("to", toStatus), zap.Error(err))
	}
}
