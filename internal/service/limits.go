package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/solutions224/payments-core/internal/domain"
	"github.com/solutions224/payments-core/internal/models"
)

// LimitResult reports headroom left in both windows.
type LimitResult struct {
	Allowed          bool
	DailyRemaining   int64
	MonthlyRemaining int64
}

// LimitService enforces per-user daily and monthly outbound caps. Windows
// are calendar day and month in a fixed timezone, so the boundaries match
// what users see locally. The check is read-only; usage is recorded only
// after the ledger commit, so a burst of concurrent transfers can slightly
// overshoot a cap.
type LimitService struct {
	store          LimitStore
	location       *time.Location
	defaultDaily   int64
	defaultMonthly int64
}

func NewLimitService(store LimitStore, location *time.Location, defaultDaily, defaultMonthly int64) *LimitService {
	if location == nil {
		location = time.UTC
	}
	return &LimitService{
		store:          store,
		location:       location,
		defaultDaily:   defaultDaily,
		defaultMonthly: defaultMonthly,
	}
}

func (s *LimitService) windowKeys(now time.Time) (string, string) {
	local := now.In(s.location)
	return local.Format("2006-01-02"), local.Format("2006-01")
}

func (s *LimitService) caps(ctx context.Context, userID uuid.UUID) (models.TransferLimit, error) {
	limit, err := s.store.GetTransferLimit(ctx, userID)
	if err != nil {
		return models.TransferLimit{}, fmt.Errorf("load transfer limit: %w", err)
	}
	if limit == nil {
		return models.TransferLimit{UserID: userID, DailyCap: s.defaultDaily, MonthlyCap: s.defaultMonthly}, nil
	}
	return *limit, nil
}

// Check reports whether a transfer of amount fits the user's caps right now.
func (s *LimitService) Check(ctx context.Context, userID uuid.UUID, amount int64) (LimitResult, error) {
	caps, err := s.caps(ctx, userID)
	if err != nil {
		return LimitResult{}, err
	}
	dayKey, monthKey := s.windowKeys(time.Now())
	usage, err := s.store.GetUsage(ctx, userID, dayKey, monthKey)
	if err != nil {
		return LimitResult{}, fmt.Errorf("load limit usage: %w", err)
	}

	result := LimitResult{
		DailyRemaining:   caps.DailyCap - usage.DailyUsed,
		MonthlyRemaining: caps.MonthlyCap - usage.MonthlyUsed,
	}
	if result.DailyRemaining < 0 {
		result.DailyRemaining = 0
	}
	if result.MonthlyRemaining < 0 {
		result.MonthlyRemaining = 0
	}
	result.Allowed = amount <= result.DailyRemaining && amount <= result.MonthlyRemaining
	return result, nil
}

// Enforce is Check returning a coded error on refusal.
func (s *LimitService) Enforce(ctx context.Context, userID uuid.UUID, amount int64) error {
	result, err := s.Check(ctx, userID, amount)
	if err != nil {
		return err
	}
	if !result.Allowed {
		return domain.NewValidation(domain.CodeLimitExceeded,
			"amount %d exceeds remaining limit (daily %d, monthly %d)",
			amount, result.DailyRemaining, result.MonthlyRemaining)
	}
	return nil
}

// Record adds a successful transfer to the user's windows. Call only after
// the ledger mutation committed.
func (s *LimitService) Record(ctx context.Context, userID uuid.UUID, amount int64) error {
	dayKey, monthKey := s.windowKeys(time.Now())
	if err := s.store.AddUsage(ctx, userID, amount, dayKey, monthKey); err != nil {
		return fmt.Errorf("record limit usage: %w", err)
	}
	return nil
}
