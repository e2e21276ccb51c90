package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/solutions224/payments-core/internal/domain"
	"github.com/solutions224/payments-core/internal/models"
)

// Memory implements the service store interfaces with maps, for unit tests
// and local development. Semantics mirror the postgres store, including the
// CAS behavior of the status flips.
type Memory struct {
	mu      sync.Mutex
	intents map[uuid.UUID]*models.TransferIntent
	escrows map[uuid.UUID]*models.EscrowTransaction
	limits  map[uuid.UUID]models.TransferLimit
	usage   map[string]int64 // userID|windowKey
	audits  []models.AuditLog
}

func NewMemory() *Memory {
	return &Memory{
		intents: make(map[uuid.UUID]*models.TransferIntent),
		escrows: make(map[uuid.UUID]*models.EscrowTransaction),
		limits:  make(map[uuid.UUID]models.TransferLimit),
		usage:   make(map[string]int64),
	}
}

func (m *Memory) CreateIntent(_ context.Context, intent *models.TransferIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	intent.CreatedAt = now
	intent.UpdatedAt = now
	cp := *intent
	m.intents[intent.ID] = &cp
	return nil
}

func (m *Memory) GetIntent(_ context.Context, id uuid.UUID) (*models.TransferIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.intents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *intent
	return &cp, nil
}

func (m *Memory) ClaimDue(_ context.Context, now time.Time, limit int32) ([]models.TransferIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*models.TransferIntent
	for _, intent := range m.intents {
		if (intent.Status == domain.IntentStatusPending || intent.Status == domain.IntentStatusRetrying) &&
			!intent.ScheduledAt.After(now) {
			due = append(due, intent)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].Priority != due[j].Priority {
			return due[i].Priority > due[j].Priority
		}
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	if int32(len(due)) > limit {
		due = due[:limit]
	}

	claimed := make([]models.TransferIntent, 0, len(due))
	for _, intent := range due {
		intent.Status = domain.IntentStatusProcessing
		intent.UpdatedAt = time.Now().UTC()
		claimed = append(claimed, *intent)
	}
	return claimed, nil
}

func (m *Memory) MarkCompleted(_ context.Context, id uuid.UUID) error {
	return m.updateIntent(id, func(intent *models.TransferIntent) {
		intent.Status = domain.IntentStatusCompleted
		intent.ErrorCode = ""
		intent.ErrorDetail = ""
	})
}

func (m *Memory) MarkRetrying(_ context.Context, id uuid.UUID, attempts int32, nextAttempt time.Time, code, detail string) error {
	return m.updateIntent(id, func(intent *models.TransferIntent) {
		intent.Status = domain.IntentStatusRetrying
		intent.Attempts = attempts
		intent.ScheduledAt = nextAttempt
		intent.ErrorCode = code
		intent.ErrorDetail = detail
	})
}

func (m *Memory) MarkFailed(_ context.Context, id uuid.UUID, attempts int32, code, detail string) error {
	return m.updateIntent(id, func(intent *models.TransferIntent) {
		intent.Status = domain.IntentStatusFailed
		intent.Attempts = attempts
		intent.ErrorCode = code
		intent.ErrorDetail = detail
	})
}

func (m *Memory) updateIntent(id uuid.UUID, fn func(*models.TransferIntent)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.intents[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(intent)
	intent.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) CancelPending(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	intent, ok := m.intents[id]
	if !ok || intent.Status != domain.IntentStatusPending {
		return false, nil
	}
	intent.Status = domain.IntentStatusCancelled
	intent.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *Memory) RequeueProcessing(_ context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if intent, ok := m.intents[id]; ok && intent.Status == domain.IntentStatusProcessing {
			intent.Status = domain.IntentStatusRetrying
			intent.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (m *Memory) SweepStaleProcessing(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var swept int64
	for _, intent := range m.intents {
		if intent.Status == domain.IntentStatusProcessing && intent.UpdatedAt.Before(cutoff) {
			intent.Status = domain.IntentStatusRetrying
			intent.UpdatedAt = time.Now().UTC()
			swept++
		}
	}
	return swept, nil
}

func (m *Memory) CountPending(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, intent := range m.intents {
		if intent.Status == domain.IntentStatusPending || intent.Status == domain.IntentStatusRetrying {
			count++
		}
	}
	return count, nil
}

func (m *Memory) CreateEscrow(_ context.Context, esc *models.EscrowTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	esc.CreatedAt = now
	esc.UpdatedAt = now
	cp := *esc
	m.escrows[esc.ID] = &cp
	return nil
}

func (m *Memory) GetEscrow(_ context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	esc, ok := m.escrows[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *esc
	return &cp, nil
}

func (m *Memory) MarkReleased(_ context.Context, id uuid.UUID, commission int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	esc, ok := m.escrows[id]
	if !ok || esc.Status != domain.EscrowStatusHeld {
		return false, nil
	}
	esc.Status = domain.EscrowStatusReleased
	esc.CommissionAmount = commission
	esc.ReleasedAt = &at
	esc.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *Memory) MarkRefunded(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	esc, ok := m.escrows[id]
	if !ok || esc.Status != domain.EscrowStatusHeld {
		return false, nil
	}
	esc.Status = domain.EscrowStatusRefunded
	esc.RefundedAt = &at
	esc.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (m *Memory) SumHeld(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, esc := range m.escrows {
		if esc.Status == domain.EscrowStatusHeld {
			total += esc.Amount
		}
	}
	return total, nil
}

func (m *Memory) ListByStatus(_ context.Context, status string, limit int32) ([]models.EscrowTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var escrows []models.EscrowTransaction
	for _, esc := range m.escrows {
		if esc.Status == status {
			escrows = append(escrows, *esc)
		}
		if int32(len(escrows)) >= limit {
			break
		}
	}
	return escrows, nil
}

// SetTransferLimit seeds a user cap.
func (m *Memory) SetTransferLimit(userID uuid.UUID, daily, monthly int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limits[userID] = models.TransferLimit{UserID: userID, DailyCap: daily, MonthlyCap: monthly}
}

func (m *Memory) GetTransferLimit(_ context.Context, userID uuid.UUID) (*models.TransferLimit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit, ok := m.limits[userID]
	if !ok {
		return nil, nil
	}
	return &limit, nil
}

func (m *Memory) GetUsage(_ context.Context, userID uuid.UUID, dayKey, monthKey string) (models.LimitUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.LimitUsage{
		DailyUsed:   m.usage[userID.String()+"|"+dayKey],
		MonthlyUsed: m.usage[userID.String()+"|"+monthKey],
	}, nil
}

func (m *Memory) AddUsage(_ context.Context, userID uuid.UUID, amount int64, dayKey, monthKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage[userID.String()+"|"+dayKey] += amount
	m.usage[userID.String()+"|"+monthKey] += amount
	return nil
}

func (m *Memory) InsertAuditLog(_ context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.CreatedAt = time.Now().UTC()
	m.audits = append(m.audits, *log)
	return nil
}

// AuditLogs returns a snapshot of recorded transitions.
func (m *Memory) AuditLogs() []models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.AuditLog, len(m.audits))
	copy(out, m.audits)
	return out
}
