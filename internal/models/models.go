package models

import (
	"time"

	"github.com/google/uuid"
)

type Wallet struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Currency  string    `json:"currency"`
	Balance   int64     `json:"balance"`
	Status    string    `json:"status"` // "active" or "blocked"
	CreatedAt time.Time `json:"created_at"`
}

// IntentPayload is the money-movement instruction carried by a transfer
// intent. Which fields are required depends on the intent type.
type IntentPayload struct {
	SenderWalletID   uuid.UUID `json:"sender_wallet_id,omitempty"`
	ReceiverWalletID uuid.UUID `json:"receiver_wallet_id,omitempty"`
	WalletID         uuid.UUID `json:"wallet_id,omitempty"` // deposit/withdrawal target
	UserID           uuid.UUID `json:"user_id"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	Method           string    `json:"method,omitempty"` // payment intents
	Role             string    `json:"role,omitempty"`   // fee schedule selector
	Description      string    `json:"description,omitempty"`
}

type TransferIntent struct {
	ID          uuid.UUID     `json:"id"`
	Type        string        `json:"type"`
	Status      string        `json:"status"`
	Payload     IntentPayload `json:"payload"`
	Priority    int32         `json:"priority"`
	Attempts    int32         `json:"attempts"`
	MaxAttempts int32         `json:"max_attempts"`
	ScheduledAt time.Time     `json:"scheduled_at"`
	ErrorCode   string        `json:"error_code,omitempty"`
	ErrorDetail string        `json:"error_detail,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type EscrowTransaction struct {
	ID               uuid.UUID  `json:"id"`
	PayerWalletID    uuid.UUID  `json:"payer_wallet_id"`
	ReceiverWalletID uuid.UUID  `json:"receiver_wallet_id"`
	Amount           int64      `json:"amount"`
	Currency         string     `json:"currency"`
	Status           string     `json:"status"` // "held", "released", "refunded"
	CommissionAmount int64      `json:"commission_amount"`
	Reference        string     `json:"reference,omitempty"`
	ReleasedAt       *time.Time `json:"released_at,omitempty"`
	RefundedAt       *time.Time `json:"refunded_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// TransferLimit caps a user's outbound transfer volume per calendar window.
type TransferLimit struct {
	UserID     uuid.UUID `json:"user_id"`
	DailyCap   int64     `json:"daily_cap"`
	MonthlyCap int64     `json:"monthly_cap"`
}

type LimitUsage struct {
	DailyUsed   int64 `json:"daily_used"`
	MonthlyUsed int64 `json:"monthly_used"`
}

// PaymentResult is the uniform outcome every payment method resolves to.
type PaymentResult struct {
	Status        string `json:"status"` // "paid", "pending" or "failed"
	TransactionID string `json:"transaction_id,omitempty"`
	Error         string `json:"error,omitempty"`
}

type AuditLog struct {
	ID         uuid.UUID `json:"id"`
	EntityType string    `json:"entity_type"` // "intent" or "escrow"
	EntityID   uuid.UUID `json:"entity_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
