package domain

// System wallet IDs (Must match migration 000002)
const (
	SystemUserID = "11111111-1111-1111-1111-111111111111"

	// PlatformRevenueWalletID collects transfer fees and escrow commissions.
	PlatformRevenueWalletID = "22222222-2222-2222-2222-222222222222"
	// EscrowHoldingWalletID holds funds between escrow hold and release/refund.
	EscrowHoldingWalletID = "33333333-3333-3333-3333-333333333333"

	CurrencyGNF = "GNF"

	IntentTypeTransfer   = "transfer"
	IntentTypeDeposit    = "deposit"
	IntentTypeWithdrawal = "withdrawal"
	IntentTypePayment    = "payment"

	IntentStatusPending    = "pending"
	IntentStatusProcessing = "processing"
	IntentStatusRetrying   = "retrying"
	IntentStatusCompleted  = "completed"
	IntentStatusFailed     = "failed"
	IntentStatusCancelled  = "cancelled"

	// Escrow statuses
	EscrowStatusHeld     = "held"
	EscrowStatusReleased = "released"
	EscrowStatusRefunded = "refunded"

	WalletStatusActive  = "active"
	WalletStatusBlocked = "blocked"

	MethodWallet      = "wallet"
	MethodMobileMoney = "mobile_money"
	MethodCash        = "cash"

	PaymentStatusPaid    = "paid"
	PaymentStatusPending = "pending"
	PaymentStatusFailed  = "failed"
)
