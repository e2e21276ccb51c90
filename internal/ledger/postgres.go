package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/solutions224/payments-core/internal/domain"
	"github.com/solutions224/payments-core/internal/models"
	"github.com/solutions224/payments-core/internal/observability"
)

// PostgresGateway is the authoritative Gateway. Balance changes are applied
// as deltas inside a single transaction with row locks taken in a consistent
// order, and every applied key is recorded in ledger_operations so replays
// return the recorded outcome.
type PostgresGateway struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresGateway(db *pgxpool.Pool, timeout time.Duration) *PostgresGateway {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresGateway{db: db, timeout: timeout}
}

func payloadHash(parts ...any) string {
	sum := sha256.Sum256([]byte(fmt.Sprint(parts...)))
	return hex.EncodeToString(sum[:])
}

// classify maps infrastructure failures to the retryable taxonomy. Coded
// errors pass through untouched.
func classify(err error) error {
	var coded *domain.Error
	if errors.As(err, &coded) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewTransient(domain.CodeTimeout, err, "ledger call timed out")
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return domain.NewTransient(domain.CodeLedgerUnavailable, err, "ledger unavailable")
}

func (g *PostgresGateway) TransferWithFee(ctx context.Context, senderWalletID, receiverWalletID uuid.UUID, amount, fee int64, key string) (res TransferResult, err error) {
	if amount <= 0 || fee < 0 {
		return TransferResult{}, domain.NewValidation(domain.CodeInvalidAmount, "invalid amounts: %d, fee %d", amount, fee)
	}
	start := time.Now()
	defer func() { observability.ObserveLedgerOp("transfer_with_fee", time.Since(start), err) }()
	hash := payloadHash("transfer|", senderWalletID, "|", receiverWalletID, "|", amount, "|", fee)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	res, err = g.transferOnce(ctx, senderWalletID, receiverWalletID, amount, fee, key, hash)
	if isUniqueViolation(err) {
		// Lost a race with a concurrent attempt on the same key; the
		// recorded outcome is authoritative.
		res, err = g.replayTransfer(ctx, key, hash)
	}
	return res, err
}

func (g *PostgresGateway) transferOnce(ctx context.Context, senderWalletID, receiverWalletID uuid.UUID, amount, fee int64, key, hash string) (TransferResult, error) {
	tx, err := g.db.Begin(ctx)
	if err != nil {
		return TransferResult{}, classify(err)
	}
	defer tx.Rollback(ctx)

	if res, err := lookupTransfer(ctx, tx, key, hash); err == nil {
		return res, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return TransferResult{}, err
	}

	// Lock wallets in a consistent order to prevent deadlocks.
	firstID, secondID := senderWalletID, receiverWalletID
	if firstID.String() > secondID.String() {
		firstID, secondID = receiverWalletID, senderWalletID
	}
	for _, id := range []uuid.UUID{firstID, secondID} {
		if _, err := tx.Exec(ctx, `SELECT 1 FROM wallets WHERE id = $1 FOR UPDATE`, id); err != nil {
			return TransferResult{}, classify(err)
		}
	}

	var senderBalance int64
	var senderStatus string
	err = tx.QueryRow(ctx, `SELECT balance, status FROM wallets WHERE id = $1`, senderWalletID).Scan(&senderBalance, &senderStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return TransferResult{}, domain.ErrWalletNotFound
	}
	if err != nil {
		return TransferResult{}, classify(err)
	}

	var receiverStatus string
	err = tx.QueryRow(ctx, `SELECT status FROM wallets WHERE id = $1`, receiverWalletID).Scan(&receiverStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return TransferResult{}, domain.ErrWalletNotFound
	}
	if err != nil {
		return TransferResult{}, classify(err)
	}

	if senderStatus == domain.WalletStatusBlocked || receiverStatus == domain.WalletStatusBlocked {
		return TransferResult{}, domain.ErrWalletBlocked
	}
	if senderBalance < amount+fee {
		return TransferResult{}, domain.ErrInsufficientFunds
	}

	var result TransferResult
	err = tx.QueryRow(ctx, `UPDATE wallets SET balance = balance - $1 WHERE id = $2 RETURNING balance`,
		amount+fee, senderWalletID).Scan(&result.NewSenderBalance)
	if err != nil {
		return TransferResult{}, classify(err)
	}
	err = tx.QueryRow(ctx, `UPDATE wallets SET balance = balance + $1 WHERE id = $2 RETURNING balance`,
		amount, receiverWalletID).Scan(&result.NewReceiverBalance)
	if err != nil {
		return TransferResult{}, classify(err)
	}
	if fee > 0 {
		_, err = tx.Exec(ctx, `UPDATE wallets SET balance = balance + $1 WHERE id = $2`,
			fee, uuid.MustParse(domain.PlatformRevenueWalletID))
		if err != nil {
			return TransferResult{}, classify(err)
		}
	}

	_, err = tx.Exec(ctx, `INSERT INTO ledger_operations (key, payload_hash, sender_balance, receiver_balance, created_at) VALUES ($1, $2, $3, $4, NOW())`,
		key, hash, result.NewSenderBalance, result.NewReceiverBalance)
	if err != nil {
		if isUniqueViolation(err) {
			return TransferResult{}, err
		}
		return TransferResult{}, classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return TransferResult{}, classify(err)
	}
	return result, nil
}

func (g *PostgresGateway) LookupTransfer(ctx context.Context, senderWalletID, receiverWalletID uuid.UUID, amount, fee int64, key string) (res TransferResult, ok bool, err error) {
	start := time.Now()
	defer func() { observability.ObserveLedgerOp("lookup_transfer", time.Since(start), err) }()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	hash := payloadHash("transfer|", senderWalletID, "|", receiverWalletID, "|", amount, "|", fee)
	res, err = lookupTransfer(ctx, g.db, key, hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return TransferResult{}, false, nil
	}
	if err != nil {
		return TransferResult{}, false, err
	}
	return res, true, nil
}

func (g *PostgresGateway) replayTransfer(ctx context.Context, key, hash string) (TransferResult, error) {
	res, err := lookupTransfer(ctx, g.db, key, hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return TransferResult{}, domain.NewTransient(domain.CodeLedgerUnavailable, err, "operation %s vanished after conflict", key)
	}
	return res, err
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func lookupTransfer(ctx context.Context, q querier, key, hash string) (TransferResult, error) {
	var recordedHash string
	var res TransferResult
	err := q.QueryRow(ctx, `SELECT payload_hash, sender_balance, receiver_balance FROM ledger_operations WHERE key = $1`, key).
		Scan(&recordedHash, &res.NewSenderBalance, &res.NewReceiverBalance)
	if errors.Is(err, pgx.ErrNoRows) {
		return TransferResult{}, err
	}
	if err != nil {
		return TransferResult{}, classify(err)
	}
	if recordedHash != hash {
		return TransferResult{}, domain.NewFatal(domain.CodeIdempotencyConflict, nil, "key %s reused with a different payload", key)
	}
	return res, nil
}

func (g *PostgresGateway) IncrementBalance(ctx context.Context, walletID uuid.UUID, delta int64, key string) (balance int64, err error) {
	if delta == 0 {
		return 0, domain.NewValidation(domain.CodeInvalidAmount, "zero delta")
	}
	hash := payloadHash("increment|", walletID, "|", delta)
	start := time.Now()
	defer func() { observability.ObserveLedgerOp("increment_balance", time.Since(start), err) }()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	balance, err = g.incrementOnce(ctx, walletID, delta, key, hash)
	if isUniqueViolation(err) {
		var res TransferResult
		res, err = g.replayTransfer(ctx, key, hash)
		balance = res.NewSenderBalance
	}
	return balance, err
}

func (g *PostgresGateway) incrementOnce(ctx context.Context, walletID uuid.UUID, delta int64, key, hash string) (int64, error) {
	tx, err := g.db.Begin(ctx)
	if err != nil {
		return 0, classify(err)
	}
	defer tx.Rollback(ctx)

	if res, err := lookupTransfer(ctx, tx, key, hash); err == nil {
		return res.NewSenderBalance, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	var balance int64
	var status string
	err = tx.QueryRow(ctx, `SELECT balance, status FROM wallets WHERE id = $1 FOR UPDATE`, walletID).Scan(&balance, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrWalletNotFound
	}
	if err != nil {
		return 0, classify(err)
	}
	if status == domain.WalletStatusBlocked {
		return 0, domain.ErrWalletBlocked
	}
	if balance+delta < 0 {
		return 0, domain.ErrInsufficientFunds
	}

	var newBalance int64
	err = tx.QueryRow(ctx, `UPDATE wallets SET balance = balance + $1 WHERE id = $2 RETURNING balance`,
		delta, walletID).Scan(&newBalance)
	if err != nil {
		return 0, classify(err)
	}

	_, err = tx.Exec(ctx, `INSERT INTO ledger_operations (key, payload_hash, sender_balance, receiver_balance, created_at) VALUES ($1, $2, $3, 0, NOW())`,
		key, hash, newBalance)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, err
		}
		return 0, classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, classify(err)
	}
	return newBalance, nil
}

func (g *PostgresGateway) GetWallet(ctx context.Context, walletID uuid.UUID) (_ *models.Wallet, err error) {
	start := time.Now()
	defer func() { observability.ObserveLedgerOp("get_wallet", time.Since(start), err) }()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	w := &models.Wallet{}
	err = g.db.QueryRow(ctx, `SELECT id, user_id, currency, balance, status, created_at FROM wallets WHERE id = $1`, walletID).
		Scan(&w.ID, &w.UserID, &w.Currency, &w.Balance, &w.Status, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrWalletNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return w, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
