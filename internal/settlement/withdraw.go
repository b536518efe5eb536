package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/boostpool/boostpool/internal/faults"
	"github.com/boostpool/boostpool/internal/identity"
)

// Withdraw moves money out of an actor's balance as an expense entry. The
// balance check, the KYC daily-ceiling check and the ledger append run under
// a per-actor advisory lock so concurrent withdrawals serialize.
func (s *Service) Withdraw(ctx context.Context, actor identity.Actor, amount decimal.Decimal) (*Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, faults.New(faults.KindValidation, "amount must be greater than zero")
	}

	ceiling, capped := identity.DailyWithdrawalCeiling(actor.KYC)

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, faults.Internal(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	// There is no wallet row to lock; serialize on the actor id instead.
	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, actor.ID); err != nil {
		return nil, faults.Internal(err, "failed to acquire ledger lock")
	}

	var available decimal.Decimal
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = $1`,
		actor.ID).Scan(&available)
	if err != nil {
		return nil, faults.Internal(err, "failed to fold transactions")
	}
	if available.LessThan(amount) {
		return nil, faults.New(faults.KindValidation, "insufficient balance")
	}

	if capped {
		var withdrawnToday decimal.Decimal
		err = tx.QueryRow(ctx,
			`SELECT COALESCE(-SUM(amount), 0) FROM transactions
			 WHERE user_id = $1 AND type = 'expense' AND description = 'withdrawal'
			   AND created_at >= date_trunc('day', NOW())`,
			actor.ID).Scan(&withdrawnToday)
		if err != nil {
			return nil, faults.Internal(err, "failed to sum today's withdrawals")
		}
		if withdrawnToday.Add(amount).GreaterThan(ceiling) {
			return nil, faults.Newf(faults.KindKYCLimitExceeded,
				"withdrawal would exceed the %s daily ceiling of %s",
				actor.KYC, ceiling.String())
		}
	}

	ref := uuid.New().String()
	entry := &Transaction{UserID: actor.ID, Type: TxExpense, Amount: amount.Neg(), Reference: &ref, Description: "withdrawal"}
	err = tx.QueryRow(ctx,
		`INSERT INTO transactions (user_id, type, amount, reference, description)
		 VALUES ($1, 'expense', $2, $3, 'withdrawal')
		 RETURNING id, created_at`,
		actor.ID, amount.Neg(), ref,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return nil, faults.Internal(err, "failed to record withdrawal")
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, faults.Internal(err, "failed to commit withdrawal")
	}

	s.log.Info("withdrawal recorded",
		zap.String("user_id", actor.ID),
		zap.String("amount", amount.String()),
		zap.String("kyc_level", string(actor.KYC)))
	return entry, nil
}
