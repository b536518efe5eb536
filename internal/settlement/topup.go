package settlement

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/boostpool/boostpool/internal/faults"
	"github.com/boostpool/boostpool/internal/identity"
)

// InitTopup creates a pending funding record. The payment gateway lives
// outside this service; an admin confirms once the money has landed.
func (s *Service) InitTopup(ctx context.Context, actor identity.Actor, amount decimal.Decimal) (*Topup, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, faults.New(faults.KindValidation, "amount must be greater than zero")
	}

	t := &Topup{UserID: actor.ID, Amount: amount, Status: "pending"}
	err := s.conn.QueryRow(ctx,
		`INSERT INTO topups (user_id, amount) VALUES ($1, $2) RETURNING id, created_at`,
		actor.ID, amount,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, faults.Internal(err, "failed to create topup")
	}
	return t, nil
}

// ConfirmTopup marks a pending topup confirmed and appends exactly one topup
// ledger entry. Confirming twice reports AlreadyProcessedError.
func (s *Service) ConfirmTopup(ctx context.Context, actor identity.Actor, topupID string) (*Topup, error) {
	if !actor.IsAdmin() {
		return nil, faults.New(faults.KindPermission, "only admins can confirm topups")
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, faults.Internal(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	t := &Topup{ID: topupID}
	err = tx.QueryRow(ctx,
		`SELECT user_id, amount, status, created_at FROM topups WHERE id = $1 FOR UPDATE`,
		topupID,
	).Scan(&t.UserID, &t.Amount, &t.Status, &t.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, faults.New(faults.KindNotFound, "topup not found")
		}
		return nil, faults.Internal(err, "failed to fetch topup")
	}
	if t.Status != "pending" {
		return nil, faults.New(faults.KindAlreadyProcessed, "topup has already been confirmed")
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO transactions (user_id, type, amount, reference, description)
		 VALUES ($1, 'topup', $2, $3, 'wallet topup')`,
		t.UserID, t.Amount, topupID)
	if err != nil {
		return nil, faults.Internal(err, "failed to record topup transaction")
	}

	err = tx.QueryRow(ctx,
		`UPDATE topups SET status = 'confirmed', confirmed_at = NOW() WHERE id = $1
		 RETURNING confirmed_at`,
		topupID,
	).Scan(&t.ConfirmedAt)
	if err != nil {
		return nil, faults.Internal(err, "failed to confirm topup")
	}
	t.Status = "confirmed"

	if err = tx.Commit(ctx); err != nil {
		return nil, faults.Internal(err, "failed to commit topup")
	}

	s.log.Info("topup confirmed",
		zap.String("topup_id", topupID),
		zap.String("user_id", t.UserID),
		zap.String("amount", t.Amount.String()))
	return t, nil
}

// ListPendingTopups returns unconfirmed topups for admin review.
func (s *Service) ListPendingTopups(ctx context.Context, actor identity.Actor) ([]Topup, error) {
	if !actor.IsAdmin() {
		return nil, faults.New(faults.KindPermission, "only admins can list pending topups")
	}

	rows, err := s.conn.Query(ctx,
		`SELECT id, user_id, amount, status, created_at FROM topups
		 WHERE status = 'pending' ORDER BY created_at`)
	if err != nil {
		return nil, faults.Internal(err, "failed to list topups")
	}
	defer rows.Close()

	var out []Topup
	for rows.Next() {
		var t Topup
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Status, &t.CreatedAt); err != nil {
			return nil, faults.Internal(err, "failed to read topup row")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, faults.Internal(err, "failed to read topup rows")
	}
	return out, nil
}
