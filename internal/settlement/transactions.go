package settlement

import (
	"context"

	"github.com/boostpool/boostpool/internal/faults"
	"github.com/boostpool/boostpool/internal/identity"
)

// ListTransactions returns an actor's ledger entries, newest first. Admins
// may read any actor's ledger.
func (s *Service) ListTransactions(ctx context.Context, actor identity.Actor, userID string) ([]Transaction, error) {
	if !actor.IsAdmin() && actor.ID != userID {
		return nil, faults.New(faults.KindPermission, "cannot read another actor's transactions")
	}

	rows, err := s.conn.Query(ctx,
		`SELECT id, user_id, type, amount, reference, description, created_at
		 FROM transactions WHERE user_id = $1 ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, faults.Internal(err, "failed to list transactions")
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Reference, &t.Description, &t.CreatedAt); err != nil {
			return nil, faults.Internal(err, "failed to read transaction row")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, faults.Internal(err, "failed to read transaction rows")
	}
	return out, nil
}

// ListAllTransactions returns the whole ledger for audit, newest first.
func (s *Service) ListAllTransactions(ctx context.Context, actor identity.Actor, limit int) ([]Transaction, error) {
	if !actor.IsAdmin() {
		return nil, faults.New(faults.KindPermission, "only admins can read the full ledger")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.conn.Query(ctx,
		`SELECT id, user_id, type, amount, reference, description, created_at
		 FROM transactions ORDER BY created_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, faults.Internal(err, "failed to list transactions")
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Reference, &t.Description, &t.CreatedAt); err != nil {
			return nil, faults.Internal(err, "failed to read transaction row")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, faults.Internal(err, "failed to read transaction rows")
	}
	return out, nil
}
