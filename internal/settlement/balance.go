package settlement

import (
	"context"

	"github.com/boostpool/boostpool/internal/faults"
	"github.com/boostpool/boostpool/internal/identity"
)

// Balance derives one actor's money position. Available is the fold of the
// transaction log; pending is the sum of their open payouts. Neither number
// lives in a stored column.
func (s *Service) Balance(ctx context.Context, actor identity.Actor, userID string) (*BalanceView, error) {
	if !actor.IsAdmin() && actor.ID != userID {
		return nil, faults.New(faults.KindPermission, "cannot read another actor's balance")
	}

	view := &BalanceView{UserID: userID}
	err := s.conn.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = $1`,
		userID).Scan(&view.Available)
	if err != nil {
		return nil, faults.Internal(err, "failed to fold transactions")
	}

	err = s.conn.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM team_payouts WHERE worker_id = $1 AND status = 'pending'`,
		userID).Scan(&view.Pending)
	if err != nil {
		return nil, faults.Internal(err, "failed to sum pending payouts")
	}
	return view, nil
}

// WorkerBalances derives balances for every worker in a seller's teams in one
// pass. Admins see all workers.
func (s *Service) WorkerBalances(ctx context.Context, actor identity.Actor) ([]BalanceView, error) {
	if actor.Role != identity.RoleSeller && !actor.IsAdmin() {
		return nil, faults.New(faults.KindPermission, "only sellers can list worker balances")
	}

	query := `
		SELECT u.id,
		       COALESCE((SELECT SUM(amount) FROM transactions WHERE user_id = u.id), 0),
		       COALESCE((SELECT SUM(amount) FROM team_payouts WHERE worker_id = u.id AND status = 'pending'), 0)
		FROM users u
		WHERE u.role = 'worker'`
	args := []any{}
	if !actor.IsAdmin() {
		query += ` AND u.id IN (
			SELECT tm.worker_id FROM team_members tm
			JOIN teams t ON t.id = tm.team_id
			WHERE t.seller_id = $1)`
		args = append(args, actor.ID)
	}
	query += ` ORDER BY u.id`

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, faults.Internal(err, "failed to list worker balances")
	}
	defer rows.Close()

	var views []BalanceView
	for rows.Next() {
		var v BalanceView
		if err := rows.Scan(&v.UserID, &v.Available, &v.Pending); err != nil {
			return nil, faults.Internal(err, "failed to read balance row")
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, faults.Internal(err, "failed to read balance rows")
	}
	return views, nil
}
