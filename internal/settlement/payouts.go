package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/boostpool/boostpool/internal/db"
	"github.com/boostpool/boostpool/internal/faults"
	"github.com/boostpool/boostpool/internal/identity"
)

// Service turns pending settlement obligations into ledger entries and
// answers balance queries.
type Service struct {
	conn db.DB
	log  *zap.Logger
}

func NewService(conn db.DB, log *zap.Logger) *Service {
	return &Service{conn: conn, log: log}
}

// ProcessPayout settles one pending payout: one expense entry against the
// team's seller, one income entry for the worker, both under the same
// transaction reference. Processing a completed payout reports
// AlreadyProcessedError and appends nothing.
func (s *Service) ProcessPayout(ctx context.Context, actor identity.Actor, payoutID string) (*TeamPayout, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, faults.Internal(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	p := &TeamPayout{ID: payoutID}
	var sellerID string
	err = tx.QueryRow(ctx,
		`SELECT p.team_id, p.worker_id, p.amount, p.job_count, p.status, p.payment_method,
		        p.created_at, t.seller_id
		 FROM team_payouts p
		 JOIN teams t ON t.id = p.team_id
		 WHERE p.id = $1
		 FOR UPDATE OF p`,
		payoutID,
	).Scan(&p.TeamID, &p.WorkerID, &p.Amount, &p.JobCount, &p.Status, &p.PaymentMethod,
		&p.CreatedAt, &sellerID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, faults.New(faults.KindNotFound, "payout not found")
		}
		return nil, faults.Internal(err, "failed to fetch payout")
	}
	if !actor.IsAdmin() && sellerID != actor.ID {
		return nil, faults.New(faults.KindPermission, "payout belongs to another seller's team")
	}
	if p.Status != PayoutPending {
		return nil, faults.New(faults.KindAlreadyProcessed, "payout has already been processed")
	}
	if p.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, faults.New(faults.KindValidation, "payout amount must be positive")
	}

	ref := uuid.New().String()

	// Seller debit first, worker credit second; both rows share the ref so
	// audits can pair them.
	_, err = tx.Exec(ctx,
		`INSERT INTO transactions (user_id, type, amount, reference, description)
		 VALUES ($1, 'expense', $2, $3, 'team payout')`,
		sellerID, p.Amount.Neg(), ref)
	if err != nil {
		return nil, faults.Internal(err, "failed to record seller expense")
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO transactions (user_id, type, amount, reference, description)
		 VALUES ($1, 'income', $2, $3, 'team payout')`,
		p.WorkerID, p.Amount, ref)
	if err != nil {
		return nil, faults.Internal(err, "failed to record worker income")
	}

	err = tx.QueryRow(ctx,
		`UPDATE team_payouts SET status = 'completed', transaction_ref = $1, completed_at = NOW()
		 WHERE id = $2
		 RETURNING completed_at`,
		ref, payoutID,
	).Scan(&p.CompletedAt)
	if err != nil {
		return nil, faults.Internal(err, "failed to complete payout")
	}
	p.Status = PayoutCompleted
	p.TransactionRef = &ref

	if err = tx.Commit(ctx); err != nil {
		return nil, faults.Internal(err, "failed to commit payout")
	}

	s.log.Info("payout processed",
		zap.String("payout_id", payoutID),
		zap.String("worker_id", p.WorkerID),
		zap.String("amount", p.Amount.String()),
		zap.String("transaction_ref", ref))
	return p, nil
}

// Scope selects which pending payouts a batch run covers.
type Scope struct {
	TeamID   string
	SellerID string
}

// ProcessAllPending settles every pending payout in the scope. Each payout is
// its own transaction; one failure never halts the batch.
func (s *Service) ProcessAllPending(ctx context.Context, actor identity.Actor, scope Scope) (int, []PayoutOutcome, error) {
	var (
		rows pgx.Rows
		err  error
	)
	switch {
	case scope.TeamID != "":
		rows, err = s.conn.Query(ctx,
			`SELECT id FROM team_payouts WHERE team_id = $1 AND status = 'pending' ORDER BY created_at`,
			scope.TeamID)
	case scope.SellerID != "":
		rows, err = s.conn.Query(ctx,
			`SELECT p.id FROM team_payouts p
			 JOIN teams t ON t.id = p.team_id
			 WHERE t.seller_id = $1 AND p.status = 'pending'
			 ORDER BY p.created_at`,
			scope.SellerID)
	default:
		return 0, nil, faults.New(faults.KindValidation, "a team or seller scope is required")
	}
	if err != nil {
		return 0, nil, faults.Internal(err, "failed to list pending payouts")
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, nil, faults.Internal(err, "failed to read payout id")
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, nil, faults.Internal(err, "failed to read payout ids")
	}

	processed := 0
	outcomes := make([]PayoutOutcome, 0, len(ids))
	for _, id := range ids {
		if _, err := s.ProcessPayout(ctx, actor, id); err != nil {
			outcomes = append(outcomes, PayoutOutcome{PayoutID: id, Error: faults.MessageOf(err)})
			continue
		}
		processed++
		outcomes = append(outcomes, PayoutOutcome{PayoutID: id, OK: true})
	}
	return processed, outcomes, nil
}
