package claims

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/boostpool/boostpool/internal/faults"
	"github.com/boostpool/boostpool/internal/identity"
)

// reviewTarget is the snapshot a reviewer decision is checked against.
type reviewTarget struct {
	teamJobID string
	teamID    string
	workerID  string
	status    string
}

func (s *Service) loadReviewTarget(ctx context.Context, claimID string) (*reviewTarget, error) {
	t := &reviewTarget{}
	err := s.conn.QueryRow(ctx,
		`SELECT jc.team_job_id, tj.team_id, jc.worker_id, jc.status
		 FROM job_claims jc
		 JOIN team_jobs tj ON tj.id = jc.team_job_id
		 WHERE jc.id = $1`,
		claimID,
	).Scan(&t.teamJobID, &t.teamID, &t.workerID, &t.status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, faults.New(faults.KindNotFound, "claim not found")
		}
		return nil, faults.Internal(err, "failed to fetch claim")
	}
	return t, nil
}

func (s *Service) guardReviewer(ctx context.Context, t *reviewTarget, actor identity.Actor) error {
	if t.workerID == actor.ID {
		return faults.New(faults.KindPermission, "workers cannot review their own claims")
	}
	operator, err := s.dir.IsOperator(ctx, t.teamID, actor)
	if err != nil {
		return err
	}
	if !operator {
		return faults.New(faults.KindPermission, "only the team operator can review claims")
	}
	return nil
}

// Approve accepts a submitted claim. In one transaction it marks the claim
// approved, advances the team job's completed quantity (completing the job
// when the pool is exhausted) and folds the earning into the worker's open
// payout. Re-approving reports AlreadyReviewedError and credits nothing.
func (s *Service) Approve(ctx context.Context, actor identity.Actor, claimID string) error {
	target, err := s.loadReviewTarget(ctx, claimID)
	if err != nil {
		return err
	}
	if err := s.guardReviewer(ctx, target, actor); err != nil {
		return err
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return faults.Internal(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	var (
		status    string
		quantity  int64
		earn      decimal.Decimal
		teamJobID string
		workerID  string
	)
	// Lock claim and team job together; the guard below is what makes
	// approval idempotent under racing reviewers.
	err = tx.QueryRow(ctx,
		`SELECT jc.status, jc.quantity, jc.earn_amount, jc.team_job_id, jc.worker_id
		 FROM job_claims jc
		 JOIN team_jobs tj ON tj.id = jc.team_job_id
		 WHERE jc.id = $1
		 FOR UPDATE`,
		claimID,
	).Scan(&status, &quantity, &earn, &teamJobID, &workerID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return faults.New(faults.KindNotFound, "claim not found")
		}
		return faults.Internal(err, "failed to lock claim")
	}
	if status != ClaimSubmitted {
		return faults.Newf(faults.KindAlreadyReviewed, "claim is already %s", status)
	}

	_, err = tx.Exec(ctx,
		`UPDATE job_claims SET status = 'approved', reviewed_at = NOW(), reviewed_by = $1
		 WHERE id = $2`,
		actor.ID, claimID)
	if err != nil {
		return faults.Internal(err, "failed to approve claim")
	}

	_, err = tx.Exec(ctx,
		`UPDATE team_jobs
		 SET completed_quantity = completed_quantity + $1,
		     status = CASE WHEN completed_quantity + $1 >= quantity THEN 'completed' ELSE status END,
		     updated_at = NOW()
		 WHERE id = $2`,
		quantity, teamJobID)
	if err != nil {
		return faults.Internal(err, "failed to advance team job")
	}

	// Fold the earning into the worker's open payout, creating one if needed.
	tag, err := tx.Exec(ctx,
		`UPDATE team_payouts SET amount = amount + $1, job_count = job_count + 1
		 WHERE team_id = $2 AND worker_id = $3 AND status = 'pending'`,
		earn, target.teamID, workerID)
	if err != nil {
		return faults.Internal(err, "failed to update payout")
	}
	if tag.RowsAffected() == 0 {
		_, err = tx.Exec(ctx,
			`INSERT INTO team_payouts (team_id, worker_id, amount, job_count)
			 VALUES ($1, $2, $3, 1)`,
			target.teamID, workerID, earn)
		if err != nil {
			return faults.Internal(err, "failed to create payout")
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return faults.Internal(err, "failed to commit approval")
	}

	s.log.Info("claim approved",
		zap.String("claim_id", claimID),
		zap.String("team_job_id", teamJobID),
		zap.String("worker_id", workerID),
		zap.Int64("quantity", quantity),
		zap.String("earn_amount", earn.String()))

	s.syncOrderAfterApproval(ctx, teamJobID)
	return nil
}

// syncOrderAfterApproval rolls order progress up outside the review
// transaction. Best-effort; standalone jobs have no backing order.
func (s *Service) syncOrderAfterApproval(ctx context.Context, teamJobID string) {
	if s.progress == nil {
		return
	}
	var orderID *string
	err := s.conn.QueryRow(ctx,
		`SELECT j.order_id FROM team_jobs tj JOIN jobs j ON j.id = tj.job_id WHERE tj.id = $1`,
		teamJobID).Scan(&orderID)
	if err != nil || orderID == nil {
		return
	}
	s.progress(ctx, *orderID)
}

// Reject declines a submitted claim with a reason surfaced to the worker
// verbatim. The claimed quantity drops out of the conservation sum, so the
// pool grows back immediately. Rejection is terminal; fixing the work means
// filing a new claim.
func (s *Service) Reject(ctx context.Context, actor identity.Actor, claimID, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return faults.New(faults.KindValidation, "a rejection reason is required")
	}

	target, err := s.loadReviewTarget(ctx, claimID)
	if err != nil {
		return err
	}
	if err := s.guardReviewer(ctx, target, actor); err != nil {
		return err
	}

	tag, err := s.conn.Exec(ctx,
		`UPDATE job_claims SET status = 'rejected', reject_reason = $1,
		        reviewed_at = NOW(), reviewed_by = $2
		 WHERE id = $3 AND status = 'submitted'`,
		reason, actor.ID, claimID)
	if err != nil {
		return faults.Internal(err, "failed to reject claim")
	}
	if tag.RowsAffected() == 0 {
		return faults.New(faults.KindAlreadyReviewed, "claim has already been reviewed")
	}

	s.log.Info("claim rejected",
		zap.String("claim_id", claimID),
		zap.String("reviewer", actor.ID),
		zap.String("reason", reason))
	return nil
}

// BulkApprove approves every submitted claim for a team. Outcomes are
// per-claim: one claim lost to a racing reviewer never aborts the rest.
func (s *Service) BulkApprove(ctx context.Context, actor identity.Actor, teamID string) ([]ReviewOutcome, error) {
	operator, err := s.dir.IsOperator(ctx, teamID, actor)
	if err != nil {
		return nil, err
	}
	if !operator {
		return nil, faults.New(faults.KindPermission, "only the team operator can review claims")
	}

	rows, err := s.conn.Query(ctx,
		`SELECT jc.id FROM job_claims jc
		 JOIN team_jobs tj ON tj.id = jc.team_job_id
		 WHERE tj.team_id = $1 AND jc.status = 'submitted'
		 ORDER BY jc.submitted_at`,
		teamID)
	if err != nil {
		return nil, faults.Internal(err, "failed to list submitted claims")
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, faults.Internal(err, "failed to read claim id")
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, faults.Internal(err, "failed to read claim ids")
	}

	outcomes := make([]ReviewOutcome, 0, len(ids))
	for _, id := range ids {
		if err := s.Approve(ctx, actor, id); err != nil {
			outcomes = append(outcomes, ReviewOutcome{ClaimID: id, Error: faults.MessageOf(err)})
			continue
		}
		outcomes = append(outcomes, ReviewOutcome{ClaimID: id, OK: true})
	}
	return outcomes, nil
}
