package claims

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/boostpool/boostpool/internal/db"
	"github.com/boostpool/boostpool/internal/faults"
	"github.com/boostpool/boostpool/internal/identity"
)

// Service owns the claim lifecycle: reservation, evidence submission, review
// and team-job cancellation.
type Service struct {
	conn     db.DB
	dir      *identity.Directory
	log      *zap.Logger
	retries  int
	progress func(ctx context.Context, orderID string)
}

func NewService(conn db.DB, dir *identity.Directory, log *zap.Logger, retries int) *Service {
	if retries < 1 {
		retries = 1
	}
	return &Service{conn: conn, dir: dir, log: log, retries: retries}
}

// OnApproval registers a best-effort callback invoked with the order id after
// an approval commits. Used to roll order progress up without coupling the
// packages.
func (s *Service) OnApproval(fn func(ctx context.Context, orderID string)) {
	s.progress = fn
}

// Claim reserves quantity from a team job for a worker. The remaining-pool
// check and the claim insert run under a row lock on the team job, so two
// racing claims can never reserve more than the pool holds.
func (s *Service) Claim(ctx context.Context, actor identity.Actor, teamJobID string, quantity int64) (*JobClaim, error) {
	if quantity <= 0 {
		return nil, faults.New(faults.KindValidation, "quantity must be positive")
	}

	var claim *JobClaim
	var err error
	for attempt := 0; attempt < s.retries; attempt++ {
		claim, err = s.claimOnce(ctx, actor, teamJobID, quantity)
		if err == nil || !retryable(err) {
			return claim, err
		}
		s.log.Warn("claim transaction aborted, retrying",
			zap.String("team_job_id", teamJobID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, faults.New(faults.KindInsufficientQuantity, "claim could not be reserved under contention")
}

func (s *Service) claimOnce(ctx context.Context, actor identity.Actor, teamJobID string, quantity int64) (*JobClaim, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, faults.Internal(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	var (
		teamID       string
		total        int64
		status       string
		pricePerUnit decimal.Decimal
	)
	err = tx.QueryRow(ctx,
		`SELECT team_id, quantity, status, price_per_unit
		 FROM team_jobs WHERE id = $1 FOR UPDATE`,
		teamJobID,
	).Scan(&teamID, &total, &status, &pricePerUnit)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, faults.New(faults.KindNotFound, "team job not found")
		}
		return nil, faults.Internal(err, "failed to fetch team job")
	}
	if status != "pending" && status != "in_progress" {
		return nil, faults.Newf(faults.KindValidation, "team job is %s and cannot be claimed", status)
	}

	member, err := s.dir.IsMember(ctx, teamID, actor.ID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, faults.New(faults.KindPermission, "worker is not a member of this team")
	}

	// Re-check the pool under the lock; rejected claims do not count.
	var reserved int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM job_claims
		 WHERE team_job_id = $1 AND status <> 'rejected'`,
		teamJobID).Scan(&reserved)
	if err != nil {
		return nil, faults.Internal(err, "failed to sum reserved quantity")
	}
	if remaining := total - reserved; quantity > remaining {
		return nil, faults.Newf(faults.KindInsufficientQuantity,
			"requested %d but only %d remains claimable", quantity, remaining)
	}

	claim := &JobClaim{
		TeamJobID:  teamJobID,
		WorkerID:   actor.ID,
		Quantity:   quantity,
		EarnAmount: pricePerUnit.Mul(decimal.NewFromInt(quantity)),
		Status:     ClaimSubmitted,
		ProofURLs:  []string{},
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO job_claims (team_job_id, worker_id, quantity, earn_amount)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, submitted_at`,
		teamJobID, actor.ID, quantity, claim.EarnAmount,
	).Scan(&claim.ID, &claim.SubmittedAt)
	if err != nil {
		return nil, faults.Internal(err, "failed to create claim")
	}

	if status == "pending" {
		_, err = tx.Exec(ctx,
			`UPDATE team_jobs SET status = 'in_progress', updated_at = NOW() WHERE id = $1`,
			teamJobID)
		if err != nil {
			return nil, faults.Internal(err, "failed to mark team job in progress")
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, faults.Internal(err, "failed to commit claim")
	}

	s.log.Info("claim reserved",
		zap.String("claim_id", claim.ID),
		zap.String("team_job_id", teamJobID),
		zap.String("worker_id", actor.ID),
		zap.Int64("quantity", quantity))
	return claim, nil
}

// Submit attaches completion evidence to the worker's own submitted claim.
func (s *Service) Submit(ctx context.Context, actor identity.Actor, claimID string, proofURLs []string, note string) (*JobClaim, error) {
	if len(proofURLs) == 0 {
		return nil, faults.New(faults.KindValidation, "at least one proof url is required")
	}

	claim := &JobClaim{ID: claimID, ProofURLs: proofURLs, Note: note, Status: ClaimSubmitted}
	err := s.conn.QueryRow(ctx,
		`UPDATE job_claims SET proof_urls = $1, note = $2
		 WHERE id = $3 AND worker_id = $4 AND status = 'submitted'
		 RETURNING team_job_id, worker_id, quantity, earn_amount, submitted_at`,
		proofURLs, note, claimID, actor.ID,
	).Scan(&claim.TeamJobID, &claim.WorkerID, &claim.Quantity, &claim.EarnAmount, &claim.SubmittedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Either not theirs, not found, or already reviewed; disambiguate.
			var status string
			lookupErr := s.conn.QueryRow(ctx,
				`SELECT status FROM job_claims WHERE id = $1 AND worker_id = $2`,
				claimID, actor.ID).Scan(&status)
			if lookupErr == nil {
				return nil, faults.Newf(faults.KindAlreadyReviewed, "claim is already %s", status)
			}
			return nil, faults.New(faults.KindNotFound, "claim not found")
		}
		return nil, faults.Internal(err, "failed to attach proof")
	}
	return claim, nil
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// serialization_failure, deadlock_detected
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
