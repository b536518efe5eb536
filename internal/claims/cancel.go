package claims

import (
	"context"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/boostpool/boostpool/internal/faults"
	"github.com/boostpool/boostpool/internal/identity"
)

// CancelTeamJob withdraws a team job from the pool. Illegal once any claim on
// it is approved. Submitted claims are force-rejected with a system reason so
// their reservations are released.
func (s *Service) CancelTeamJob(ctx context.Context, actor identity.Actor, teamJobID string) error {
	var teamID string
	err := s.conn.QueryRow(ctx, `SELECT team_id FROM team_jobs WHERE id = $1`, teamJobID).Scan(&teamID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return faults.New(faults.KindNotFound, "team job not found")
		}
		return faults.Internal(err, "failed to fetch team job")
	}
	operator, err := s.dir.IsOperator(ctx, teamID, actor)
	if err != nil {
		return err
	}
	if !operator {
		return faults.New(faults.KindPermission, "only the team operator can cancel a team job")
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return faults.Internal(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx,
		`SELECT status FROM team_jobs WHERE id = $1 FOR UPDATE`, teamJobID).Scan(&status)
	if err != nil {
		return faults.Internal(err, "failed to lock team job")
	}
	if status == "cancelled" {
		return faults.New(faults.KindAlreadyProcessed, "team job is already cancelled")
	}
	if status == "completed" {
		return faults.New(faults.KindValidation, "completed team jobs cannot be cancelled")
	}

	var hasApproved bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM job_claims WHERE team_job_id = $1 AND status = 'approved')`,
		teamJobID).Scan(&hasApproved)
	if err != nil {
		return faults.Internal(err, "failed to check approved claims")
	}
	if hasApproved {
		return faults.New(faults.KindValidation, "team job has approved claims and cannot be cancelled")
	}

	_, err = tx.Exec(ctx,
		`UPDATE job_claims SET status = 'rejected',
		        reject_reason = 'team job cancelled by operator', reviewed_at = NOW(), reviewed_by = $1
		 WHERE team_job_id = $2 AND status = 'submitted'`,
		actor.ID, teamJobID)
	if err != nil {
		return faults.Internal(err, "failed to reject pending claims")
	}

	_, err = tx.Exec(ctx,
		`UPDATE team_jobs SET status = 'cancelled', updated_at = NOW() WHERE id = $1`,
		teamJobID)
	if err != nil {
		return faults.Internal(err, "failed to cancel team job")
	}

	if err = tx.Commit(ctx); err != nil {
		return faults.Internal(err, "failed to commit cancellation")
	}

	s.log.Info("team job cancelled",
		zap.String("team_job_id", teamJobID),
		zap.String("actor", actor.ID))
	return nil
}
