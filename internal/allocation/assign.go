package allocation

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/boostpool/boostpool/internal/faults"
	"github.com/boostpool/boostpool/internal/identity"
)

// AssignItemToTeam offers up to the item's unassigned remainder to one team.
// An existing unclaimed pending offer for the same (job, team) pair is grown
// instead of duplicated.
func (s *Service) AssignItemToTeam(ctx context.Context, actor identity.Actor, orderItemID, teamID string, quantity int64) (*TeamJob, error) {
	if quantity <= 0 {
		return nil, faults.New(faults.KindValidation, "quantity must be positive")
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, faults.Internal(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	var (
		jobID, targetURL, sellerID string
		jobQuantity                int64
		unitPrice                  decimal.Decimal
	)
	// Lock the job row so concurrent assignments serialize on the same item.
	err = tx.QueryRow(ctx,
		`SELECT j.id, j.quantity, oi.target_url, oi.unit_price, o.seller_id
		 FROM jobs j
		 JOIN order_items oi ON oi.id = j.order_item_id
		 JOIN orders o ON o.id = j.order_id
		 WHERE j.order_item_id = $1
		 FOR UPDATE OF j`,
		orderItemID,
	).Scan(&jobID, &jobQuantity, &targetURL, &unitPrice, &sellerID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, faults.New(faults.KindNotFound, "order item not found")
		}
		return nil, faults.Internal(err, "failed to fetch order item")
	}
	if !actor.IsAdmin() && sellerID != actor.ID {
		return nil, faults.New(faults.KindPermission, "order belongs to another seller")
	}
	if err := s.ownsTeam(ctx, tx, teamID, actor); err != nil {
		return nil, err
	}

	var assigned int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM team_jobs WHERE job_id = $1 AND status <> 'cancelled'`,
		jobID).Scan(&assigned)
	if err != nil {
		return nil, faults.Internal(err, "failed to sum assigned quantity")
	}
	if remaining := jobQuantity - assigned; quantity > remaining {
		return nil, faults.Newf(faults.KindOverAllocation,
			"requested %d but only %d of the item remains unassigned", quantity, remaining)
	}

	tj := &TeamJob{JobID: &jobID, TeamID: teamID, TargetURL: targetURL, PricePerUnit: unitPrice}

	// Grow an untouched pending offer for this team if one exists.
	err = tx.QueryRow(ctx,
		`SELECT id FROM team_jobs
		 WHERE job_id = $1 AND team_id = $2 AND status = 'pending'
		   AND NOT EXISTS (SELECT 1 FROM job_claims WHERE team_job_id = team_jobs.id)`,
		jobID, teamID).Scan(&tj.ID)
	switch err {
	case nil:
		err = tx.QueryRow(ctx,
			`UPDATE team_jobs SET quantity = quantity + $1, updated_at = NOW()
			 WHERE id = $2
			 RETURNING quantity, completed_quantity, status, created_at, updated_at`,
			quantity, tj.ID,
		).Scan(&tj.Quantity, &tj.CompletedQuantity, &tj.Status, &tj.CreatedAt, &tj.UpdatedAt)
		if err != nil {
			return nil, faults.Internal(err, "failed to grow team job")
		}
	case pgx.ErrNoRows:
		err = tx.QueryRow(ctx,
			`INSERT INTO team_jobs (job_id, team_id, target_url, quantity, price_per_unit)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, quantity, completed_quantity, status, created_at, updated_at`,
			jobID, teamID, targetURL, quantity, unitPrice,
		).Scan(&tj.ID, &tj.Quantity, &tj.CompletedQuantity, &tj.Status, &tj.CreatedAt, &tj.UpdatedAt)
		if err != nil {
			return nil, faults.Internal(err, "failed to create team job")
		}
	default:
		return nil, faults.Internal(err, "failed to look up existing team job")
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, faults.Internal(err, "failed to commit assignment")
	}

	s.log.Info("item assigned to team",
		zap.String("order_item_id", orderItemID),
		zap.String("team_id", teamID),
		zap.Int64("quantity", quantity))
	return tj, nil
}

// SplitJobToTeams distributes a whole job across teams in one atomic step.
// The allocations must cover the job quantity exactly; the job must not have
// been assigned before.
func (s *Service) SplitJobToTeams(ctx context.Context, actor identity.Actor, jobID string, allocs []Allocation) ([]TeamJob, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, faults.Internal(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	var (
		jobQuantity         int64
		targetURL, sellerID string
		unitPrice           decimal.Decimal
	)
	err = tx.QueryRow(ctx,
		`SELECT j.quantity, oi.target_url, oi.unit_price, o.seller_id
		 FROM jobs j
		 JOIN order_items oi ON oi.id = j.order_item_id
		 JOIN orders o ON o.id = j.order_id
		 WHERE j.id = $1
		 FOR UPDATE OF j`,
		jobID,
	).Scan(&jobQuantity, &targetURL, &unitPrice, &sellerID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, faults.New(faults.KindNotFound, "job not found")
		}
		return nil, faults.Internal(err, "failed to fetch job")
	}
	if !actor.IsAdmin() && sellerID != actor.ID {
		return nil, faults.New(faults.KindPermission, "job belongs to another seller")
	}

	if err := ValidateSplit(jobQuantity, allocs); err != nil {
		return nil, err
	}

	var alreadyAssigned bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM team_jobs WHERE job_id = $1 AND status <> 'cancelled')`,
		jobID).Scan(&alreadyAssigned)
	if err != nil {
		return nil, faults.Internal(err, "failed to check existing assignments")
	}
	if alreadyAssigned {
		return nil, faults.New(faults.KindAllocationMismatch, "job is already assigned to teams")
	}

	out := make([]TeamJob, 0, len(allocs))
	for _, a := range allocs {
		if err := s.ownsTeam(ctx, tx, a.TeamID, actor); err != nil {
			return nil, err
		}
		tj := TeamJob{JobID: &jobID, TeamID: a.TeamID, TargetURL: targetURL, PricePerUnit: unitPrice}
		err = tx.QueryRow(ctx,
			`INSERT INTO team_jobs (job_id, team_id, target_url, quantity, price_per_unit)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, quantity, completed_quantity, status, created_at, updated_at`,
			jobID, a.TeamID, targetURL, a.Quantity, unitPrice,
		).Scan(&tj.ID, &tj.Quantity, &tj.CompletedQuantity, &tj.Status, &tj.CreatedAt, &tj.UpdatedAt)
		if err != nil {
			return nil, faults.Internal(err, "failed to create team job")
		}
		out = append(out, tj)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, faults.Internal(err, "failed to commit split")
	}

	s.log.Info("job split across teams",
		zap.String("job_id", jobID),
		zap.Int("teams", len(out)))
	return out, nil
}

// ReassignJob moves an untouched team job to another team. Blocked as soon as
// any non-rejected claim exists.
func (s *Service) ReassignJob(ctx context.Context, actor identity.Actor, teamJobID, newTeamID string) (*TeamJob, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, faults.Internal(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	var (
		tj       TeamJob
		sellerID string
	)
	tj.ID = teamJobID
	err = tx.QueryRow(ctx,
		`SELECT tj.job_id, tj.team_id, tj.target_url, tj.quantity, tj.completed_quantity,
		        tj.price_per_unit, tj.status, tj.deadline, tj.created_at, tj.updated_at, t.seller_id
		 FROM team_jobs tj
		 JOIN teams t ON t.id = tj.team_id
		 WHERE tj.id = $1
		 FOR UPDATE OF tj`,
		teamJobID,
	).Scan(&tj.JobID, &tj.TeamID, &tj.TargetURL, &tj.Quantity, &tj.CompletedQuantity,
		&tj.PricePerUnit, &tj.Status, &tj.Deadline, &tj.CreatedAt, &tj.UpdatedAt, &sellerID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, faults.New(faults.KindNotFound, "team job not found")
		}
		return nil, faults.Internal(err, "failed to fetch team job")
	}
	if !actor.IsAdmin() && sellerID != actor.ID {
		return nil, faults.New(faults.KindPermission, "team job belongs to another seller")
	}
	if err := s.ownsTeam(ctx, tx, newTeamID, actor); err != nil {
		return nil, err
	}

	var claimCount int64
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM job_claims WHERE team_job_id = $1 AND status <> 'rejected'`,
		teamJobID).Scan(&claimCount)
	if err != nil {
		return nil, faults.Internal(err, "failed to count claims")
	}
	if tj.CompletedQuantity > 0 || claimCount > 0 {
		return nil, faults.New(faults.KindReassignmentBlocked, "team job already has claims")
	}

	err = tx.QueryRow(ctx,
		`UPDATE team_jobs SET team_id = $1, updated_at = NOW() WHERE id = $2
		 RETURNING team_id, updated_at`,
		newTeamID, teamJobID,
	).Scan(&tj.TeamID, &tj.UpdatedAt)
	if err != nil {
		return nil, faults.Internal(err, "failed to reassign team job")
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, faults.Internal(err, "failed to commit reassignment")
	}

	s.log.Info("team job reassigned",
		zap.String("team_job_id", teamJobID),
		zap.String("new_team_id", newTeamID))
	return &tj, nil
}

// StandaloneJobInput describes a team job created outside any order.
type StandaloneJobInput struct {
	TeamID       string          `json:"team_id"`
	TargetURL    string          `json:"target_url"`
	Quantity     int64           `json:"quantity"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	Deadline     *time.Time      `json:"deadline,omitempty"`
}

// CreateStandaloneJob offers ad-hoc work to a team without a backing order.
func (s *Service) CreateStandaloneJob(ctx context.Context, actor identity.Actor, in StandaloneJobInput) (*TeamJob, error) {
	if in.Quantity <= 0 {
		return nil, faults.New(faults.KindValidation, "quantity must be positive")
	}
	if in.PricePerUnit.IsNegative() {
		return nil, faults.New(faults.KindValidation, "price per unit must not be negative")
	}
	if in.TargetURL == "" {
		return nil, faults.New(faults.KindValidation, "target_url is required")
	}
	if err := s.ownsTeam(ctx, s.conn, in.TeamID, actor); err != nil {
		return nil, err
	}

	tj := &TeamJob{TeamID: in.TeamID, TargetURL: in.TargetURL, PricePerUnit: in.PricePerUnit, Deadline: in.Deadline}
	err := s.conn.QueryRow(ctx,
		`INSERT INTO team_jobs (job_id, team_id, target_url, quantity, price_per_unit, deadline)
		 VALUES (NULL, $1, $2, $3, $4, $5)
		 RETURNING id, quantity, completed_quantity, status, created_at, updated_at`,
		in.TeamID, in.TargetURL, in.Quantity, in.PricePerUnit, in.Deadline,
	).Scan(&tj.ID, &tj.Quantity, &tj.CompletedQuantity, &tj.Status, &tj.CreatedAt, &tj.UpdatedAt)
	if err != nil {
		return nil, faults.Internal(err, "failed to create standalone job")
	}

	s.log.Info("standalone job created",
		zap.String("team_job_id", tj.ID),
		zap.String("team_id", in.TeamID),
		zap.Int64("quantity", in.Quantity))
	return tj, nil
}
