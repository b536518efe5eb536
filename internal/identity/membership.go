package identity

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/boostpool/boostpool/internal/db"
	"github.com/boostpool/boostpool/internal/faults"
)

// Directory answers team-membership questions the allocation and claim
// services gate on.
type Directory struct {
	conn db.DB
}

func NewDirectory(conn db.DB) *Directory {
	return &Directory{conn: conn}
}

// IsMember reports whether the worker belongs to the team.
func (d *Directory) IsMember(ctx context.Context, teamID, workerID string) (bool, error) {
	var exists bool
	err := d.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM team_members WHERE team_id = $1 AND worker_id = $2)`,
		teamID, workerID,
	).Scan(&exists)
	if err != nil {
		return false, faults.Internal(err, "failed to check team membership")
	}
	return exists, nil
}

// IsOperator reports whether the actor may review claims for the team: either
// a team member with the operator role, or the seller who owns the team.
func (d *Directory) IsOperator(ctx context.Context, teamID string, actor Actor) (bool, error) {
	if actor.IsAdmin() {
		return true, nil
	}

	var sellerID string
	err := d.conn.QueryRow(ctx, `SELECT seller_id FROM teams WHERE id = $1`, teamID).Scan(&sellerID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, faults.New(faults.KindNotFound, "team not found")
		}
		return false, faults.Internal(err, "failed to fetch team")
	}
	if sellerID == actor.ID {
		return true, nil
	}

	var exists bool
	err = d.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM team_members WHERE team_id = $1 AND worker_id = $2 AND role = 'operator')`,
		teamID, actor.ID,
	).Scan(&exists)
	if err != nil {
		return false, faults.Internal(err, "failed to check operator role")
	}
	return exists, nil
}
