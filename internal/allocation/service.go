package allocation

import (
	"context"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/boostpool/boostpool/internal/db"
	"github.com/boostpool/boostpool/internal/faults"
	"github.com/boostpool/boostpool/internal/identity"
)

// Service owns order decomposition: turning paid orders into jobs and
// distributing jobs across teams as bounded claimable pools.
type Service struct {
	conn db.DB
	log  *zap.Logger
}

func NewService(conn db.DB, log *zap.Logger) *Service {
	return &Service{conn: conn, log: log}
}

// querier covers both the pool and an open transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ownsTeam verifies the team exists and belongs to the seller (admins skip
// the ownership check).
func (s *Service) ownsTeam(ctx context.Context, q querier, teamID string, actor identity.Actor) error {
	var sellerID string
	err := q.QueryRow(ctx, `SELECT seller_id FROM teams WHERE id = $1`, teamID).Scan(&sellerID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return faults.New(faults.KindNotFound, "team not found")
		}
		return faults.Internal(err, "failed to fetch team")
	}
	if !actor.IsAdmin() && sellerID != actor.ID {
		return faults.New(faults.KindPermission, "team belongs to another seller")
	}
	return nil
}
