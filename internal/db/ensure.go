package db

import (
	"context"

	"go.uber.org/zap"
)

// EnsureRuntimeColumns adds columns introduced after the base schema shipped.
// Idempotent; called on every boot after migrations.
func EnsureRuntimeColumns(ctx context.Context, conn DB, log *zap.Logger) {
	ensureTeamJobDeadline(ctx, conn, log)
	ensurePayoutPaymentMethod(ctx, conn, log)
}

// ensureTeamJobDeadline adds team_jobs.deadline if missing
func ensureTeamJobDeadline(ctx context.Context, conn DB, log *zap.Logger) {
	var exists bool
	err := conn.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM information_schema.columns
            WHERE table_schema = 'public' AND table_name = 'team_jobs' AND column_name = 'deadline'
        )`).Scan(&exists)
	if err != nil {
		log.Warn("schema check failed", zap.Error(err))
		return
	}
	if exists {
		return
	}
	if _, err := conn.Exec(ctx, `ALTER TABLE team_jobs ADD COLUMN IF NOT EXISTS deadline TIMESTAMPTZ NULL`); err != nil {
		log.Warn("failed to add team_jobs.deadline", zap.Error(err))
		return
	}
	log.Info("team_jobs.deadline column ensured")
}

// ensurePayoutPaymentMethod adds team_payouts.payment_method if missing
func ensurePayoutPaymentMethod(ctx context.Context, conn DB, log *zap.Logger) {
	var exists bool
	err := conn.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM information_schema.columns
            WHERE table_schema = 'public' AND table_name = 'team_payouts' AND column_name = 'payment_method'
        )`).Scan(&exists)
	if err != nil {
		log.Warn("schema check failed", zap.Error(err))
		return
	}
	if exists {
		return
	}
	if _, err := conn.Exec(ctx, `ALTER TABLE team_payouts ADD COLUMN IF NOT EXISTS payment_method TEXT NOT NULL DEFAULT 'wallet'`); err != nil {
		log.Warn("failed to add team_payouts.payment_method", zap.Error(err))
		return
	}
	// Backfill any NULLs (in case default didn't apply retroactively)
	_, _ = conn.Exec(ctx, `UPDATE team_payouts SET payment_method = 'wallet' WHERE payment_method IS NULL`)
	log.Info("team_payouts.payment_method column ensured")
}
