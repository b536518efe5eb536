package claims

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boostpool/boostpool/internal/faults"
	"github.com/boostpool/boostpool/internal/identity"
)

func newMockService(t *testing.T) (pgxmock.PgxPoolIface, *Service) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewService(mock, identity.NewDirectory(mock), zap.NewNop(), 3)
}

var worker = identity.Actor{ID: "worker-1", Role: identity.RoleWorker}

func expectTeamJobLock(mock pgxmock.PgxPoolIface, quantity int64, status string, price decimal.Decimal) {
	mock.ExpectQuery(`FROM team_jobs WHERE id = \$1 FOR UPDATE`).
		WithArgs("tj-1").
		WillReturnRows(pgxmock.NewRows([]string{"team_id", "quantity", "status", "price_per_unit"}).
			AddRow("team-1", quantity, status, price))
}

func expectMembership(mock pgxmock.PgxPoolIface, member bool) {
	mock.ExpectQuery(`FROM team_members WHERE team_id = \$1 AND worker_id = \$2`).
		WithArgs("team-1", "worker-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(member))
}

func TestClaimReservesQuantity(t *testing.T) {
	mock, svc := newMockService(t)
	price := decimal.RequireFromString("0.50")

	mock.ExpectBegin()
	expectTeamJobLock(mock, 100, "in_progress", price)
	expectMembership(mock, true)
	mock.ExpectQuery(`SUM\(quantity\)`).
		WithArgs("tj-1").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(int64(40)))
	mock.ExpectQuery(`INSERT INTO job_claims`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "submitted_at"}).AddRow("claim-1", time.Now()))
	mock.ExpectCommit()

	claim, err := svc.Claim(context.Background(), worker, "tj-1", 60)
	require.NoError(t, err)
	assert.Equal(t, "claim-1", claim.ID)
	assert.Equal(t, int64(60), claim.Quantity)
	assert.Equal(t, ClaimSubmitted, claim.Status)
	assert.True(t, claim.EarnAmount.Equal(decimal.RequireFromString("30")),
		"earn amount should be quantity x price, got %s", claim.EarnAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimInsufficientQuantity(t *testing.T) {
	// Worker A already holds 60 of 100; a claim for 50 must lose.
	mock, svc := newMockService(t)

	mock.ExpectBegin()
	expectTeamJobLock(mock, 100, "in_progress", decimal.NewFromInt(1))
	expectMembership(mock, true)
	mock.ExpectQuery(`SUM\(quantity\)`).
		WithArgs("tj-1").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(int64(60)))
	mock.ExpectRollback()

	_, err := svc.Claim(context.Background(), worker, "tj-1", 50)
	assert.Error(t, err)
	assert.Equal(t, faults.KindInsufficientQuantity, faults.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimAfterRejectionSucceeds(t *testing.T) {
	// A rejected claim drops out of the reserved sum, so the freed quantity
	// is claimable again.
	mock, svc := newMockService(t)

	mock.ExpectBegin()
	expectTeamJobLock(mock, 100, "in_progress", decimal.NewFromInt(1))
	expectMembership(mock, true)
	mock.ExpectQuery(`SUM\(quantity\)`).
		WithArgs("tj-1").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(int64(0)))
	mock.ExpectQuery(`INSERT INTO job_claims`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "submitted_at"}).AddRow("claim-2", time.Now()))
	mock.ExpectCommit()

	claim, err := svc.Claim(context.Background(), worker, "tj-1", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), claim.Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimMarksPendingJobInProgress(t *testing.T) {
	mock, svc := newMockService(t)

	mock.ExpectBegin()
	expectTeamJobLock(mock, 100, "pending", decimal.NewFromInt(1))
	expectMembership(mock, true)
	mock.ExpectQuery(`SUM\(quantity\)`).
		WithArgs("tj-1").
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(int64(0)))
	mock.ExpectQuery(`INSERT INTO job_claims`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "submitted_at"}).AddRow("claim-1", time.Now()))
	mock.ExpectExec(`UPDATE team_jobs SET status = 'in_progress'`).
		WithArgs("tj-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	_, err := svc.Claim(context.Background(), worker, "tj-1", 10)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRejectsNonMembers(t *testing.T) {
	mock, svc := newMockService(t)

	mock.ExpectBegin()
	expectTeamJobLock(mock, 100, "pending", decimal.NewFromInt(1))
	expectMembership(mock, false)
	mock.ExpectRollback()

	_, err := svc.Claim(context.Background(), worker, "tj-1", 10)
	assert.Error(t, err)
	assert.Equal(t, faults.KindPermission, faults.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimValidatesQuantity(t *testing.T) {
	_, svc := newMockService(t)

	_, err := svc.Claim(context.Background(), worker, "tj-1", 0)
	assert.Equal(t, faults.KindValidation, faults.KindOf(err))

	_, err = svc.Claim(context.Background(), worker, "tj-1", -5)
	assert.Equal(t, faults.KindValidation, faults.KindOf(err))
}

func TestClaimOnCancelledJob(t *testing.T) {
	mock, svc := newMockService(t)

	mock.ExpectBegin()
	expectTeamJobLock(mock, 100, "cancelled", decimal.NewFromInt(1))
	mock.ExpectRollback()

	_, err := svc.Claim(context.Background(), worker, "tj-1", 10)
	assert.Error(t, err)
	assert.Equal(t, faults.KindValidation, faults.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitRequiresProof(t *testing.T) {
	_, svc := newMockService(t)

	_, err := svc.Submit(context.Background(), worker, "claim-1", nil, "done")
	assert.Equal(t, faults.KindValidation, faults.KindOf(err))
}

func TestSubmitAttachesProof(t *testing.T) {
	mock, svc := newMockService(t)

	mock.ExpectQuery(`UPDATE job_claims SET proof_urls`).
		WithArgs([]string{"https://proof/1"}, "all done", "claim-1", "worker-1").
		WillReturnRows(pgxmock.NewRows([]string{"team_job_id", "worker_id", "quantity", "earn_amount", "submitted_at"}).
			AddRow("tj-1", "worker-1", int64(10), decimal.NewFromInt(5), time.Now()))

	claim, err := svc.Submit(context.Background(), worker, "claim-1", []string{"https://proof/1"}, "all done")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://proof/1"}, claim.ProofURLs)
	assert.Equal(t, ClaimSubmitted, claim.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
