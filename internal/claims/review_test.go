package claims

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostpool/boostpool/internal/faults"
	"github.com/boostpool/boostpool/internal/identity"
)

// admin short-circuits IsOperator, so review tests need no membership rows.
var admin = identity.Actor{ID: "admin-1", Role: identity.RoleAdmin}

func expectReviewTarget(mock pgxmock.PgxPoolIface, workerID, status string) {
	mock.ExpectQuery(`SELECT jc.team_job_id, tj.team_id, jc.worker_id, jc.status`).
		WithArgs("claim-1").
		WillReturnRows(pgxmock.NewRows([]string{"team_job_id", "team_id", "worker_id", "status"}).
			AddRow("tj-1", "team-1", workerID, status))
}

func TestApproveCreditsPayout(t *testing.T) {
	mock, svc := newMockService(t)
	earn := decimal.RequireFromString("12.50")

	expectReviewTarget(mock, "worker-1", ClaimSubmitted)
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("claim-1").
		WillReturnRows(pgxmock.NewRows([]string{"status", "quantity", "earn_amount", "team_job_id", "worker_id"}).
			AddRow(ClaimSubmitted, int64(25), earn, "tj-1", "worker-1"))
	mock.ExpectExec(`UPDATE job_claims SET status = 'approved'`).
		WithArgs("admin-1", "claim-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE team_jobs`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE team_payouts SET amount = amount`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := svc.Approve(context.Background(), admin, "claim-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveOpensPayoutWhenNoneIsPending(t *testing.T) {
	mock, svc := newMockService(t)

	expectReviewTarget(mock, "worker-1", ClaimSubmitted)
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("claim-1").
		WillReturnRows(pgxmock.NewRows([]string{"status", "quantity", "earn_amount", "team_job_id", "worker_id"}).
			AddRow(ClaimSubmitted, int64(10), decimal.NewFromInt(5), "tj-1", "worker-1"))
	mock.ExpectExec(`UPDATE job_claims SET status = 'approved'`).
		WithArgs("admin-1", "claim-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE team_jobs`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE team_payouts SET amount = amount`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec(`INSERT INTO team_payouts`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := svc.Approve(context.Background(), admin, "claim-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveTwiceCreditsOnce(t *testing.T) {
	// The second approval loses on the status guard under the lock and must
	// not touch team_jobs or team_payouts; ExpectationsWereMet proves it.
	mock, svc := newMockService(t)

	expectReviewTarget(mock, "worker-1", ClaimApproved)
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("claim-1").
		WillReturnRows(pgxmock.NewRows([]string{"status", "quantity", "earn_amount", "team_job_id", "worker_id"}).
			AddRow(ClaimApproved, int64(25), decimal.NewFromInt(1), "tj-1", "worker-1"))
	mock.ExpectRollback()

	err := svc.Approve(context.Background(), admin, "claim-1")
	assert.Equal(t, faults.KindAlreadyReviewed, faults.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveOwnClaimForbidden(t *testing.T) {
	mock, svc := newMockService(t)

	expectReviewTarget(mock, admin.ID, ClaimSubmitted)

	err := svc.Approve(context.Background(), admin, "claim-1")
	assert.Equal(t, faults.KindPermission, faults.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectRequiresReason(t *testing.T) {
	_, svc := newMockService(t)

	err := svc.Reject(context.Background(), admin, "claim-1", "   ")
	assert.Equal(t, faults.KindValidation, faults.KindOf(err))
}

func TestRejectIsTerminal(t *testing.T) {
	mock, svc := newMockService(t)

	expectReviewTarget(mock, "worker-1", ClaimSubmitted)
	mock.ExpectExec(`UPDATE job_claims SET status = 'rejected'`).
		WithArgs("low quality proof", "admin-1", "claim-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, svc.Reject(context.Background(), admin, "claim-1", "low quality proof"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectAfterReviewReportsConflict(t *testing.T) {
	mock, svc := newMockService(t)

	expectReviewTarget(mock, "worker-1", ClaimApproved)
	mock.ExpectExec(`UPDATE job_claims SET status = 'rejected'`).
		WithArgs("too late", "admin-1", "claim-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := svc.Reject(context.Background(), admin, "claim-1", "too late")
	assert.Equal(t, faults.KindAlreadyReviewed, faults.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkApproveReportsPerClaimOutcomes(t *testing.T) {
	mock, svc := newMockService(t)

	mock.ExpectQuery(`SELECT jc.id FROM job_claims`).
		WithArgs("team-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("claim-1").AddRow("claim-2"))

	// claim-1 approves cleanly.
	expectReviewTarget(mock, "worker-1", ClaimSubmitted)
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("claim-1").
		WillReturnRows(pgxmock.NewRows([]string{"status", "quantity", "earn_amount", "team_job_id", "worker_id"}).
			AddRow(ClaimSubmitted, int64(5), decimal.NewFromInt(2), "tj-1", "worker-1"))
	mock.ExpectExec(`UPDATE job_claims SET status = 'approved'`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE team_jobs`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE team_payouts SET amount = amount`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	// claim-2 was reviewed by someone else between listing and locking.
	mock.ExpectQuery(`SELECT jc.team_job_id, tj.team_id, jc.worker_id, jc.status`).
		WithArgs("claim-2").
		WillReturnRows(pgxmock.NewRows([]string{"team_job_id", "team_id", "worker_id", "status"}).
			AddRow("tj-1", "team-1", "worker-2", ClaimRejected))
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("claim-2").
		WillReturnRows(pgxmock.NewRows([]string{"status", "quantity", "earn_amount", "team_job_id", "worker_id"}).
			AddRow(ClaimRejected, int64(5), decimal.NewFromInt(2), "tj-1", "worker-2"))
	mock.ExpectRollback()

	outcomes, err := svc.BulkApprove(context.Background(), admin, "team-1")
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].OK)
	assert.False(t, outcomes[1].OK)
	assert.NotEmpty(t, outcomes[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelTeamJobForceRejectsSubmittedClaims(t *testing.T) {
	mock, svc := newMockService(t)

	mock.ExpectQuery(`SELECT team_id FROM team_jobs`).
		WithArgs("tj-1").
		WillReturnRows(pgxmock.NewRows([]string{"team_id"}).AddRow("team-1"))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM team_jobs WHERE id = \$1 FOR UPDATE`).
		WithArgs("tj-1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("in_progress"))
	mock.ExpectQuery(`status = 'approved'`).
		WithArgs("tj-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`UPDATE job_claims SET status = 'rejected'`).
		WithArgs("admin-1", "tj-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec(`UPDATE team_jobs SET status = 'cancelled'`).
		WithArgs("tj-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, svc.CancelTeamJob(context.Background(), admin, "tj-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelTeamJobBlockedByApprovedClaim(t *testing.T) {
	mock, svc := newMockService(t)

	mock.ExpectQuery(`SELECT team_id FROM team_jobs`).
		WithArgs("tj-1").
		WillReturnRows(pgxmock.NewRows([]string{"team_id"}).AddRow("team-1"))
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT status FROM team_jobs WHERE id = \$1 FOR UPDATE`).
		WithArgs("tj-1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("in_progress"))
	mock.ExpectQuery(`status = 'approved'`).
		WithArgs("tj-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := svc.CancelTeamJob(context.Background(), admin, "tj-1")
	assert.Equal(t, faults.KindValidation, faults.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
