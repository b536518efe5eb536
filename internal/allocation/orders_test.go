package allocation

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boostpool/boostpool/internal/faults"
	"github.com/boostpool/boostpool/internal/identity"
)

func TestCreateOrderDecomposesItemsIntoJobs(t *testing.T) {
	mock, svc := newMockService(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO orders`).
		WithArgs("seller-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("order-1", now, now))
	mock.ExpectQuery(`INSERT INTO order_items`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("item-1", now))
	mock.ExpectExec(`INSERT INTO jobs`).
		WithArgs("item-1", "order-1", int64(1000)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`INSERT INTO order_items`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow("item-2", now))
	mock.ExpectExec(`INSERT INTO jobs`).
		WithArgs("item-2", "order-1", int64(250)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	order, err := svc.CreateOrder(context.Background(), seller, []OrderItemInput{
		{ServiceType: "likes", TargetURL: "https://example.com/p/1", Quantity: 1000, UnitPrice: decimal.RequireFromString("0.01")},
		{ServiceType: "followers", TargetURL: "https://example.com/u/1", Quantity: 250, UnitPrice: decimal.RequireFromString("0.05")},
	})
	require.NoError(t, err)
	assert.Equal(t, OrderPending, order.Status)
	require.Len(t, order.Items, 2)
	assert.Equal(t, "item-2", order.Items[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateOrderValidation(t *testing.T) {
	_, svc := newMockService(t)

	tests := []struct {
		name  string
		items []OrderItemInput
	}{
		{"no items", nil},
		{"zero quantity", []OrderItemInput{{ServiceType: "likes", TargetURL: "https://x", Quantity: 0}}},
		{"negative price", []OrderItemInput{{ServiceType: "likes", TargetURL: "https://x", Quantity: 10, UnitPrice: decimal.RequireFromString("-1")}}},
		{"missing target", []OrderItemInput{{ServiceType: "likes", Quantity: 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(context.Background(), seller, tt.items)
			assert.Equal(t, faults.KindValidation, faults.KindOf(err))
		})
	}
}

func TestCreateOrderRequiresSeller(t *testing.T) {
	_, svc := newMockService(t)
	worker := identity.Actor{ID: "worker-1", Role: identity.RoleWorker}

	_, err := svc.CreateOrder(context.Background(), worker, []OrderItemInput{
		{ServiceType: "likes", TargetURL: "https://x", Quantity: 10},
	})
	assert.Equal(t, faults.KindPermission, faults.KindOf(err))
}

func TestCancelOrderForceRejectsAndCancels(t *testing.T) {
	mock, svc := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT seller_id, status FROM orders WHERE id = \$1 FOR UPDATE`).
		WithArgs("order-1").
		WillReturnRows(pgxmock.NewRows([]string{"seller_id", "status"}).AddRow("seller-1", OrderProcessing))
	mock.ExpectQuery(`jc.status = 'approved'`).
		WithArgs("order-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`UPDATE job_claims SET status = 'rejected'`).
		WithArgs("order-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	mock.ExpectExec(`UPDATE team_jobs SET status = 'cancelled'`).
		WithArgs("order-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectExec(`UPDATE orders SET status = 'cancelled'`).
		WithArgs("order-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, svc.CancelOrder(context.Background(), seller, "order-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelOrderBlockedByApprovedClaim(t *testing.T) {
	mock, svc := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT seller_id, status FROM orders WHERE id = \$1 FOR UPDATE`).
		WithArgs("order-1").
		WillReturnRows(pgxmock.NewRows([]string{"seller_id", "status"}).AddRow("seller-1", OrderProcessing))
	mock.ExpectQuery(`jc.status = 'approved'`).
		WithArgs("order-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	err := svc.CancelOrder(context.Background(), seller, "order-1")
	assert.Equal(t, faults.KindValidation, faults.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelOrderTwiceReportsConflict(t *testing.T) {
	mock, svc := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT seller_id, status FROM orders WHERE id = \$1 FOR UPDATE`).
		WithArgs("order-1").
		WillReturnRows(pgxmock.NewRows([]string{"seller_id", "status"}).AddRow("seller-1", OrderCancelled))
	mock.ExpectRollback()

	err := svc.CancelOrder(context.Background(), seller, "order-1")
	assert.Equal(t, faults.KindAlreadyProcessed, faults.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelOrderForeignSellerForbidden(t *testing.T) {
	mock, svc := newMockService(t)
	other := identity.Actor{ID: "seller-2", Role: identity.RoleSeller}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT seller_id, status FROM orders WHERE id = \$1 FOR UPDATE`).
		WithArgs("order-1").
		WillReturnRows(pgxmock.NewRows([]string{"seller_id", "status"}).AddRow("seller-1", OrderProcessing))
	mock.ExpectRollback()

	err := svc.CancelOrder(context.Background(), other, "order-1")
	assert.Equal(t, faults.KindPermission, faults.KindOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
