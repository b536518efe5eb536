package allocation

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/boostpool/boostpool/internal/faults"
	"github.com/boostpool/boostpool/internal/identity"
)

// OrderItemInput is one confirmed line of a paid order.
type OrderItemInput struct {
	ServiceType string          `json:"service_type"`
	TargetURL   string          `json:"target_url"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CreateOrder records a payment-confirmed order and decomposes every item
// into a job in the same transaction. Payment itself happens upstream; by the
// time this is called the money has been collected.
func (s *Service) CreateOrder(ctx context.Context, actor identity.Actor, items []OrderItemInput) (*Order, error) {
	if actor.Role != identity.RoleSeller && !actor.IsAdmin() {
		return nil, faults.New(faults.KindPermission, "only sellers can create orders")
	}
	if len(items) == 0 {
		return nil, faults.New(faults.KindValidation, "order must contain at least one item")
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, faults.New(faults.KindValidation, "item quantity must be positive")
		}
		if it.UnitPrice.IsNegative() {
			return nil, faults.New(faults.KindValidation, "item unit price must not be negative")
		}
		if it.TargetURL == "" || it.ServiceType == "" {
			return nil, faults.New(faults.KindValidation, "item service_type and target_url are required")
		}
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, faults.Internal(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	order := &Order{SellerID: actor.ID, Status: OrderPending}
	err = tx.QueryRow(ctx,
		`INSERT INTO orders (seller_id, status) VALUES ($1, 'pending')
		 RETURNING id, created_at, updated_at`,
		actor.ID,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, faults.Internal(err, "failed to create order")
	}

	for _, in := range items {
		item := OrderItem{
			OrderID:     order.ID,
			ServiceType: in.ServiceType,
			TargetURL:   in.TargetURL,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO order_items (order_id, service_type, target_url, quantity, unit_price)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at`,
			order.ID, in.ServiceType, in.TargetURL, in.Quantity, in.UnitPrice,
		).Scan(&item.ID, &item.CreatedAt)
		if err != nil {
			return nil, faults.Internal(err, "failed to create order item")
		}

		// One job per item; splitting across teams happens later.
		_, err = tx.Exec(ctx,
			`INSERT INTO jobs (order_item_id, order_id, quantity) VALUES ($1, $2, $3)`,
			item.ID, order.ID, in.Quantity,
		)
		if err != nil {
			return nil, faults.Internal(err, "failed to create job")
		}
		order.Items = append(order.Items, item)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, faults.Internal(err, "failed to commit order")
	}

	s.log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("seller_id", actor.ID),
		zap.Int("items", len(order.Items)))
	return order, nil
}

// SyncOrderProgress recomputes item and order progress from team job
// completion. Progress is always derived; this only persists the rolled-up
// order status.
func (s *Service) SyncOrderProgress(ctx context.Context, orderID string) (*OrderProgress, error) {
	var status string
	err := s.conn.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, faults.New(faults.KindNotFound, "order not found")
		}
		return nil, faults.Internal(err, "failed to fetch order")
	}

	rows, err := s.conn.Query(ctx,
		`SELECT oi.id, oi.quantity, COALESCE(SUM(tj.completed_quantity), 0)
		 FROM order_items oi
		 JOIN jobs j ON j.order_item_id = oi.id
		 LEFT JOIN team_jobs tj ON tj.job_id = j.id AND tj.status <> 'cancelled'
		 WHERE oi.order_id = $1
		 GROUP BY oi.id, oi.quantity
		 ORDER BY oi.id`,
		orderID)
	if err != nil {
		return nil, faults.Internal(err, "failed to aggregate progress")
	}
	defer rows.Close()

	progress := &OrderProgress{OrderID: orderID}
	for rows.Next() {
		var it ItemProgress
		if err := rows.Scan(&it.OrderItemID, &it.Quantity, &it.Completed); err != nil {
			return nil, faults.Internal(err, "failed to read progress row")
		}
		it.Percent = ItemPercent(it.Completed, it.Quantity)
		progress.Items = append(progress.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, faults.Internal(err, "failed to read progress rows")
	}

	progress.Status = DeriveOrderStatus(status, progress.Items)
	if progress.Status != status {
		_, err = s.conn.Exec(ctx,
			`UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status <> 'cancelled'`,
			progress.Status, orderID)
		if err != nil {
			return nil, faults.Internal(err, "failed to update order status")
		}
		s.log.Info("order status updated",
			zap.String("order_id", orderID),
			zap.String("status", progress.Status))
	}
	return progress, nil
}

// CancelOrder cancels an order and all of its team jobs. Illegal once any
// claim under the order has been approved; pending claims are force-rejected
// so their reservations return to nothing.
func (s *Service) CancelOrder(ctx context.Context, actor identity.Actor, orderID string) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return faults.Internal(err, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	var sellerID, status string
	err = tx.QueryRow(ctx,
		`SELECT seller_id, status FROM orders WHERE id = $1 FOR UPDATE`,
		orderID).Scan(&sellerID, &status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return faults.New(faults.KindNotFound, "order not found")
		}
		return faults.Internal(err, "failed to fetch order")
	}
	if !actor.IsAdmin() && sellerID != actor.ID {
		return faults.New(faults.KindPermission, "order belongs to another seller")
	}
	if status == OrderCancelled {
		return faults.New(faults.KindAlreadyProcessed, "order is already cancelled")
	}

	var hasApproved bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (
		    SELECT 1 FROM job_claims jc
		    JOIN team_jobs tj ON tj.id = jc.team_job_id
		    JOIN jobs j ON j.id = tj.job_id
		    WHERE j.order_id = $1 AND jc.status = 'approved')`,
		orderID).Scan(&hasApproved)
	if err != nil {
		return faults.Internal(err, "failed to check approved claims")
	}
	if hasApproved {
		return faults.New(faults.KindValidation, "order has approved claims and cannot be cancelled")
	}

	_, err = tx.Exec(ctx,
		`UPDATE job_claims SET status = 'rejected',
		        reject_reason = 'order cancelled by seller', reviewed_at = NOW()
		 WHERE status = 'submitted' AND team_job_id IN (
		    SELECT tj.id FROM team_jobs tj JOIN jobs j ON j.id = tj.job_id WHERE j.order_id = $1)`,
		orderID)
	if err != nil {
		return faults.Internal(err, "failed to reject pending claims")
	}

	_, err = tx.Exec(ctx,
		`UPDATE team_jobs SET status = 'cancelled', updated_at = NOW()
		 WHERE status <> 'cancelled' AND job_id IN (SELECT id FROM jobs WHERE order_id = $1)`,
		orderID)
	if err != nil {
		return faults.Internal(err, "failed to cancel team jobs")
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders SET status = 'cancelled', updated_at = NOW() WHERE id = $1`,
		orderID)
	if err != nil {
		return faults.Internal(err, "failed to cancel order")
	}

	if err = tx.Commit(ctx); err != nil {
		return faults.Internal(err, "failed to commit cancellation")
	}

	s.log.Info("order cancelled", zap.String("order_id", orderID), zap.String("actor", actor.ID))
	return nil
}
