package allocation

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses are derived from aggregate job completion, never set
// directly by sellers.
const (
	OrderPending    = "pending"
	OrderProcessing = "processing"
	OrderCompleted  = "completed"
	OrderCancelled  = "cancelled"
)

const (
	TeamJobPending    = "pending"
	TeamJobInProgress = "in_progress"
	TeamJobCompleted  = "completed"
	TeamJobCancelled  = "cancelled"
)

// Order is a seller's paid request for a quantity of a service.
type Order struct {
	ID        string      `json:"id"`
	SellerID  string      `json:"seller_id"`
	Status    string      `json:"status"`
	Items     []OrderItem `json:"items,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// OrderItem is one purchased line: a service quantity at a price.
type OrderItem struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	ServiceType string          `json:"service_type"`
	TargetURL   string          `json:"target_url"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Job is the seller-facing unit of work derived from an OrderItem. Completed
// quantity is always derived from its team jobs, never stored here.
type Job struct {
	ID          string    `json:"id"`
	OrderItemID string    `json:"order_item_id"`
	OrderID     string    `json:"order_id"`
	Quantity    int64     `json:"quantity"`
	CreatedAt   time.Time `json:"created_at"`
}

// TeamJob is a Job (or fraction of one) offered to a single team's workers.
type TeamJob struct {
	ID                string          `json:"id"`
	JobID             *string         `json:"job_id,omitempty"` // nil for standalone jobs
	TeamID            string          `json:"team_id"`
	TargetURL         string          `json:"target_url"`
	Quantity          int64           `json:"quantity"`
	CompletedQuantity int64           `json:"completed_quantity"`
	PricePerUnit      decimal.Decimal `json:"price_per_unit"`
	Status            string          `json:"status"`
	Deadline          *time.Time      `json:"deadline,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Allocation is one leg of a job split.
type Allocation struct {
	TeamID   string `json:"team_id"`
	Quantity int64  `json:"quantity"`
}

// ItemProgress is the derived completion state of one order item.
type ItemProgress struct {
	OrderItemID string  `json:"order_item_id"`
	Quantity    int64   `json:"quantity"`
	Completed   int64   `json:"completed"`
	Percent     float64 `json:"percent"`
}

// OrderProgress is the derived completion state of a whole order.
type OrderProgress struct {
	OrderID string         `json:"order_id"`
	Status  string         `json:"status"`
	Items   []ItemProgress `json:"items"`
}
