package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PayoutPending   = "pending"
	PayoutCompleted = "completed"
)

// Transaction types. Amounts are signed: expenses are negative, income and
// topups positive.
const (
	TxIncome  = "income"
	TxExpense = "expense"
	TxTopup   = "topup"
)

// TeamPayout aggregates approved claim earnings owed to one worker by one
// team until settlement.
type TeamPayout struct {
	ID             string          `json:"id"`
	TeamID         string          `json:"team_id"`
	WorkerID       string          `json:"worker_id"`
	Amount         decimal.Decimal `json:"amount"`
	JobCount       int64           `json:"job_count"`
	Status         string          `json:"status"`
	PaymentMethod  string          `json:"payment_method"`
	TransactionRef *string         `json:"transaction_ref,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// Transaction is an immutable ledger entry. Balances are folds over these
// rows; nothing is ever updated or deleted.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Reference   *string         `json:"reference,omitempty"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// BalanceView is the derived money position of one actor.
type BalanceView struct {
	UserID    string          `json:"user_id"`
	Available decimal.Decimal `json:"available_balance"`
	Pending   decimal.Decimal `json:"pending_balance"`
}

// PayoutOutcome is the per-payout result of a batch run.
type PayoutOutcome struct {
	PayoutID string `json:"payout_id"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// Topup is a seller funding record; confirmation appends the topup ledger
// entry.
type Topup struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	ConfirmedAt *time.Time      `json:"confirmed_at,omitempty"`
}

// SumBalance folds a transaction log into an available balance.
func SumBalance(txs []Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return total
}
