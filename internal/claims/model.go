package claims

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ClaimSubmitted = "submitted"
	ClaimApproved  = "approved"
	ClaimRejected  = "rejected"
)

// JobClaim is a worker's reservation of quantity against a team job.
// Immutable once approved or rejected.
type JobClaim struct {
	ID           string          `json:"id"`
	TeamJobID    string          `json:"team_job_id"`
	WorkerID     string          `json:"worker_id"`
	Quantity     int64           `json:"quantity"`
	EarnAmount   decimal.Decimal `json:"earn_amount"`
	Status       string          `json:"status"`
	ProofURLs    []string        `json:"proof_urls"`
	Note         string          `json:"note"`
	RejectReason *string         `json:"reject_reason,omitempty"`
	SubmittedAt  time.Time       `json:"submitted_at"`
	ReviewedAt   *time.Time      `json:"reviewed_at,omitempty"`
	ReviewedBy   *string         `json:"reviewed_by,omitempty"`
}

// ReviewOutcome is the per-claim result of a bulk approval.
type ReviewOutcome struct {
	ClaimID string `json:"claim_id"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}
