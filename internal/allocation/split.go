package allocation

import (
	"github.com/boostpool/boostpool/internal/faults"
)

// ValidateSplit checks an all-or-nothing distribution of a job's quantity.
// The legs must cover the total exactly; partial splits leave quantity
// unaccounted for and over-splits break conservation.
func ValidateSplit(total int64, allocs []Allocation) error {
	if len(allocs) == 0 {
		return faults.New(faults.KindValidation, "at least one allocation is required")
	}

	seen := make(map[string]bool, len(allocs))
	var sum int64
	for _, a := range allocs {
		if a.TeamID == "" {
			return faults.New(faults.KindValidation, "allocation team_id is required")
		}
		if a.Quantity <= 0 {
			return faults.New(faults.KindValidation, "allocation quantity must be positive")
		}
		if seen[a.TeamID] {
			return faults.Newf(faults.KindValidation, "duplicate allocation for team %s", a.TeamID)
		}
		seen[a.TeamID] = true
		sum += a.Quantity
	}

	if sum != total {
		return faults.Newf(faults.KindAllocationMismatch,
			"allocations sum to %d but job quantity is %d", sum, total)
	}
	return nil
}

// ItemPercent converts a completed/total pair into a whole-order percentage.
func ItemPercent(completed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	if completed >= total {
		return 100
	}
	return float64(completed) * 100 / float64(total)
}

// DeriveOrderStatus rolls item progress up into the order status. Cancelled
// orders keep their status regardless of progress.
func DeriveOrderStatus(current string, items []ItemProgress) string {
	if current == OrderCancelled {
		return OrderCancelled
	}
	if len(items) == 0 {
		return current
	}

	allDone := true
	anyProgress := false
	for _, it := range items {
		if it.Completed < it.Quantity {
			allDone = false
		}
		if it.Completed > 0 {
			anyProgress = true
		}
	}
	switch {
	case allDone:
		return OrderCompleted
	case anyProgress:
		return OrderProcessing
	default:
		return OrderPending
	}
}
