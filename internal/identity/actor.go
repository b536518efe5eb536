// Package identity carries the actor model consumed by every operation:
// who is calling, their platform role, and their KYC tier. Authentication
// itself lives outside this service; a verified JWT is the boundary.
package identity

import "github.com/shopspring/decimal"

type Role string

const (
	RoleSeller Role = "seller"
	RoleWorker Role = "worker"
	RoleAdmin  Role = "admin"
)

type KYCLevel string

const (
	KYCNone     KYCLevel = "none"
	KYCBasic    KYCLevel = "basic"
	KYCVerified KYCLevel = "verified"
	KYCBusiness KYCLevel = "business"
)

// Actor is the authenticated caller, passed explicitly into every service
// operation.
type Actor struct {
	ID   string
	Role Role
	KYC  KYCLevel
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// DailyWithdrawalCeiling returns the per-day withdrawal cap for a KYC tier.
// The second result is false when the tier is uncapped.
func DailyWithdrawalCeiling(level KYCLevel) (decimal.Decimal, bool) {
	switch level {
	case KYCBasic:
		return decimal.NewFromInt(2000), true
	case KYCVerified:
		return decimal.NewFromInt(20000), true
	case KYCBusiness:
		return decimal.Zero, false
	default:
		return decimal.NewFromInt(500), true
	}
}
