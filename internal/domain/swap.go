package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SwapState is the lifecycle state of one in-flight swap monitor.
type SwapState string

const (
	// StateArmed: the Execute commitment is live and the monitor is polling.
	StateArmed SwapState = "armed"
	// StateSettling: a stopping condition fired; settlement submissions are
	// in flight. Entered exactly once.
	StateSettling SwapState = "settling"
	// StateCompleted: terminal success.
	StateCompleted SwapState = "completed"
)

// Trigger reasons recorded when a monitor leaves Armed.
const (
	TriggerBand     = "band_breach"
	TriggerDeadline = "deadline"
)

// SwapRecord is the journal row for one swap lifecycle, keyed by the
// correlation context.
type SwapRecord struct {
	ContextID     string          `gorm:"primaryKey" json:"context_id"`
	State         string          `gorm:"index" json:"state"` // quoted, armed, settling, completed, failed
	FromAccount   string          `json:"from_account"`
	ToAccount     string          `json:"to_account"`
	Amount        decimal.Decimal `json:"amount"`
	Rate          decimal.Decimal `json:"rate"`           // quoted rate, or rate observed at trigger
	SettledAmount decimal.Decimal `json:"settled_amount"` // zero until settlement
	Reason        string          `json:"reason"`         // band_breach / deadline / error detail
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
