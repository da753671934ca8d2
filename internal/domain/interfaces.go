package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// AccountInfo is the result of resolving an account id against the ledger.
type AccountInfo struct {
	Currency      string
	DecimalPlaces int32
}

// ActionMessage is one inbound signed action observed on the ledger.
type ActionMessage struct {
	TxID    uint64
	Context ContextID
	From    AccountID
	Target  AccountID
	Payload []byte
}

// MetadataEntry is one tagged opaque blob attached to a transfer.
type MetadataEntry struct {
	Type  string
	Value []byte
}

// TransferMessage is one completed transfer observed on the ledger.
type TransferMessage struct {
	TxID     uint64
	Context  ContextID
	From     AccountID
	To       AccountID
	Amount   decimal.Decimal
	Metadata []MetadataEntry
}

// ActionFilter selects which actions a subscription delivers.
// StartingFrom is a ledger position (tx id); zero means "from now".
type ActionFilter struct {
	Name         string
	Involves     AccountID
	StartingFrom uint64
}

// TransferFilter selects which completed transfers a subscription delivers.
type TransferFilter struct {
	Involves AccountID
}

// LedgerClient is the capability consumed from the external ledger
// collaborator: lookup, ordered streaming subscriptions, and signed
// submission. Implementations must be safe for concurrent use; every swap
// monitor of a currency submits through the same handle.
//
// Streams deliver messages in the ledger's order and close when ctx is done.
type LedgerClient interface {
	ResolveAccount(ctx context.Context, id AccountID) (*AccountInfo, error)
	ObserveActions(ctx context.Context, filter ActionFilter) (<-chan ActionMessage, error)
	ObserveTransfers(ctx context.Context, filter TransferFilter) (<-chan TransferMessage, error)
	SubmitAction(ctx context.Context, name string, from, target AccountID, payload []byte, cid ContextID) error
	SubmitTransfer(ctx context.Context, from, to AccountID, amount decimal.Decimal, metadata []MetadataEntry, cid ContextID) error
}

// RateSource provides the live exchange rate between two configured
// currencies. The rate registry is the production implementation.
type RateSource interface {
	Rate(from, to string) (decimal.Decimal, error)
}

// SwapJournal records swap lifecycle milestones for audit. It is advisory
// only: nothing is ever read back to recover in-flight state.
type SwapJournal interface {
	UpsertSwap(rec *SwapRecord) error
	GetSwap(contextID string) (*SwapRecord, error)
}
