package node

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fxswap_go/internal/domain"
)

// fakeLedger is an in-memory stand-in for the ledger gateway. Streams are
// fed by tests; submissions are recorded for assertions.
type fakeLedger struct {
	mu         sync.Mutex
	accounts   map[domain.AccountID]domain.AccountInfo
	resolveErr map[domain.AccountID]error

	actionsCh   chan domain.ActionMessage
	transfersCh chan domain.TransferMessage

	actions   []submittedAction
	transfers []submittedTransfer

	submitActionErr   error
	submitTransferErr error
}

type submittedAction struct {
	Name    string
	From    domain.AccountID
	Target  domain.AccountID
	Payload []byte
	Context domain.ContextID
}

type submittedTransfer struct {
	From     domain.AccountID
	To       domain.AccountID
	Amount   decimal.Decimal
	Metadata []domain.MetadataEntry
	Context  domain.ContextID
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		accounts:    make(map[domain.AccountID]domain.AccountInfo),
		resolveErr:  make(map[domain.AccountID]error),
		actionsCh:   make(chan domain.ActionMessage, 16),
		transfersCh: make(chan domain.TransferMessage, 16),
	}
}

func (f *fakeLedger) addAccount(id domain.AccountID, currency string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[id] = domain.AccountInfo{Currency: currency, DecimalPlaces: 2}
}

func (f *fakeLedger) ResolveAccount(_ context.Context, id domain.AccountID) (*domain.AccountInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.resolveErr[id]; ok {
		return nil, err
	}
	info, ok := f.accounts[id]
	if !ok {
		return nil, domain.NewFatalLedgerError("resolve", domain.ErrAccountNotFound)
	}
	return &info, nil
}

func (f *fakeLedger) ObserveActions(context.Context, domain.ActionFilter) (<-chan domain.ActionMessage, error) {
	return f.actionsCh, nil
}

func (f *fakeLedger) ObserveTransfers(context.Context, domain.TransferFilter) (<-chan domain.TransferMessage, error) {
	return f.transfersCh, nil
}

func (f *fakeLedger) SubmitAction(_ context.Context, name string, from, target domain.AccountID, payload []byte, cid domain.ContextID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitActionErr != nil {
		return f.submitActionErr
	}
	f.actions = append(f.actions, submittedAction{
		Name: name, From: from, Target: target, Payload: payload, Context: cid,
	})
	return nil
}

func (f *fakeLedger) SubmitTransfer(_ context.Context, from, to domain.AccountID, amount decimal.Decimal, metadata []domain.MetadataEntry, cid domain.ContextID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitTransferErr != nil {
		return f.submitTransferErr
	}
	f.transfers = append(f.transfers, submittedTransfer{
		From: from, To: to, Amount: amount, Metadata: metadata, Context: cid,
	})
	return nil
}

func (f *fakeLedger) submittedActions() []submittedAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submittedAction(nil), f.actions...)
}

func (f *fakeLedger) submittedTransfers() []submittedTransfer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submittedTransfer(nil), f.transfers...)
}

// fakeRates is a mutable rate source for driving monitor ticks.
type fakeRates struct {
	mu   sync.Mutex
	rate decimal.Decimal
	err  error
}

func (r *fakeRates) Rate(_, _ string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return decimal.Decimal{}, r.err
	}
	return r.rate, nil
}

func (r *fakeRates) set(rate decimal.Decimal) {
	r.mu.Lock()
	r.rate = rate
	r.err = nil
	r.mu.Unlock()
}

func (r *fakeRates) fail(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// waitFor polls until cond holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
