package node

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fxswap_go/internal/domain"
	"fxswap_go/internal/infra"
)

// Monitor owns exactly one in-flight swap's lifecycle, from the Execute
// commitment to the Completed announcement.
//
// States: Armed -> Settling -> Completed. While Armed the monitor polls the
// live rate on a fixed cadence; it settles on the first tick where the rate
// leaves the committed band or the commitment expires. Settling is entered
// exactly once, so at most one settlement transfer and one announcement are
// ever submitted.
type Monitor struct {
	node *Node
	exec domain.Execute
	cid  domain.ContextID

	mu    sync.RWMutex
	state domain.SwapState
}

// NewMonitor arms a monitor for one Execute directive.
func NewMonitor(n *Node, exec domain.Execute, cid domain.ContextID) *Monitor {
	return &Monitor{
		node:  n,
		exec:  exec,
		cid:   cid,
		state: domain.StateArmed,
	}
}

// State returns the monitor's current lifecycle state.
func (m *Monitor) State() domain.SwapState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Monitor) setState(s domain.SwapState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Run drives the swap to completion. It returns when the swap settles, when
// it cannot ever settle (unknown currency pair), or when ctx is torn down.
// Errors are the spawner's to log; no other swap is affected.
func (m *Monitor) Run(ctx context.Context) error {
	n := m.node
	infra.GlobalMetrics.MonitorStarted()
	defer infra.GlobalMetrics.MonitorFinished()

	// Currency resolution for the pair happens once at spawn; every later
	// tick reads only the rate registry.
	fromInfo, err := n.ledger.ResolveAccount(ctx, m.exec.Request.From)
	if err != nil {
		return fmt.Errorf("arming swap %s: %w", m.cid, err)
	}
	toInfo, err := n.ledger.ResolveAccount(ctx, m.exec.Request.To)
	if err != nil {
		return fmt.Errorf("arming swap %s: %w", m.cid, err)
	}

	lastRate, err := n.rates.Rate(fromInfo.Currency, toInfo.Currency)
	if err != nil {
		// An unknown pair can never produce a rate; abort this one swap.
		return fmt.Errorf("arming swap %s: %w", m.cid, err)
	}

	validUntil := time.Unix(m.exec.ValidUntil, 0)
	n.journalSwap(&domain.SwapRecord{
		ContextID:   string(m.cid),
		State:       string(domain.StateArmed),
		FromAccount: string(m.exec.Request.From),
		ToAccount:   string(m.exec.Request.To),
		Amount:      m.exec.Request.Amount,
		Rate:        lastRate,
	})
	n.logger.Info("swap armed",
		slog.String("context_id", string(m.cid)),
		slog.String("lower_limit", m.exec.LowerLimit.String()),
		slog.String("upper_limit", m.exec.UpperLimit.String()),
		slog.Time("valid_until", validUntil),
	)

	ticker := time.NewTicker(n.pollInterval)
	defer ticker.Stop()

	for {
		rate, err := n.rates.Rate(fromInfo.Currency, toInfo.Currency)
		if err != nil {
			// Transient registry trouble must not abort an otherwise valid
			// in-flight swap; try again next tick.
			n.logger.Warn("rate lookup failed, skipping tick",
				slog.String("context_id", string(m.cid)),
				slog.Any("error", err),
			)
		} else {
			lastRate = rate
			if m.bandBreached(rate) {
				return m.settle(ctx, rate, domain.TriggerBand)
			}
		}

		if time.Now().After(validUntil) {
			return m.settle(ctx, lastRate, domain.TriggerDeadline)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// bandBreached reports whether the rate left the half-open commitment band
// [lower, upper). The boundary asymmetry is deliberate: a rate equal to the
// upper limit counts as breached, a rate equal to the lower limit does not.
func (m *Monitor) bandBreached(rate decimal.Decimal) bool {
	return rate.GreaterThanOrEqual(m.exec.UpperLimit) || rate.LessThan(m.exec.LowerLimit)
}

// settle performs the terminal transition: one transfer to the destination
// account, then one Completed announcement to the source account, both
// carrying the swap's correlation context. A failure after the transfer is
// never retried here; replaying the transfer step risks duplicate
// settlement, so manual intervention wins over automation.
func (m *Monitor) settle(ctx context.Context, rate decimal.Decimal, reason string) error {
	n := m.node
	m.setState(domain.StateSettling)

	amount := m.exec.Request.Amount.Mul(rate)
	n.logger.Info("settling swap",
		slog.String("context_id", string(m.cid)),
		slog.String("reason", reason),
		slog.String("rate", rate.String()),
		slog.String("amount", amount.String()),
	)
	n.journalSwap(&domain.SwapRecord{
		ContextID:   string(m.cid),
		State:       string(domain.StateSettling),
		FromAccount: string(m.exec.Request.From),
		ToAccount:   string(m.exec.Request.To),
		Amount:      m.exec.Request.Amount,
		Rate:        rate,
		Reason:      reason,
	})

	if err := n.ledger.SubmitTransfer(ctx, n.liquidity, m.exec.Request.To, amount, nil, m.cid); err != nil {
		return fmt.Errorf("settlement transfer for swap %s: %w", m.cid, err)
	}

	payload, err := domain.EncodeEvent(domain.NewCompletedEvent())
	if err != nil {
		return fmt.Errorf("encoding completion for swap %s: %w", m.cid, err)
	}
	if err := n.ledger.SubmitAction(ctx, domain.ActionFXSwap, n.liquidity, m.exec.Request.From, payload, m.cid); err != nil {
		return fmt.Errorf("completion announcement for swap %s: %w", m.cid, err)
	}

	m.setState(domain.StateCompleted)
	infra.GlobalMetrics.RecordSettlement()
	n.journalSwap(&domain.SwapRecord{
		ContextID:     string(m.cid),
		State:         string(domain.StateCompleted),
		FromAccount:   string(m.exec.Request.From),
		ToAccount:     string(m.exec.Request.To),
		Amount:        m.exec.Request.Amount,
		Rate:          rate,
		SettledAmount: amount,
		Reason:        reason,
	})
	n.logger.Info("swap completed",
		slog.String("context_id", string(m.cid)),
		slog.String("settled_amount", amount.String()),
	)
	return nil
}
