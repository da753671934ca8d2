package node

import (
	"fmt"
	"log/slog"
	"time"

	"fxswap_go/internal/domain"
)

const defaultPollInterval = 10 * time.Second

// Config assembles one liquidity node.
type Config struct {
	// Currency is the code this node provides liquidity for.
	Currency string
	// Liquidity is this node's liquidity account on the ledger.
	Liquidity domain.AccountID
	// Ledger is the signing client handle for this currency.
	Ledger domain.LedgerClient
	// Rates provides live swap rates (the rate registry in production).
	Rates domain.RateSource
	// Journal is optional; nil disables audit records.
	Journal domain.SwapJournal
	// PollInterval is the swap monitor tick cadence; zero selects the
	// 10 second default.
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Node is one currency's liquidity provider: it quotes swap requests whose
// source currency matches its own, and it settles Execute commitments
// addressed to its liquidity account. One request listener and one
// settlement listener run per node; each detected Execute spawns an
// independent swap monitor.
type Node struct {
	currency     string
	liquidity    domain.AccountID
	ledger       domain.LedgerClient
	rates        domain.RateSource
	journal      domain.SwapJournal
	pollInterval time.Duration
	logger       *slog.Logger
}

// New validates the configuration and builds a node.
func New(cfg Config) (*Node, error) {
	if cfg.Currency == "" {
		return nil, fmt.Errorf("node: currency is required")
	}
	if cfg.Liquidity == "" {
		return nil, fmt.Errorf("node: liquidity account is required")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("node: ledger client is required")
	}
	if cfg.Rates == nil {
		return nil, fmt.Errorf("node: rate source is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Node{
		currency:     cfg.Currency,
		liquidity:    cfg.Liquidity,
		ledger:       cfg.Ledger,
		rates:        cfg.Rates,
		journal:      cfg.Journal,
		pollInterval: cfg.PollInterval,
		logger:       logger.With(slog.String("currency", cfg.Currency)),
	}, nil
}

// Currency returns the node's currency code.
func (n *Node) Currency() string {
	return n.currency
}

// journalSwap writes an audit record if a journal is configured. Journal
// failures never affect the swap itself.
func (n *Node) journalSwap(rec *domain.SwapRecord) {
	if n.journal == nil {
		return
	}
	if err := n.journal.UpsertSwap(rec); err != nil {
		n.logger.Warn("journal write failed",
			slog.String("context_id", rec.ContextID),
			slog.Any("error", err),
		)
	}
}
