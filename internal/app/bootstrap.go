package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fxswap_go/internal/domain"
	"fxswap_go/internal/infra"
	"fxswap_go/internal/infra/ledger"
	"fxswap_go/internal/infra/storage"
	"fxswap_go/internal/node"
	"fxswap_go/internal/registry"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config   *infra.Config
	Storage  *storage.Storage
	Registry *registry.Registry
	Nodes    []*node.Node
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization: config, logging, the swap
// journal, one signing ledger client per configured currency, the rate
// registry, and finally the liquidity nodes themselves.
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping FX Swap...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Swap journal (optional audit trail)
	var journal domain.SwapJournal
	if !cfg.Journal.Disabled {
		store, err := storage.NewStorage(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("opening swap journal: %w", err)
		}
		b.Storage = store
		journal = store
		slog.Info("✅ Swap journal initialized")
	}

	// 4. One signing ledger client per currency
	timeout := time.Duration(cfg.Ledger.TimeoutSec) * time.Second
	entries := make(map[string]registry.Entry, len(cfg.Liquidity))
	for code, liq := range cfg.Liquidity {
		signer, err := ledger.LoadSigner(liq.KeyPair)
		if err != nil {
			return fmt.Errorf("loading key pair for %s: %w", code, err)
		}
		entries[code] = registry.Entry{
			LiquidityAccount: domain.AccountID(liq.Account),
			BaseRate:         liq.BaseRate,
			Ledger:           ledger.NewClient(cfg.Ledger.HTTPURL, cfg.Ledger.WSURL, timeout, signer),
		}
	}

	// 5. The rate registry is frozen here; every node reads it lock-free.
	reg, err := registry.New(entries)
	if err != nil {
		return err
	}
	b.Registry = reg
	slog.Info("✅ Rate registry built", slog.Any("currencies", reg.Currencies()))

	// 6. One liquidity node per currency
	pollInterval := time.Duration(cfg.Swap.PollIntervalSec) * time.Second
	for _, code := range reg.Currencies() {
		entry, _ := reg.Entry(code)
		n, err := node.New(node.Config{
			Currency:     code,
			Liquidity:    entry.LiquidityAccount,
			Ledger:       entry.Ledger,
			Rates:        reg,
			Journal:      journal,
			PollInterval: pollInterval,
			Logger:       logger,
		})
		if err != nil {
			return fmt.Errorf("building %s node: %w", code, err)
		}
		b.Nodes = append(b.Nodes, n)
	}
	slog.Info("✅ Liquidity nodes ready", slog.Int("count", len(b.Nodes)))

	return nil
}

// Run starts both listeners of every node and blocks until ctx is done.
// A listener error tears down nothing else; the failed loop is logged and
// the remaining listeners keep serving their currencies.
func (b *Bootstrap) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, n := range b.Nodes {
		wg.Add(2)
		go func(n *node.Node) {
			defer wg.Done()
			if err := n.RunRequestListener(ctx, 0); err != nil && ctx.Err() == nil {
				slog.Error("request listener stopped",
					slog.String("currency", n.Currency()),
					slog.Any("error", err),
				)
			}
		}(n)
		go func(n *node.Node) {
			defer wg.Done()
			if err := n.RunSettlementListener(ctx); err != nil && ctx.Err() == nil {
				slog.Error("settlement listener stopped",
					slog.String("currency", n.Currency()),
					slog.Any("error", err),
				)
			}
		}(n)
		slog.InfoContext(ctx, "✅ Node listeners started", slog.String("currency", n.Currency()))
	}

	<-ctx.Done()
	wg.Wait()
}
