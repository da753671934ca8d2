package registry

import (
	"fmt"
	"sort"
	"strings"

	"fxswap_go/internal/domain"

	"github.com/shopspring/decimal"
)

// Entry holds everything one currency's liquidity node needs: its liquidity
// account, its configured base rate relative to the common reference unit,
// and the signing client handle for that currency.
type Entry struct {
	LiquidityAccount domain.AccountID
	BaseRate         decimal.Decimal
	Ledger           domain.LedgerClient
}

// Registry maps currency codes to their liquidity entries. It is built once
// at startup and never mutated afterwards, so an unbounded number of
// concurrent readers need no locking.
type Registry struct {
	entries map[string]Entry
}

// New validates and freezes the given entries. Currency codes are
// case-insensitive and stored lowercased.
func New(entries map[string]Entry) (*Registry, error) {
	if len(entries) == 0 {
		return nil, &domain.ConfigError{Field: "liquidity", Err: fmt.Errorf("no currencies configured")}
	}
	frozen := make(map[string]Entry, len(entries))
	for code, e := range entries {
		code = strings.ToLower(code)
		if e.BaseRate.Sign() <= 0 {
			return nil, &domain.ConfigError{
				Field: "liquidity." + code + ".base_rate",
				Err:   fmt.Errorf("base rate must be positive, got %s", e.BaseRate),
			}
		}
		if e.LiquidityAccount == "" {
			return nil, &domain.ConfigError{
				Field: "liquidity." + code + ".account",
				Err:   fmt.Errorf("liquidity account is required"),
			}
		}
		frozen[code] = e
	}
	return &Registry{entries: frozen}, nil
}

// Entry returns the entry for a currency code.
func (r *Registry) Entry(code string) (Entry, bool) {
	e, ok := r.entries[strings.ToLower(code)]
	return e, ok
}

// Rate quotes the swap rate from one currency into another:
// to.BaseRate / from.BaseRate. Pure; fails with UnknownCurrencyError when
// either code is not configured.
func (r *Registry) Rate(from, to string) (decimal.Decimal, error) {
	fromEntry, ok := r.entries[strings.ToLower(from)]
	if !ok {
		return decimal.Decimal{}, &domain.UnknownCurrencyError{Code: from}
	}
	toEntry, ok := r.entries[strings.ToLower(to)]
	if !ok {
		return decimal.Decimal{}, &domain.UnknownCurrencyError{Code: to}
	}
	return toEntry.BaseRate.Div(fromEntry.BaseRate), nil
}

// Currencies returns the configured currency codes, sorted.
func (r *Registry) Currencies() []string {
	codes := make([]string, 0, len(r.entries))
	for code := range r.entries {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
