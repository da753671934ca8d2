package storage

import (
	"path/filepath"
	"testing"

	"fxswap_go/internal/domain"

	"github.com/shopspring/decimal"
)

func setupTestDB(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	return s
}

func TestUpsertAndGetSwap(t *testing.T) {
	s := setupTestDB(t)

	rec := &domain.SwapRecord{
		ContextID:   "ctx1",
		State:       "quoted",
		FromAccount: "aa01",
		ToAccount:   "bb02",
		Amount:      decimal.RequireFromString("100"),
		Rate:        decimal.RequireFromString("0.9"),
	}

	// 1. Create
	if err := s.UpsertSwap(rec); err != nil {
		t.Fatalf("UpsertSwap failed: %v", err)
	}

	// 2. Get
	fetched, err := s.GetSwap("ctx1")
	if err != nil {
		t.Fatalf("GetSwap failed: %v", err)
	}
	if fetched == nil {
		t.Fatal("fetched record is nil")
	}
	if fetched.State != "quoted" {
		t.Errorf("state = %s, want quoted", fetched.State)
	}
	if !fetched.Rate.Equal(decimal.RequireFromString("0.9")) {
		t.Errorf("rate = %v, want 0.9", fetched.Rate)
	}
}

func TestUpdateSwapState(t *testing.T) {
	s := setupTestDB(t)

	rec := &domain.SwapRecord{
		ContextID: "ctx1",
		State:     string(domain.StateArmed),
		Amount:    decimal.RequireFromString("100"),
	}
	if err := s.UpsertSwap(rec); err != nil {
		t.Fatalf("UpsertSwap failed: %v", err)
	}

	rec.State = string(domain.StateCompleted)
	rec.SettledAmount = decimal.RequireFromString("80")
	rec.Reason = domain.TriggerBand
	if err := s.UpsertSwap(rec); err != nil {
		t.Fatalf("UpsertSwap update failed: %v", err)
	}

	fetched, err := s.GetSwap("ctx1")
	if err != nil {
		t.Fatalf("GetSwap failed: %v", err)
	}
	if fetched.State != string(domain.StateCompleted) {
		t.Errorf("state = %s, want completed", fetched.State)
	}
	if !fetched.SettledAmount.Equal(decimal.RequireFromString("80")) {
		t.Errorf("settled amount = %v, want 80", fetched.SettledAmount)
	}
}

func TestGetSwap_Missing(t *testing.T) {
	s := setupTestDB(t)

	fetched, err := s.GetSwap("nope")
	if err != nil {
		t.Fatalf("GetSwap failed: %v", err)
	}
	if fetched != nil {
		t.Error("expected nil for missing record")
	}
}

func TestListSwapsByState(t *testing.T) {
	s := setupTestDB(t)

	for _, rec := range []*domain.SwapRecord{
		{ContextID: "a", State: "quoted"},
		{ContextID: "b", State: string(domain.StateCompleted)},
		{ContextID: "c", State: string(domain.StateCompleted)},
	} {
		if err := s.UpsertSwap(rec); err != nil {
			t.Fatalf("UpsertSwap failed: %v", err)
		}
	}

	done, err := s.ListSwapsByState(string(domain.StateCompleted))
	if err != nil {
		t.Fatalf("ListSwapsByState failed: %v", err)
	}
	if len(done) != 2 {
		t.Errorf("got %d completed records, want 2", len(done))
	}

	all, err := s.ListSwaps()
	if err != nil {
		t.Fatalf("ListSwaps failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d records, want 3", len(all))
	}
}
