package ledger

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"fxswap_go/internal/domain"
)

func newTestClient(t *testing.T, httpURL, wsURL string) *Client {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return NewClient(httpURL, wsURL, 5*time.Second, NewSigner(priv))
}

func TestClient_ResolveAccount(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/accounts/aa01" {
				t.Errorf("path = %s", r.URL.Path)
			}
			if r.Header.Get("X-Ledger-Signature") == "" {
				t.Error("request is not signed")
			}
			json.NewEncoder(w).Encode(accountResponse{ID: "aa01", Currency: "usd", DecimalPlaces: 2})
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL, "")
		info, err := c.ResolveAccount(context.Background(), "aa01")
		if err != nil {
			t.Fatalf("ResolveAccount failed: %v", err)
		}
		if info.Currency != "usd" || info.DecimalPlaces != 2 {
			t.Errorf("info = %+v", info)
		}
	})

	t.Run("not found is fatal", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL, "")
		_, err := c.ResolveAccount(context.Background(), "zz99")
		if !errors.Is(err, domain.ErrAccountNotFound) {
			t.Fatalf("expected ErrAccountNotFound, got %v", err)
		}
		if domain.IsRetriable(err) {
			t.Error("not-found should not be retriable")
		}
	})

	t.Run("server error is retriable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL, "")
		_, err := c.ResolveAccount(context.Background(), "aa01")
		if err == nil {
			t.Fatal("expected error")
		}
		if !domain.IsRetriable(err) {
			t.Error("gateway error should be retriable")
		}
	})
}

func TestClient_SubmitAction(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		var got submitActionRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/actions" {
				t.Errorf("path = %s", r.URL.Path)
			}
			json.NewDecoder(r.Body).Decode(&got)
			json.NewEncoder(w).Encode(submitResponse{TxID: 7})
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL, "")
		payload := []byte(`"Completed"`)
		err := c.SubmitAction(context.Background(), domain.ActionFXSwap, "aa01", "bb02", payload, "ctx1")
		if err != nil {
			t.Fatalf("SubmitAction failed: %v", err)
		}
		if got.Name != domain.ActionFXSwap || got.From != "aa01" || got.Target != "bb02" || got.ContextID != "ctx1" {
			t.Errorf("submitted = %+v", got)
		}
		if string(got.Payload) != `"Completed"` {
			t.Errorf("payload = %s", got.Payload)
		}
	})

	t.Run("transaction error is fatal", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(submitResponse{Error: "insufficient funds"})
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL, "")
		err := c.SubmitTransfer(context.Background(), "aa01", "bb02", decimal.NewFromInt(80), nil, "ctx1")
		if err == nil {
			t.Fatal("expected error")
		}
		if domain.IsRetriable(err) {
			t.Error("rejected transaction must not be retriable")
		}
	})
}

func TestClient_ObserveActions(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/observe/actions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("name") != domain.ActionFXSwap {
			t.Errorf("name = %s", r.URL.Query().Get("name"))
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 1; i <= 2; i++ {
			env := actionEnvelope{
				TxID:      uint64(i),
				ContextID: "ctx1",
				Name:      domain.ActionFXSwap,
				From:      "aa01",
				Target:    "bb02",
				Payload:   json.RawMessage(`"Completed"`),
			}
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		conn.ReadMessage()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := newTestClient(t, srv.URL, wsURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := c.ObserveActions(ctx, domain.ActionFilter{Name: domain.ActionFXSwap, Involves: "aa01"})
	if err != nil {
		t.Fatalf("ObserveActions failed: %v", err)
	}

	for want := uint64(1); want <= 2; want++ {
		select {
		case msg := <-stream:
			if msg.TxID != want {
				t.Errorf("tx id = %d, want %d", msg.TxID, want)
			}
			if msg.Context != "ctx1" {
				t.Errorf("context = %s, want ctx1", msg.Context)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for message %d", want)
		}
	}

	// Cancelling the context closes the stream channel.
	cancel()
	select {
	case _, open := <-stream:
		if open {
			// A queued message is fine; the channel must close eventually.
			select {
			case _, open = <-stream:
				if open {
					t.Error("stream channel should close after cancel")
				}
			case <-time.After(5 * time.Second):
				t.Fatal("stream channel did not close")
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("stream channel did not close")
	}
}
