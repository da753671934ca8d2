// Command fxswap-cli drives a swap from the initiator's side: "initiate"
// publishes a swap request and prints the quote that comes back, "execute"
// commits to a previously received quote by funding the intermediary with an
// attached execute directive and waits for the completion announcement.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fxswap_go/internal/domain"
	"fxswap_go/internal/infra/ledger"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "initiate":
		err = runInitiate(os.Args[2:])
	case "execute":
		err = runExecute(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  fxswap-cli initiate -key <pem> -from <account> -to <account> -amount <n> [flags]
  fxswap-cli execute  -key <pem> -context <id> -margin <fraction> [flags]

run "fxswap-cli <command> -h" for the full flag list`)
}

// gatewayFlags are shared by both subcommands.
type gatewayFlags struct {
	httpURL string
	wsURL   string
	keyPair string
	timeout time.Duration
}

func (g *gatewayFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&g.httpURL, "http", envOr("FXSWAP_LEDGER_HTTP_URL", "http://localhost:8080"), "ledger gateway HTTP URL")
	fs.StringVar(&g.wsURL, "ws", envOr("FXSWAP_LEDGER_WS_URL", "ws://localhost:8080"), "ledger gateway websocket URL")
	fs.StringVar(&g.keyPair, "key", "", "path to the signing key in PEM (PKCS#8)")
	fs.DurationVar(&g.timeout, "timeout", 60*time.Second, "how long to wait for the counterparty")
}

func (g *gatewayFlags) client() (*ledger.Client, error) {
	if g.keyPair == "" {
		return nil, errors.New("-key is required")
	}
	signer, err := ledger.LoadSigner(g.keyPair)
	if err != nil {
		return nil, err
	}
	return ledger.NewClient(g.httpURL, g.wsURL, g.timeout, signer), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runInitiate(args []string) error {
	fs := flag.NewFlagSet("initiate", flag.ExitOnError)
	var gw gatewayFlags
	gw.register(fs)
	from := fs.String("from", "", "initiator's source-currency account")
	to := fs.String("to", "", "recipient's destination-currency account")
	amountStr := fs.String("amount", "", "amount to swap, in the source currency")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *from == "" || *to == "" || *amountStr == "" {
		return errors.New("-from, -to and -amount are required")
	}
	amount, err := decimal.NewFromString(*amountStr)
	if err != nil {
		return fmt.Errorf("parsing amount: %w", err)
	}

	client, err := gw.client()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), gw.timeout)
	defer cancel()

	// A fresh context id correlates everything that follows, through to the
	// completion announcement.
	cid := domain.ContextID(uuid.NewString())
	req := domain.Request{
		From:   domain.AccountID(*from),
		To:     domain.AccountID(*to),
		Amount: amount,
	}

	// Subscribe before publishing so the quote cannot slip past us.
	stream, err := client.ObserveActions(ctx, domain.ActionFilter{
		Name:     domain.ActionFXSwap,
		Involves: req.From,
	})
	if err != nil {
		return fmt.Errorf("subscribing for quotes: %w", err)
	}

	payload, err := domain.EncodeEvent(domain.Event{Request: &req})
	if err != nil {
		return err
	}
	if err := client.SubmitAction(ctx, domain.ActionFXSwap, req.From, req.To, payload, cid); err != nil {
		return fmt.Errorf("publishing swap request: %w", err)
	}
	fmt.Printf("swap requested\n  context: %s\n  amount:  %s\n", cid, amount)

	for msg := range stream {
		if msg.Context != cid {
			continue
		}
		ev, err := domain.DecodeEvent(msg.Payload)
		if err != nil || ev.Quote == nil {
			continue
		}
		fmt.Printf("quote received\n  rate:         %s\n  intermediary: %s\n", ev.Quote.Rate, ev.Quote.Intermediary)
		fmt.Printf("\nto commit:\n  fxswap-cli execute -key %s -context %s -margin 0.05\n", gw.keyPair, cid)
		return nil
	}
	return fmt.Errorf("no quote within %s", gw.timeout)
}

func runExecute(args []string) error {
	fs := flag.NewFlagSet("execute", flag.ExitOnError)
	var gw gatewayFlags
	gw.register(fs)
	cidStr := fs.String("context", "", "context id printed by initiate")
	marginStr := fs.String("margin", "0.05", "tolerated rate drift as a fraction of the quoted rate")
	validFor := fs.Duration("valid-for", 5*time.Minute, "how long the committed band stays in force")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *cidStr == "" {
		return errors.New("-context is required")
	}
	margin, err := decimal.NewFromString(*marginStr)
	if err != nil {
		return fmt.Errorf("parsing margin: %w", err)
	}
	if margin.Sign() < 0 || margin.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("margin must be in [0, 1), got %s", margin)
	}

	client, err := gw.client()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), gw.timeout)
	defer cancel()

	cid := domain.ContextID(*cidStr)
	quote, err := findQuote(ctx, client, cid)
	if err != nil {
		return err
	}

	one := decimal.NewFromInt(1)
	exec := domain.Execute{
		Request:    quote.Request,
		ValidUntil: time.Now().Add(*validFor).Unix(),
		UpperLimit: quote.Rate.Mul(one.Add(margin)),
		LowerLimit: quote.Rate.Mul(one.Sub(margin)),
	}
	execPayload, err := domain.EncodeEvent(domain.Event{Execute: &exec})
	if err != nil {
		return err
	}

	// Watch for the completion before funding, same race avoidance as
	// initiate.
	stream, err := client.ObserveActions(ctx, domain.ActionFilter{
		Name:     domain.ActionFXSwap,
		Involves: quote.Request.From,
	})
	if err != nil {
		return fmt.Errorf("subscribing for completion: %w", err)
	}

	// Funding the intermediary with the execute directive attached is the
	// commitment; from here the liquidity node owns the swap.
	metadata := []domain.MetadataEntry{{Type: domain.MetadataFXExecute, Value: execPayload}}
	if err := client.SubmitTransfer(ctx, quote.Request.From, quote.Intermediary, quote.Request.Amount, metadata, cid); err != nil {
		return fmt.Errorf("funding transfer: %w", err)
	}
	fmt.Printf("swap committed\n  band:  [%s, %s)\n  until: %s\n",
		exec.LowerLimit, exec.UpperLimit, time.Unix(exec.ValidUntil, 0).Format(time.RFC3339))

	for msg := range stream {
		if msg.Context != cid {
			continue
		}
		ev, err := domain.DecodeEvent(msg.Payload)
		if err != nil || !ev.Completed {
			continue
		}
		fmt.Println("swap completed")
		return nil
	}
	return fmt.Errorf("no completion within %s; the swap may still settle later", gw.timeout)
}

// findQuote retrieves the quote published under cid.
func findQuote(ctx context.Context, client *ledger.Client, cid domain.ContextID) (*domain.Quote, error) {
	actions, err := client.ListActions(ctx, domain.ActionFXSwap, cid, 100)
	if err != nil {
		return nil, fmt.Errorf("listing actions for context %s: %w", cid, err)
	}
	for _, msg := range actions {
		ev, err := domain.DecodeEvent(msg.Payload)
		if err != nil {
			continue
		}
		if ev.Quote != nil {
			return ev.Quote, nil
		}
	}
	return nil, fmt.Errorf("no quote found for context %s", cid)
}
