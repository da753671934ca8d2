package node

import (
	"context"
	"log/slog"
	"strings"

	"fxswap_go/internal/domain"
	"fxswap_go/internal/infra"
)

// RunRequestListener consumes the ledger's swap-request actions involving
// this node's liquidity account and answers matching Requests with signed
// Quotes. startingFrom resumes after an already-handled ledger position;
// zero starts from now.
//
// The loop runs until ctx is done. One bad message never halts it.
func (n *Node) RunRequestListener(ctx context.Context, startingFrom uint64) error {
	stream, err := n.ledger.ObserveActions(ctx, domain.ActionFilter{
		Name:         domain.ActionFXSwap,
		Involves:     n.liquidity,
		StartingFrom: startingFrom,
	})
	if err != nil {
		return err
	}

	n.logger.Info("request listener started", slog.Uint64("starting_from", startingFrom))
	for msg := range stream {
		n.handleAction(ctx, msg)
	}
	return ctx.Err()
}

func (n *Node) handleAction(ctx context.Context, msg domain.ActionMessage) {
	ev, err := domain.DecodeEvent(msg.Payload)
	if err != nil {
		n.logger.Warn("discarding malformed action payload",
			slog.String("context_id", string(msg.Context)),
			slog.Any("error", err),
		)
		infra.GlobalMetrics.RecordError()
		return
	}
	if ev.Request == nil {
		// Quotes and Completed announcements flow on the same action name;
		// they are someone else's concern here.
		return
	}
	req := *ev.Request

	fromInfo, err := n.ledger.ResolveAccount(ctx, req.From)
	if err != nil {
		// The request stays observable on the ledger; the initiator times
		// out and retries at a higher level.
		n.logger.Warn("dropping request, source account lookup failed",
			slog.String("context_id", string(msg.Context)),
			slog.Any("error", err),
		)
		infra.GlobalMetrics.RecordError()
		return
	}
	toInfo, err := n.ledger.ResolveAccount(ctx, req.To)
	if err != nil {
		n.logger.Warn("dropping request, destination account lookup failed",
			slog.String("context_id", string(msg.Context)),
			slog.Any("error", err),
		)
		infra.GlobalMetrics.RecordError()
		return
	}

	if !strings.EqualFold(fromInfo.Currency, n.currency) {
		// Another node's currency; that node quotes it.
		n.logger.Debug("ignoring request for foreign source currency",
			slog.String("context_id", string(msg.Context)),
			slog.String("source_currency", fromInfo.Currency),
		)
		return
	}

	rate, err := n.rates.Rate(fromInfo.Currency, toInfo.Currency)
	if err != nil {
		n.logger.Warn("dropping request, no rate for pair",
			slog.String("context_id", string(msg.Context)),
			slog.String("from", fromInfo.Currency),
			slog.String("to", toInfo.Currency),
			slog.Any("error", err),
		)
		infra.GlobalMetrics.RecordError()
		return
	}

	quote := domain.Quote{
		Request:      req,
		Rate:         rate,
		Intermediary: n.liquidity,
	}
	payload, err := domain.EncodeEvent(domain.Event{Quote: &quote})
	if err != nil {
		n.logger.Error("encoding quote failed", slog.Any("error", err))
		return
	}

	// Single attempt: at-most-once quoting.
	if err := n.ledger.SubmitAction(ctx, domain.ActionFXSwap, n.liquidity, req.From, payload, msg.Context); err != nil {
		n.logger.Error("could not publish quote",
			slog.String("context_id", string(msg.Context)),
			slog.Any("error", err),
		)
		infra.GlobalMetrics.RecordError()
		return
	}
	infra.GlobalMetrics.RecordQuote()

	n.journalSwap(&domain.SwapRecord{
		ContextID:   string(msg.Context),
		State:       "quoted",
		FromAccount: string(req.From),
		ToAccount:   string(req.To),
		Amount:      req.Amount,
		Rate:        rate,
	})
	n.logger.Info("published quote",
		slog.String("context_id", string(msg.Context)),
		slog.String("rate", rate.String()),
		slog.String("amount", req.Amount.String()),
	)
}
