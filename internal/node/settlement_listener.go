package node

import (
	"context"
	"log/slog"

	"fxswap_go/internal/domain"
	"fxswap_go/internal/infra"
)

// RunSettlementListener consumes completed transfers involving this node's
// liquidity account, extracts embedded Execute directives, and spawns one
// independent swap monitor per directive. The listener itself never waits
// for a monitor; new transfers must not queue behind a slow swap.
func (n *Node) RunSettlementListener(ctx context.Context) error {
	stream, err := n.ledger.ObserveTransfers(ctx, domain.TransferFilter{
		Involves: n.liquidity,
	})
	if err != nil {
		return err
	}

	n.logger.Info("settlement listener started")
	for msg := range stream {
		n.handleTransfer(ctx, msg)
	}
	return ctx.Err()
}

func (n *Node) handleTransfer(ctx context.Context, msg domain.TransferMessage) {
	var execPayload []byte
	for _, m := range msg.Metadata {
		if m.Type == domain.MetadataFXExecute {
			execPayload = m.Value
			break
		}
	}
	if execPayload == nil {
		// Unrelated transfer.
		return
	}

	ev, err := domain.DecodeEvent(execPayload)
	if err != nil {
		n.logger.Warn("discarding malformed execute metadata",
			slog.String("context_id", string(msg.Context)),
			slog.Any("error", err),
		)
		infra.GlobalMetrics.RecordError()
		return
	}
	if ev.Execute == nil {
		// A non-Execute event under the execute metadata type is a
		// taxonomy violation by the sender.
		n.logger.Warn("discarding execute metadata with wrong variant",
			slog.String("context_id", string(msg.Context)),
			slog.String("variant", ev.Kind()),
			slog.Any("error", domain.ErrUnexpectedEvent),
		)
		infra.GlobalMetrics.RecordError()
		return
	}

	mon := NewMonitor(n, *ev.Execute, msg.Context)
	n.logger.Info("spawning swap monitor",
		slog.String("context_id", string(msg.Context)),
		slog.String("amount", ev.Execute.Request.Amount.String()),
	)

	// Fire-and-forget: no caller waits for an individual swap, so the
	// monitor's eventual error is logged here instead of propagated.
	go func() {
		if err := mon.Run(ctx); err != nil {
			n.logger.Error("swap monitor failed",
				slog.String("context_id", string(msg.Context)),
				slog.Any("error", err),
			)
			infra.GlobalMetrics.RecordError()
		}
	}()
}
