package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fxswap_go/internal/domain"
	"fxswap_go/internal/infra"
)

// ObserveActions subscribes to the gateway's action stream. Messages arrive
// on the returned channel in ledger order; the channel closes when ctx is
// done. Reconnects resume from the last delivered tx id, so a dropped
// connection neither skips nor replays.
func (c *Client) ObserveActions(ctx context.Context, filter domain.ActionFilter) (<-chan domain.ActionMessage, error) {
	if filter.Name == "" {
		return nil, domain.NewFatalLedgerError("observe_actions", fmt.Errorf("action name is required"))
	}

	out := make(chan domain.ActionMessage)
	s := &stream{
		logger: c.logger.With(slog.String("stream", "actions"), slog.String("name", filter.Name)),
		lastTx: initialPosition(filter.StartingFrom),
		buildURL: func(afterTx uint64) string {
			q := url.Values{}
			q.Set("name", filter.Name)
			q.Set("involves_account", string(filter.Involves))
			if afterTx > 0 {
				q.Set("starting_from", fmt.Sprintf("%d", afterTx+1))
			}
			return c.wsURL + "/v1/observe/actions?" + q.Encode()
		},
		handle: func(msg []byte) (uint64, bool) {
			var env actionEnvelope
			if err := json.Unmarshal(msg, &env); err != nil {
				c.logger.Warn("dropping undecodable action message", slog.Any("error", err))
				return 0, false
			}
			select {
			case out <- env.toMessage():
				return env.TxID, true
			case <-ctx.Done():
				return 0, false
			}
		},
	}

	go func() {
		defer close(out)
		s.run(ctx)
	}()
	return out, nil
}

// ObserveTransfers subscribes to completed transfers involving an account.
func (c *Client) ObserveTransfers(ctx context.Context, filter domain.TransferFilter) (<-chan domain.TransferMessage, error) {
	out := make(chan domain.TransferMessage)
	s := &stream{
		logger: c.logger.With(slog.String("stream", "transfers")),
		buildURL: func(afterTx uint64) string {
			q := url.Values{}
			q.Set("involves_account", string(filter.Involves))
			if afterTx > 0 {
				q.Set("starting_from", fmt.Sprintf("%d", afterTx+1))
			}
			return c.wsURL + "/v1/observe/transfers?" + q.Encode()
		},
		handle: func(msg []byte) (uint64, bool) {
			var env transferEnvelope
			if err := json.Unmarshal(msg, &env); err != nil {
				c.logger.Warn("dropping undecodable transfer message", slog.Any("error", err))
				return 0, false
			}
			select {
			case out <- env.toMessage():
				return env.TxID, true
			case <-ctx.Done():
				return 0, false
			}
		},
	}

	go func() {
		defer close(out)
		s.run(ctx)
	}()
	return out, nil
}

// initialPosition converts a caller-specified starting tx id into the
// "last delivered" watermark the stream tracks.
func initialPosition(startingFrom uint64) uint64 {
	if startingFrom == 0 {
		return 0 // from now
	}
	return startingFrom - 1
}

// stream owns one websocket subscription: connect, read, deliver, reconnect
// with backoff.
type stream struct {
	buildURL func(afterTx uint64) string
	// handle parses and delivers one raw message; reports the tx id so the
	// stream can resume after it on reconnect.
	handle func(msg []byte) (txID uint64, ok bool)
	logger *slog.Logger

	lastTx uint64
	conn   *websocket.Conn
	mu     sync.RWMutex
}

func (s *stream) run(ctx context.Context) {
	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.connect(ctx); err != nil {
			s.logger.Warn("stream connection failed", slog.Any("error", err), slog.Int("retry", retryCount))
			delay := infra.CalculateBackoff(retryCount)
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		} else {
			retryCount = 0
			s.readLoop(ctx)
		}
	}
}

func (s *stream) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.buildURL(s.lastTx), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	infra.GlobalMetrics.IncrementConnections()
	s.logger.Info("stream connected", slog.Uint64("after_tx", s.lastTx))
	return nil
}

func (s *stream) readLoop(ctx context.Context) {
	// Unblock ReadMessage when the subscription is torn down.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.closeConnection()
		case <-done:
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.closeConnection()
			return
		default:
		}

		s.mu.RLock()
		conn := s.conn
		s.mu.RUnlock()
		if conn == nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		_, msg, err := conn.ReadMessage()
		if err != nil {
			s.closeConnection()
			return
		}

		txID, ok := s.handle(msg)
		if ok && txID > s.lastTx {
			s.lastTx = txID
		}
	}
}

func (s *stream) closeConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
		infra.GlobalMetrics.DecrementConnections()
	}
}
