package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"fxswap_go/internal/domain"
)

// Client talks to the ledger gateway: account lookup and signed submissions
// over HTTP, observation streams over websocket. One Client per currency
// node, signing with that node's key. Safe for concurrent use; every swap
// monitor of a currency submits through the same handle.
type Client struct {
	httpURL    string
	wsURL      string
	httpClient *http.Client
	signer     *Signer
	logger     *slog.Logger
}

// NewClient creates a new ledger gateway client.
func NewClient(httpURL, wsURL string, timeout time.Duration, signer *Signer) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpURL: httpURL,
		wsURL:   wsURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		signer: signer,
		logger: slog.Default().With("module", "ledger_client"),
	}
}

// ResolveAccount looks up an account's currency and precision.
func (c *Client) ResolveAccount(ctx context.Context, id domain.AccountID) (*domain.AccountInfo, error) {
	path := "/v1/accounts/" + url.PathEscape(string(id))
	body, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, domain.NewLedgerError("resolve", err)
	}
	if status == http.StatusNotFound {
		return nil, domain.NewFatalLedgerError("resolve", fmt.Errorf("%s: %w", id, domain.ErrAccountNotFound))
	}
	if status != http.StatusOK {
		return nil, domain.NewLedgerError("resolve", fmt.Errorf("unexpected status code: %d", status))
	}

	var resp accountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, domain.NewLedgerError("resolve", err)
	}
	return &domain.AccountInfo{
		Currency:      resp.Currency,
		DecimalPlaces: resp.DecimalPlaces,
	}, nil
}

// SubmitAction submits one signed action carrying an opaque payload.
func (c *Client) SubmitAction(ctx context.Context, name string, from, target domain.AccountID, payload []byte, cid domain.ContextID) error {
	req := submitActionRequest{
		Name:      name,
		From:      string(from),
		Target:    string(target),
		Payload:   json.RawMessage(payload),
		ContextID: string(cid),
	}
	return c.submit(ctx, "submit_action", "/v1/actions", req)
}

// SubmitTransfer submits one signed transfer with optional metadata.
func (c *Client) SubmitTransfer(ctx context.Context, from, to domain.AccountID, amount decimal.Decimal, metadata []domain.MetadataEntry, cid domain.ContextID) error {
	req := submitTransferRequest{
		From:      string(from),
		To:        string(to),
		Amount:    amount,
		ContextID: string(cid),
	}
	for _, m := range metadata {
		req.Metadata = append(req.Metadata, metadataEntry{Type: m.Type, Value: json.RawMessage(m.Value)})
	}
	return c.submit(ctx, "submit_transfer", "/v1/transfers", req)
}

// ListActions returns finalized actions matching the filter, newest first.
// Used by the initiator CLI to find the quote of a context; the service
// itself only consumes streams.
func (c *Client) ListActions(ctx context.Context, name string, cid domain.ContextID, limit int) ([]domain.ActionMessage, error) {
	q := url.Values{}
	q.Set("name", name)
	q.Set("context_id", string(cid))
	q.Set("limit", fmt.Sprintf("%d", limit))
	path := "/v1/actions?" + q.Encode()

	body, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, domain.NewLedgerError("list_actions", err)
	}
	if status != http.StatusOK {
		return nil, domain.NewLedgerError("list_actions", fmt.Errorf("unexpected status code: %d", status))
	}

	var envelopes []actionEnvelope
	if err := json.Unmarshal(body, &envelopes); err != nil {
		return nil, domain.NewLedgerError("list_actions", err)
	}
	msgs := make([]domain.ActionMessage, 0, len(envelopes))
	for i := range envelopes {
		msgs = append(msgs, envelopes[i].toMessage())
	}
	return msgs, nil
}

func (c *Client) submit(ctx context.Context, op, path string, req any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.NewFatalLedgerError(op, err)
	}
	respBody, status, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return domain.NewLedgerError(op, err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return domain.NewLedgerError(op, fmt.Errorf("unexpected status code: %d", status))
	}

	var resp submitResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return domain.NewLedgerError(op, err)
	}
	if resp.Error != "" {
		// The gateway accepted the request but the transaction failed; the
		// ledger's own bookkeeping rejected it, so retrying is unsafe.
		return domain.NewFatalLedgerError(op, fmt.Errorf("transaction error: %s", resp.Error))
	}
	c.logger.Debug("submission accepted", slog.String("op", op), slog.Uint64("tx_id", resp.TxID))
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.httpURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	for k, v := range c.signer.GenerateHeaders(method, path, body) {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return respBody, resp.StatusCode, nil
}
