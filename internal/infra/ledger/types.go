package ledger

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"fxswap_go/internal/domain"
)

const (
	maxRetries  = 10
	readTimeout = 60 * time.Second
)

// accountResponse is the GET /v1/accounts/{id} body.
type accountResponse struct {
	ID            string `json:"id"`
	Currency      string `json:"currency"`
	DecimalPlaces int32  `json:"decimal_places"`
}

type metadataEntry struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// submitActionRequest is the POST /v1/actions body.
type submitActionRequest struct {
	Name      string          `json:"name"`
	From      string          `json:"from_account"`
	Target    string          `json:"target_account"`
	Payload   json.RawMessage `json:"payload"`
	ContextID string          `json:"context_id"`
}

// submitTransferRequest is the POST /v1/transfers body.
type submitTransferRequest struct {
	From      string          `json:"from_account"`
	To        string          `json:"to_account"`
	Amount    decimal.Decimal `json:"amount"`
	Metadata  []metadataEntry `json:"metadata,omitempty"`
	ContextID string          `json:"context_id"`
}

// submitResponse is returned by both submission endpoints.
type submitResponse struct {
	TxID  uint64 `json:"tx_id"`
	Error string `json:"error,omitempty"`
}

// actionEnvelope is one message on the action observation stream and one
// element of the list-actions response.
type actionEnvelope struct {
	TxID      uint64          `json:"tx_id"`
	ContextID string          `json:"context_id"`
	Name      string          `json:"name"`
	From      string          `json:"from_account"`
	Target    string          `json:"target_account"`
	Payload   json.RawMessage `json:"payload"`
}

func (e *actionEnvelope) toMessage() domain.ActionMessage {
	return domain.ActionMessage{
		TxID:    e.TxID,
		Context: domain.ContextID(e.ContextID),
		From:    domain.AccountID(e.From),
		Target:  domain.AccountID(e.Target),
		Payload: []byte(e.Payload),
	}
}

// transferEnvelope is one message on the transfer observation stream.
type transferEnvelope struct {
	TxID      uint64          `json:"tx_id"`
	ContextID string          `json:"context_id"`
	From      string          `json:"from_account"`
	To        string          `json:"to_account"`
	Amount    decimal.Decimal `json:"amount"`
	Metadata  []metadataEntry `json:"metadata,omitempty"`
}

func (e *transferEnvelope) toMessage() domain.TransferMessage {
	msg := domain.TransferMessage{
		TxID:    e.TxID,
		Context: domain.ContextID(e.ContextID),
		From:    domain.AccountID(e.From),
		To:      domain.AccountID(e.To),
		Amount:  e.Amount,
	}
	for _, m := range e.Metadata {
		msg.Metadata = append(msg.Metadata, domain.MetadataEntry{
			Type:  m.Type,
			Value: []byte(m.Value),
		})
	}
	return msg
}
