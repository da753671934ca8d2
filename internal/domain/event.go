package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// ActionFXSwap is the ledger action name carrying every message of the
	// swap protocol (Request, Quote, Completed).
	ActionFXSwap = "fx.swap"

	// MetadataFXExecute is the transfer-metadata type URL carrying an
	// Execute directive.
	MetadataFXExecute = "fx.execute"
)

// AccountID identifies a ledger account (hex-encoded).
type AccountID string

// ContextID is the opaque correlation identifier chosen by the swap
// initiator. It is threaded unchanged through every message of one swap's
// lifecycle; listeners use it to discard messages of unrelated swaps.
type ContextID string

// Request is the immutable origin of a swap. The amount quoted and later
// settled always traces back unchanged to this value.
type Request struct {
	From   AccountID       `json:"from"`
	To     AccountID       `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// Quote is the priced answer to a Request, produced by the liquidity node
// whose currency matches the request's source currency.
type Quote struct {
	Request Request         `json:"request"`
	Rate    decimal.Decimal `json:"rate"`
	// Intermediary is the liquidity account of the source-currency node. It
	// receives the initiator's funds during settlement before conversion.
	Intermediary AccountID `json:"intermediary"`
}

// Execute is the initiator's signed commitment authorizing autonomous
// settlement while the live rate stays inside [LowerLimit, UpperLimit) and
// the wall clock stays at or before ValidUntil (unix seconds).
type Execute struct {
	Request    Request         `json:"request"`
	ValidUntil int64           `json:"valid_until"`
	UpperLimit decimal.Decimal `json:"upper_limit"`
	LowerLimit decimal.Decimal `json:"lower_limit"`
}

// Event is the closed tagged union carried as an opaque payload on ledger
// messages. Exactly one variant is set; Completed is a unit variant.
//
// Wire format is externally tagged: {"Request":{...}}, {"Quote":{...}},
// {"Execute":{...}}, and the bare string "Completed".
type Event struct {
	Request   *Request
	Quote     *Quote
	Execute   *Execute
	Completed bool
}

// NewCompletedEvent returns the terminal sentinel event.
func NewCompletedEvent() Event {
	return Event{Completed: true}
}

func (e Event) MarshalJSON() ([]byte, error) {
	switch {
	case e.Request != nil:
		return json.Marshal(map[string]*Request{"Request": e.Request})
	case e.Quote != nil:
		return json.Marshal(map[string]*Quote{"Quote": e.Quote})
	case e.Execute != nil:
		return json.Marshal(map[string]*Execute{"Execute": e.Execute})
	case e.Completed:
		return json.Marshal("Completed")
	}
	return nil, fmt.Errorf("event: no variant set")
}

func (e *Event) UnmarshalJSON(data []byte) error {
	// Unit variant first: "Completed" is a bare string.
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s != "Completed" {
			return fmt.Errorf("event: unknown variant %q: %w", s, ErrMalformedPayload)
		}
		*e = Event{Completed: true}
		return nil
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("event: %v: %w", err, ErrMalformedPayload)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("event: expected exactly one variant, got %d: %w", len(tagged), ErrMalformedPayload)
	}

	for tag, raw := range tagged {
		switch tag {
		case "Request":
			var req Request
			if err := json.Unmarshal(raw, &req); err != nil {
				return fmt.Errorf("event: request: %v: %w", err, ErrMalformedPayload)
			}
			*e = Event{Request: &req}
		case "Quote":
			var q Quote
			if err := json.Unmarshal(raw, &q); err != nil {
				return fmt.Errorf("event: quote: %v: %w", err, ErrMalformedPayload)
			}
			*e = Event{Quote: &q}
		case "Execute":
			var ex Execute
			if err := json.Unmarshal(raw, &ex); err != nil {
				return fmt.Errorf("event: execute: %v: %w", err, ErrMalformedPayload)
			}
			*e = Event{Execute: &ex}
		default:
			return fmt.Errorf("event: unknown variant %q: %w", tag, ErrMalformedPayload)
		}
	}
	return nil
}

// Kind returns the variant name, mainly for logging.
func (e Event) Kind() string {
	switch {
	case e.Request != nil:
		return "Request"
	case e.Quote != nil:
		return "Quote"
	case e.Execute != nil:
		return "Execute"
	case e.Completed:
		return "Completed"
	}
	return "empty"
}

// DecodeEvent parses an opaque payload into an Event.
func DecodeEvent(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// EncodeEvent renders an Event as an opaque payload.
func EncodeEvent(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}
