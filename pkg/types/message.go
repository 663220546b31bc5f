package types

import "fmt"

// OrderMessage is one inbound instruction to the engine: a new limit order,
// a new market order, or a cancellation of a resting order.
//
// The numeric fields use the zero value to mean "absent": a Limit must carry
// Volume and Price, a Market must carry Volume, and a buy-side Market must
// carry MaxQuote whenever there is opposing liquidity. A missing required
// field is a caller bug, not a runtime condition (see book.DualBook.Execute).
//
// CreatedAt is advisory metadata. Priority between messages is submission
// order, never this field.
type OrderMessage struct {
	ID        OrderID   `json:"id"`
	TargetID  OrderID   `json:"target_id,omitzero"` // Cancel only
	CreatedAt Timestamp `json:"created_at,omitzero"`
	Side      Side      `json:"side,omitzero"`
	Kind      Kind      `json:"kind"`
	Volume    Volume    `json:"volume,omitzero"`    // Limit, Market
	Price     Price     `json:"price,omitzero"`     // Limit
	MaxQuote  Quote     `json:"max_quote,omitzero"` // buy-side Market
}

// MarshalText implements encoding.TextMarshaler so sides serialize as
// "bid"/"ask" on the wire.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Side) UnmarshalText(text []byte) error {
	switch string(text) {
	case "bid":
		*s = SideBid
	case "ask":
		*s = SideAsk
	case "none", "":
		*s = SideNone
	default:
		return fmt.Errorf("types: unknown side %q", text)
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "cancel":
		*k = KindCancel
	case "market":
		*k = KindMarket
	case "limit":
		*k = KindLimit
	default:
		return fmt.Errorf("types: unknown order kind %q", text)
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EventKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "no_match":
		*k = EventNoMatch
	case "has_match":
		*k = EventHasMatch
	case "open":
		*k = EventOpen
	case "closed":
		*k = EventClosed
	case "cancelled":
		*k = EventCancelled
	default:
		return fmt.Errorf("types: unknown event kind %q", text)
	}
	return nil
}
