// Package types defines shared data structures used across all packages.
//
// This package is the common vocabulary for the engine — price/volume scalar
// types, order sides and kinds, the inbound OrderMessage, the outbound
// OrderEvent, and the RestingOrder shape held in the books. It has no
// dependencies on internal packages, so it can be imported by any layer.
package types

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Price is a limit or traded price in instrument-defined minor units.
type Price uint64

// Volume is an order size in instrument-defined lot units.
type Volume uint64

// Quote is a monetary budget in price-units × volume-units. It caps how much
// a buy-side market order may spend while sweeping the asks.
type Quote uint64

// Timestamp is nanoseconds since the Unix epoch.
type Timestamp int64

// OrderID identifies an order globally. Ids are supplied by the caller on
// every message; the engine never mints them.
type OrderID = uuid.UUID

// Decimal renders a minor-unit price as a decimal with the given scale,
// e.g. Price(9800000).Decimal(6) == "9.8".
func (p Price) Decimal(scale int32) decimal.Decimal {
	return decimal.New(int64(p), -scale)
}

// Decimal renders a quote budget as a decimal with the given scale.
func (q Quote) Decimal(scale int32) decimal.Decimal {
	return decimal.New(int64(q), -scale)
}

// Side is the direction of an order. Cancel messages carry no side and leave
// it at SideNone.
type Side uint8

const (
	SideNone Side = iota
	SideBid
	SideAsk
)

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side {
	switch s {
	case SideBid:
		return SideAsk
	case SideAsk:
		return SideBid
	}
	return SideNone
}

func (s Side) String() string {
	switch s {
	case SideBid:
		return "bid"
	case SideAsk:
		return "ask"
	}
	return "none"
}

// Kind is the lifecycle class of an inbound message.
type Kind uint8

const (
	KindCancel Kind = iota
	KindMarket
	KindLimit
)

func (k Kind) String() string {
	switch k {
	case KindCancel:
		return "cancel"
	case KindMarket:
		return "market"
	case KindLimit:
		return "limit"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// EventKind classifies an outbound OrderEvent.
//
//   - EventNoMatch:   the message touched no liquidity at all
//   - EventHasMatch:  one fill against a counter-party
//   - EventOpen:      a limit order rested with residual volume
//   - EventClosed:    the order is finished (filled, exhausted, or a cancel done)
//   - EventCancelled: a resting order was removed by an explicit cancel
type EventKind uint8

const (
	EventNoMatch EventKind = iota
	EventHasMatch
	EventOpen
	EventClosed
	EventCancelled
)

func (k EventKind) String() string {
	switch k {
	case EventNoMatch:
		return "no_match"
	case EventHasMatch:
		return "has_match"
	case EventOpen:
		return "open"
	case EventClosed:
		return "closed"
	case EventCancelled:
		return "cancelled"
	}
	return fmt.Sprintf("event(%d)", uint8(k))
}

// RestingOrder is the book-side record of a limit order awaiting a
// counter-party. It is created when a limit message has unfilled remainder
// after crossing, mutated only by fills against it, and destroyed when its
// remaining volume reaches zero or an explicit cancel removes it.
type RestingOrder struct {
	ID              OrderID `json:"id"`
	RemainingVolume Volume  `json:"remaining_volume"`
}
