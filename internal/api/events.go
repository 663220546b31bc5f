package api

import (
	"time"

	"matchbook/pkg/types"
)

// StreamEvent is the wrapper for all events sent to dashboard clients.
type StreamEvent struct {
	Type      string      `json:"type"`      // "snapshot", "trade", "book", "order"
	Timestamp time.Time   `json:"timestamp"` // Event time
	Data      interface{} `json:"data"`      // Event-specific payload
}

// TradeEvent represents one fill pushed to the stream.
type TradeEvent struct {
	TakerID      string `json:"taker_id"`
	MakerID      string `json:"maker_id"`
	TakerSide    string `json:"taker_side"` // "bid" or "ask"
	Price        uint64 `json:"price"`
	PriceDisplay string `json:"price_display"` // minor units rendered per instrument scale
	Volume       uint64 `json:"volume"`
}

// OrderEvent represents an order lifecycle notification (rested, closed,
// cancelled).
type OrderEvent struct {
	OrderID         string `json:"order_id"`
	Status          string `json:"status"` // "open", "closed", "cancelled"
	RemainingVolume uint64 `json:"remaining_volume"`
}

// BookUpdateEvent represents top-of-book changes after a message.
type BookUpdateEvent struct {
	BestBid        uint64 `json:"best_bid"`
	BestAsk        uint64 `json:"best_ask"`
	BestBidDisplay string `json:"best_bid_display,omitempty"`
	BestAskDisplay string `json:"best_ask_display,omitempty"`
	BidCount       int    `json:"bid_count"`
	AskCount       int    `json:"ask_count"`
}

// NewTradeEvent creates a trade event from fill data.
func NewTradeEvent(taker, maker types.OrderID, side types.Side, price types.Price, volume types.Volume, scale int32) TradeEvent {
	return TradeEvent{
		TakerID:      taker.String(),
		MakerID:      maker.String(),
		TakerSide:    side.String(),
		Price:        uint64(price),
		PriceDisplay: price.Decimal(scale).String(),
		Volume:       uint64(volume),
	}
}

// NewOrderEvent creates an order lifecycle event.
func NewOrderEvent(id types.OrderID, status string, remaining types.Volume) OrderEvent {
	return OrderEvent{
		OrderID:         id.String(),
		Status:          status,
		RemainingVolume: uint64(remaining),
	}
}
