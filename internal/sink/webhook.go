// Package sink ships executed trade events to an external receiver over
// HTTP. It is the engine's drop-copy feed: fills are batched and POSTed to a
// configured webhook URL, with retry on transient failures. Delivery is
// best-effort — a receiver outage never blocks or fails matching.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"matchbook/internal/config"
	"matchbook/pkg/types"
)

// Fill is one executed trade as delivered to the webhook receiver.
type Fill struct {
	Timestamp types.Timestamp `json:"timestamp"`
	TakerID   types.OrderID   `json:"taker_id"`
	MakerID   types.OrderID   `json:"maker_id"`
	TakerSide types.Side      `json:"taker_side"`
	Price     types.Price     `json:"price"`
	Volume    types.Volume    `json:"volume"`
}

// Webhook batches fills and POSTs them as a JSON array to the configured URL.
type Webhook struct {
	http      *resty.Client
	batchSize int
	logger    *slog.Logger

	mu    sync.Mutex
	batch []Fill
}

// NewWebhook creates a drop-copy client with timeout and retry-on-5xx.
func NewWebhook(cfg config.SinkConfig, logger *slog.Logger) *Webhook {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &Webhook{
		http:      httpClient,
		batchSize: cfg.BatchSize,
		logger:    logger.With("component", "sink"),
	}
}

// Enqueue adds fills to the pending batch, flushing when it reaches the
// configured size.
func (w *Webhook) Enqueue(ctx context.Context, fills []Fill) {
	w.mu.Lock()
	w.batch = append(w.batch, fills...)
	ready := len(w.batch) >= w.batchSize
	w.mu.Unlock()

	if ready {
		w.Flush(ctx)
	}
}

// Flush sends the pending batch. Failures are logged and the batch dropped;
// the sink never applies backpressure to matching.
func (w *Webhook) Flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.batch) == 0 {
		w.mu.Unlock()
		return
	}
	batch := w.batch
	w.batch = nil
	w.mu.Unlock()

	if err := w.post(ctx, batch); err != nil {
		w.logger.Error("drop-copy delivery failed", "error", err, "fills", len(batch))
		return
	}
	w.logger.Debug("drop-copy delivered", "fills", len(batch))
}

func (w *Webhook) post(ctx context.Context, batch []Fill) error {
	resp, err := w.http.R().
		SetContext(ctx).
		SetBody(batch).
		Post("")
	if err != nil {
		return fmt.Errorf("post fills: %w", err)
	}
	if resp.StatusCode() != http.StatusOK && resp.StatusCode() != http.StatusAccepted {
		return fmt.Errorf("post fills: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// Pending returns the number of fills waiting in the batch.
func (w *Webhook) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.batch)
}
