// Package engine is the central orchestrator of the matching daemon.
//
// It wires together all subsystems:
//
//  1. A feed source supplies order messages (NDJSON replay or generated flow).
//  2. The engine loop — the book's single writer — executes each message on
//     the dual book and fans the grouped events out.
//  3. Outbound: the journal (NDJSON event log), the webhook drop-copy sink,
//     the rolling flow tracker, and the dashboard stream.
//  4. The audit checker optionally verifies book integrity after every
//     message and halts the engine on a violation.
//
// Lifecycle: New() → Start() → [runs until SIGINT or the feed drains] → Stop()
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"matchbook/internal/api"
	"matchbook/internal/audit"
	"matchbook/internal/book"
	"matchbook/internal/config"
	"matchbook/internal/feed"
	"matchbook/internal/journal"
	"matchbook/internal/sink"
	"matchbook/internal/stats"
	"matchbook/pkg/types"
)

// Engine owns the dual book and the loop that drives it. All matching
// happens on the loop goroutine; every other component only sees the
// results or the cached status snapshot.
type Engine struct {
	cfg     config.Config
	db      *book.DualBook
	replay  *feed.Replay
	gen     feed.SyncSource
	jrnl    *journal.Journal
	webhook *sink.Webhook
	flow    *stats.Tracker
	checker *audit.Checker
	logger  *slog.Logger

	// streamEvents carries dashboard events; nil when the dashboard is off.
	streamEvents chan api.StreamEvent

	// status is the book snapshot served to the dashboard, refreshed by the
	// loop after each message so readers never touch the book itself.
	status   api.BookStatus
	statusMu sync.RWMutex

	processed atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
	runErr error
}

// New creates and wires all engine components.
func New(cfg config.Config, logger *slog.Logger) (*Engine, error) {
	e := &Engine{
		cfg:    cfg,
		db:     book.New(),
		flow:   stats.NewTracker(flowWindow(cfg)),
		logger: logger.With("component", "engine"),
		done:   make(chan struct{}),
	}

	switch cfg.Feed.Mode {
	case "replay":
		r, err := openReplayInput(cfg.Feed.Path)
		if err != nil {
			return nil, err
		}
		var bucket *feed.TokenBucket
		if cfg.Feed.Rate > 0 {
			burst := cfg.Feed.Burst
			if burst < 1 {
				burst = 1
			}
			bucket = feed.NewTokenBucket(burst, cfg.Feed.Rate)
		}
		e.replay = feed.NewReplay(r, bucket, logger)
	case "generate":
		e.gen = feed.NewGenerator(cfg.Feed)
	default:
		return nil, fmt.Errorf("unknown feed mode %q", cfg.Feed.Mode)
	}

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.DataDir)
		if err != nil {
			return nil, err
		}
		e.jrnl = j
	}
	if cfg.Sink.URL != "" {
		e.webhook = sink.NewWebhook(cfg.Sink, logger)
	}
	e.checker = audit.NewChecker(cfg.Audit.Enabled, logger)

	if cfg.Dashboard.Enabled {
		e.streamEvents = make(chan api.StreamEvent, 256)
	}

	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.refreshStatus()
	return e, nil
}

func flowWindow(cfg config.Config) time.Duration {
	if cfg.Dashboard.FlowWindow > 0 {
		return cfg.Dashboard.FlowWindow
	}
	return time.Minute
}

func openReplayInput(path string) (io.Reader, error) {
	if path == "-" {
		return os.Stdin, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	return f, nil
}

// Start launches the engine loop.
func (e *Engine) Start() error {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(e.done)

		var err error
		if e.gen != nil {
			err = e.runGenerated()
		} else {
			err = e.runReplay()
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			e.runErr = err
			e.logger.Error("engine loop stopped", "error", err)
			return
		}
		e.logger.Info("engine loop finished", "processed", e.processed.Load())
	}()
	return nil
}

// Stop cancels the loop, waits for it, and flushes the outbound paths.
func (e *Engine) Stop() {
	e.cancel()
	e.wg.Wait()

	if e.webhook != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		e.webhook.Flush(ctx)
		cancel()
	}
	if e.jrnl != nil {
		if err := e.jrnl.Close(); err != nil {
			e.logger.Error("failed to close journal", "error", err)
		}
	}
	if e.streamEvents != nil {
		close(e.streamEvents)
	}
}

// Done is closed when the loop exits — on Stop, on a drained feed, or on an
// audit halt.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Err returns the loop's terminal error, if any. Valid after Done is closed.
func (e *Engine) Err() error {
	return e.runErr
}

// runGenerated drives a synchronous source: the generator must observe each
// result before producing the next message, so it never cancels an id a
// taker already removed.
func (e *Engine) runGenerated() error {
	for {
		select {
		case <-e.ctx.Done():
			return e.ctx.Err()
		default:
		}

		msg, ok := e.gen.Next()
		if !ok {
			return nil
		}
		results := e.process(msg)
		e.gen.Observe(results)
		if err := e.checker.Verify(e.db); err != nil {
			return err
		}
	}
}

// runReplay consumes messages from the replay goroutine over a channel; the
// loop goroutine remains the book's only writer.
func (e *Engine) runReplay() error {
	msgCh := make(chan *types.OrderMessage, 256)
	errCh := make(chan error, 1)
	go func() {
		errCh <- e.replay.Run(e.ctx, msgCh)
		close(msgCh)
	}()

	for {
		select {
		case <-e.ctx.Done():
			return e.ctx.Err()
		case msg, ok := <-msgCh:
			if !ok {
				return <-errCh
			}
			e.process(msg)
			if err := e.checker.Verify(e.db); err != nil {
				return err
			}
		}
	}
}

// process executes one message and fans its events out. It runs only on the
// loop goroutine.
func (e *Engine) process(msg *types.OrderMessage) map[types.OrderID][]types.OrderEvent {
	results := e.db.Execute(msg)
	e.processed.Add(1)

	fills := deriveFills(msg, results[msg.ID])
	for _, f := range fills {
		e.flow.AddTrade(stats.Trade{
			Timestamp: time.Now(),
			TakerSide: f.TakerSide,
			Price:     f.Price,
			Volume:    f.Volume,
		})
	}

	if e.jrnl != nil {
		if err := e.jrnl.Append(results); err != nil {
			e.logger.Error("journal write failed", "error", err)
		}
	}
	if e.webhook != nil && len(fills) > 0 {
		e.webhook.Enqueue(e.ctx, fills)
	}

	e.refreshStatus()
	e.publish(msg, fills)
	return results
}

// deriveFills reconstructs per-fill volumes from the incoming order's own
// HasMatch sequence: each event's remaining-volume snapshot is the budget
// left after that fill, so consecutive deltas are the traded sizes.
func deriveFills(msg *types.OrderMessage, own []types.OrderEvent) []sink.Fill {
	var fills []sink.Fill
	prev := msg.Volume
	for _, e := range own {
		if e.Kind != types.EventHasMatch {
			continue
		}
		rem, ok := e.Remaining()
		if !ok {
			continue
		}
		px, _ := e.Price()
		fills = append(fills, sink.Fill{
			Timestamp: e.Timestamp,
			TakerID:   msg.ID,
			MakerID:   e.CrossedID,
			TakerSide: msg.Side,
			Price:     px,
			Volume:    prev - rem,
		})
		prev = rem
	}
	return fills
}

// refreshStatus rebuilds the cached dashboard view of the book.
func (e *Engine) refreshStatus() {
	scale := e.cfg.Instrument.PriceScale
	depth := e.cfg.Dashboard.DepthLevels
	if depth <= 0 {
		depth = 10
	}

	bids, asks, total := e.db.Count()
	status := api.BookStatus{
		Symbol:     e.cfg.Instrument.Symbol,
		BidCount:   bids,
		AskCount:   asks,
		TotalCount: total,
	}
	if bid, ok := e.db.BestBid(); ok {
		status.BestBid = uint64(bid)
		status.BestBidDisplay = bid.Decimal(scale).String()
	}
	if ask, ok := e.db.BestAsk(); ok {
		status.BestAsk = uint64(ask)
		status.BestAskDisplay = ask.Decimal(scale).String()
	}
	bidLevels, askLevels := e.db.Depth(depth)
	status.Bids = api.LevelViews(bidLevels, scale)
	status.Asks = api.LevelViews(askLevels, scale)

	e.statusMu.Lock()
	e.status = status
	e.statusMu.Unlock()
}

// publish pushes trade and book-update events onto the dashboard stream.
func (e *Engine) publish(msg *types.OrderMessage, fills []sink.Fill) {
	if e.streamEvents == nil {
		return
	}
	scale := e.cfg.Instrument.PriceScale
	now := time.Now()

	for _, f := range fills {
		e.send(api.StreamEvent{
			Type:      "trade",
			Timestamp: now,
			Data:      api.NewTradeEvent(f.TakerID, f.MakerID, f.TakerSide, f.Price, f.Volume, scale),
		})
	}

	e.statusMu.RLock()
	status := e.status
	e.statusMu.RUnlock()
	e.send(api.StreamEvent{
		Type:      "book",
		Timestamp: now,
		Data: api.BookUpdateEvent{
			BestBid:        status.BestBid,
			BestAsk:        status.BestAsk,
			BestBidDisplay: status.BestBidDisplay,
			BestAskDisplay: status.BestAskDisplay,
			BidCount:       status.BidCount,
			AskCount:       status.AskCount,
		},
	})
}

func (e *Engine) send(evt api.StreamEvent) {
	select {
	case e.streamEvents <- evt:
	default:
		// Stream consumers lag; matching never waits for them.
	}
}

// StreamEvents exposes the dashboard event channel; nil when disabled.
func (e *Engine) StreamEvents() <-chan api.StreamEvent {
	return e.streamEvents
}

// BookStatus implements api.EngineProvider.
func (e *Engine) BookStatus() api.BookStatus {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

// FlowStatus implements api.EngineProvider.
func (e *Engine) FlowStatus() stats.FlowSnapshot {
	return e.flow.Snapshot()
}

// Processed implements api.EngineProvider.
func (e *Engine) Processed() uint64 {
	return e.processed.Load()
}
