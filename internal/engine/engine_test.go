package engine

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"matchbook/internal/config"
	"matchbook/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(count int) config.Config {
	return config.Config{
		Instrument: config.InstrumentConfig{Symbol: "TEST", PriceScale: 2},
		Feed: config.FeedConfig{
			Mode:        "generate",
			Count:       count,
			Seed:        7,
			MidPrice:    10_000,
			PriceBand:   500,
			MaxVolume:   100,
			MarketRatio: 0.2,
			CancelRatio: 0.2,
		},
		Audit: config.AuditConfig{Enabled: true},
	}
}

func TestEngineDrainsGeneratedFeed(t *testing.T) {
	t.Parallel()

	eng, err := New(testConfig(500), discardLogger())
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}

	select {
	case <-eng.Done():
	case <-time.After(30 * time.Second):
		t.Fatal("engine did not drain the feed")
	}
	if err := eng.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}
	if got := eng.Processed(); got != 500 {
		t.Errorf("Processed() = %d, want 500", got)
	}

	// The audit checker ran on every message; the final book must be sane.
	status := eng.BookStatus()
	if status.TotalCount != status.BidCount+status.AskCount {
		t.Errorf("status counts inconsistent: %+v", status)
	}
	if status.BidCount > 0 && status.AskCount > 0 && status.BestBid >= status.BestAsk {
		t.Errorf("crossed status: bid %d >= ask %d", status.BestBid, status.BestAsk)
	}

	eng.Stop()
}

func TestEngineStopInterruptsFeed(t *testing.T) {
	t.Parallel()

	cfg := testConfig(0) // unbounded
	eng, err := New(cfg, discardLogger())
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("Start() = %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	eng.Stop()

	select {
	case <-eng.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
	if eng.Processed() == 0 {
		t.Error("engine stopped without processing anything")
	}
}

func TestDeriveFills(t *testing.T) {
	t.Parallel()

	maker0 := uuid.New()
	maker1 := uuid.New()
	msg := &types.OrderMessage{
		ID:     uuid.New(),
		Side:   types.SideBid,
		Kind:   types.KindMarket,
		Volume: 20,
	}
	own := []types.OrderEvent{
		{Kind: types.EventHasMatch, RemainingVolume: vp(12), TradedPrice: pp(100), CrossedID: maker0},
		{Kind: types.EventHasMatch, RemainingVolume: vp(2), TradedPrice: pp(150), CrossedID: maker1},
		{Kind: types.EventClosed, RemainingVolume: vp(2)},
	}

	fills := deriveFills(msg, own)
	if len(fills) != 2 {
		t.Fatalf("len(fills) = %d, want 2", len(fills))
	}
	if fills[0].Volume != 8 || fills[0].Price != 100 || fills[0].MakerID != maker0 {
		t.Errorf("fills[0] = %+v", fills[0])
	}
	if fills[1].Volume != 10 || fills[1].Price != 150 || fills[1].MakerID != maker1 {
		t.Errorf("fills[1] = %+v", fills[1])
	}
	if fills[0].TakerID != msg.ID || fills[0].TakerSide != types.SideBid {
		t.Errorf("taker fields wrong: %+v", fills[0])
	}
}

func TestDeriveFillsNoMatches(t *testing.T) {
	t.Parallel()

	msg := &types.OrderMessage{ID: uuid.New(), Side: types.SideAsk, Kind: types.KindLimit, Volume: 5, Price: 10}
	own := []types.OrderEvent{
		{Kind: types.EventNoMatch, RemainingVolume: vp(5)},
		{Kind: types.EventOpen, RemainingVolume: vp(5)},
	}
	if fills := deriveFills(msg, own); len(fills) != 0 {
		t.Errorf("fills = %+v, want none", fills)
	}
}

func vp(v types.Volume) *types.Volume { return &v }
func pp(p types.Price) *types.Price   { return &p }
