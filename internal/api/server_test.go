package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"matchbook/internal/config"
	"matchbook/internal/stats"
)

type fakeProvider struct {
	status BookStatus
	flow   stats.FlowSnapshot
	count  uint64
}

func (f *fakeProvider) BookStatus() BookStatus         { return f.status }
func (f *fakeProvider) FlowStatus() stats.FlowSnapshot { return f.flow }
func (f *fakeProvider) Processed() uint64              { return f.count }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(p EngineProvider, cfg config.DashboardConfig) *Server {
	return NewServer(cfg, p, nil, discardLogger())
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()
	s := newTestServer(&fakeProvider{count: 42}, config.DashboardConfig{})

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Status    string `json:"status"`
		Processed uint64 `json:"processed"`
		Streams   int    `json:"streams"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Processed != 42 || body.Streams != 0 {
		t.Errorf("body = %+v", body)
	}
}

func TestHandleSnapshot(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{
		status: BookStatus{
			Symbol:     "BTC-USD",
			BidCount:   2,
			AskCount:   3,
			TotalCount: 5,
			BestBid:    9_750_000,
			BestAsk:    9_850_000,
		},
		flow:  stats.FlowSnapshot{TradeCount: 7, VWAP: 9_800_000},
		count: 42,
	}
	s := newTestServer(p, config.DashboardConfig{})

	rec := httptest.NewRecorder()
	s.handleSnapshot(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var snap Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Book.Symbol != "BTC-USD" || snap.Book.TotalCount != 5 {
		t.Errorf("book = %+v", snap.Book)
	}
	if snap.Flow.TradeCount != 7 || snap.Processed != 42 {
		t.Errorf("flow = %+v, processed = %d", snap.Flow, snap.Processed)
	}
}

func TestHandleBook(t *testing.T) {
	t.Parallel()
	s := newTestServer(&fakeProvider{
		status: BookStatus{Symbol: "BTC-USD", BidCount: 1, AskCount: 2, TotalCount: 3},
	}, config.DashboardConfig{})

	rec := httptest.NewRecorder()
	s.handleBook(rec, httptest.NewRequest(http.MethodGet, "/api/book", nil))

	var status BookStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Symbol != "BTC-USD" || status.TotalCount != 3 {
		t.Errorf("status = %+v", status)
	}
}

func TestCheckOrigin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		origin  string
		allowed []string
		reqHost string
		want    bool
	}{
		{
			name:    "missing origin passes",
			origin:  "",
			reqHost: "engine.internal:8080",
			want:    true,
		},
		{
			name:    "loopback passes without allowlist",
			origin:  "http://localhost:3000",
			reqHost: "engine.internal:8080",
			want:    true,
		},
		{
			name:    "same host passes without allowlist",
			origin:  "https://Engine.Internal:8080",
			reqHost: "engine.internal:8080",
			want:    true,
		},
		{
			name:    "foreign origin rejected without allowlist",
			origin:  "https://evil.example",
			reqHost: "engine.internal:8080",
			want:    false,
		},
		{
			name:    "allowlisted origin passes",
			origin:  "https://dash.example.com",
			allowed: []string{"https://dash.example.com/"},
			reqHost: "engine.internal:8080",
			want:    true,
		},
		{
			name:    "allowlist rejects everything else, loopback included",
			origin:  "http://localhost:3000",
			allowed: []string{"https://dash.example.com"},
			reqHost: "engine.internal:8080",
			want:    false,
		},
		{
			name:    "garbage origin rejected",
			origin:  "://nope",
			reqHost: "engine.internal:8080",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeProvider{}, config.DashboardConfig{AllowedOrigins: tt.allowed})
			req := httptest.NewRequest(http.MethodGet, "/stream", nil)
			req.Host = tt.reqHost
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := s.checkOrigin(req); got != tt.want {
				t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}
