package feed

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"matchbook/pkg/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func collect(t *testing.T, rp *Replay) ([]*types.OrderMessage, error) {
	t.Helper()
	out := make(chan *types.OrderMessage, 64)
	errCh := make(chan error, 1)
	go func() {
		errCh <- rp.Run(context.Background(), out)
		close(out)
	}()

	var msgs []*types.OrderMessage
	for msg := range out {
		msgs = append(msgs, msg)
	}
	return msgs, <-errCh
}

func TestReplayParsesNDJSON(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		`{"id":"6ba7b810-9dad-11d1-80b4-00c04fd430c8","kind":"limit","side":"ask","volume":38000,"price":9800000}`,
		``,
		`{"id":"6ba7b811-9dad-11d1-80b4-00c04fd430c8","kind":"market","side":"bid","volume":10,"max_quote":1000}`,
		`{"id":"6ba7b812-9dad-11d1-80b4-00c04fd430c8","kind":"cancel","target_id":"6ba7b810-9dad-11d1-80b4-00c04fd430c8"}`,
	}, "\n")

	msgs, err := collect(t, NewReplay(strings.NewReader(input), nil, discardLogger()))
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("len(msgs) = %d, want 3", len(msgs))
	}

	if msgs[0].Kind != types.KindLimit || msgs[0].Side != types.SideAsk ||
		msgs[0].Volume != 38000 || msgs[0].Price != 9_800_000 {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1].Kind != types.KindMarket || msgs[1].MaxQuote != 1000 {
		t.Errorf("msgs[1] = %+v", msgs[1])
	}
	if msgs[2].Kind != types.KindCancel || msgs[2].TargetID != msgs[0].ID {
		t.Errorf("msgs[2] = %+v", msgs[2])
	}
}

func TestReplayRejectsMalformedLine(t *testing.T) {
	t.Parallel()

	input := `{"id":"6ba7b810-9dad-11d1-80b4-00c04fd430c8","kind":"limit","side":"ask","volume":1,"price":2}` + "\n" +
		`{"kind": nonsense}` + "\n"

	_, err := collect(t, NewReplay(strings.NewReader(input), nil, discardLogger()))
	if err == nil {
		t.Fatal("Run() = nil, want parse error")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error %q does not name the line", err)
	}
}

func TestReplayRejectsMissingID(t *testing.T) {
	t.Parallel()

	input := `{"kind":"limit","side":"ask","volume":1,"price":2}` + "\n"
	_, err := collect(t, NewReplay(strings.NewReader(input), nil, discardLogger()))
	if err == nil || !strings.Contains(err.Error(), "without an id") {
		t.Errorf("Run() = %v, want missing-id error", err)
	}
}

func TestReplayStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rp := NewReplay(strings.NewReader(
		`{"id":"6ba7b810-9dad-11d1-80b4-00c04fd430c8","kind":"limit","side":"ask","volume":1,"price":2}`+"\n",
	), nil, discardLogger())
	out := make(chan *types.OrderMessage) // unbuffered: delivery must select ctx
	if err := rp.Run(ctx, out); err != context.Canceled {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}
