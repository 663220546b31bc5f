package feed

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"matchbook/pkg/types"
)

// Replay streams order messages from an NDJSON reader, one message per line.
// Blank lines are skipped; a malformed line aborts the replay with an error
// naming the line number, because silently dropping messages would desync
// any capture that contains cancels.
type Replay struct {
	r      io.Reader
	bucket *TokenBucket // nil = unthrottled
	logger *slog.Logger
}

// NewReplay creates a replay source. bucket may be nil for full speed.
func NewReplay(r io.Reader, bucket *TokenBucket, logger *slog.Logger) *Replay {
	return &Replay{
		r:      r,
		bucket: bucket,
		logger: logger.With("component", "feed-replay"),
	}
}

// Run reads messages until EOF, delivering each into out.
func (rp *Replay) Run(ctx context.Context, out chan<- *types.OrderMessage) error {
	scanner := bufio.NewScanner(rp.r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	delivered := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var msg types.OrderMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return fmt.Errorf("replay line %d: %w", line, err)
		}
		if msg.ID == uuid.Nil {
			return fmt.Errorf("replay line %d: message without an id", line)
		}

		if rp.bucket != nil {
			if err := rp.bucket.Wait(ctx); err != nil {
				return err
			}
		}

		select {
		case out <- &msg:
			delivered++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("replay read: %w", err)
	}

	rp.logger.Info("replay finished", "messages", delivered)
	return nil
}
