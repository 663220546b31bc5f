// Package journal writes the engine's outbound event stream to disk as
// NDJSON, one event per line, tagged with the order id it describes.
//
// The journal is a drop-copy for downstream consumers — the engine never
// reads it back. Writes are mutex-serialized and the file is opened in
// append mode, so a restart continues the same session file without
// clobbering earlier lines.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"matchbook/pkg/types"
)

// Record is one journal line: an event plus the id of the order it belongs to.
type Record struct {
	OrderID types.OrderID    `json:"order_id"`
	Event   types.OrderEvent `json:"event"`
}

// Journal appends event records to a single NDJSON file in a data directory.
type Journal struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

// Open creates the data directory if needed and opens the journal file for
// appending.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	path := filepath.Join(dir, "events.ndjson")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{f: f, enc: json.NewEncoder(f)}, nil
}

// Append writes every event in one execution result. Events are grouped per
// order in the input; the journal flattens them in per-order sequence order.
func (j *Journal) Append(results map[types.OrderID][]types.OrderEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for id, events := range results {
		for _, e := range events {
			if err := j.enc.Encode(Record{OrderID: id, Event: e}); err != nil {
				return fmt.Errorf("write journal: %w", err)
			}
		}
	}
	return nil
}

// Close flushes and closes the journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}
