// Package feed supplies order messages to the engine loop.
//
// Two sources exist: Replay streams NDJSON-encoded OrderMessages from a
// reader (a capture file or stdin), and Generator produces random mixed flow
// for simulation and benchmarking. Replay delivers into a channel owned by
// the engine and honours an optional token-bucket throttle; the Generator is
// pulled one message at a time by the engine loop (see SyncSource) and is
// not throttled. Either way the book keeps a single writer.
package feed

import (
	"context"

	"matchbook/pkg/types"
)

// Source produces order messages until it runs dry or ctx is cancelled.
// Run closes nothing: the caller owns the channel and closes it after Run
// returns.
type Source interface {
	Run(ctx context.Context, out chan<- *types.OrderMessage) error
}

// Observer is implemented by sources that track book state from execution
// results — the Generator needs to know which of its limit orders still rest
// so it only ever cancels live ids.
type Observer interface {
	Observe(results map[types.OrderID][]types.OrderEvent)
}
