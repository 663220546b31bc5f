// bench prints the engine's datum layout and runs a latency microbenchmark:
// generated mixed flow is pushed through a dual book while per-message
// execution latency is recorded, then reported as percentiles. Illustrative
// only — numbers depend entirely on the host.
package main

import (
	"flag"
	"fmt"
	"sort"
	"time"
	"unsafe"

	"matchbook/internal/book"
	"matchbook/internal/config"
	"matchbook/internal/feed"
	"matchbook/pkg/types"
)

func main() {
	var (
		count = flag.Int("n", 1_000_000, "messages to execute")
		seed  = flag.Int64("seed", 42, "flow generator seed")
	)
	flag.Parse()

	printHeaders()
	printStructureInfo()
	runLatencyBench(*count, *seed)
}

func printHeaders() {
	fmt.Println()
	fmt.Println("Matchbook Matching Engine")
	fmt.Println("=========================")
	fmt.Println()
}

func printStructureInfo() {
	fmt.Println("[Data Structure Layout]")
	showSize("OrderEvent", unsafe.Sizeof(types.OrderEvent{}), unsafe.Alignof(types.OrderEvent{}))
	showSize("OrderMessage", unsafe.Sizeof(types.OrderMessage{}), unsafe.Alignof(types.OrderMessage{}))
	showSize("RestingOrder", unsafe.Sizeof(types.RestingOrder{}), unsafe.Alignof(types.RestingOrder{}))
	showSize("SideBook", unsafe.Sizeof(book.SideBook{}), unsafe.Alignof(book.SideBook{}))
	showSize("DualBook", unsafe.Sizeof(book.DualBook{}), unsafe.Alignof(book.DualBook{}))
	fmt.Println()
}

func showSize(name string, size, align uintptr) {
	fmt.Printf("- %s:\n  * Size %d bytes\n  * Alignment %d bytes\n", name, size, align)
}

func runLatencyBench(count int, seed int64) {
	gen := feed.NewGenerator(config.FeedConfig{
		Count:       count,
		Seed:        seed,
		MidPrice:    9_800_000,
		PriceBand:   50_000,
		MaxVolume:   1_000,
		MarketRatio: 0.2,
		CancelRatio: 0.2,
	})
	db := book.New()
	latencies := make([]time.Duration, 0, count)

	fmt.Printf("[Latency Microbenchmark] %d messages\n", count)
	start := time.Now()
	for {
		msg, ok := gen.Next()
		if !ok {
			break
		}
		t0 := time.Now()
		results := db.Execute(msg)
		latencies = append(latencies, time.Since(t0))
		gen.Observe(results)
	}
	elapsed := time.Since(start)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	bids, asks, total := db.Count()

	fmt.Printf("- total: %v (%.0f msg/s)\n", elapsed, float64(len(latencies))/elapsed.Seconds())
	fmt.Printf("- p50:   %v\n", percentile(latencies, 0.50))
	fmt.Printf("- p90:   %v\n", percentile(latencies, 0.90))
	fmt.Printf("- p99:   %v\n", percentile(latencies, 0.99))
	fmt.Printf("- p99.9: %v\n", percentile(latencies, 0.999))
	fmt.Printf("- max:   %v\n", latencies[len(latencies)-1])
	fmt.Printf("- book:  %d bids / %d asks / %d resting\n", bids, asks, total)
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	return sorted[idx]
}
