package book

import (
	"time"

	"matchbook/pkg/types"
)

// Clock supplies the timestamps stamped on emitted events. The default reads
// the system monotonic clock; tests inject a fixed clock so every event in a
// message carries the same timestamp and can be compared exactly.
type Clock func() types.Timestamp

// systemClockBase anchors SystemClock to the wall clock once; later readings
// advance by the monotonic clock, so they never step backwards.
var systemClockBase = time.Now()

// SystemClock reads the monotonic clock as nanoseconds since the Unix epoch.
func SystemClock() types.Timestamp {
	return types.Timestamp(systemClockBase.UnixNano() + int64(time.Since(systemClockBase)))
}
