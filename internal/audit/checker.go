// Package audit verifies the book's structural invariants after every
// executed message: both sides well-formed, the side index in bijection with
// the per-side indexes, every resting volume positive, and the book
// uncrossed. Any violation means the matcher itself is broken, so the
// checker's caller is expected to halt the engine rather than keep matching
// on a corrupt book.
package audit

import (
	"fmt"
	"log/slog"

	"matchbook/internal/book"
)

// Checker runs whole-book integrity verification beside the engine loop.
type Checker struct {
	enabled bool
	logger  *slog.Logger
	checks  uint64
}

// NewChecker creates a checker. When disabled, Verify is a no-op.
func NewChecker(enabled bool, logger *slog.Logger) *Checker {
	return &Checker{
		enabled: enabled,
		logger:  logger.With("component", "audit"),
	}
}

// Enabled reports whether verification runs.
func (c *Checker) Enabled() bool {
	return c.enabled
}

// Checks returns how many verifications have run.
func (c *Checker) Checks() uint64 {
	return c.checks
}

// Verify walks the book's invariants. It returns an error describing the
// first violation found; the book is not safe to keep using after one.
func (c *Checker) Verify(db *book.DualBook) error {
	if !c.enabled {
		return nil
	}
	c.checks++

	if err := db.Integrity(); err != nil {
		bids, asks, total := db.Count()
		c.logger.Error("book integrity violated",
			"error", err,
			"bids", bids,
			"asks", asks,
			"total", total,
			"checks", c.checks,
		)
		return fmt.Errorf("audit: %w", err)
	}
	return nil
}
