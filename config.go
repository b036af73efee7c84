package malloc

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// config holds the construction-time settings gathered by Option values.
type config struct {
	reservationSize uintptr
	pageSize        uintptr
	pageFaultBudget uint64
	logger          *logrus.Logger
	registerer      prometheus.Registerer
}

func defaultConfig() *config {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &config{
		reservationSize: defaultReservationSize,
		logger:          l,
	}
}

// Option configures a Heap at construction time.
type Option func(*config)

// WithLogger installs a *logrus.Logger that receives heap-growth and
// failure events at Debug/Warn level. A nil logger is treated as
// "discard everything."
func WithLogger(l *logrus.Logger) Option {
	return func(c *config) {
		if l == nil {
			l = logrus.New()
			l.SetOutput(io.Discard)
		}
		c.logger = l
	}
}

// WithMetricsRegisterer registers the Heap's Prometheus collector with r.
// Unset by default — nothing is registered unless the caller opts in,
// matching spec.md §6's "Persisted state: none."
func WithMetricsRegisterer(r prometheus.Registerer) Option {
	return func(c *config) { c.registerer = r }
}

// WithReservationSize overrides the amount of virtual address space the
// Heap reserves up front (default 1 GiB). The reservation is uncommitted
// address space, not physical memory, so oversizing it is cheap; it does
// bound the total heap size, per spec.md §4.B's out-of-memory path.
func WithReservationSize(bytes int) Option {
	return func(c *config) {
		if bytes > 0 {
			c.reservationSize = uintptr(bytes)
		}
	}
}

// WithPageSizeOverride pins the page size growPages rounds to, instead of
// querying the OS. Test-only: lets tests exercise multi-page growth
// deterministically regardless of the host's actual page size.
func WithPageSizeOverride(bytes int) Option {
	return func(c *config) {
		if bytes > 0 {
			c.pageSize = uintptr(bytes)
		}
	}
}

// WithPageFaultBudget caps the number of times growPages may commit fresh
// pages over the Heap's lifetime. Once the budget is spent, growPages
// returns ErrOutOfMemory even if the reservation still has untouched
// address space left — a second, independent knob alongside
// WithReservationSize for bounding how far a single Heap is allowed to
// grow (e.g. to keep a long-lived process from quietly creeping toward
// its reservation limit one page fault at a time). Zero (the default)
// means unlimited, bounded only by the reservation.
func WithPageFaultBudget(budget uint64) Option {
	return func(c *config) { c.pageFaultBudget = budget }
}
