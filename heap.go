package malloc

import (
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// defaultReservationSize is how much virtual address space a Heap reserves
// up front (§4.B). Reserving is cheap — it costs address space, not
// physical memory — and lets every subsequent growth simply mprotect a
// slice of the same mapping, keeping the heap a single contiguous extent
// without relying on mremap or MAP_FIXED re-mapping tricks.
const defaultReservationSize = 1 << 30 // 1 GiB

// Heap is the free-chunk manager: a boundary-tagged arena with in-place
// coalescing, first-fit placement and an address-ordered free list, grown
// page by page over a single reserved mapping. Its zero value is not
// usable — construct one with New.
//
// Every public method acquires mu for its entire duration, per spec.md §5:
// "a single process-wide mutex serializes every public entry point in its
// entirety."
type Heap struct {
	mu sync.Mutex

	reservation     []byte
	reservationSize uintptr
	committed       uintptr
	heapStart       chunkAddr // low sentinel
	heapEnd         chunkAddr // current high sentinel

	list freeList

	pageSize     uintptr
	pageSizeOnce sync.Once

	log     *logrus.Logger
	metrics *collector
	lastErr error

	growths         uint64
	pageFaultBudget uint64 // 0 = unlimited, see WithPageFaultBudget
}

// New constructs a Heap. With no options it uses a 1 GiB address-space
// reservation, a discard logger, and no Prometheus registration — matching
// §6's "Persisted state: none" until the caller opts in.
func New(opts ...Option) *Heap {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	h := &Heap{
		reservationSize: cfg.reservationSize,
		log:             cfg.logger,
		pageFaultBudget: cfg.pageFaultBudget,
	}
	if cfg.pageSize != 0 {
		h.pageSize = cfg.pageSize
		h.pageSizeOnce.Do(func() {}) // pre-fire so queryPageSize never overwrites it
	}
	if cfg.registerer != nil {
		h.metrics = newCollector(h)
		cfg.registerer.MustRegister(h.metrics)
	}
	return h
}

// queryPageSize returns the OS page size, caching it on first call
// (spec.md §4.B / §5: "the first grow transitions the page size from 0 to
// a nonzero value").
func (h *Heap) queryPageSize() uintptr {
	h.pageSizeOnce.Do(func() {
		h.pageSize = uintptr(unix.Getpagesize())
	})
	return h.pageSize
}

func roundUpPage(n, page uintptr) uintptr {
	return (n + page - 1) &^ (page - 1)
}

// reserve maps reservationSize bytes of PROT_NONE address space. Called
// once, lazily, from the first growPages.
func (h *Heap) reserve() error {
	b, err := unix.Mmap(-1, 0, int(h.reservationSize), unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return errors.Wrapf(ErrOutOfMemory, "malloc: reserve address space: %v", err)
	}
	h.reservation = b
	h.heapStart = chunkAddr(uintptr(unsafe.Pointer(&b[0])))
	return nil
}

// growPages extends the heap so it can satisfy a chunk of at least
// requestedBytes total size, and returns the newly created free chunk
// (not yet on the free list — that is the caller's job, per §4.B/§4.D).
// This is the one place a holder of mu may block on the kernel (§5).
func (h *Heap) growPages(requestedBytes uintptr) (chunkAddr, uintptr, error) {
	if h.pageFaultBudget != 0 && h.growths >= h.pageFaultBudget {
		return 0, 0, errors.Wrap(ErrOutOfMemory, "malloc: page fault budget exhausted")
	}

	page := h.queryPageSize()

	if h.reservation == nil {
		want := roundUpPage(requestedBytes+2*fenceSize, page)
		if want > h.reservationSize {
			return 0, 0, errors.Wrap(ErrOutOfMemory, "malloc: initial request exceeds reservation")
		}

		if err := h.reserve(); err != nil {
			return 0, 0, err
		}
		if err := unix.Mprotect(h.reservation[:want], unix.PROT_READ|unix.PROT_WRITE); err != nil {
			return 0, 0, errors.Wrapf(ErrOutOfMemory, "malloc: commit initial pages: %v", err)
		}

		writeSentinel(h.heapStart)
		freeAddr := chunkAddr(uintptr(h.heapStart) + fenceSize)
		freeSize := want - 2*fenceSize
		freeAddr.writeChunk(freeSize, false)
		h.heapEnd = chunkAddr(uintptr(h.heapStart) + want - fenceSize)
		writeSentinel(h.heapEnd)
		h.committed = want

		h.growths++
		h.logGrowth(freeSize)
		return freeAddr, freeSize, nil
	}

	want := roundUpPage(requestedBytes, page)
	if h.committed+want > h.reservationSize {
		return 0, 0, errors.Wrap(ErrOutOfMemory, "malloc: reservation exhausted")
	}

	if err := unix.Mprotect(h.reservation[h.committed:h.committed+want], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return 0, 0, errors.Wrapf(ErrOutOfMemory, "malloc: commit additional pages: %v", err)
	}

	newChunk := h.heapEnd // reuse the old high sentinel's word as the new header
	newChunk.writeChunk(want, false)
	h.heapEnd = chunkAddr(uintptr(newChunk) + want)
	writeSentinel(h.heapEnd)
	h.committed += want

	h.growths++
	h.logGrowth(want)
	return newChunk, want, nil
}

func (h *Heap) logGrowth(size uintptr) {
	if h.log == nil {
		return
	}
	h.log.WithFields(logrus.Fields{
		"bytes":     size,
		"growths":   h.growths,
		"committed": h.committed,
	}).Debug("malloc: heap grown")
}

func (h *Heap) setLastErr(err error) error {
	h.lastErr = err
	if h.log != nil && err != nil {
		h.log.WithError(err).Warn("malloc: entry point failed")
	}
	return err
}

// LastError reports the error of the most recent failed Allocate or
// Resize, mirroring the "conventional process-wide error indicator" in
// spec.md §7 for callers that prefer that style over checking the
// returned error directly. Both are always consistent — both are set in
// the same critical section.
func (h *Heap) LastError() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastErr
}
