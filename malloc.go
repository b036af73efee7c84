package malloc

import (
	"math/bits"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
)

// maxPayload is the largest payload size this allocator will ever hand
// out, per spec.md §1's non-goal "no support for allocations whose
// payload exceeds SIZE_MAX/2."
const maxPayload = ^uintptr(0) / 2

// Handle is an opaque reference to a region this allocator owns — the
// "handle" spec.md §1 describes in place of a bare pointer. Its zero
// value is the nil handle, equivalent to a C NULL: Release and Resize
// treat it as a no-op / equivalent-to-Allocate respectively.
type Handle struct {
	addr payloadAddr
}

// IsNil reports whether h is the nil handle.
func (h Handle) IsNil() bool { return !h.addr.valid() }

// Pointer returns the raw unsafe.Pointer backing h, for callers that need
// to hand the region to code expecting a conventional pointer. It is nil
// for the nil handle.
func (h Handle) Pointer() unsafe.Pointer {
	if h.IsNil() {
		return nil
	}
	return unsafe.Pointer(uintptr(h.addr))
}

// Bytes returns a []byte view of the first n bytes of h's payload. It
// panics if n exceeds h's capacity or h is the nil handle — callers are
// expected to track the size they allocated, exactly as with a raw
// pointer in the interface this module replaces.
func (h Handle) Bytes(n int) []byte {
	if h.IsNil() {
		panic("malloc: Bytes on nil handle")
	}
	if uintptr(n) > capacityOf(h.addr) {
		panic("malloc: Bytes length exceeds chunk capacity")
	}
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(h.Pointer()), n)
}

// capacity returns the usable payload capacity backing h.
func (h Handle) capacity() uintptr {
	if h.IsNil() {
		return 0
	}
	return capacityOf(h.addr)
}

// Allocate reserves n bytes and returns a handle to them, or the nil
// handle with a non-nil error on failure (spec.md §6, entry "allocate").
// The returned region is at least 16-byte aligned.
func (h *Heap) Allocate(n int) (Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.allocateLocked(n)
}

func (h *Heap) allocateLocked(n int) (Handle, error) {
	if n < 0 || uintptr(n) > maxPayload {
		return Handle{}, h.setLastErr(errors.Wrap(ErrInvalidSize, "malloc: Allocate"))
	}

	p, err := h.allocatePath(uintptr(n))
	if err != nil {
		return Handle{}, h.setLastErr(errors.Wrap(err, "malloc: Allocate"))
	}
	return Handle{addr: p}, nil
}

// Release returns a previously allocated region to the pool. Releasing
// the nil handle is a no-op (spec.md §7). Releasing a handle not
// previously returned by this Heap, or releasing the same handle twice,
// has undefined effect — this module does not attempt to detect either,
// per spec.md §7's explicit "the design does not attempt detection."
func (h *Heap) Release(handle Handle) {
	if handle.IsNil() {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.releasePath(handle.addr)
}

// ZeroAllocate reserves space for count elements of elemSize bytes each,
// zero-filled, or the nil handle with a non-nil error if the product
// would overflow the size word (spec.md §6, entry "zero_allocate"). Only
// the first count*elemSize bytes are zeroed — any padding within the
// chunk actually allocated (which is rounded up for alignment and never
// smaller than the allocator's minimum chunk) is left untouched. Callers
// that read past count*elemSize would see indeterminate bytes; this is
// the documented behavior, not an oversight (DESIGN.md Open Question 4).
func (h *Heap) ZeroAllocate(count, elemSize int) (Handle, error) {
	if count < 0 || elemSize < 0 {
		return Handle{}, errors.Wrap(ErrInvalidSize, "malloc: ZeroAllocate")
	}
	if count == 0 || elemSize == 0 {
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.allocateLocked(0)
	}
	if bits.Len(uint(count))+bits.Len(uint(elemSize)) > 8*wordSize {
		return Handle{}, errors.Wrap(ErrOverflow, "malloc: ZeroAllocate")
	}

	n := count * elemSize
	h.mu.Lock()
	defer h.mu.Unlock()
	handle, err := h.allocateLocked(n)
	if err != nil {
		return Handle{}, err
	}

	b := handle.Bytes(n)
	words := n / wordSize
	ws := unsafe.Slice((*uint64)(handle.Pointer()), words)
	for i := range ws {
		ws[i] = 0
	}
	for i := words * wordSize; i < n; i++ {
		b[i] = 0
	}
	return handle, nil
}

// Resize changes the size of a previously allocated region (spec.md §6,
// entry "resize"). A nil handle behaves like Allocate(n). n == 0 releases
// the handle and returns the nil handle — not the dangling original
// pointer (DESIGN.md Open Question 3). If the existing chunk's capacity
// already covers n, the handle is returned unchanged. Otherwise a new
// region is allocated, min(n, old capacity) bytes are copied, the old
// region is released, and the new handle is returned. On allocation
// failure the original handle is left intact and the nil handle is
// returned alongside the error.
func (h *Heap) Resize(handle Handle, n int) (Handle, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if handle.IsNil() {
		return h.allocateLocked(n)
	}
	if n == 0 {
		h.releasePath(handle.addr)
		return Handle{}, nil
	}
	if n < 0 || uintptr(n) > maxPayload {
		return Handle{}, h.setLastErr(errors.Wrap(ErrInvalidSize, "malloc: Resize"))
	}

	oldCap := handle.capacity()
	if uintptr(n) <= oldCap {
		return handle, nil
	}

	next, err := h.allocateLocked(n)
	if err != nil {
		return Handle{}, h.setLastErr(errors.Wrap(err, "malloc: Resize"))
	}

	copyWords(next, handle, oldCap)
	h.releasePath(handle.addr)
	return next, nil
}

// copyWords copies min(dst capacity, srcCap) bytes from src to dst at
// word granularity, per spec.md §4.E's "copy min(n, old) bytes (at word
// granularity)."
func copyWords(dst, src Handle, srcCap uintptr) {
	n := dst.capacity()
	if srcCap < n {
		n = srcCap
	}
	if n == 0 {
		return
	}
	words := n / wordSize
	dw := unsafe.Slice((*uint64)(dst.Pointer()), words)
	sw := unsafe.Slice((*uint64)(src.Pointer()), words)
	copy(dw, sw)
	db := dst.Bytes(int(n))
	sb := src.Bytes(int(n))
	for i := words * wordSize; i < n; i++ {
		db[i] = sb[i]
	}
}

// Process-wide singleton, for callers that want a drop-in replacement for
// the process heap without constructing a *Heap themselves — matching
// spec.md §5's "process-wide" framing and DESIGN NOTES' "singleton
// allocator value... lazily initialized on first allocate."

var (
	defaultOnce sync.Once
	defaultHeap *Heap
)

func shared() *Heap {
	defaultOnce.Do(func() { defaultHeap = New() })
	return defaultHeap
}

// Allocate reserves n bytes from the package-wide default Heap.
func Allocate(n int) (Handle, error) { return shared().Allocate(n) }

// Release returns handle to the package-wide default Heap.
func Release(handle Handle) { shared().Release(handle) }

// ZeroAllocate reserves zero-filled space from the package-wide default Heap.
func ZeroAllocate(count, elemSize int) (Handle, error) { return shared().ZeroAllocate(count, elemSize) }

// Resize resizes handle using the package-wide default Heap.
func Resize(handle Handle, n int) (Handle, error) { return shared().Resize(handle, n) }
