package malloc

import (
	"testing"
	"unsafe"
)

// bufAddr returns the address of buf's first byte, for tests that want to
// exercise fence/free-list logic directly over a plain Go byte slice
// instead of a real growPages-backed heap.
func bufAddr(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(&buf[0]))
}

// checkHeapInvariants walks the heap by fence traversal from the low
// sentinel to the high sentinel and asserts the universal invariants from
// spec.md §8: matching header/footer fences, exact tiling, free-list
// membership agreeing with the used bit, ascending free-list address
// order, and the total-bytes-delivered identity.
func checkHeapInvariants(t *testing.T, h *Heap) {
	t.Helper()

	if !h.heapStart.valid() {
		return // heap never grown; nothing to check
	}

	lowSentinel := h.heapStart.header()
	if !isSentinel(lowSentinel) {
		t.Fatalf("low sentinel malformed: size=%d used=%v", lowSentinel.size(), lowSentinel.used())
	}
	highSentinel := h.heapEnd.header()
	if !isSentinel(highSentinel) {
		t.Fatalf("high sentinel malformed: size=%d used=%v", highSentinel.size(), highSentinel.used())
	}

	onList := map[chunkAddr]bool{}
	h.list.walk(func(c chunkAddr) { onList[c] = true })

	var lastListAddr chunkAddr
	for cur := h.list.head; cur.valid(); cur = cur.node().next {
		if lastListAddr.valid() && cur <= lastListAddr {
			t.Fatalf("free list not strictly ascending: %v then %v", lastListAddr, cur)
		}
		lastListAddr = cur
	}

	var sum uintptr
	var freeCount int
	cur := chunkAddr(uintptr(h.heapStart) + fenceSize)
	for cur != h.heapEnd {
		hdr := cur.header()
		size := hdr.size()
		if size < minChunk {
			t.Fatalf("chunk at %v smaller than minChunk: %d", cur, size)
		}
		footer := cur.footerFor(size)
		if footer.size() != size {
			t.Fatalf("chunk at %v: header size %d != footer size %d", cur, size, footer.size())
		}
		if footer.used() != hdr.used() {
			t.Fatalf("chunk at %v: header used %v != footer used %v", cur, hdr.used(), footer.used())
		}

		inList := onList[cur]
		if hdr.used() && inList {
			t.Fatalf("used chunk at %v present on free list", cur)
		}
		if !hdr.used() && !inList {
			t.Fatalf("free chunk at %v missing from free list", cur)
		}
		if !hdr.used() {
			freeCount++
		}

		sum += size
		cur = cur.end(size)
	}

	if freeCount != len(onList) {
		t.Fatalf("free list has %d entries but traversal found %d free chunks", len(onList), freeCount)
	}

	if want := uintptr(h.committed) - 2*fenceSize; sum != want {
		t.Fatalf("sum of chunk sizes = %d, want %d (committed %d minus both sentinels)", sum, want, h.committed)
	}
}

// newTestHeap builds a Heap with a small reservation so tests exercise
// multi-page growth without mapping excessive address space.
func newTestHeap(t *testing.T) *Heap {
	t.Helper()
	return New(WithReservationSize(4 << 20))
}
