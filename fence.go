package malloc

import "unsafe"

// wordSize is the machine word width this module assumes throughout (W).
const wordSize = 8

// chunkAlign is the alignment every chunk start and payload address
// satisfies (A = 2W).
const chunkAlign = 2 * wordSize

// fenceSize is the width of a single boundary tag.
const fenceSize = wordSize

// freeNodeSize is the size of the two back-references (prev/next) a free
// chunk's payload holds while it sits on the free list.
const freeNodeSize = 2 * wordSize

// minChunk is the smallest chunk this allocator will ever create: large
// enough to host a free node plus both fences, rounded up to chunkAlign.
const minChunk = (freeNodeSize + fenceSize + fenceSize + chunkAlign - 1) &^ (chunkAlign - 1)

// usedBit marks a fence's low bit when the chunk it belongs to is in use.
// The remaining bits encode the chunk's total size (header through footer
// inclusive), which is always a multiple of chunkAlign and therefore never
// sets that bit itself.
const usedBit = uintptr(1)

// sentinelSize is the size field written into a sentinel fence. It is
// deliberately smaller than minChunk so no real chunk can ever collide
// with it, it is even so the used bit does not overlap it, and it is
// always paired with the used bit set.
const sentinelSize = 2

// chunkAddr is the address of a chunk's first byte (its header fence).
// It is a distinct type from payloadAddr so the two can never be
// transposed by the compiler.
type chunkAddr uintptr

// payloadAddr is the address of a chunk's payload, i.e. one fenceSize past
// its header. This is the address handed to callers.
type payloadAddr uintptr

func (c chunkAddr) payload() payloadAddr { return payloadAddr(uintptr(c) + fenceSize) }
func (p payloadAddr) chunk() chunkAddr   { return chunkAddr(uintptr(p) - fenceSize) }
func (c chunkAddr) valid() bool          { return c != 0 }
func (p payloadAddr) valid() bool        { return p != 0 }

// fenceWord is the in-memory representation of a single boundary tag.
type fenceWord uintptr

func (c chunkAddr) header() *fenceWord {
	return (*fenceWord)(unsafe.Pointer(uintptr(c)))
}

// footerFor returns the footer fence belonging to a chunk that starts at c
// and has the given total size.
func (c chunkAddr) footerFor(size uintptr) *fenceWord {
	return (*fenceWord)(unsafe.Pointer(uintptr(c) + size - fenceSize))
}

// end returns the address one past this chunk's footer, i.e. the start of
// whatever comes next (another chunk's header, or a sentinel).
func (c chunkAddr) end(size uintptr) chunkAddr {
	return chunkAddr(uintptr(c) + size)
}

func (f *fenceWord) size() uintptr { return uintptr(*f) &^ usedBit }
func (f *fenceWord) used() bool    { return uintptr(*f)&usedBit != 0 }

func (f *fenceWord) write(size uintptr, used bool) {
	v := size
	if used {
		v |= usedBit
	}
	*f = fenceWord(v)
}

// writeChunk writes matching header and footer fences for a chunk of the
// given total size starting at c.
func (c chunkAddr) writeChunk(size uintptr, used bool) {
	c.header().write(size, used)
	c.footerFor(size).write(size, used)
}

// writeSentinel writes a one-word, used fence of size sentinelSize at addr.
func writeSentinel(addr chunkAddr) {
	addr.header().write(sentinelSize, true)
}

func isSentinel(f *fenceWord) bool {
	return f.used() && f.size() == sentinelSize
}

// roundUpAlign rounds n up to the next multiple of chunkAlign.
func roundUpAlign(n uintptr) uintptr {
	return (n + chunkAlign - 1) &^ (chunkAlign - 1)
}

// footerBefore returns the footer fence of whatever chunk (or sentinel)
// ends immediately before addr — used for backward traversal during
// coalescing (§4.A rationale: O(1) predecessor lookup).
func footerBefore(addr chunkAddr) *fenceWord {
	return (*fenceWord)(unsafe.Pointer(uintptr(addr) - fenceSize))
}
