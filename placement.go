package malloc

// requiredChunkSize computes the total chunk size (header through footer)
// needed to host a caller request of n bytes, per spec.md §4.D step 1:
// large enough to re-host a free node if later released, never smaller
// than minChunk, and chunkAlign-aligned.
func requiredChunkSize(n uintptr) uintptr {
	payloadMin := uintptr(freeNodeSize - fenceSize)
	if n < payloadMin {
		n = payloadMin
	}
	return roundUpAlign(n + 2*fenceSize)
}

// allocatePath implements the allocation path of spec.md §4.D: find or
// grow, split on the high end when the remainder is itself a usable
// chunk, mark the outgoing chunk used.
func (h *Heap) allocatePath(n uintptr) (payloadAddr, error) {
	req := requiredChunkSize(n)

	c := h.list.findFirstFit(req)
	if !c.valid() {
		grown, _, err := h.growPages(req)
		if err != nil {
			return 0, err
		}
		h.list.insertByAddress(grown)
		c = grown
	}

	h.list.remove(c)
	size := c.header().size()

	if remainder := size - req; remainder >= minChunk {
		rem := c.end(req)
		rem.writeChunk(remainder, false)
		h.list.insertByAddress(rem)
		c.writeChunk(req, true)
	} else {
		// Hand over the whole chunk; the requested size is implicitly
		// extended to size since size >= req and no usable remainder exists.
		c.writeChunk(size, true)
	}

	return c.payload(), nil
}

// releasePath implements the release path of spec.md §4.D: clear the used
// bit, reinitialize the free-node links, insert by address, then fuse with
// both neighbours (coalescing is enabled — see DESIGN.md Open Question 1).
func (h *Heap) releasePath(p payloadAddr) {
	c := p.chunk()
	size := c.header().size()

	c.writeChunk(size, false)
	h.list.insertByAddress(c)

	c = h.fuseUp(c)
	h.fuseDown(c)
}

// fuseUp merges c with its predecessor if that predecessor is free,
// reading the predecessor's footer one word before c (spec.md §4.A's
// O(1) backward-traversal rationale). A sentinel's used bit is always
// set, so fusion naturally stops at the low heap boundary.
func (h *Heap) fuseUp(c chunkAddr) chunkAddr {
	pf := footerBefore(c)
	if pf.used() {
		return c
	}

	size := c.header().size()
	prevSize := pf.size()
	prev := chunkAddr(uintptr(c) - prevSize)

	h.list.remove(prev)
	h.list.remove(c)

	merged := prevSize + size
	prev.writeChunk(merged, false)
	h.list.insertByAddress(prev)
	return prev
}

// fuseDown merges c with its successor if that successor is free. A
// sentinel's used bit is always set, so fusion naturally stops at the
// high heap boundary.
func (h *Heap) fuseDown(c chunkAddr) chunkAddr {
	size := c.header().size()
	next := c.end(size)
	nh := next.header()
	if nh.used() {
		return c
	}

	nextSize := nh.size()
	h.list.remove(next)
	h.list.remove(c)

	merged := size + nextSize
	c.writeChunk(merged, false)
	h.list.insertByAddress(c)
	return c
}

// capacityOf returns the usable payload capacity of the chunk backing p:
// its total chunk size minus both fences.
func capacityOf(p payloadAddr) uintptr {
	size := p.chunk().header().size()
	return size - 2*fenceSize
}
