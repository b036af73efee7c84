package malloc

import "unsafe"

// freeNode is the view of a free chunk's payload used while it sits on the
// free list: two back-references, written into the first freeNodeSize
// bytes of the payload. The list does not own these chunks — the heap
// arena does — the list is merely a view threaded through memory that
// belongs to whichever chunk is currently free, per spec.md §9's
// "self-referential doubly linked list... is a view, not an owner."
type freeNode struct {
	prev chunkAddr
	next chunkAddr
}

func (c chunkAddr) node() *freeNode {
	return (*freeNode)(unsafe.Pointer(c.payload()))
}

// freeList is a doubly linked, strictly address-ascending list of free
// chunks. Its zero value (nil head) is the empty list.
type freeList struct {
	head chunkAddr
}

// insertByAddress splices c into the list keeping ascending address order.
// O(n): walks from head until it finds the first element whose address
// exceeds c, or the end of the list.
func (l *freeList) insertByAddress(c chunkAddr) {
	n := c.node()
	n.prev, n.next = 0, 0

	if !l.head.valid() || l.head > c {
		n.next = l.head
		if l.head.valid() {
			l.head.node().prev = c
		}
		l.head = c
		return
	}

	cur := l.head
	for cur.node().next.valid() && cur.node().next < c {
		cur = cur.node().next
	}

	nxt := cur.node().next
	n.prev = cur
	n.next = nxt
	cur.node().next = c
	if nxt.valid() {
		nxt.node().prev = c
	}
}

// remove splices a known-present chunk out of the list.
func (l *freeList) remove(c chunkAddr) {
	n := c.node()
	prev, next := n.prev, n.next

	if prev.valid() {
		prev.node().next = next
	} else {
		l.head = next
	}
	if next.valid() {
		next.node().prev = prev
	}
	n.prev, n.next = 0, 0
}

// findFirstFit returns the first chunk on the list whose total size is at
// least required, or the zero chunkAddr if none fits.
func (l *freeList) findFirstFit(required uintptr) chunkAddr {
	for cur := l.head; cur.valid(); cur = cur.node().next {
		if cur.header().size() >= required {
			return cur
		}
	}
	return 0
}

// walk calls fn for every chunk on the list in ascending address order.
// Used by invariant checks and metrics, not on any allocation hot path.
func (l *freeList) walk(fn func(chunkAddr)) {
	for cur := l.head; cur.valid(); cur = cur.node().next {
		fn(cur)
	}
}

// count returns the number of chunks currently on the free list.
func (l *freeList) count() int {
	n := 0
	l.walk(func(chunkAddr) { n++ })
	return n
}
