package malloc

import "github.com/pkg/errors"

// ErrOutOfMemory is returned when the kernel refuses further heap growth
// (spec.md §7, failure kind 1).
var ErrOutOfMemory = errors.New("malloc: out of memory")

// ErrOverflow is returned by ZeroAllocate when count*elemSize would
// overflow the size word (spec.md §7, failure kind 2). It is reported
// identically to ErrOutOfMemory — same shape, different cause — but kept
// distinct so callers that want to tell the two apart with errors.Is can.
var ErrOverflow = errors.New("malloc: allocation size overflow")

// ErrInvalidSize is returned when a request would exceed the maximum
// payload this allocator will ever hand out (spec.md §1 non-goal:
// "no support for allocations whose payload exceeds SIZE_MAX/2").
var ErrInvalidSize = errors.New("malloc: requested size too large")
