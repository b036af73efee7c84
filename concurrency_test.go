package malloc

import (
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestConcurrentAllocateRelease(t *testing.T) {
	h := New(WithReservationSize(16 << 20))

	const goroutines = 16
	const opsPerGoroutine = 200

	var g errgroup.Group
	for i := 0; i < goroutines; i++ {
		g.Go(func() error {
			for j := 0; j < opsPerGoroutine; j++ {
				n := 8 + (j % 256)
				handle, err := h.Allocate(n)
				if err != nil {
					return err
				}
				b := handle.Bytes(n)
				for k := range b {
					b[k] = byte(k)
				}
				h.Release(handle)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent allocate/release failed: %v", err)
	}

	checkHeapInvariants(t, h)
}

func TestConcurrentMixedSizes(t *testing.T) {
	h := New(WithReservationSize(16 << 20))

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		id := i
		g.Go(func() error {
			var handles []Handle
			for j := 0; j < 50; j++ {
				handle, err := h.Allocate(16 + id*8)
				if err != nil {
					return err
				}
				handles = append(handles, handle)
			}
			for _, handle := range handles {
				h.Release(handle)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent mixed-size workload failed: %v", err)
	}

	checkHeapInvariants(t, h)
}
