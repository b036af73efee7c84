package malloc

import "testing"

func TestStatsInitialState(t *testing.T) {
	h := newTestHeap(t)
	s := h.Stats()
	if s.CommittedBytes != 0 || s.UsedBytes != 0 || s.FreeChunks != 0 || s.Growths != 0 {
		t.Errorf("initial Stats = %+v, want all zero", s)
	}
	if s.Utilization != 0 {
		t.Errorf("initial Utilization = %f, want 0", s.Utilization)
	}
}

func TestStatsAfterAllocations(t *testing.T) {
	h := newTestHeap(t)
	if _, err := h.Allocate(256); err != nil {
		t.Fatal(err)
	}

	s := h.Stats()
	if s.Growths != 1 {
		t.Errorf("Growths = %d, want 1", s.Growths)
	}
	if s.CommittedBytes == 0 {
		t.Error("expected non-zero CommittedBytes")
	}
	if s.UsedBytes == 0 {
		t.Error("expected non-zero UsedBytes")
	}
	if s.FreeChunks == 0 {
		t.Error("expected a free remainder chunk")
	}
	if s.Utilization <= 0 || s.Utilization > 1 {
		t.Errorf("Utilization = %f, want in (0, 1]", s.Utilization)
	}
}

func TestStatsAfterReleaseDropsUsedBytes(t *testing.T) {
	h := newTestHeap(t)
	p, err := h.Allocate(256)
	if err != nil {
		t.Fatal(err)
	}
	h.Release(p)

	s := h.Stats()
	if s.UsedBytes != 0 {
		t.Errorf("UsedBytes after releasing the only allocation = %d, want 0", s.UsedBytes)
	}
}
