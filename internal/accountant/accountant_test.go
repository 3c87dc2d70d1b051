package accountant

import (
	"testing"

	"gridengine/internal/models"
	"gridengine/internal/pairstore"
)

func TestLive(t *testing.T) {
	s := pairstore.New()
	complete := &models.GridPair{Index: 0, GroupID: 0, BuyFilled: true, SellFilled: true}
	incomplete := &models.GridPair{Index: 1, GroupID: 0, BuyFilled: true}
	s.Create(complete)
	s.Create(incomplete)

	if got := Live(s, 0); got != 1 {
		t.Errorf("Live = %d, want 1", got)
	}
}

func TestObserveMonotone(t *testing.T) {
	a := New()
	if got := a.Observe(0, 2); got != 2 {
		t.Errorf("Observe(0,2) = %d, want 2", got)
	}
	// live count drops back to 1 (a pair's leg reopened); high-water must
	// not fall.
	if got := a.Observe(0, 1); got != 2 {
		t.Errorf("Observe(0,1) after high-water 2 = %d, want 2 (monotone)", got)
	}
	if got := a.Observe(0, 3); got != 3 {
		t.Errorf("Observe(0,3) = %d, want 3", got)
	}
}

func TestCapReached(t *testing.T) {
	a := New()
	if a.CapReached(0) {
		t.Error("fresh group should not be cap-reached")
	}
	a.Observe(0, Cap)
	if !a.CapReached(0) {
		t.Error("group at C=3 should be cap-reached")
	}
}

func TestSnapshotRestore(t *testing.T) {
	a := New()
	a.Observe(0, 2)
	a.Observe(1, 3)

	snap := a.Snapshot()
	b := New()
	b.Restore(snap)

	if !b.CapReached(1) {
		t.Error("restored accountant should preserve cap state for group 1")
	}
	if b.CapReached(0) {
		t.Error("group 0 with C=2 should not be cap-reached after restore")
	}
}
