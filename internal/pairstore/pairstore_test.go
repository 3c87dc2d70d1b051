package pairstore

import (
	"testing"

	"gridengine/internal/models"
)

func pair(index int32, group uint32) *models.GridPair {
	return &models.GridPair{Index: index, GroupID: group}
}

func TestCreateAndGet(t *testing.T) {
	s := New()
	s.Create(pair(0, 0))
	if p := s.Get(0); p == nil || p.Index != 0 {
		t.Fatalf("Get(0) = %+v", p)
	}
	if s.Get(99) != nil {
		t.Error("Get of missing index should be nil")
	}
}

func TestExists(t *testing.T) {
	s := New()
	s.Create(pair(3, 0))
	if !s.Exists(3) {
		t.Error("Exists(3) should be true")
	}
	if s.Exists(4) {
		t.Error("Exists(4) should be false")
	}
}

func TestIndicesAndPairsSortedByGroup(t *testing.T) {
	s := New()
	s.Create(pair(2, 0))
	s.Create(pair(-1, 0))
	s.Create(pair(0, 0))
	s.Create(pair(100, 1))

	idx := s.Indices(0)
	want := []int32{-1, 0, 2}
	for i, v := range want {
		if idx[i] != v {
			t.Errorf("Indices(0)[%d] = %d, want %d", i, idx[i], v)
		}
	}

	if len(s.Pairs(1)) != 1 {
		t.Errorf("Pairs(1) len = %d, want 1", len(s.Pairs(1)))
	}
}

func TestAll(t *testing.T) {
	s := New()
	s.Create(pair(1, 0))
	s.Create(pair(0, 1))
	all := s.All()
	if len(all) != 2 {
		t.Fatalf("All() len = %d, want 2", len(all))
	}
	if all[0].Index != 0 || all[1].Index != 1 {
		t.Errorf("All() not sorted by index: %+v", all)
	}
}

func TestHighestSellOnly(t *testing.T) {
	s := New()
	a := pair(0, 0)
	a.SellFilled = true
	b := pair(1, 0)
	b.SellFilled = true
	c := pair(2, 0)
	c.SellFilled = true
	c.BuyFilled = true // complete, not a candidate
	s.Create(a)
	s.Create(b)
	s.Create(c)

	got := s.HighestSellOnly(0)
	if got == nil || got.Index != 1 {
		t.Errorf("HighestSellOnly = %+v, want index 1", got)
	}
}

func TestLowestBuyOnly(t *testing.T) {
	s := New()
	a := pair(0, 0)
	a.BuyFilled = true
	b := pair(-1, 0)
	b.BuyFilled = true
	s.Create(a)
	s.Create(b)

	got := s.LowestBuyOnly(0)
	if got == nil || got.Index != -1 {
		t.Errorf("LowestBuyOnly = %+v, want index -1", got)
	}
}

func TestRestore(t *testing.T) {
	s := New()
	s.Create(pair(5, 0))
	s.Restore([]*models.GridPair{pair(1, 2), pair(3, 2)})

	if s.Exists(5) {
		t.Error("Restore should replace contents wholesale")
	}
	if len(s.Indices(2)) != 2 {
		t.Errorf("Indices(2) len = %d, want 2", len(s.Indices(2)))
	}
}
