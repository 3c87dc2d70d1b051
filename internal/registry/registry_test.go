package registry

import (
	"testing"

	"gridengine/internal/models"
)

func TestRegisterIdempotent(t *testing.T) {
	r := New()
	r.Register(1, 0, models.Buy, 1000, 1020, 980)
	r.Register(1, 5, models.Sell, 999, 1019, 979) // second call must be a no-op

	info := r.Lookup(1)
	if info.PairIndex != 0 || info.Leg != models.Buy {
		t.Errorf("Register should be idempotent, got %+v", info)
	}
}

func TestUpdateTouch_BuyLeg(t *testing.T) {
	r := New()
	r.Register(1, 0, models.Buy, 1000, 1020, 980)

	r.UpdateTouch(1010, 1009) // neither crossed
	info := r.Lookup(1)
	if info.Touch.TPTouched || info.Touch.SLTouched {
		t.Fatal("flags should still be false before any crossing")
	}

	r.UpdateTouch(1021, 1020) // bid >= tp
	info = r.Lookup(1)
	if !info.Touch.TPTouched {
		t.Error("buy leg TP should latch when bid >= tp")
	}

	// Touch flags are monotone: dropping back below tp must not clear it.
	r.UpdateTouch(1000, 999)
	info = r.Lookup(1)
	if !info.Touch.TPTouched {
		t.Error("TP touch flag must remain latched (monotone)")
	}
}

func TestUpdateTouch_SellLeg(t *testing.T) {
	r := New()
	r.Register(2, 1, models.Sell, 1000, 980, 1020)

	r.UpdateTouch(979, 978) // ask <= tp
	info := r.Lookup(2)
	if !info.Touch.TPTouched {
		t.Error("sell leg TP should latch when ask <= tp")
	}

	r.UpdateTouch(1021, 1020) // ask >= sl
	info = r.Lookup(2)
	if !info.Touch.SLTouched {
		t.Error("sell leg SL should latch when ask >= sl")
	}
}

func TestRemove(t *testing.T) {
	r := New()
	r.Register(1, 0, models.Buy, 1000, 1020, 980)
	r.Remove(1)
	if r.Lookup(1) != nil {
		t.Error("ticket should be gone after Remove")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestLookupMissing(t *testing.T) {
	r := New()
	if r.Lookup(999) != nil {
		t.Error("Lookup of unknown ticket should return nil")
	}
}

func TestSnapshotRestore(t *testing.T) {
	r := New()
	r.Register(1, 0, models.Buy, 1000, 1020, 980)
	r.Register(2, 1, models.Sell, 1000, 980, 1020)
	r.UpdateTouch(1021, 1020)

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("snapshot len = %d, want 2", len(snap))
	}

	r2 := New()
	r2.Restore(snap)
	if r2.Len() != 2 {
		t.Errorf("restored registry len = %d, want 2", r2.Len())
	}
	if info := r2.Lookup(1); !info.Touch.TPTouched {
		t.Error("restore should preserve touch flags")
	}
}

func TestTracked(t *testing.T) {
	r := New()
	r.Register(1, 0, models.Buy, 1000, 1020, 980)
	r.Register(2, 1, models.Sell, 1000, 980, 1020)

	tracked := r.Tracked()
	if len(tracked) != 2 {
		t.Errorf("Tracked() len = %d, want 2", len(tracked))
	}
}
