// Database integration tests exercise each repository against a real
// Postgres instance: round-trip upserts, not-found errors, and the
// ordering/filtering guarantees the engine relies on at startup.
package integration

import (
	"testing"
	"time"

	"gridengine/internal/models"
	"gridengine/internal/repository"
)

func TestStateRepositoryUpsertAndGet(t *testing.T) {
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	if err := initTestTables(db); err != nil {
		t.Fatalf("init tables: %v", err)
	}
	defer cleanupTestTables(db)

	repo := repository.NewStateRepository(db)

	state := &models.SymbolState{
		Symbol:       "BTCUSDT",
		Phase:        models.PhaseExpanding,
		CenterPrice:  50000.0,
		Iteration:    3,
		CurrentGroup: 1,
		AnchorPrice:  50010.0,
		GracefulStop: true,
		LastUpdate:   time.Now().Truncate(time.Second),
	}
	groups := map[uint32]models.GroupState{
		0: {GroupID: 0, AnchorPrice: 50000.0, CHighwater: 2, InitTriggered: true},
		1: {GroupID: 1, AnchorPrice: 50010.0, CHighwater: 0},
	}

	if err := repo.Upsert(state, groups); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, gotGroups, err := repo.Get("BTCUSDT")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Phase != models.PhaseExpanding || got.CurrentGroup != 1 || !got.GracefulStop {
		t.Errorf("unexpected state: %+v", got)
	}
	if len(gotGroups) != 2 || gotGroups[0].CHighwater != 2 {
		t.Errorf("unexpected groups: %+v", gotGroups)
	}

	// Upsert again with a different phase; should overwrite, not duplicate.
	state.Phase = models.PhaseRunning
	if err := repo.Upsert(state, groups); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	got, _, err = repo.Get("BTCUSDT")
	if err != nil {
		t.Fatalf("get after second upsert: %v", err)
	}
	if got.Phase != models.PhaseRunning {
		t.Errorf("expected phase to be overwritten, got %v", got.Phase)
	}
}

func TestStateRepositoryGetNotFound(t *testing.T) {
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	if err := initTestTables(db); err != nil {
		t.Fatalf("init tables: %v", err)
	}
	defer cleanupTestTables(db)

	repo := repository.NewStateRepository(db)
	_, _, err := repo.Get("NOSUCHSYMBOL")
	if err != repository.ErrStateNotFound {
		t.Errorf("expected ErrStateNotFound, got %v", err)
	}
}

func TestPairRepositoryUpsertByIndexAndAllForSymbol(t *testing.T) {
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	if err := initTestTables(db); err != nil {
		t.Fatalf("init tables: %v", err)
	}
	defer cleanupTestTables(db)

	repo := repository.NewPairRepository(db)

	p0 := &models.GridPair{Index: 0, GroupID: 0, BuyPrice: 49990, SellPrice: 50010, BuyFilled: true, BuyTicket: 1001, TradeCount: 1}
	p1 := &models.GridPair{Index: 1, GroupID: 0, BuyPrice: 49980, SellPrice: 50020, NextAction: models.Sell}

	if err := repo.Upsert("BTCUSDT", p0); err != nil {
		t.Fatalf("upsert p0: %v", err)
	}
	if err := repo.Upsert("BTCUSDT", p1); err != nil {
		t.Fatalf("upsert p1: %v", err)
	}

	got, err := repo.ByIndex("BTCUSDT", 0)
	if err != nil {
		t.Fatalf("by index: %v", err)
	}
	if !got.BuyFilled || got.BuyTicket != 1001 {
		t.Errorf("unexpected pair 0: %+v", got)
	}

	all, err := repo.AllForSymbol("BTCUSDT")
	if err != nil {
		t.Fatalf("all for symbol: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(all))
	}
	if all[0].Index != 0 || all[1].Index != 1 {
		t.Errorf("expected pairs ordered by index, got %d, %d", all[0].Index, all[1].Index)
	}

	// Update pair 0's sell leg; Upsert must merge, not duplicate the row.
	p0.SellFilled = true
	p0.SellTicket = 1002
	p0.TradeCount = 2
	if err := repo.Upsert("BTCUSDT", p0); err != nil {
		t.Fatalf("re-upsert p0: %v", err)
	}
	all, err = repo.AllForSymbol("BTCUSDT")
	if err != nil {
		t.Fatalf("all for symbol after update: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected still 2 pairs after update, got %d", len(all))
	}
}

func TestPairRepositoryByIndexNotFound(t *testing.T) {
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	if err := initTestTables(db); err != nil {
		t.Fatalf("init tables: %v", err)
	}
	defer cleanupTestTables(db)

	repo := repository.NewPairRepository(db)
	_, err := repo.ByIndex("BTCUSDT", 99)
	if err != repository.ErrPairNotFound {
		t.Errorf("expected ErrPairNotFound, got %v", err)
	}
}

func TestTicketRepositoryUpsertDeleteAndAllForSymbol(t *testing.T) {
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	if err := initTestTables(db); err != nil {
		t.Fatalf("init tables: %v", err)
	}
	defer cleanupTestTables(db)

	repo := repository.NewTicketRepository(db)

	info := &models.TicketInfo{PairIndex: 0, Leg: models.Buy, Entry: 49990, TP: 50010, SL: 49970}
	if err := repo.Upsert("BTCUSDT", 1001, info); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	all, err := repo.AllForSymbol("BTCUSDT")
	if err != nil {
		t.Fatalf("all for symbol: %v", err)
	}
	if len(all) != 1 || all[1001].Entry != 49990 {
		t.Fatalf("unexpected tickets: %+v", all)
	}

	info.Touch.TPTouched = true
	if err := repo.Upsert("BTCUSDT", 1001, info); err != nil {
		t.Fatalf("re-upsert with touch flag: %v", err)
	}
	all, err = repo.AllForSymbol("BTCUSDT")
	if err != nil {
		t.Fatalf("all for symbol after touch: %v", err)
	}
	if !all[1001].Touch.TPTouched {
		t.Errorf("expected tp_touched to persist")
	}

	if err := repo.Delete(1001); err != nil {
		t.Fatalf("delete: %v", err)
	}
	all, err = repo.AllForSymbol("BTCUSDT")
	if err != nil {
		t.Fatalf("all for symbol after delete: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("expected no tickets after delete, got %d", len(all))
	}
}

func TestTradeRepositoryAppendAndQuery(t *testing.T) {
	db, cleanup := SetupTestDB(t)
	defer cleanup()
	if err := initTestTables(db); err != nil {
		t.Fatalf("init tables: %v", err)
	}
	defer cleanupTestTables(db)

	repo := repository.NewTradeRepository(db)

	events := []*models.TradeEvent{
		{Symbol: "BTCUSDT", Type: models.EventOpen, PairIndex: 0, Direction: models.Buy, Price: 49990, Lot: 0.01, Ticket: 1001},
		{Symbol: "BTCUSDT", Type: models.EventTP, PairIndex: 0, Direction: models.Buy, Price: 50010, Lot: 0.01, Ticket: 1001},
		{Symbol: "BTCUSDT", Type: models.EventCapRefused, PairIndex: 1, Direction: models.Sell, Price: 50020, Lot: 0.01},
	}
	for _, e := range events {
		if err := repo.Append(e); err != nil {
			t.Fatalf("append: %v", err)
		}
		if e.ID == 0 {
			t.Errorf("expected assigned id after append")
		}
		time.Sleep(time.Millisecond)
	}

	history, err := repo.ForSymbol("BTCUSDT", 10)
	if err != nil {
		t.Fatalf("for symbol: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(history))
	}
	if history[0].Type != models.EventCapRefused {
		t.Errorf("expected most recent first, got %v", history[0].Type)
	}

	pairHistory, err := repo.ForPair("BTCUSDT", 0)
	if err != nil {
		t.Fatalf("for pair: %v", err)
	}
	if len(pairHistory) != 2 {
		t.Errorf("expected 2 rows for pair 0, got %d", len(pairHistory))
	}

	byType, err := repo.ByEventType("BTCUSDT", models.EventTP, 10)
	if err != nil {
		t.Fatalf("by event type: %v", err)
	}
	if len(byType) != 1 || byType[0].Type != models.EventTP {
		t.Errorf("unexpected by-type result: %+v", byType)
	}

	deleted, err := repo.DeleteOlderThan(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("delete older than: %v", err)
	}
	if deleted != 3 {
		t.Errorf("expected 3 rows deleted, got %d", deleted)
	}
}
