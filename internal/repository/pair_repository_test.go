package repository

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"gridengine/internal/models"
)

func TestNewPairRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewPairRepository(db)
	if repo == nil {
		t.Fatal("NewPairRepository returned nil")
	}
}

func TestPairRepositoryUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewPairRepository(db)
	p := &models.GridPair{
		Index: 1, GroupID: 0,
		BuyPrice: 1020.0, SellPrice: 1000.0,
		BuyFilled: true, SellFilled: false,
		BuyTicket: 555, TradeCount: 1,
		NextAction: models.Sell,
	}

	mock.ExpectExec(`INSERT INTO grid_pairs`).
		WithArgs("BTCUSDT", int32(1), 1020.0, 1000.0, uint64(555), uint64(0),
			true, false, uint32(1), int(models.Sell),
			0.0, 0.0, false, uint32(0),
			uint64(0), false, int(models.Buy)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Upsert("BTCUSDT", p); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPairRepositoryByIndexNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewPairRepository(db)
	mock.ExpectQuery(`SELECT pair_index`).
		WithArgs("BTCUSDT", int32(9)).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.ByIndex("BTCUSDT", 9)
	if err != ErrPairNotFound {
		t.Errorf("ByIndex error = %v, want ErrPairNotFound", err)
	}
}

func TestPairRepositoryAllForSymbol(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewPairRepository(db)
	rows := sqlmock.NewRows([]string{
		"pair_index", "buy_price", "sell_price", "buy_ticket", "sell_ticket",
		"buy_filled", "sell_filled", "trade_count", "next_action",
		"locked_buy_entry", "locked_sell_entry", "tp_blocked", "group_id",
		"hedge_ticket", "hedge_active", "hedge_direction",
	}).
		AddRow(int32(0), 1000.0, 980.0, uint64(1), uint64(2), true, true, uint32(2), 0, 0.0, 0.0, false, uint32(0), uint64(0), false, 0).
		AddRow(int32(1), 1020.0, 1000.0, uint64(3), uint64(0), true, false, uint32(1), 1, 0.0, 0.0, false, uint32(0), uint64(0), false, 0)

	mock.ExpectQuery(`SELECT pair_index`).WithArgs("BTCUSDT").WillReturnRows(rows)

	pairs, err := repo.AllForSymbol("BTCUSDT")
	if err != nil {
		t.Fatalf("AllForSymbol error: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("AllForSymbol len = %d, want 2", len(pairs))
	}
	if !pairs[0].IsComplete() {
		t.Error("pair 0 should be complete")
	}
}
