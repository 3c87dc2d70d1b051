package repository

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"gridengine/internal/models"
)

func TestTicketRepositoryUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewTicketRepository(db)
	info := &models.TicketInfo{PairIndex: 1, Leg: models.Buy, Entry: 1000, TP: 1020, SL: 980}

	mock.ExpectExec(`INSERT INTO ticket_map`).
		WithArgs(uint64(55), "BTCUSDT", int32(1), int(models.Buy), 1000.0, 1020.0, 980.0, false, false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Upsert("BTCUSDT", 55, info); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTicketRepositoryDelete(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewTicketRepository(db)
	mock.ExpectExec(`DELETE FROM ticket_map`).WithArgs(uint64(55)).WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Delete(55); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
}

func TestTicketRepositoryAllForSymbol(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewTicketRepository(db)
	rows := sqlmock.NewRows([]string{"ticket", "pair_index", "leg", "entry_price", "tp_price", "sl_price", "tp_touched", "sl_touched"}).
		AddRow(uint64(1), int32(0), 0, 1000.0, 1020.0, 980.0, true, false)

	mock.ExpectQuery(`SELECT ticket`).WithArgs("BTCUSDT").WillReturnRows(rows)

	tickets, err := repo.AllForSymbol("BTCUSDT")
	if err != nil {
		t.Fatalf("AllForSymbol error: %v", err)
	}
	if len(tickets) != 1 {
		t.Fatalf("AllForSymbol len = %d, want 1", len(tickets))
	}
	if !tickets[1].Touch.TPTouched {
		t.Error("expected TPTouched=true restored")
	}
}
