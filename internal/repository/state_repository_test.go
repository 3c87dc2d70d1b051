package repository

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"gridengine/internal/models"
)

func TestStateRepositoryUpsert(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewStateRepository(db)
	now := time.Now()
	s := &models.SymbolState{
		Symbol: "BTCUSDT", Phase: models.PhaseRunning, CenterPrice: 1000,
		Iteration: 42, CurrentGroup: 1, AnchorPrice: 1000, LastUpdate: now,
	}

	mock.ExpectExec(`INSERT INTO symbol_state`).
		WithArgs("BTCUSDT", "running", 1000.0, uint64(42), uint32(1), 1000.0, now, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Upsert(s, nil); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestStateRepositoryGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewStateRepository(db)
	mock.ExpectQuery(`SELECT symbol`).WithArgs("BTCUSDT").WillReturnError(sql.ErrNoRows)

	_, _, err = repo.Get("BTCUSDT")
	if err != ErrStateNotFound {
		t.Errorf("Get error = %v, want ErrStateNotFound", err)
	}
}

func TestStateRepositoryGet(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	repo := NewStateRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"symbol", "phase", "center_price", "iteration", "current_group", "anchor_price", "last_update_time", "metadata_json"}).
		AddRow("BTCUSDT", "expanding", 1000.0, uint64(5), uint32(0), 1000.0, now, []byte(`{"graceful_stop":true}`))

	mock.ExpectQuery(`SELECT symbol`).WithArgs("BTCUSDT").WillReturnRows(rows)

	s, _, err := repo.Get("BTCUSDT")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if s.Phase != models.PhaseExpanding {
		t.Errorf("Phase = %v, want Expanding", s.Phase)
	}
	if !s.GracefulStop {
		t.Error("expected GracefulStop=true from metadata_json")
	}
}
