package handlers

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"gridengine/internal/engine"
	"gridengine/internal/models"
	"gridengine/internal/orchestrator"
	"gridengine/internal/repository"
)

// nopWriter discards group log events; handler tests assert on HTTP
// responses, not on the rendered log.
type nopWriter struct{}

func (nopWriter) AppendEvent(models.GroupEvent) {}

func (nopWriter) RenderGroups(models.EngineStatus) {}

// testFreshFactory returns a RepositoryFactory whose State.Get always
// reports no persisted row, so every engine it builds starts from
// fresh INIT, backed by a permissive pool of writes for whatever the
// first tick's save() calls trigger.
func testFreshFactory(t *testing.T) orchestrator.RepositoryFactory {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 10; i++ {
		mock.ExpectQuery(`FROM symbol_state`).WillReturnError(sql.ErrNoRows)
	}
	for i := 0; i < 200; i++ {
		mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 1))
	}
	for i := 0; i < 200; i++ {
		mock.ExpectQuery(".*").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(i + 1)))
	}

	return orchestrator.StaticRepositoryFactory{Repos: engine.Repositories{
		State:  repository.NewStateRepository(db),
		Pair:   repository.NewPairRepository(db),
		Ticket: repository.NewTicketRepository(db),
		Trade:  repository.NewTradeRepository(db),
	}}
}
