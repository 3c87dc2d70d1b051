package repository

import (
	"database/sql"
	"time"

	"gridengine/internal/models"
)

// TradeRepository persists the append-only trade_history table.
// Rows are never updated or deleted in normal operation;
// DeleteOlderThan exists only for archival housekeeping.
type TradeRepository struct {
	db *sql.DB
}

func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Append inserts one trade_history row and fills in its assigned ID.
func (r *TradeRepository) Append(e *models.TradeEvent) error {
	query := `
		INSERT INTO trade_history (symbol, ts, event_type, pair_index, direction, price, lot, ticket, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	return r.db.QueryRow(
		query,
		e.Symbol, e.Timestamp, string(e.Type), e.PairIndex, int(e.Direction),
		e.Price, e.Lot, e.Ticket, e.Notes,
	).Scan(&e.ID)
}

// ForSymbol returns the trade history for a symbol, most recent first,
// bounded by limit.
func (r *TradeRepository) ForSymbol(symbol string, limit int) ([]*models.TradeEvent, error) {
	query := `
		SELECT id, symbol, ts, event_type, pair_index, direction, price, lot, ticket, notes
		FROM trade_history
		WHERE symbol = $1
		ORDER BY ts DESC
		LIMIT $2`

	rows, err := r.db.Query(query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTradeRows(rows)
}

// ForPair returns the history for one pair, most recent first.
func (r *TradeRepository) ForPair(symbol string, pairIndex int32) ([]*models.TradeEvent, error) {
	query := `
		SELECT id, symbol, ts, event_type, pair_index, direction, price, lot, ticket, notes
		FROM trade_history
		WHERE symbol = $1 AND pair_index = $2
		ORDER BY ts DESC`

	rows, err := r.db.Query(query, symbol, pairIndex)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTradeRows(rows)
}

// ByEventType returns events of one type for a symbol, most recent
// first. The engine writes no CAP_REFUSED or BACKFILL rows; back-fill
// fills are recorded as OPEN rows with reason=BACKFILL in notes.
func (r *TradeRepository) ByEventType(symbol string, eventType models.EventType, limit int) ([]*models.TradeEvent, error) {
	query := `
		SELECT id, symbol, ts, event_type, pair_index, direction, price, lot, ticket, notes
		FROM trade_history
		WHERE symbol = $1 AND event_type = $2
		ORDER BY ts DESC
		LIMIT $3`

	rows, err := r.db.Query(query, symbol, string(eventType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTradeRows(rows)
}

// DeleteOlderThan prunes rows older than the cutoff, returning the
// number removed.
func (r *TradeRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM trade_history WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanTradeRows(rows *sql.Rows) ([]*models.TradeEvent, error) {
	var out []*models.TradeEvent
	for rows.Next() {
		e := &models.TradeEvent{}
		var (
			eventType string
			direction int
		)
		if err := rows.Scan(
			&e.ID, &e.Symbol, &e.Timestamp, &eventType, &e.PairIndex,
			&direction, &e.Price, &e.Lot, &e.Ticket, &e.Notes,
		); err != nil {
			return nil, err
		}
		e.Type = models.EventType(eventType)
		e.Direction = models.Direction(direction)
		out = append(out, e)
	}
	return out, rows.Err()
}
