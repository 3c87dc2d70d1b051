package repository

import (
	"database/sql"

	"gridengine/internal/models"
)

// TicketRepository persists the ticket_map table, the
// durable backing for the in-memory Ticket Registry.
type TicketRepository struct {
	db *sql.DB
}

func NewTicketRepository(db *sql.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Upsert writes one ticket row.
func (r *TicketRepository) Upsert(symbol string, ticket uint64, info *models.TicketInfo) error {
	query := `
		INSERT INTO ticket_map (ticket, symbol, pair_index, leg, entry_price, tp_price, sl_price, tp_touched, sl_touched)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (ticket) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			pair_index = EXCLUDED.pair_index,
			leg = EXCLUDED.leg,
			entry_price = EXCLUDED.entry_price,
			tp_price = EXCLUDED.tp_price,
			sl_price = EXCLUDED.sl_price,
			tp_touched = EXCLUDED.tp_touched,
			sl_touched = EXCLUDED.sl_touched`
	_, err := r.db.Exec(query,
		ticket, symbol, info.PairIndex, int(info.Leg), info.Entry, info.TP, info.SL,
		info.Touch.TPTouched, info.Touch.SLTouched)
	return err
}

// Delete removes a ticket row once the position closes.
func (r *TicketRepository) Delete(ticket uint64) error {
	_, err := r.db.Exec(`DELETE FROM ticket_map WHERE ticket = $1`, ticket)
	return err
}

// AllForSymbol loads every persisted ticket for a symbol, used to
// rebuild the Ticket Registry on startup.
func (r *TicketRepository) AllForSymbol(symbol string) (map[uint64]models.TicketInfo, error) {
	rows, err := r.db.Query(`
		SELECT ticket, pair_index, leg, entry_price, tp_price, sl_price, tp_touched, sl_touched
		FROM ticket_map WHERE symbol = $1`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uint64]models.TicketInfo)
	for rows.Next() {
		var (
			ticket uint64
			info   models.TicketInfo
			leg    int
		)
		if err := rows.Scan(&ticket, &info.PairIndex, &leg, &info.Entry, &info.TP, &info.SL,
			&info.Touch.TPTouched, &info.Touch.SLTouched); err != nil {
			return nil, err
		}
		info.Leg = models.Direction(leg)
		out[ticket] = info
	}
	return out, rows.Err()
}
