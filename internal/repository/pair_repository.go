package repository

import (
	"database/sql"
	"errors"

	"gridengine/internal/models"
)

// PairRepository persists the grid_pairs table, primary key
// (symbol, pair_index).
type PairRepository struct {
	db *sql.DB
}

func NewPairRepository(db *sql.DB) *PairRepository {
	return &PairRepository{db: db}
}

// Upsert writes one pair row.
func (r *PairRepository) Upsert(symbol string, p *models.GridPair) error {
	query := `
		INSERT INTO grid_pairs (
			symbol, pair_index, buy_price, sell_price, buy_ticket, sell_ticket,
			buy_filled, sell_filled, trade_count, next_action,
			locked_buy_entry, locked_sell_entry, tp_blocked, group_id,
			hedge_ticket, hedge_active, hedge_direction
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		ON CONFLICT (symbol, pair_index) DO UPDATE SET
			buy_price = EXCLUDED.buy_price,
			sell_price = EXCLUDED.sell_price,
			buy_ticket = EXCLUDED.buy_ticket,
			sell_ticket = EXCLUDED.sell_ticket,
			buy_filled = EXCLUDED.buy_filled,
			sell_filled = EXCLUDED.sell_filled,
			trade_count = EXCLUDED.trade_count,
			next_action = EXCLUDED.next_action,
			locked_buy_entry = EXCLUDED.locked_buy_entry,
			locked_sell_entry = EXCLUDED.locked_sell_entry,
			tp_blocked = EXCLUDED.tp_blocked,
			group_id = EXCLUDED.group_id,
			hedge_ticket = EXCLUDED.hedge_ticket,
			hedge_active = EXCLUDED.hedge_active,
			hedge_direction = EXCLUDED.hedge_direction`
	_, err := r.db.Exec(query,
		symbol, p.Index, p.BuyPrice, p.SellPrice, p.BuyTicket, p.SellTicket,
		p.BuyFilled, p.SellFilled, p.TradeCount, int(p.NextAction),
		p.LockedBuyEntry, p.LockedSellEntry, p.TPBlocked, p.GroupID,
		p.HedgeTicket, p.HedgeActive, int(p.HedgeDirection))
	return err
}

// ErrPairNotFound is returned by ByIndex when no row matches.
var ErrPairNotFound = errors.New("repository: grid pair not found")

func (r *PairRepository) ByIndex(symbol string, index int32) (*models.GridPair, error) {
	row := r.db.QueryRow(`
		SELECT pair_index, buy_price, sell_price, buy_ticket, sell_ticket,
			buy_filled, sell_filled, trade_count, next_action,
			locked_buy_entry, locked_sell_entry, tp_blocked, group_id,
			hedge_ticket, hedge_active, hedge_direction
		FROM grid_pairs WHERE symbol = $1 AND pair_index = $2`, symbol, index)
	p, err := scanPair(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPairNotFound
	}
	return p, err
}

// AllForSymbol loads every persisted pair for a symbol, used on startup
// recovery.
func (r *PairRepository) AllForSymbol(symbol string) ([]*models.GridPair, error) {
	rows, err := r.db.Query(`
		SELECT pair_index, buy_price, sell_price, buy_ticket, sell_ticket,
			buy_filled, sell_filled, trade_count, next_action,
			locked_buy_entry, locked_sell_entry, tp_blocked, group_id,
			hedge_ticket, hedge_active, hedge_direction
		FROM grid_pairs WHERE symbol = $1 ORDER BY pair_index`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.GridPair
	for rows.Next() {
		p, err := scanPair(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPair(row rowScanner) (*models.GridPair, error) {
	var (
		p          models.GridPair
		nextAction int
		hedgeDir   int
	)
	err := row.Scan(
		&p.Index, &p.BuyPrice, &p.SellPrice, &p.BuyTicket, &p.SellTicket,
		&p.BuyFilled, &p.SellFilled, &p.TradeCount, &nextAction,
		&p.LockedBuyEntry, &p.LockedSellEntry, &p.TPBlocked, &p.GroupID,
		&p.HedgeTicket, &p.HedgeActive, &hedgeDir)
	if err != nil {
		return nil, err
	}
	p.NextAction = models.Direction(nextAction)
	p.HedgeDirection = models.Direction(hedgeDir)
	return &p, nil
}
