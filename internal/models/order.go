package models

import "time"

// EventType tags one row of the append-only trade_history log.
type EventType string

const (
	EventOpen        EventType = "OPEN"
	EventTP          EventType = "TP"
	EventSL          EventType = "SL"
	EventStepExpand  EventType = "STEP_EXPAND"
	EventInit        EventType = "INIT"
	EventHedgeOpen   EventType = "HEDGE_OPEN"
	EventHedgeClose  EventType = "HEDGE_CLOSE"
	EventCapRefused  EventType = "CAP_REFUSED"
	EventBackfill    EventType = "BACKFILL"
)

// TradeEvent is one append-only row of the trade history audit log.
type TradeEvent struct {
	ID        int64     `db:"id" json:"id"`
	Symbol    string    `db:"symbol" json:"symbol"`
	Timestamp time.Time `db:"ts" json:"ts"`
	Type      EventType `db:"event_type" json:"event_type"`
	PairIndex int32     `db:"pair_index" json:"pair_index"`
	Direction Direction `db:"direction" json:"direction"`
	Price     float64   `db:"price" json:"price"`
	Lot       float64   `db:"lot" json:"lot"`
	Ticket    uint64     `db:"ticket" json:"ticket"`
	Notes     string    `db:"notes" json:"notes"`
}
