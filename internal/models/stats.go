package models

import "time"

// Phase is the engine's top-level state.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseWaitingCenter
	PhaseExpanding
	PhaseRunning
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "Init"
	case PhaseWaitingCenter:
		return "WaitingCenter"
	case PhaseExpanding:
		return "Expanding"
	case PhaseRunning:
		return "Running"
	default:
		return "Unknown"
	}
}

// InitSource records which side's TP caused a group to exist; group 0
// has neither.
type InitSource int

const (
	InitNone InitSource = iota
	InitBullish
	InitBearish
)

// SymbolState is the durable row of per-symbol engine state.
type SymbolState struct {
	Symbol       string    `db:"symbol" json:"symbol"`
	Phase        Phase     `db:"phase" json:"phase"`
	CenterPrice  float64   `db:"center_price" json:"center_price"`
	Iteration    uint64    `db:"iteration" json:"iteration"`
	CurrentGroup uint32    `db:"current_group" json:"current_group"`
	AnchorPrice  float64   `db:"anchor_price" json:"anchor_price"`
	GracefulStop bool      `db:"graceful_stop" json:"graceful_stop"`
	LastUpdate   time.Time `db:"last_update_time" json:"last_update_time"`
}

// GroupState is the derived, in-memory state of one group generation.
type GroupState struct {
	GroupID            uint32     `json:"group_id"`
	AnchorPrice        float64    `json:"anchor_price"`
	InitSource         InitSource `json:"init_source"`
	PendingRetracement InitSource `json:"pending_retracement"`
	CHighwater         uint32     `json:"c_highwater"`
	InitTriggered      bool       `json:"init_triggered"`
}

// GroupStatus is a read-only snapshot of one group for the status
// endpoint and the Group Log Writer's tabular render.
type GroupStatus struct {
	GroupState
	LiveC int        `json:"live_c"`
	Pairs []GridPair `json:"pairs"`
}

// EngineStatus is the full point-in-time snapshot returned by the
// engine's status() operation and rendered by the Group Log
// Writer.
type EngineStatus struct {
	Symbol  string        `json:"symbol"`
	State   SymbolState   `json:"state"`
	Groups  []GroupStatus `json:"groups"`
	Tickets int           `json:"open_tickets"`
}
