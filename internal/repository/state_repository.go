// Package repository persists engine state to Postgres:
// symbol_state, grid_pairs, ticket_map, trade_history. Every write is a
// single-row upsert committed immediately; no multi-row transaction is
// required because engine-level invariants are restored on load.
package repository

import (
	"database/sql"
	"errors"

	"gridengine/internal/models"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrStateNotFound = errors.New("repository: symbol state not found")

// StateRepository persists the symbol_state table.
type StateRepository struct {
	db *sql.DB
}

func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{db: db}
}

// stateMetadata is the catch-all metadata_json payload; graceful_stop
// and per-group bookkeeping have no dedicated columns and
// ride along here instead.
type stateMetadata struct {
	GracefulStop bool                        `json:"graceful_stop"`
	Groups       map[uint32]models.GroupState `json:"groups,omitempty"`
}

func phaseToString(p models.Phase) string {
	switch p {
	case models.PhaseWaitingCenter:
		return "waiting_center"
	case models.PhaseExpanding:
		return "expanding"
	case models.PhaseRunning:
		return "running"
	default:
		return "init"
	}
}

// Upsert writes the current SymbolState and its per-group bookkeeping,
// keyed by symbol.
func (r *StateRepository) Upsert(s *models.SymbolState, groups map[uint32]models.GroupState) error {
	meta, err := json.Marshal(stateMetadata{GracefulStop: s.GracefulStop, Groups: groups})
	if err != nil {
		return err
	}
	query := `
		INSERT INTO symbol_state (symbol, phase, center_price, iteration, current_group, anchor_price, last_update_time, metadata_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol) DO UPDATE SET
			phase = EXCLUDED.phase,
			center_price = EXCLUDED.center_price,
			iteration = EXCLUDED.iteration,
			current_group = EXCLUDED.current_group,
			anchor_price = EXCLUDED.anchor_price,
			last_update_time = EXCLUDED.last_update_time,
			metadata_json = EXCLUDED.metadata_json`
	_, err = r.db.Exec(query,
		s.Symbol, phaseToString(s.Phase), s.CenterPrice, s.Iteration, s.CurrentGroup,
		s.AnchorPrice, s.LastUpdate, meta)
	return err
}

// Get loads the persisted state and per-group bookkeeping for a symbol,
// or ErrStateNotFound.
func (r *StateRepository) Get(symbol string) (*models.SymbolState, map[uint32]models.GroupState, error) {
	query := `
		SELECT symbol, phase, center_price, iteration, current_group, anchor_price, last_update_time, metadata_json
		FROM symbol_state WHERE symbol = $1`

	var (
		s        models.SymbolState
		phaseStr string
		meta     []byte
	)
	err := r.db.QueryRow(query, symbol).Scan(
		&s.Symbol, &phaseStr, &s.CenterPrice, &s.Iteration, &s.CurrentGroup,
		&s.AnchorPrice, &s.LastUpdate, &meta)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrStateNotFound
		}
		return nil, nil, err
	}
	s.Phase = parsePhase(phaseStr)
	var groups map[uint32]models.GroupState
	if len(meta) > 0 {
		var m stateMetadata
		if err := json.Unmarshal(meta, &m); err != nil {
			return nil, nil, err
		}
		s.GracefulStop = m.GracefulStop
		groups = m.Groups
	}
	return &s, groups, nil
}

func parsePhase(s string) models.Phase {
	switch s {
	case "waiting_center":
		return models.PhaseWaitingCenter
	case "expanding":
		return models.PhaseExpanding
	case "running":
		return models.PhaseRunning
	default:
		return models.PhaseInit
	}
}
