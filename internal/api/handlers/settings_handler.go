package handlers

import (
	"encoding/json"
	"net/http"

	"gridengine/internal/orchestrator"
)

// SettingsHandler exposes the grid parameters applied to newly
// constructed engines.
//
// Endpoints:
// - GET   /api/v1/settings - current engine configuration
// - PATCH /api/v1/settings - partial update, applied to engines started afterward
type SettingsHandler struct {
	orch *orchestrator.Orchestrator
}

func NewSettingsHandler(orch *orchestrator.Orchestrator) *SettingsHandler {
	return &SettingsHandler{orch: orch}
}

// SettingsResponse mirrors config.EngineConfig's tunable fields.
type SettingsResponse struct {
	Spread              float64   `json:"spread"`
	LotSizes            []float64 `json:"lot_sizes"`
	MaxPositions        int       `json:"max_positions"`
	TPPips              float64   `json:"tp_pips"`
	SLPips              float64   `json:"sl_pips"`
	Tolerance           float64   `json:"tolerance"`
	HedgeEnabled        bool      `json:"hedge_enabled"`
	HedgeLotSize        float64   `json:"hedge_lot_size"`
	MaxGroupsConcurrent int       `json:"max_groups_concurrent"`
}

// SettingsUpdateRequest applies only the fields the caller sets; a nil
// pointer leaves the corresponding setting untouched.
type SettingsUpdateRequest struct {
	Spread              *float64  `json:"spread"`
	LotSizes            []float64 `json:"lot_sizes"`
	MaxPositions        *int      `json:"max_positions"`
	TPPips              *float64  `json:"tp_pips"`
	SLPips              *float64  `json:"sl_pips"`
	Tolerance           *float64  `json:"tolerance"`
	HedgeEnabled        *bool     `json:"hedge_enabled"`
	HedgeLotSize        *float64  `json:"hedge_lot_size"`
	MaxGroupsConcurrent *int      `json:"max_groups_concurrent"`
}

// GetSettings returns the configuration applied to newly started
// engines.
//
// GET /api/v1/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	cfg := h.orch.Config()
	respondWithJSON(w, http.StatusOK, SettingsResponse{
		Spread:              cfg.Spread,
		LotSizes:            cfg.LotSizes,
		MaxPositions:        cfg.MaxPositions,
		TPPips:              cfg.TPPips,
		SLPips:              cfg.SLPips,
		Tolerance:           cfg.Tolerance,
		HedgeEnabled:        cfg.HedgeEnabled,
		HedgeLotSize:        cfg.HedgeLotSize,
		MaxGroupsConcurrent: cfg.MaxGroupsConcurrent,
	})
}

// UpdateSettings merges the given fields into the configuration used
// for engines constructed from this point on. Engines already running
// are unaffected until stopped and restarted.
//
// PATCH /api/v1/settings
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	cfg := h.orch.Config()
	if req.Spread != nil {
		cfg.Spread = *req.Spread
	}
	if req.LotSizes != nil {
		cfg.LotSizes = req.LotSizes
	}
	if req.MaxPositions != nil {
		cfg.MaxPositions = *req.MaxPositions
	}
	if req.TPPips != nil {
		cfg.TPPips = *req.TPPips
	}
	if req.SLPips != nil {
		cfg.SLPips = *req.SLPips
	}
	if req.Tolerance != nil {
		cfg.Tolerance = *req.Tolerance
	}
	if req.HedgeEnabled != nil {
		cfg.HedgeEnabled = *req.HedgeEnabled
	}
	if req.HedgeLotSize != nil {
		cfg.HedgeLotSize = *req.HedgeLotSize
	}
	if req.MaxGroupsConcurrent != nil {
		cfg.MaxGroupsConcurrent = *req.MaxGroupsConcurrent
	}

	h.orch.UpdateConfig(cfg)
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "settings updated"})
}
