package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"gridengine/internal/orchestrator"
)

// EngineHandler manages the set of per-symbol grid engines.
//
// Endpoints:
// - GET /api/v1/engines              - list every active engine's status
// - GET /api/v1/engines/{symbol}     - get one engine's status, starting it if unseen
// - POST /api/v1/engines/{symbol}/stop      - graceful stop
// - POST /api/v1/engines/{symbol}/terminate - immediate flatten-and-halt
// - POST /api/v1/engines/{symbol}/tick      - inject a synthetic quote, for replay and manual testing
type EngineHandler struct {
	orch *orchestrator.Orchestrator
}

func NewEngineHandler(orch *orchestrator.Orchestrator) *EngineHandler {
	return &EngineHandler{orch: orch}
}

// InjectTickRequest is the body for POST .../tick.
type InjectTickRequest struct {
	Ask            float64 `json:"ask"`
	Bid            float64 `json:"bid"`
	PositionsCount uint32  `json:"positions_count"`
}

// GetEngines returns the status of every engine the orchestrator has
// constructed so far.
//
// GET /api/v1/engines
func (h *EngineHandler) GetEngines(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.orch.Status())
}

// GetEngine returns one symbol's status, constructing and starting its
// engine on first access.
//
// GET /api/v1/engines/{symbol}
func (h *EngineHandler) GetEngine(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	e, err := h.orch.EngineFor(r.Context(), symbol)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "engine start failed", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, e.Status())
}

// StopEngine requests a graceful stop: no new groups are initialized,
// but existing pairs run to completion.
//
// POST /api/v1/engines/{symbol}/stop
func (h *EngineHandler) StopEngine(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	if err := h.orch.Stop(r.Context(), symbol); err != nil {
		respondWithError(w, http.StatusInternalServerError, "stop failed", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "stop requested"})
}

// TerminateEngine closes every open position and ticket for the symbol
// immediately.
//
// POST /api/v1/engines/{symbol}/terminate
func (h *EngineHandler) TerminateEngine(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	if err := h.orch.Terminate(r.Context(), symbol); err != nil {
		respondWithError(w, http.StatusInternalServerError, "terminate failed", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, SuccessResponse{Message: "terminated"})
}

// InjectTick feeds a synthetic quote to the symbol's engine, bypassing
// the broker's own tick source. Used by the replay CLI and for manual
// exercising of the grid without a live feed.
//
// POST /api/v1/engines/{symbol}/tick
func (h *EngineHandler) InjectTick(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	var req InjectTickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	e, err := h.orch.EngineFor(r.Context(), symbol)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "engine start failed", err.Error())
		return
	}
	if err := e.InjectTick(r.Context(), req.Ask, req.Bid, req.PositionsCount); err != nil {
		respondWithError(w, http.StatusInternalServerError, "tick rejected", err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, e.Status())
}
