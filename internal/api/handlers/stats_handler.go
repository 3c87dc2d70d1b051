package handlers

import (
	"net/http"

	"gridengine/internal/orchestrator"
)

// StatsHandler aggregates roll-up statistics across every engine the
// orchestrator has constructed.
//
// Endpoints:
// - GET /api/v1/stats - aggregated counters across all symbols
type StatsHandler struct {
	orch *orchestrator.Orchestrator
}

func NewStatsHandler(orch *orchestrator.Orchestrator) *StatsHandler {
	return &StatsHandler{orch: orch}
}

// StatsResponse is the aggregated view across every active engine.
type StatsResponse struct {
	Symbols     int             `json:"symbols"`
	OpenTickets int             `json:"open_tickets"`
	TotalTrades uint64          `json:"total_trades"`
	TotalGroups int             `json:"total_groups"`
	BySymbol    []SymbolSummary `json:"by_symbol"`
}

// SymbolSummary is one engine's contribution to the aggregate.
type SymbolSummary struct {
	Symbol       string `json:"symbol"`
	Phase        string `json:"phase"`
	CurrentGroup uint32 `json:"current_group"`
	OpenTickets  int    `json:"open_tickets"`
	Groups       int    `json:"groups"`
	Trades       uint64 `json:"trades"`
}

// GetStats returns a roll-up across every engine.
//
// GET /api/v1/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	statuses := h.orch.Status()

	resp := StatsResponse{
		Symbols:  len(statuses),
		BySymbol: make([]SymbolSummary, 0, len(statuses)),
	}
	for _, s := range statuses {
		var trades uint64
		for _, g := range s.Groups {
			for _, p := range g.Pairs {
				trades += uint64(p.TradeCount)
			}
		}
		resp.OpenTickets += s.Tickets
		resp.TotalGroups += len(s.Groups)
		resp.TotalTrades += trades
		resp.BySymbol = append(resp.BySymbol, SymbolSummary{
			Symbol:       s.Symbol,
			Phase:        s.State.Phase.String(),
			CurrentGroup: s.State.CurrentGroup,
			OpenTickets:  s.Tickets,
			Groups:       len(s.Groups),
			Trades:       trades,
		})
	}

	respondWithJSON(w, http.StatusOK, resp)
}
