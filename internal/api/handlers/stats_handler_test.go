package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gridengine/internal/broker"
	"gridengine/internal/config"
	"gridengine/internal/orchestrator"
	"gridengine/pkg/utils"
)

func testStatsOrchestrator(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	fake := broker.NewFake()
	fake.SetSymbolInfo("BTCUSDT", broker.SymbolInfo{Point: 0.01, StopsLevelPoints: 10})
	fake.SetQuote("BTCUSDT", 1000.5, 999.5, 0)
	cfg := config.EngineConfig{Spread: 20.0, LotSizes: []float64{0.01}, MaxPositions: 5, TPPips: 20.0, SLPips: 20.0}
	logger := utils.InitLogger(utils.LogConfig{Level: "error"})
	return orchestrator.New(cfg, fake, testFreshFactory(t), nopWriter{}, logger)
}

func TestStatsHandlerGetStats(t *testing.T) {
	o := testStatsOrchestrator(t)
	if err := o.DispatchTick(context.Background(), "BTCUSDT", 1000.5, 999.5, 0); err != nil {
		t.Fatalf("seed tick: %v", err)
	}

	handler := NewStatsHandler(o)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	w := httptest.NewRecorder()
	handler.GetStats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp StatsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Symbols != 1 {
		t.Errorf("Symbols = %d, want 1", resp.Symbols)
	}
	if resp.TotalGroups != 1 {
		t.Errorf("TotalGroups = %d, want 1", resp.TotalGroups)
	}
	if len(resp.BySymbol) != 1 || resp.BySymbol[0].Symbol != "BTCUSDT" {
		t.Errorf("BySymbol = %+v, want one entry for BTCUSDT", resp.BySymbol)
	}
}

func TestStatsHandlerGetStatsEmpty(t *testing.T) {
	o := testStatsOrchestrator(t)
	handler := NewStatsHandler(o)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	w := httptest.NewRecorder()
	handler.GetStats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp StatsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Symbols != 0 || len(resp.BySymbol) != 0 {
		t.Errorf("expected an empty aggregate with no engines constructed yet, got %+v", resp)
	}
}
