package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"gridengine/internal/broker"
	"gridengine/internal/config"
	"gridengine/internal/orchestrator"
	"gridengine/pkg/utils"
)

func testEngineOrchestrator(t *testing.T) (*orchestrator.Orchestrator, *broker.Fake) {
	t.Helper()
	fake := broker.NewFake()
	fake.SetSymbolInfo("BTCUSDT", broker.SymbolInfo{Point: 0.01, StopsLevelPoints: 10})
	fake.SetQuote("BTCUSDT", 1000.5, 999.5, 0)
	cfg := config.EngineConfig{Spread: 20.0, LotSizes: []float64{0.01}, MaxPositions: 5, TPPips: 20.0, SLPips: 20.0}
	logger := utils.InitLogger(utils.LogConfig{Level: "error"})
	return orchestrator.New(cfg, fake, testFreshFactory(t), nopWriter{}, logger), fake
}

func withSymbolVar(req *http.Request, symbol string) *http.Request {
	return mux.SetURLVars(req, map[string]string{"symbol": symbol})
}

// GetEngine constructs and starts an engine for a symbol seen for the
// first time; no tick runs here, so no group is seeded yet.
func TestEngineHandlerGetEngineStartsFreshEngine(t *testing.T) {
	o, _ := testEngineOrchestrator(t)
	handler := NewEngineHandler(o)

	req := withSymbolVar(httptest.NewRequest(http.MethodGet, "/api/v1/engines/BTCUSDT", nil), "BTCUSDT")
	w := httptest.NewRecorder()
	handler.GetEngine(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	if got := len(o.Symbols()); got != 1 {
		t.Errorf("Symbols() len = %d, want 1", got)
	}
}

// InjectTick seeds group 0 via the fresh-INIT path and reports the
// resulting status in the response body.
func TestEngineHandlerInjectTick(t *testing.T) {
	o, _ := testEngineOrchestrator(t)
	handler := NewEngineHandler(o)

	body, _ := json.Marshal(InjectTickRequest{Ask: 1000.5, Bid: 999.5})
	req := withSymbolVar(httptest.NewRequest(http.MethodPost, "/api/v1/engines/BTCUSDT/tick", bytes.NewReader(body)), "BTCUSDT")
	w := httptest.NewRecorder()
	handler.InjectTick(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%s", w.Code, http.StatusOK, w.Body.String())
	}

	var status struct {
		State struct {
			Phase string `json:"phase"`
		} `json:"state"`
	}
	if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

// InjectTick with a malformed body is rejected before reaching the
// engine.
func TestEngineHandlerInjectTickBadBody(t *testing.T) {
	o, _ := testEngineOrchestrator(t)
	handler := NewEngineHandler(o)

	req := withSymbolVar(httptest.NewRequest(http.MethodPost, "/api/v1/engines/BTCUSDT/tick", bytes.NewReader([]byte("{not json"))), "BTCUSDT")
	w := httptest.NewRecorder()
	handler.InjectTick(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

// GetEngines lists every engine the orchestrator has constructed.
func TestEngineHandlerGetEngines(t *testing.T) {
	o, _ := testEngineOrchestrator(t)
	handler := NewEngineHandler(o)

	seedReq := withSymbolVar(httptest.NewRequest(http.MethodGet, "/api/v1/engines/BTCUSDT", nil), "BTCUSDT")
	handler.GetEngine(httptest.NewRecorder(), seedReq)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/engines", nil)
	w := httptest.NewRecorder()
	handler.GetEngines(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var list []map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("len(list) = %d, want 1", len(list))
	}
}
