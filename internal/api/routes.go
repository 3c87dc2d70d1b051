package api

import (
	"net/http"
	"net/http/pprof"
	"runtime"

	"gridengine/internal/api/handlers"
	"gridengine/internal/api/middleware"
	"gridengine/internal/grouplog"
	"gridengine/internal/orchestrator"
	"gridengine/pkg/utils"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies carries everything the control surface needs to wire
// its handlers and middleware.
type Dependencies struct {
	Orchestrator *orchestrator.Orchestrator
	History      *grouplog.HistoryWriter
	Hub          *grouplog.Hub
	Logger       *utils.Logger
}

// SetupRoutes registers every control-surface endpoint:
//
// /api/v1/
//
//	├── /engines/
//	│   ├── GET  /                       - list every active engine
//	│   ├── GET  /{symbol}                - get (and lazily start) one engine
//	│   ├── POST /{symbol}/stop           - graceful stop
//	│   ├── POST /{symbol}/terminate      - immediate flatten-and-halt
//	│   └── POST /{symbol}/tick           - inject a synthetic quote
//	├── /stats/
//	│   └── GET  /                        - aggregated counters across all symbols
//	├── /notifications/
//	│   ├── GET    /                      - recent events, filterable by type
//	│   └── DELETE /                      - clear the event log
//	└── /settings/
//	    ├── GET   /                       - current grid configuration
//	    └── PATCH /                       - partial update for newly started engines
//
// /ws/stream - websocket feed of group events and status snapshots
//
// Middleware order: Recovery, Logging, CORS, for every route.
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.Logging(deps.Logger))
	router.Use(middleware.CORS)

	api := router.PathPrefix("/api/v1").Subrouter()

	if deps.Orchestrator != nil {
		engineHandler := handlers.NewEngineHandler(deps.Orchestrator)
		api.HandleFunc("/engines", engineHandler.GetEngines).Methods("GET")
		api.HandleFunc("/engines/{symbol}", engineHandler.GetEngine).Methods("GET")
		api.HandleFunc("/engines/{symbol}/stop", engineHandler.StopEngine).Methods("POST")
		api.HandleFunc("/engines/{symbol}/terminate", engineHandler.TerminateEngine).Methods("POST")
		api.HandleFunc("/engines/{symbol}/tick", engineHandler.InjectTick).Methods("POST")

		statsHandler := handlers.NewStatsHandler(deps.Orchestrator)
		api.HandleFunc("/stats", statsHandler.GetStats).Methods("GET")

		settingsHandler := handlers.NewSettingsHandler(deps.Orchestrator)
		api.HandleFunc("/settings", settingsHandler.GetSettings).Methods("GET")
		api.HandleFunc("/settings", settingsHandler.UpdateSettings).Methods("PATCH")
	}

	if deps.History != nil {
		notificationHandler := handlers.NewNotificationHandler(deps.History)
		api.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
		api.HandleFunc("/notifications", notificationHandler.ClearNotifications).Methods("DELETE")
	}

	if deps.Hub != nil {
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			grouplog.ServeWS(deps.Hub, w, r)
		}).Methods("GET")
	}

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// pprof, gated by DebugAuth (set DEBUG_USERNAME/DEBUG_PASSWORD outside development).
	debug := router.PathPrefix("/debug/pprof").Subrouter()
	debug.Use(middleware.DebugAuth)
	debug.HandleFunc("/", pprof.Index)
	debug.HandleFunc("/cmdline", pprof.Cmdline)
	debug.HandleFunc("/profile", pprof.Profile)
	debug.HandleFunc("/symbol", pprof.Symbol)
	debug.HandleFunc("/trace", pprof.Trace)
	debug.HandleFunc("/heap", func(w http.ResponseWriter, r *http.Request) { pprof.Handler("heap").ServeHTTP(w, r) })
	debug.HandleFunc("/goroutine", func(w http.ResponseWriter, r *http.Request) { pprof.Handler("goroutine").ServeHTTP(w, r) })
	debug.HandleFunc("/block", func(w http.ResponseWriter, r *http.Request) { pprof.Handler("block").ServeHTTP(w, r) })
	debug.HandleFunc("/threadcreate", func(w http.ResponseWriter, r *http.Request) { pprof.Handler("threadcreate").ServeHTTP(w, r) })
	debug.HandleFunc("/mutex", func(w http.ResponseWriter, r *http.Request) { pprof.Handler("mutex").ServeHTTP(w, r) })
	debug.HandleFunc("/allocs", func(w http.ResponseWriter, r *http.Request) { pprof.Handler("allocs").ServeHTTP(w, r) })

	runtimeDebug := router.PathPrefix("/debug/runtime").Subrouter()
	runtimeDebug.Use(middleware.DebugAuth)
	runtimeDebug.HandleFunc("", func(w http.ResponseWriter, r *http.Request) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{`))
		w.Write([]byte(`"goroutines":` + itoa(runtime.NumGoroutine()) + `,`))
		w.Write([]byte(`"heap_alloc_mb":` + ftoa(float64(m.HeapAlloc)/1024/1024) + `,`))
		w.Write([]byte(`"heap_sys_mb":` + ftoa(float64(m.HeapSys)/1024/1024) + `,`))
		w.Write([]byte(`"num_gc":` + itoa(int(m.NumGC)) + `,`))
		w.Write([]byte(`"gc_pause_total_ms":` + ftoa(float64(m.PauseTotalNs)/1e6)))
		w.Write([]byte(`}`))
	}).Methods("GET")

	return router
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	pos := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		pos--
		b[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		b[pos] = '-'
	}
	return string(b[pos:])
}

func ftoa(f float64) string {
	i := int(f * 100)
	whole := i / 100
	frac := i % 100
	if frac < 0 {
		frac = -frac
	}
	fracStr := itoa(frac)
	if len(fracStr) == 1 {
		fracStr = "0" + fracStr
	}
	return itoa(whole) + "." + fracStr
}
