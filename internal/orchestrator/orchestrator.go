// Package orchestrator manages one Symbol Engine per configured
// symbol, routing tick dispatch by symbol and fanning lifecycle
// control out across the set.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"gridengine/internal/broker"
	"gridengine/internal/config"
	"gridengine/internal/engine"
	"gridengine/internal/grouplog"
	"gridengine/internal/models"
	"gridengine/pkg/utils"
)

// Orchestrator owns the full set of per-symbol engines. Engines are
// created lazily on first use and never removed, mirroring the
// teacher's exchange registry: reads are far more frequent than writes,
// so lookups take the read lock and only registration takes the write
// lock.
type Orchestrator struct {
	cfgMu sync.RWMutex
	cfg   config.EngineConfig

	broker broker.Adapter
	db     RepositoryFactory
	writer grouplog.Writer
	logger *utils.Logger

	enginesMu sync.RWMutex
	engines   map[string]*engine.Engine
}

// RepositoryFactory builds the four per-symbol repository handles; the
// orchestrator shares one underlying *sql.DB connection pool across all
// symbols, so construction is cheap and does not need caching.
type RepositoryFactory interface {
	Repositories() engine.Repositories
}

// StaticRepositoryFactory wraps a pre-built Repositories value, used
// when the caller constructs the four repositories once at process
// startup and shares them across every symbol.
type StaticRepositoryFactory struct {
	Repos engine.Repositories
}

func (f StaticRepositoryFactory) Repositories() engine.Repositories { return f.Repos }

// New constructs an Orchestrator with no engines; call EngineFor to
// lazily create one per symbol.
func New(cfg config.EngineConfig, adapter broker.Adapter, repos RepositoryFactory, writer grouplog.Writer, logger *utils.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		broker:  adapter,
		db:      repos,
		writer:  writer,
		logger:  logger,
		engines: make(map[string]*engine.Engine),
	}
}

// Config returns the grid parameters applied to newly constructed
// engines.
func (o *Orchestrator) Config() config.EngineConfig {
	o.cfgMu.RLock()
	defer o.cfgMu.RUnlock()
	return o.cfg
}

// UpdateConfig replaces the grid parameters used for engines
// constructed from this point on. Engines already running keep the
// configuration they were started with; the control surface expects
// callers to stop and restart a symbol to pick up a changed setting.
func (o *Orchestrator) UpdateConfig(cfg config.EngineConfig) {
	o.cfgMu.Lock()
	defer o.cfgMu.Unlock()
	o.cfg = cfg
}

// EngineFor returns the engine for symbol, constructing and starting it
// on first access.
func (o *Orchestrator) EngineFor(ctx context.Context, symbol string) (*engine.Engine, error) {
	o.enginesMu.RLock()
	e, ok := o.engines[symbol]
	o.enginesMu.RUnlock()
	if ok {
		return e, nil
	}

	o.enginesMu.Lock()
	defer o.enginesMu.Unlock()
	if e, ok := o.engines[symbol]; ok {
		return e, nil
	}

	e = engine.New(symbol, o.Config(), o.broker, o.db.Repositories(), o.writer, o.logger)
	if err := e.Start(ctx); err != nil {
		return nil, fmt.Errorf("orchestrator: start engine %s: %w", symbol, err)
	}
	o.engines[symbol] = e
	return e, nil
}

// DispatchTick routes one inbound quote to its symbol's engine,
// constructing the engine on first sight of the symbol.
func (o *Orchestrator) DispatchTick(ctx context.Context, symbol string, ask, bid float64, positionsCount uint32) error {
	e, err := o.EngineFor(ctx, symbol)
	if err != nil {
		return err
	}
	return e.InjectTick(ctx, ask, bid, positionsCount)
}

// Symbols returns every symbol with a live engine, for status fan-out.
func (o *Orchestrator) Symbols() []string {
	o.enginesMu.RLock()
	defer o.enginesMu.RUnlock()
	out := make([]string, 0, len(o.engines))
	for s := range o.engines {
		out = append(out, s)
	}
	return out
}

// Status returns the point-in-time status of every active engine.
func (o *Orchestrator) Status() []models.EngineStatus {
	o.enginesMu.RLock()
	engines := make([]*engine.Engine, 0, len(o.engines))
	for _, e := range o.engines {
		engines = append(engines, e)
	}
	o.enginesMu.RUnlock()

	out := make([]models.EngineStatus, 0, len(engines))
	for _, e := range engines {
		out = append(out, e.Status())
	}
	return out
}

// Stop and Terminate apply the matching lifecycle operation to one
// symbol's engine, constructing and starting it first if the symbol
// has not been seen yet.
func (o *Orchestrator) Stop(ctx context.Context, symbol string) error {
	e, err := o.EngineFor(ctx, symbol)
	if err != nil {
		return err
	}
	return e.Stop(ctx)
}

func (o *Orchestrator) Terminate(ctx context.Context, symbol string) error {
	e, err := o.EngineFor(ctx, symbol)
	if err != nil {
		return err
	}
	return e.Terminate(ctx)
}

// ShutdownAll persists and releases every engine, for process exit.
func (o *Orchestrator) ShutdownAll(ctx context.Context) error {
	o.enginesMu.RLock()
	engines := make([]*engine.Engine, 0, len(o.engines))
	for _, e := range o.engines {
		engines = append(engines, e)
	}
	o.enginesMu.RUnlock()

	var firstErr error
	for _, e := range engines {
		if err := e.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
