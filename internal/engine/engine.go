// Package engine implements the Symbol Engine: a
// single-symbol state machine that owns a ladder of indexed grid
// pairs, a ticket-to-pair registry, per-group completion accounting,
// and the deterministic TP/SL classification pipeline driven by
// touch-flag latching on every price tick.
package engine

import (
	"context"
	"fmt"

	"gridengine/internal/accountant"
	"gridengine/internal/broker"
	"gridengine/internal/config"
	"gridengine/internal/grouplog"
	"gridengine/internal/metrics"
	"gridengine/internal/models"
	"gridengine/internal/pairstore"
	"gridengine/internal/registry"
	"gridengine/internal/repository"
	"gridengine/pkg/utils"
)

// validPhaseTransitions mirrors the engine's phase machine:
// Init -> WaitingCenter -> Expanding -> Running, each taken at
// most once per tick.
var validPhaseTransitions = map[models.Phase][]models.Phase{
	models.PhaseInit:          {models.PhaseWaitingCenter, models.PhaseRunning},
	models.PhaseWaitingCenter: {models.PhaseExpanding, models.PhaseRunning},
	models.PhaseExpanding:     {models.PhaseRunning},
	models.PhaseRunning:       {models.PhaseRunning},
}

func canTransition(from, to models.Phase) bool {
	if from == to {
		return true
	}
	for _, s := range validPhaseTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Repositories bundles the four per-symbol persistence surfaces the
// engine owns exclusively.
type Repositories struct {
	State  *repository.StateRepository
	Pair   *repository.PairRepository
	Ticket *repository.TicketRepository
	Trade  *repository.TradeRepository
}

// Engine is the per-symbol state machine. Every mutating operation
// runs inside sem, an exclusive channel-based binary semaphore.
// ProcessTick additionally acquires sem non-blocking and drops
// the tick rather than waiting when a prior tick is still in flight;
// lifecycle operations (Start/Stop/Terminate/Shutdown) acquire sem
// blocking, since they are rare administrative calls, not part of the
// tick hot path.
type Engine struct {
	symbol string
	cfg    config.EngineConfig
	broker broker.Adapter
	repos  Repositories
	writer grouplog.Writer
	logger *utils.Logger

	sem chan struct{}

	pairs   *pairstore.Store
	tickets *registry.Registry
	acct    *accountant.Accountant

	phase        models.Phase
	centerPrice  float64
	iteration    uint64
	currentGroup uint32
	anchorPrice  float64
	gracefulStop bool

	groups map[uint32]*models.GroupState

	// tpFired remembers pair indices that have already driven a
	// TP-expansion or INIT request, so a re-observed drop never
	// double-fires it.
	tpFired map[int32]bool

	magicBase uint64
}

// New constructs an Engine for symbol with fresh in-memory state. Call
// Start to load any persisted state before driving ticks.
func New(symbol string, cfg config.EngineConfig, adapter broker.Adapter, repos Repositories, writer grouplog.Writer, logger *utils.Logger) *Engine {
	e := &Engine{
		symbol:  symbol,
		cfg:     cfg,
		broker:  adapter,
		repos:   repos,
		writer:  writer,
		logger:  logger.WithSymbol(symbol),
		sem:     make(chan struct{}, 1),
		pairs:   pairstore.New(),
		tickets: registry.New(),
		acct:    accountant.New(),
		phase:   models.PhaseInit,
		groups:  make(map[uint32]*models.GroupState),
		tpFired: make(map[int32]bool),
		// Magic numbers encode group_id + leg + pair; the
		// base keeps this engine's range clear of other bots sharing
		// the account.
		magicBase: 500000,
	}
	return e
}

func (e *Engine) lock()   { e.sem <- struct{}{} }
func (e *Engine) unlock() { <-e.sem }

// tryLock attempts the non-blocking acquire used by ProcessTick's busy
// guard; it reports false without blocking if the engine is already
// processing a tick.
func (e *Engine) tryLock() bool {
	select {
	case e.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (e *Engine) groupState(groupID uint32) *models.GroupState {
	g, ok := e.groups[groupID]
	if !ok {
		g = &models.GroupState{GroupID: groupID}
		e.groups[groupID] = g
	}
	return g
}

func (e *Engine) nextMagic(groupID uint32) uint64 {
	return e.magicBase + uint64(groupID)
}

// Start loads persisted state if present, rebuilds the Ticket Registry
// and Pair Store, applies the three restart repair passes, and marks
// the engine running.
func (e *Engine) Start(ctx context.Context) error {
	e.lock()
	defer e.unlock()

	if err := e.load(); err != nil {
		return fmt.Errorf("engine: start %s: %w", e.symbol, err)
	}
	if e.phase == models.PhaseInit && len(e.pairs.All()) == 0 {
		// Nothing persisted: the next tick drives the fresh-INIT path.
		e.logger.Info("engine started with no persisted state")
		return nil
	}
	e.logger.Info("engine state restored",
		utils.Phase(e.phase.String()), utils.GroupID(e.currentGroup), utils.Price(e.anchorPrice))
	return nil
}

// Stop sets graceful_stop; no new groups are initialized afterward,
// but existing pairs may continue toggling to max_positions or until
// hedged.
func (e *Engine) Stop(ctx context.Context) error {
	e.lock()
	defer e.unlock()
	e.gracefulStop = true
	return e.save()
}

// Terminate immediately closes every open position for the symbol and
// resets in-memory and persisted state.
func (e *Engine) Terminate(ctx context.Context) error {
	e.lock()
	defer e.unlock()

	positions, err := e.broker.OpenPositions(ctx, e.symbol)
	if err != nil {
		return fmt.Errorf("engine: terminate %s: open positions: %w", e.symbol, err)
	}
	for _, p := range positions {
		if p.Magic < e.magicBase || p.Magic >= e.magicBase+100000 {
			continue
		}
		if err := e.broker.ClosePosition(ctx, p.Ticket, 200); err != nil {
			e.logger.Warn("terminate: failed to close position", utils.Ticket(p.Ticket), utils.Err(err))
		}
	}

	e.pairs = pairstore.New()
	e.tickets = registry.New()
	e.acct = accountant.New()
	e.groups = make(map[uint32]*models.GroupState)
	e.tpFired = make(map[int32]bool)
	e.phase = models.PhaseInit
	e.currentGroup = 0
	e.anchorPrice = 0
	e.centerPrice = 0
	e.iteration = 0
	e.gracefulStop = false

	return e.save()
}

// Shutdown persists final state. The repository connection itself is
// not closed here; the process entrypoint that opened it closes it.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.lock()
	defer e.unlock()
	return e.save()
}

// Status returns a read-only snapshot for the control surface.
func (e *Engine) Status() models.EngineStatus {
	e.lock()
	defer e.unlock()

	status := models.EngineStatus{
		Symbol: e.symbol,
		State: models.SymbolState{
			Symbol:       e.symbol,
			Phase:        e.phase,
			CenterPrice:  e.centerPrice,
			Iteration:    e.iteration,
			CurrentGroup: e.currentGroup,
			AnchorPrice:  e.anchorPrice,
			GracefulStop: e.gracefulStop,
		},
		Tickets: e.tickets.Len(),
	}
	for groupID, g := range e.groups {
		live := int(accountant.Live(e.pairs, groupID))
		status.Groups = append(status.Groups, models.GroupStatus{
			GroupState: *g,
			LiveC:      live,
			Pairs:      clonePairs(e.pairs.Pairs(groupID)),
		})
	}
	return status
}

func clonePairs(pairs []*models.GridPair) []models.GridPair {
	out := make([]models.GridPair, len(pairs))
	for i, p := range pairs {
		out[i] = *p
	}
	return out
}

// InjectTick drives the engine from a synthetic quote, bypassing the
// broker's own tick loop; used by tests and the replay CLI.
func (e *Engine) InjectTick(ctx context.Context, ask, bid float64, positionsCount uint32) error {
	return e.ProcessTick(ctx, broker.Quote{Ask: ask, Bid: bid, PositionsCount: positionsCount})
}
