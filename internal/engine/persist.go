package engine

import (
	"errors"
	"time"

	"gridengine/internal/accountant"
	"gridengine/internal/models"
	"gridengine/internal/repository"
	"gridengine/pkg/utils"
)

// load rebuilds in-memory state from the repository and applies the
// three restart repair passes. Called with sem held.
func (e *Engine) load() error {
	state, groups, err := e.repos.State.Get(e.symbol)
	if errors.Is(err, repository.ErrStateNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	e.phase = state.Phase
	e.centerPrice = state.CenterPrice
	e.iteration = state.Iteration
	e.currentGroup = state.CurrentGroup
	e.anchorPrice = state.AnchorPrice
	e.gracefulStop = state.GracefulStop

	e.groups = make(map[uint32]*models.GroupState, len(groups))
	for id, g := range groups {
		cp := g
		e.groups[id] = &cp
	}

	pairs, err := e.repos.Pair.AllForSymbol(e.symbol)
	if err != nil {
		return err
	}
	e.pairs.Restore(pairs)

	tickets, err := e.repos.Ticket.AllForSymbol(e.symbol)
	if err != nil {
		return err
	}
	e.tickets.Restore(tickets)

	e.repairOnLoad()

	highWater := make(map[uint32]uint32)
	for _, p := range pairs {
		live := accountant.Live(e.pairs, p.GroupID)
		if live > highWater[p.GroupID] {
			highWater[p.GroupID] = live
		}
	}
	for id, g := range e.groups {
		if g.CHighwater > highWater[id] {
			highWater[id] = g.CHighwater
		}
	}
	e.acct.Restore(highWater)
	for id := range e.groups {
		e.groups[id].CHighwater = e.acct.HighWater(id)
	}

	return nil
}

// repairOnLoad applies three repair passes on load:
//  1. a filled leg's touch-flag latch starts in-zone,
//  2. a pair with exactly one leg filled has next_action forced to the
//     other side,
//  3. a filled leg with trade_count=0 is corrected to 1.
//
// Pass 1 is a no-op here: touch flags live on the ticket registry, not
// the pair, and Restore already carries over whatever was persisted in
// ticket_map, so there is nothing to latch forward from a filled leg
// that has no corresponding open ticket.
func (e *Engine) repairOnLoad() {
	for _, p := range e.pairs.All() {
		if p.IsIncomplete() {
			if p.BuyFilled {
				p.NextAction = models.Sell
			} else {
				p.NextAction = models.Buy
			}
		}
		if (p.BuyFilled || p.SellFilled) && p.TradeCount == 0 {
			p.TradeCount = 1
		}
	}
}

// save persists the full engine state: symbol_state, every pair, and
// every registered ticket. Called with sem held.
func (e *Engine) save() error {
	groups := make(map[uint32]models.GroupState, len(e.groups))
	for id, g := range e.groups {
		groups[id] = *g
	}
	state := &models.SymbolState{
		Symbol:       e.symbol,
		Phase:        e.phase,
		CenterPrice:  e.centerPrice,
		Iteration:    e.iteration,
		CurrentGroup: e.currentGroup,
		AnchorPrice:  e.anchorPrice,
		GracefulStop: e.gracefulStop,
		LastUpdate:   time.Now(),
	}
	if err := e.repos.State.Upsert(state, groups); err != nil {
		return err
	}
	for _, p := range e.pairs.All() {
		if err := e.repos.Pair.Upsert(e.symbol, p); err != nil {
			return err
		}
	}
	for ticket, info := range e.tickets.Snapshot() {
		cp := info
		if err := e.repos.Ticket.Upsert(e.symbol, ticket, &cp); err != nil {
			return err
		}
	}
	return nil
}

// saveOrLog persists full engine state and logs a warning on failure,
// for call sites in the tick hot path that cannot usefully propagate a
// persistence error to their caller (the next tick retries anyway).
func (e *Engine) saveOrLog() {
	if err := e.save(); err != nil {
		e.logger.Warn("failed to persist engine state", utils.Err(err))
	}
}

// savePair persists a single pair's row; used in the tick hot path
// instead of a full save() to avoid rewriting every pair every tick.
func (e *Engine) savePair(p *models.GridPair) {
	if err := e.repos.Pair.Upsert(e.symbol, p); err != nil {
		e.logger.Warn("failed to persist pair", utils.Int("pair_index", int(p.Index)), utils.Err(err))
	}
}
