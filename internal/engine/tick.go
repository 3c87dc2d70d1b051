package engine

import (
	"context"
	"time"

	"gridengine/internal/broker"
	"gridengine/internal/metrics"
	"gridengine/internal/models"
	"gridengine/pkg/utils"
)

// ProcessTick drives the engine's per-tick sequence under
// the non-blocking busy guard: a tick that arrives while a prior one is
// still in flight is dropped rather than queued.
func (e *Engine) ProcessTick(ctx context.Context, q broker.Quote) error {
	if !e.tryLock() {
		metrics.RecordTickDropped(e.symbol)
		return nil
	}
	defer e.unlock()

	start := time.Now()
	defer func() {
		metrics.RecordTickLatency(e.symbol, float64(time.Since(start).Microseconds())/1000)
	}()

	e.iteration++

	if e.phase == models.PhaseInit {
		return e.processInitTick(ctx, q)
	}
	if e.phase != models.PhaseRunning {
		e.phase = models.PhaseRunning
	}

	e.tickets.UpdateTouch(q.Ask, q.Bid)
	e.detectDroppedTickets(ctx, q)
	e.saturationCheck(ctx)

	if !e.gracefulStop {
		e.stepTriggerExpansion(ctx, q.Ask, q.Bid)
	}
	e.hedgeSupervisor(ctx, q)
	e.toggleTriggers(ctx, q.Ask, q.Bid)

	return nil
}

// processInitTick fires the very first group's initialization the first
// time a tick arrives with no persisted grid: the
// engine anchors group 0 at the current mid and transitions straight to
// Running once seeded.
func (e *Engine) processInitTick(ctx context.Context, q broker.Quote) error {
	if len(e.pairs.All()) > 0 {
		e.phase = models.PhaseRunning
		return nil
	}
	anchor := (q.Ask + q.Bid) / 2
	if err := e.executeGroupInit(ctx, 0, anchor, true, nil); err != nil {
		return err
	}
	e.phase = models.PhaseRunning
	return nil
}

// saturationCheck applies to Group 0 only. Once its
// completion high-water mark reaches the cap and the next group has not
// yet been triggered, force an artificial TP on the lone incomplete
// pair so the engine progresses rather than stalling at capacity.
func (e *Engine) saturationCheck(ctx context.Context) {
	if e.currentGroup != 0 {
		return
	}
	g := e.groupState(0)
	if e.acct.HighWater(0) < 3 || g.InitTriggered {
		return
	}

	var incomplete *models.GridPair
	for _, p := range e.pairs.Pairs(0) {
		if p.IsIncomplete() {
			incomplete = p
			break
		}
	}
	if incomplete == nil {
		return
	}

	missing := models.Buy
	price := incomplete.BuyPrice
	if incomplete.BuyFilled {
		missing = models.Sell
		price = incomplete.SellPrice
	}
	if _, err := e.executeMarketOrder(ctx, missing, price, incomplete.Index, 0, models.EventTP); err != nil {
		e.logger.Warn("saturation check: forced completion leg failed", utils.Int("pair_index", int(incomplete.Index)), utils.Err(err))
		return
	}
	e.observeCompletion(0)
	bullishSource := missing == models.Buy
	triggerIdx := incomplete.Index
	if err := e.executeGroupInit(ctx, e.currentGroup+1, price, bullishSource, &triggerIdx); err != nil {
		e.logger.Warn("saturation check: next group init failed", utils.Err(err))
	}
}

// toggleTriggers re-arms completed pairs: a pair with both legs filled
// keeps quoting its next_action side, and a re-approach of that side's
// price fires another market order at the same level. The completion cap never gates this path
// since the pair is already complete.
func (e *Engine) toggleTriggers(ctx context.Context, ask, bid float64) {
	tol := e.stepTolerance()
	for _, p := range e.pairs.Pairs(e.currentGroup) {
		if !p.IsComplete() || p.TPBlocked {
			continue
		}
		if int(p.TradeCount) >= e.cfg.MaxPositions {
			continue
		}
		if p.NextAction == models.Buy {
			if ask >= p.BuyPrice-tol {
				if _, err := e.executeMarketOrder(ctx, models.Buy, p.BuyPrice, p.Index, p.GroupID, models.EventOpen); err == nil {
					p.NextAction = models.Sell
				}
			}
		} else {
			if bid <= p.SellPrice+tol {
				if _, err := e.executeMarketOrder(ctx, models.Sell, p.SellPrice, p.Index, p.GroupID, models.EventOpen); err == nil {
					p.NextAction = models.Buy
				}
			}
		}
	}
}
