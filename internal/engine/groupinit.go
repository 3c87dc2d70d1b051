package engine

import (
	"context"
	"fmt"

	"gridengine/internal/geometry"
	"gridengine/internal/models"
	"gridengine/pkg/utils"
)

// executeGroupInit seeds a fresh group's pair 0
// (buy) and pair 1 (sell) at anchor, commit the new current group, and
// optionally back-fill the abandoned leg of the pair that triggered
// this INIT.
func (e *Engine) executeGroupInit(ctx context.Context, groupID uint32, anchor float64, bullishSource bool, triggerPairIndex *int32) error {
	if e.gracefulStop {
		return fmt.Errorf("engine: group init refused: graceful stop in effect")
	}

	g := e.groupState(groupID)
	g.AnchorPrice = anchor

	// Group 0 has no triggering leg and permits step-trigger expansion
	// in both directions; every later group is born from
	// a specific TP and is restricted to its pending_retracement side.
	if groupID != 0 {
		g.InitSource = models.InitBullish
		g.PendingRetracement = models.InitBearish
		if !bullishSource {
			g.InitSource = models.InitBearish
			g.PendingRetracement = models.InitBullish
		}
	}

	offset := int32(groupID) * 100
	buyIdx := offset
	sellIdx := offset + 1

	buyBuyPrice, buySellPrice := geometry.PricesFor(anchor, e.cfg.Spread, 0)
	buyPair := &models.GridPair{Index: buyIdx, GroupID: groupID, BuyPrice: buyBuyPrice, SellPrice: buySellPrice, NextAction: models.Sell}
	e.pairs.Create(buyPair)
	if _, err := e.executeMarketOrder(ctx, models.Buy, anchor, buyIdx, groupID, models.EventInit); err != nil {
		e.logger.Error("group init: buy leg failed, rolling back", utils.GroupID(groupID), utils.Err(err))
		return fmt.Errorf("engine: group init %d: buy leg: %w", groupID, err)
	}

	sellBuyPrice, sellSellPrice := geometry.PricesFor(anchor, e.cfg.Spread, 1)
	sellPair := &models.GridPair{Index: sellIdx, GroupID: groupID, BuyPrice: sellBuyPrice, SellPrice: sellSellPrice, NextAction: models.Buy}
	e.pairs.Create(sellPair)
	if _, err := e.executeMarketOrder(ctx, models.Sell, anchor, sellIdx, groupID, models.EventInit); err != nil {
		e.logger.Error("group init: sell leg failed, closing buy leg and rolling back", utils.GroupID(groupID), utils.Err(err))
		if buyPair.BuyFilled {
			if cerr := e.broker.ClosePosition(ctx, buyPair.BuyTicket, 200); cerr != nil {
				e.logger.Warn("group init rollback: failed to close buy leg", utils.Ticket(buyPair.BuyTicket), utils.Err(cerr))
			}
			e.tickets.Remove(buyPair.BuyTicket)
		}
		return fmt.Errorf("engine: group init %d: sell leg: %w", groupID, err)
	}

	e.currentGroup = groupID
	e.anchorPrice = anchor
	e.centerPrice = anchor
	g.InitTriggered = true

	e.writer.AppendEvent(models.GroupEvent{
		Symbol: e.symbol, GroupID: groupID, Type: models.EventInit, Severity: models.SeverityInfo,
		Message: fmt.Sprintf("group %d initialized at anchor=%.5f bullish_source=%v", groupID, anchor, bullishSource),
	})
	e.logTrade(models.EventInit, buyIdx, models.Buy, anchor, 0, 0, fmt.Sprintf("group %d init", groupID))

	if triggerPairIndex != nil {
		e.backfillAbandonedLeg(ctx, *triggerPairIndex, bullishSource)
	}

	return e.save()
}

// backfillAbandonedLeg fires the non-atomic completing leg left behind
// by the *previous* group's expansion, not the trigger pair itself:
// when C=3 was reached non-atomically (e.g. B(n) fired without its
// atomic partner S(n+1)), the adjacent partner pair one level down
// (bullish source) or one level up (bearish source) from the trigger
// is still sitting incomplete. Priced off the live tick, matching the
// leg's own quote convention (bid for a sell completion, ask for a
// buy completion).
func (e *Engine) backfillAbandonedLeg(ctx context.Context, triggerPairIndex int32, bullishSource bool) {
	partnerIndex := triggerPairIndex - 1
	missing := models.Sell
	if !bullishSource {
		partnerIndex = triggerPairIndex + 1
		missing = models.Buy
	}

	pair := e.pairs.Get(partnerIndex)
	if pair == nil || pair.TPBlocked {
		return
	}
	needsCompleting := pair.BuyFilled && !pair.SellFilled
	if missing == models.Buy {
		needsCompleting = pair.SellFilled && !pair.BuyFilled
	}
	if !needsCompleting {
		return
	}

	q, err := e.broker.Tick(ctx, e.symbol)
	if err != nil {
		e.logger.Warn("back-fill of abandoned leg: tick failed", utils.Int("pair_index", int(partnerIndex)), utils.Err(err))
		return
	}
	price := q.Ask
	if missing == models.Sell {
		price = q.Bid
	}
	if _, err := e.executeMarketOrder(ctx, missing, price, partnerIndex, pair.GroupID, models.EventBackfill); err != nil {
		e.logger.Warn("back-fill of abandoned leg failed", utils.Int("pair_index", int(partnerIndex)), utils.Err(err))
	}
}
