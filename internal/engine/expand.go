package engine

import (
	"context"
	"fmt"

	"gridengine/internal/accountant"
	"gridengine/internal/metrics"
	"gridengine/internal/models"
	"gridengine/pkg/utils"
)

// stepTolerance is the fixed proximity tolerance for step-trigger
// expansion: spread/4.
func (e *Engine) stepTolerance() float64 {
	return e.cfg.Spread / 4
}

// stepTriggerExpansion scans current_group for the highest sell-only
// pair and the lowest buy-only pair, firing expand_bullish/bearish once
// price has approached the next level within tolerance.
// The directional guard restricts a group with an established
// init_source to its pending_retracement direction; group 0 allows
// both.
func (e *Engine) stepTriggerExpansion(ctx context.Context, ask, bid float64) {
	g := e.groupState(e.currentGroup)
	allowBullish := e.currentGroup == 0 || g.PendingRetracement == models.InitBullish
	allowBearish := e.currentGroup == 0 || g.PendingRetracement == models.InitBearish

	if allowBullish {
		if upper := e.pairs.HighestSellOnly(e.currentGroup); upper != nil {
			if ask >= upper.BuyPrice-e.stepTolerance() {
				e.expandBullish(ctx, upper.Index)
			}
		}
	}
	if allowBearish {
		if lower := e.pairs.LowestBuyOnly(e.currentGroup); lower != nil {
			if bid <= lower.SellPrice+e.stepTolerance() {
				e.expandBearish(ctx, lower.Index)
			}
		}
	}
}

// expandBullish fills pair n's buy leg, then
// either stop (non-atomic, if this completion raises C from 2 to 3) or
// seed pair n+1's sell leg atomically.
func (e *Engine) expandBullish(ctx context.Context, n int32) {
	groupID := e.currentGroup
	if e.acct.HighWater(groupID) >= accountant.Cap {
		return
	}
	g := e.groupState(groupID)
	if g.InitSource != models.InitNone && g.PendingRetracement != models.InitBullish {
		return
	}

	pair := e.pairs.Get(n)
	if pair == nil || pair.BuyFilled {
		return
	}
	preC := e.acct.HighWater(groupID)

	if _, err := e.executeMarketOrder(ctx, models.Buy, pair.BuyPrice, n, groupID, models.EventStepExpand); err != nil {
		e.logger.Warn("expand_bullish: buy leg failed", utils.Int("pair_index", int(n)), utils.Err(err))
		return
	}
	e.observeCompletion(groupID)

	if preC == 2 {
		metrics.RecordExpansion(e.symbol, "bullish", "non_atomic")
		e.writer.AppendEvent(models.GroupEvent{
			Symbol: e.symbol, GroupID: groupID, Type: models.EventStepExpand, Severity: models.SeverityInfo,
			Message: fmt.Sprintf("step expand bullish pair %d non-atomic (C 2->3)", n),
		})
		e.saveOrLog()
		return
	}

	seedIdx := n + 1
	if e.pairs.Exists(seedIdx) {
		e.saveOrLog()
		return
	}
	seedSell := pair.BuyPrice
	seedBuy := seedSell + e.cfg.Spread
	seed := &models.GridPair{Index: seedIdx, GroupID: groupID, BuyPrice: seedBuy, SellPrice: seedSell, NextAction: models.Buy}
	e.pairs.Create(seed)
	if _, err := e.executeMarketOrder(ctx, models.Sell, seedSell, seedIdx, groupID, models.EventStepExpand); err != nil {
		e.logger.Warn("expand_bullish: seed sell leg failed", utils.Int("pair_index", int(seedIdx)), utils.Err(err))
		e.saveOrLog()
		return
	}
	metrics.RecordExpansion(e.symbol, "bullish", "atomic")
	e.writer.AppendEvent(models.GroupEvent{
		Symbol: e.symbol, GroupID: groupID, Type: models.EventStepExpand, Severity: models.SeverityInfo,
		Message: fmt.Sprintf("step expand bullish pair %d atomic, seeded pair %d", n, seedIdx),
	})
	e.saveOrLog()
}

// expandBearish is the mirror of expandBullish using n-1.
func (e *Engine) expandBearish(ctx context.Context, n int32) {
	groupID := e.currentGroup
	if e.acct.HighWater(groupID) >= accountant.Cap {
		return
	}
	g := e.groupState(groupID)
	if g.InitSource != models.InitNone && g.PendingRetracement != models.InitBearish {
		return
	}

	pair := e.pairs.Get(n)
	if pair == nil || pair.SellFilled {
		return
	}
	preC := e.acct.HighWater(groupID)

	if _, err := e.executeMarketOrder(ctx, models.Sell, pair.SellPrice, n, groupID, models.EventStepExpand); err != nil {
		e.logger.Warn("expand_bearish: sell leg failed", utils.Int("pair_index", int(n)), utils.Err(err))
		return
	}
	e.observeCompletion(groupID)

	if preC == 2 {
		metrics.RecordExpansion(e.symbol, "bearish", "non_atomic")
		e.writer.AppendEvent(models.GroupEvent{
			Symbol: e.symbol, GroupID: groupID, Type: models.EventStepExpand, Severity: models.SeverityInfo,
			Message: fmt.Sprintf("step expand bearish pair %d non-atomic (C 2->3)", n),
		})
		e.saveOrLog()
		return
	}

	seedIdx := n - 1
	if e.pairs.Exists(seedIdx) {
		e.saveOrLog()
		return
	}
	seedBuy := pair.SellPrice
	seedSell := seedBuy - e.cfg.Spread
	seed := &models.GridPair{Index: seedIdx, GroupID: groupID, BuyPrice: seedBuy, SellPrice: seedSell, NextAction: models.Sell}
	e.pairs.Create(seed)
	if _, err := e.executeMarketOrder(ctx, models.Buy, seedBuy, seedIdx, groupID, models.EventStepExpand); err != nil {
		e.logger.Warn("expand_bearish: seed buy leg failed", utils.Int("pair_index", int(seedIdx)), utils.Err(err))
		e.saveOrLog()
		return
	}
	metrics.RecordExpansion(e.symbol, "bearish", "atomic")
	e.writer.AppendEvent(models.GroupEvent{
		Symbol: e.symbol, GroupID: groupID, Type: models.EventStepExpand, Severity: models.SeverityInfo,
		Message: fmt.Sprintf("step expand bearish pair %d atomic, seeded pair %d", n, seedIdx),
	})
	e.saveOrLog()
}

// observeCompletion folds the group's freshly-computed live completion
// count into the high-water mark and refreshes the metrics gauge.
func (e *Engine) observeCompletion(groupID uint32) uint32 {
	live := accountant.Live(e.pairs, groupID)
	hw := e.acct.Observe(groupID, live)
	e.groupState(groupID).CHighwater = hw
	metrics.SetGroupHighwater(e.symbol, groupID, hw)
	return hw
}

// executeTPExpansion handles a completed pair's leg
// hit TP at event_price. Find the edge incomplete pair of the same
// group in the direction implied by the filled leg, then place only
// the completing leg (pre-event C==2) or place the completing leg and
// seed the next pair atomically (otherwise).
func (e *Engine) executeTPExpansion(ctx context.Context, groupID uint32, eventPrice float64, bullish bool, preC uint32) {
	var target *models.GridPair
	if bullish {
		target = e.pairs.HighestSellOnly(groupID)
	} else {
		target = e.pairs.LowestBuyOnly(groupID)
	}
	if target == nil {
		return
	}

	direction := models.Buy
	if !bullish {
		direction = models.Sell
	}
	price := target.BuyPrice
	if !bullish {
		price = target.SellPrice
	}

	if _, err := e.executeMarketOrder(ctx, direction, price, target.Index, groupID, models.EventTP); err != nil {
		e.logger.Warn("tp expansion: completing leg failed", utils.Int("pair_index", int(target.Index)), utils.Err(err))
		return
	}
	e.observeCompletion(groupID)

	if preC == 2 {
		metrics.RecordExpansion(e.symbol, tpDirectionLabel(bullish), "non_atomic")
		e.saveOrLog()
		return
	}

	var seedIdx int32
	var seedBuy, seedSell float64
	var seedDirection models.Direction
	var seedNext models.Direction
	if bullish {
		seedIdx = target.Index + 1
		seedSell = eventPrice
		seedBuy = seedSell + e.cfg.Spread
		seedDirection = models.Sell
		seedNext = models.Buy
	} else {
		seedIdx = target.Index - 1
		seedBuy = eventPrice
		seedSell = seedBuy - e.cfg.Spread
		seedDirection = models.Buy
		seedNext = models.Sell
	}
	if e.pairs.Exists(seedIdx) {
		e.saveOrLog()
		return
	}
	seed := &models.GridPair{Index: seedIdx, GroupID: groupID, BuyPrice: seedBuy, SellPrice: seedSell, NextAction: seedNext}
	e.pairs.Create(seed)
	seedPrice := seedSell
	if seedDirection == models.Buy {
		seedPrice = seedBuy
	}
	if _, err := e.executeMarketOrder(ctx, seedDirection, seedPrice, seedIdx, groupID, models.EventTP); err != nil {
		e.logger.Warn("tp expansion: seed leg failed", utils.Int("pair_index", int(seedIdx)), utils.Err(err))
		e.saveOrLog()
		return
	}
	metrics.RecordExpansion(e.symbol, tpDirectionLabel(bullish), "atomic")
	e.saveOrLog()
}

func tpDirectionLabel(bullish bool) string {
	if bullish {
		return "bullish"
	}
	return "bearish"
}
