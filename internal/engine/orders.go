package engine

import (
	"context"
	"fmt"

	"gridengine/internal/accountant"
	"gridengine/internal/broker"
	"gridengine/internal/metrics"
	"gridengine/internal/models"
	"gridengine/pkg/utils"
)

// ErrCapRefused is returned by executeMarketOrder when the completion
// cap gate refuses the order. Callers must treat this as
// normal control flow, not an error to log loudly.
var ErrCapRefused = fmt.Errorf("engine: order refused by completion cap gate")

// lotForTradeCount selects the lot-size ladder entry for a pair's next
// trade: trade_count indexes the ladder, clamped to the last entry
// once trade_count exceeds its length, then snapped to the broker's
// lot step and bounded to [MinLot, MaxLot].
func (e *Engine) lotForTradeCount(tradeCount uint32, info broker.SymbolInfo) float64 {
	sizes := e.cfg.LotSizes
	lot := 0.01
	if len(sizes) > 0 {
		if int(tradeCount) >= len(sizes) {
			lot = sizes[len(sizes)-1]
		} else {
			lot = sizes[tradeCount]
		}
	}
	if info.LotStep > 0 {
		lot = utils.RoundToLotSizeNearest(lot, info.LotStep)
	}
	if info.MinLot > 0 && info.MaxLot > 0 {
		lot = utils.Clamp(lot, info.MinLot, info.MaxLot)
	}
	return lot
}

// clampStops pushes sl/tp outward to satisfy the broker's minimum
// stops-level distance rather than rejecting the order. check is the price the position closes against: bid for a
// buy position, ask for a sell position.
func clampStops(direction models.Direction, sl, tp, check, minDist float64) (float64, float64) {
	if direction == models.Buy {
		if sl > check-minDist {
			sl = check - minDist
		}
		if tp < check+minDist {
			tp = check + minDist
		}
		return sl, tp
	}
	if sl < check+minDist {
		sl = check + minDist
	}
	if tp > check-minDist {
		tp = check - minDist
	}
	return sl, tp
}

func (e *Engine) minStopsDistance(info broker.SymbolInfo) float64 {
	stopsLevel := info.StopsLevelPoints
	if stopsLevel < 10 {
		stopsLevel = 10
	}
	return float64(stopsLevel) * info.Point
}

// capRefused implements the completion cap gate: it
// refuses an order that would newly complete a pair (turn exactly one
// leg filled into both filled) once the group's completion high-water
// mark has reached the cap, unless the order is a hedging leg pushing
// trade_count to max_positions, or the pair is already complete (a
// toggle re-trade that does not raise C).
func (e *Engine) capRefused(pair *models.GridPair, groupID uint32) bool {
	completing := pair.IsIncomplete()
	if !completing {
		return false
	}
	if e.acct.HighWater(groupID) < accountant.Cap {
		return false
	}
	if pair.TradeCount+1 >= uint32(e.cfg.MaxPositions) {
		return false
	}
	return true
}

// executeMarketOrder is the market-order contract: it
// pre-checks the completion cap, computes TP/SL from configured pip
// distances, clamps them to the broker's stops level, submits the
// order, registers the position ticket the adapter returns in the
// Ticket Registry, and locks the pair's entry price on first fill of a
// direction.
func (e *Engine) executeMarketOrder(ctx context.Context, direction models.Direction, price float64, pairIndex int32, groupID uint32, reason models.EventType) (uint64, error) {
	pair := e.pairs.Get(pairIndex)
	if pair == nil {
		return 0, fmt.Errorf("engine: executeMarketOrder: no pair at index %d", pairIndex)
	}
	if pair.TPBlocked {
		return 0, fmt.Errorf("engine: executeMarketOrder: pair %d is tp_blocked", pairIndex)
	}
	if e.capRefused(pair, groupID) {
		metrics.RecordCapRefusal(e.symbol)
		e.writer.AppendEvent(models.GroupEvent{
			Symbol: e.symbol, GroupID: groupID, Type: models.EventCapRefused,
			Severity: models.SeverityWarn, PairIndex: &pairIndex,
			Message: fmt.Sprintf("completion cap reached for group %d, order refused", groupID),
		})
		return 0, ErrCapRefused
	}

	info, err := e.broker.SymbolInfo(ctx, e.symbol)
	if err != nil {
		return 0, fmt.Errorf("engine: symbol info: %w", err)
	}
	quote, err := e.broker.Tick(ctx, e.symbol)
	if err != nil {
		return 0, fmt.Errorf("engine: tick for stops clamp: %w", err)
	}

	var tp, sl, checkPrice float64
	var side broker.PositionType
	if direction == models.Buy {
		tp = price + e.cfg.TPPips
		sl = price - e.cfg.SLPips
		checkPrice = quote.Bid
		side = broker.PosBuy
	} else {
		tp = price - e.cfg.TPPips
		sl = price + e.cfg.SLPips
		checkPrice = quote.Ask
		side = broker.PosSell
	}
	sl, tp = clampStops(direction, sl, tp, checkPrice, e.minStopsDistance(info))

	magic := e.nextMagic(groupID)
	leg := "B"
	if direction == models.Sell {
		leg = "S"
	}
	comment := fmt.Sprintf("%s%d Grp%d", leg, pairIndex, groupID)
	volume := e.lotForTradeCount(pair.TradeCount, info)

	ticket, err := e.broker.SendMarket(ctx, e.symbol, side, volume, price, sl, tp, magic, comment, 200, "FOK")
	if err != nil {
		return 0, fmt.Errorf("engine: send market %s pair %d: %w", direction, pairIndex, err)
	}
	if ticket == 0 {
		return 0, fmt.Errorf("engine: send market %s pair %d: refused by broker", direction, pairIndex)
	}

	// The returned ticket is already the position ticket, not the order
	// ticket; the adapter resolves that distinction
	// internally before returning here.
	e.tickets.Register(ticket, pairIndex, direction, price, tp, sl)

	pair.SetFilled(direction, ticket)
	if direction == models.Buy && pair.LockedBuyEntry == 0 {
		pair.LockedBuyEntry = price
	}
	if direction == models.Sell && pair.LockedSellEntry == 0 {
		pair.LockedSellEntry = price
	}
	e.savePair(pair)

	e.writer.AppendEvent(models.GroupEvent{
		Symbol: e.symbol, GroupID: groupID, Type: models.EventOpen,
		Severity: models.SeverityInfo, PairIndex: &pairIndex,
		Message: fmt.Sprintf("%s pair %d @ %.5f tp=%.5f sl=%.5f ticket=%d", direction, pairIndex, price, tp, sl, ticket),
	})
	e.logTrade(models.EventOpen, pairIndex, direction, price, volume, ticket,
		fmt.Sprintf("TP=%.5f SL=%.5f reason=%s", tp, sl, reason))

	return ticket, nil
}

func (e *Engine) logTrade(eventType models.EventType, pairIndex int32, direction models.Direction, price, lot float64, ticket uint64, notes string) {
	event := &models.TradeEvent{
		Symbol:    e.symbol,
		Type:      eventType,
		PairIndex: pairIndex,
		Direction: direction,
		Price:     price,
		Lot:       lot,
		Ticket:    ticket,
		Notes:     notes,
	}
	if err := e.repos.Trade.Append(event); err != nil {
		e.logger.Warn("failed to append trade history", utils.Err(err))
	}
}
