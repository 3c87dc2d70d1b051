package engine

import (
	"context"
	"fmt"

	"gridengine/internal/broker"
	"gridengine/internal/metrics"
	"gridengine/internal/models"
	"gridengine/pkg/utils"
)

// hedgeSupervisor watches any pair that has reached the
// configured position limit without an active hedge gets one placed at
// market, mirroring the opposing leg's TP/SL so the hedge unwinds the
// pair's exposure rather than duplicating it.
func (e *Engine) hedgeSupervisor(ctx context.Context, q broker.Quote) {
	if !e.cfg.HedgeEnabled {
		return
	}
	for _, p := range e.pairs.All() {
		if int(p.TradeCount) < e.cfg.MaxPositions || p.HedgeActive || p.TPBlocked {
			continue
		}
		e.placeHedge(ctx, p, q)
	}
}

func (e *Engine) placeHedge(ctx context.Context, p *models.GridPair, q broker.Quote) {
	direction, hedgeTP, hedgeSL, ok := e.opposingLegMirror(p)
	if !ok {
		direction, hedgeTP, hedgeSL = e.spreadFallback(p)
	}

	info, err := e.broker.SymbolInfo(ctx, e.symbol)
	if err != nil {
		e.logger.Warn("hedge: symbol info failed", utils.Err(err))
		return
	}
	checkPrice := q.Bid
	if direction == broker.PosSell {
		checkPrice = q.Ask
	}
	hedgeDirection := models.Buy
	if direction == broker.PosSell {
		hedgeDirection = models.Sell
	}
	sl, tp := clampStops(hedgeDirection, hedgeSL, hedgeTP, checkPrice, e.minStopsDistance(info))

	price := q.Ask
	if direction == broker.PosSell {
		price = q.Bid
	}
	magic := e.nextMagic(p.GroupID)
	comment := fmt.Sprintf("H%d Grp%d", p.Index, p.GroupID)

	ticket, err := e.broker.SendMarket(ctx, e.symbol, direction, e.cfg.HedgeLotSize, price, sl, tp, magic, comment, 200, "FOK")
	if err != nil || ticket == 0 {
		e.logger.Warn("hedge: send market failed", utils.Int("pair_index", int(p.Index)), utils.Err(err))
		return
	}

	p.HedgeTicket = ticket
	p.HedgeActive = true
	p.HedgeDirection = hedgeDirection
	e.savePair(p)

	metrics.RecordHedgeOpened(e.symbol)
	e.writer.AppendEvent(models.GroupEvent{
		Symbol: e.symbol, GroupID: p.GroupID, Type: models.EventHedgeOpen, Severity: models.SeverityInfo,
		PairIndex: &p.Index,
		Message:   fmt.Sprintf("hedge opened pair %d ticket=%d tp=%.5f sl=%.5f", p.Index, ticket, tp, sl),
	})
	e.logTrade(models.EventHedgeOpen, p.Index, hedgeDirection, price, e.cfg.HedgeLotSize, ticket, "")
}

// opposingLegMirror implements the primary hedging rule: the hedge
// direction is the pair's own next_action (not a fixed branch on
// ever-latched BuyFilled/SellFilled, which stay true forever once a
// pair has toggled through both legs), and the hedge's TP/SL mirror
// the leg opposite that direction: its TP sits where that opposing
// leg's SL sits, and its SL sits where the opposing leg's TP sits. It
// reports ok=false when the opposing leg was never filled (no ticket
// to read the mirror prices from).
func (e *Engine) opposingLegMirror(p *models.GridPair) (broker.PositionType, float64, float64, bool) {
	direction := broker.PosBuy
	opposingTicket := p.SellTicket
	if p.NextAction == models.Sell {
		direction = broker.PosSell
		opposingTicket = p.BuyTicket
	}
	if opposingTicket == 0 {
		return 0, 0, 0, false
	}
	info := e.tickets.Lookup(opposingTicket)
	if info == nil {
		return 0, 0, 0, false
	}
	mirroredTP := info.SL
	mirroredSL := info.TP
	return direction, mirroredTP, mirroredSL, true
}

// spreadFallback implements the fallback hedging rule: when the
// opposing leg is unknown, hedge in the pair's own next_action
// direction with a spread-based TP/SL pair around that leg's own
// entry price.
func (e *Engine) spreadFallback(p *models.GridPair) (broker.PositionType, float64, float64) {
	if p.NextAction == models.Buy {
		return broker.PosBuy, p.SellPrice + e.cfg.Spread, p.SellPrice - e.cfg.Spread
	}
	return broker.PosSell, p.BuyPrice - e.cfg.Spread, p.BuyPrice + e.cfg.Spread
}
