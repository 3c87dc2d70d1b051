package engine

import (
	"context"
	"fmt"
	"math"

	"gridengine/internal/broker"
	"gridengine/internal/metrics"
	"gridengine/internal/models"
	"gridengine/pkg/utils"
)

// detectDroppedTickets checks whether any ticket the
// registry still tracks but the broker no longer reports open has been
// closed out-of-band (TP, SL, or a manual close). Classify it from the
// touch flags latched since registration, determine completeness at
// the moment of detection, and route the resulting event.
func (e *Engine) detectDroppedTickets(ctx context.Context, q broker.Quote) {
	positions, err := e.broker.OpenPositions(ctx, e.symbol)
	if err != nil {
		e.logger.Warn("detect dropped tickets: open positions query failed", utils.Err(err))
		return
	}
	open := make(map[uint64]struct{}, len(positions))
	for _, p := range positions {
		open[p.Ticket] = struct{}{}
	}

	for _, ticket := range e.tickets.Tracked() {
		if _, stillOpen := open[ticket]; stillOpen {
			continue
		}
		e.handleDroppedTicket(ctx, ticket, q)
	}
}

func (e *Engine) handleDroppedTicket(ctx context.Context, ticket uint64, q broker.Quote) {
	info := e.tickets.Lookup(ticket)
	if info == nil {
		e.tickets.Remove(ticket)
		return
	}

	pair := e.pairs.Get(info.PairIndex)
	if pair == nil {
		e.tickets.Remove(ticket)
		return
	}

	class := classifyDrop(info, q)
	isTP := class.IsTP()
	if class.IsInferred() {
		metrics.RecordFallbackInference(e.symbol)
	}

	wasIncomplete := pair.IsIncomplete()
	wasCompleted := pair.IsComplete()
	eventPrice := info.TP
	if !isTP {
		eventPrice = info.SL
	}

	pair.TPBlocked = true
	e.savePair(pair)

	eventType := models.EventSL
	severity := models.SeverityWarn
	if isTP {
		eventType = models.EventTP
		severity = models.SeverityInfo
		metrics.RecordTP(e.symbol)
	} else {
		metrics.RecordSL(e.symbol)
	}
	e.writer.AppendEvent(models.GroupEvent{
		Symbol: e.symbol, GroupID: pair.GroupID, Type: eventType, Severity: severity,
		PairIndex: &info.PairIndex,
		Message:   fmt.Sprintf("ticket %d dropped, classified %s at %.5f inferred=%v", ticket, eventType, eventPrice, class.IsInferred()),
	})
	e.logTrade(eventType, info.PairIndex, info.Leg, eventPrice, 0, ticket, fmt.Sprintf("inferred=%v", class.IsInferred()))

	e.routeDrop(ctx, pair, info.Leg, eventPrice, isTP, wasIncomplete, wasCompleted, q)
	e.closeHedge(ctx, pair)

	e.tickets.Remove(ticket)
	if err := e.repos.Ticket.Delete(ticket); err != nil {
		e.logger.Warn("failed to delete dropped ticket row", utils.Ticket(ticket), utils.Err(err))
	}
}

// classifyDrop decides the drop outcome: a touch-flag hit wins outright;
// absent both flags, fall back to nearest-distance inference against
// the leg's own quote convention (bid for a buy leg, ask for a sell
// leg, matching update_touch).
func classifyDrop(info *models.TicketInfo, q broker.Quote) models.Classification {
	if info.Touch.TPTouched {
		return models.ClassifiedTP
	}
	if info.Touch.SLTouched {
		return models.ClassifiedSL
	}
	price := q.Bid
	if info.Leg == models.Sell {
		price = q.Ask
	}
	if math.Abs(price-info.TP) <= math.Abs(price-info.SL) {
		return models.ClassifiedInferredTP
	}
	return models.ClassifiedInferredSL
}

// routeDrop dispatches a classified drop to its handler.
func (e *Engine) routeDrop(ctx context.Context, pair *models.GridPair, leg models.Leg, eventPrice float64, isTP, wasIncomplete, wasCompleted bool, q broker.Quote) {
	if !isTP {
		return
	}
	if e.tpFired[pair.Index] {
		return
	}

	if wasIncomplete {
		e.tpFired[pair.Index] = true
		triggerIdx := pair.Index
		if err := e.executeGroupInit(ctx, e.currentGroup+1, eventPrice, leg == models.Buy, &triggerIdx); err != nil {
			e.logger.Warn("route drop: group init failed", utils.GroupID(e.currentGroup+1), utils.Err(err))
		}
		return
	}

	if !wasCompleted {
		return
	}
	if pair.GroupID == e.currentGroup {
		e.tpFired[pair.Index] = true
		preC := e.acct.HighWater(pair.GroupID)
		e.executeTPExpansion(ctx, pair.GroupID, eventPrice, leg == models.Buy, preC)
		return
	}
	if pair.GroupID+1 == e.currentGroup {
		e.tpFired[pair.Index] = true
		e.stepTriggerExpansion(ctx, q.Ask, q.Bid)
	}
}

// closeHedge closes and clears a pair's hedge position, if any, when
// either of its own legs drops.
func (e *Engine) closeHedge(ctx context.Context, pair *models.GridPair) {
	if !pair.HedgeActive {
		return
	}
	if err := e.broker.ClosePosition(ctx, pair.HedgeTicket, 200); err != nil {
		e.logger.Warn("close hedge: failed", utils.Ticket(pair.HedgeTicket), utils.Err(err))
	}
	pair.HedgeActive = false
	pair.HedgeTicket = 0
	e.savePair(pair)
}
