package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Fake is an in-memory Adapter double used by engine tests and by
// cmd/simulate's tick-replay harness. It holds one quote per symbol
// and a single position set shared by all symbols (OpenPositions
// ignores its symbol argument); callers drive it directly rather than
// through a network.
type Fake struct {
	mu sync.Mutex

	quotes    map[string]Quote
	info      map[string]SymbolInfo
	positions map[uint64]*Position
	deals     []Deal
	nextID    uint64

	// ClientTags records the idempotency tag minted for every SendMarket
	// call, keyed by the returned ticket, so tests can assert a tag was
	// generated without caring about its value.
	ClientTags map[uint64]string
}

func NewFake() *Fake {
	return &Fake{
		quotes:     make(map[string]Quote),
		info:       make(map[string]SymbolInfo),
		positions:  make(map[uint64]*Position),
		ClientTags: make(map[uint64]string),
	}
}

// SetQuote primes the next Tick result for a symbol.
func (f *Fake) SetQuote(symbol string, ask, bid float64, positionsCount uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[symbol] = Quote{Ask: ask, Bid: bid, PositionsCount: positionsCount}
}

// SetSymbolInfo primes the instrument metadata for a symbol.
func (f *Fake) SetSymbolInfo(symbol string, info SymbolInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.info[symbol] = info
}

func (f *Fake) Tick(ctx context.Context, symbol string) (Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quotes[symbol]
	if !ok {
		return Quote{}, ErrNoTick
	}
	return q, nil
}

func (f *Fake) SymbolInfo(ctx context.Context, symbol string) (SymbolInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.info[symbol]
	if !ok {
		return SymbolInfo{}, &Error{Broker: "fake", Code: "UNKNOWN_SYMBOL", Message: symbol}
	}
	return info, nil
}

func (f *Fake) OpenPositions(ctx context.Context, symbol string) ([]Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Position, 0, len(f.positions))
	for _, p := range f.positions {
		out = append(out, *p)
	}
	return out, nil
}

// SendMarket opens a new position and mints a client-order idempotency
// tag for it. The tag is not transmitted anywhere in the fake; it
// stands in for the broker-side dedup key a live adapter would send.
func (f *Fake) SendMarket(ctx context.Context, symbol string, direction PositionType, volume, price, sl, tp float64, magic uint64, comment string, deviation uint32, filling string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	ticket := f.nextID
	f.positions[ticket] = &Position{
		Ticket:    ticket,
		Magic:     magic,
		Type:      direction,
		Volume:    volume,
		PriceOpen: price,
		SL:        sl,
		TP:        tp,
	}
	f.ClientTags[ticket] = uuid.New().String()
	return ticket, nil
}

func (f *Fake) SendPending(ctx context.Context, symbol string, kind PendingKind, price float64, magic uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID, nil
}

func (f *Fake) ClosePosition(ctx context.Context, ticket uint64, deviation uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.positions[ticket]
	if !ok {
		return &Error{Broker: "fake", Code: "UNKNOWN_TICKET", Message: "no such position"}
	}
	reason := ReasonOther
	if p.Type == PosBuy {
		reason = ReasonOther
	}
	f.deals = append(f.deals, Deal{Ticket: ticket, PositionID: ticket, Type: p.Type, Reason: reason, Magic: p.Magic})
	delete(f.positions, ticket)
	return nil
}

func (f *Fake) CancelOrder(ctx context.Context, ticket uint64) error {
	return nil
}

func (f *Fake) RecentDeals(ctx context.Context, since time.Time, symbol string) ([]Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Deal, len(f.deals))
	copy(out, f.deals)
	return out, nil
}

// RecordTPDeal lets tests inject a TP-reason deal directly, bypassing
// ClosePosition's generic reason.
func (f *Fake) RecordTPDeal(ticket, positionID uint64, t PositionType, magic uint64, profit float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deals = append(f.deals, Deal{Ticket: ticket, PositionID: positionID, Type: t, Reason: ReasonTP, Magic: magic, Profit: profit})
}
