// Package broker defines the Broker Adapter contract: the
// engine's sole window onto live market/order state. All methods block
// from the caller's perspective; the adapter internalizes any
// underlying broker-library reentrancy.
package broker

import (
	"context"
	"errors"
	"time"
)

// PendingKind enumerates the stop/limit order kinds the adapter can
// place via SendPending.
type PendingKind int

const (
	BuyStop PendingKind = iota
	SellStop
	BuyLimit
	SellLimit
)

// PositionType mirrors the broker's own Buy/Sell position side.
type PositionType int

const (
	PosBuy PositionType = iota
	PosSell
)

// DealReason classifies a closed deal for the optional recent-deals
// audit channel.
type DealReason int

const (
	ReasonOther DealReason = iota
	ReasonTP
	ReasonSL
)

// Quote is the result of a single tick: best ask/bid and the number of
// currently open positions on the symbol (used by the completion cap
// gate's max_positions check).
type Quote struct {
	Ask            float64
	Bid            float64
	PositionsCount uint32
}

// SymbolInfo carries the broker's tradeable-instrument metadata.
type SymbolInfo struct {
	Point            float64
	StopsLevelPoints uint32
	MinLot           float64
	MaxLot           float64
	LotStep          float64
	FillingModes     []string
}

// Position is one open broker position.
type Position struct {
	Ticket     uint64
	Magic      uint64
	Type       PositionType
	Volume     float64
	PriceOpen  float64
	SL         float64
	TP         float64
	Profit     float64
}

// Deal is one closed position reported by the optional audit channel.
type Deal struct {
	Ticket     uint64
	PositionID uint64
	Type       PositionType
	Reason     DealReason
	Profit     float64
	Magic      uint64
}

// ErrNoTick is returned by Tick when the broker has no fresh quote for
// the symbol; callers must treat this as a normal transient condition
//, not a fatal error.
var ErrNoTick = errors.New("broker: no tick available")

// Adapter is the Broker Adapter contract. Implementations
// must be safe to call from a single goroutine per symbol; the engine
// never calls two methods for the same symbol concurrently.
type Adapter interface {
	Tick(ctx context.Context, symbol string) (Quote, error)
	SymbolInfo(ctx context.Context, symbol string) (SymbolInfo, error)
	OpenPositions(ctx context.Context, symbol string) ([]Position, error)

	// SendMarket places a market order and returns the resulting
	// position ticket, not the order ticket. A zero ticket with a nil
	// error means the broker refused the order for a recoverable reason;
	// the caller treats this as a transient failure to retry next tick.
	SendMarket(ctx context.Context, symbol string, direction PositionType, volume, price, sl, tp float64, magic uint64, comment string, deviation uint32, filling string) (uint64, error)

	SendPending(ctx context.Context, symbol string, kind PendingKind, price float64, magic uint64) (uint64, error)
	ClosePosition(ctx context.Context, ticket uint64, deviation uint32) error
	CancelOrder(ctx context.Context, ticket uint64) error
	RecentDeals(ctx context.Context, since time.Time, symbol string) ([]Deal, error)
}

// Error wraps a broker-reported failure, grounded on the exchange
// adapter error shape this project generalizes from.
type Error struct {
	Broker  string
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return e.Broker + " [" + e.Code + "]: " + e.Message
	}
	return e.Broker + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the error represents a transient broker
// condition that a later tick may resolve: no tick, a
// recoverable order rejection, or a stops-level violation.
func (e *Error) Retryable() bool {
	switch e.Code {
	case "REQUOTE", "TIMEOUT", "NO_CONNECTION", "STOPS_LEVEL", "TRADE_DISABLED", "10006", "10016":
		return true
	default:
		return false
	}
}
