// Package registry implements the Ticket Registry: the
// in-memory map from broker ticket to pair/leg/TP/SL plus monotone
// touch-flag latching.
package registry

import (
	"sync"

	"gridengine/internal/models"
)

// Registry is safe for concurrent reads; the engine serializes writes
// through its own mutex, but RWMutex here guards against the status
// endpoint reading concurrently with a tick.
type Registry struct {
	mu      sync.RWMutex
	tickets map[uint64]*models.TicketInfo
}

func New() *Registry {
	return &Registry{tickets: make(map[uint64]*models.TicketInfo)}
}

// Register idempotently inserts a ticket, initializing touch flags to
// (false, false) only on first insert.
func (r *Registry) Register(ticket uint64, pairIndex int32, leg models.Leg, entry, tp, sl float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tickets[ticket]; exists {
		return
	}
	r.tickets[ticket] = &models.TicketInfo{
		PairIndex: pairIndex,
		Leg:       leg,
		Entry:     entry,
		TP:        tp,
		SL:        sl,
	}
}

// UpdateTouch latches TP/SL touch flags against the live quote for
// every registered ticket. Flags are monotone: once set,
// UpdateTouch never clears them.
func (r *Registry) UpdateTouch(ask, bid float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, info := range r.tickets {
		if info.Leg == models.Buy {
			if bid >= info.TP {
				info.Touch.TPTouched = true
			}
			if bid <= info.SL {
				info.Touch.SLTouched = true
			}
		} else {
			if ask <= info.TP {
				info.Touch.TPTouched = true
			}
			if ask >= info.SL {
				info.Touch.SLTouched = true
			}
		}
	}
}

// Remove deletes a ticket and its touch record.
func (r *Registry) Remove(ticket uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tickets, ticket)
}

// Lookup returns a copy of the ticket info, or nil if not registered.
func (r *Registry) Lookup(ticket uint64) *models.TicketInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.tickets[ticket]
	if !ok {
		return nil
	}
	cp := *info
	return &cp
}

// Tracked returns the set of currently-registered ticket IDs.
func (r *Registry) Tracked() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uint64, 0, len(r.tickets))
	for t := range r.tickets {
		out = append(out, t)
	}
	return out
}

// Len reports the number of registered tickets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tickets)
}

// Snapshot returns all registered tickets keyed by ticket ID, each a
// defensive copy, for persistence or status reporting.
func (r *Registry) Snapshot() map[uint64]models.TicketInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[uint64]models.TicketInfo, len(r.tickets))
	for t, info := range r.tickets {
		out[t] = *info
	}
	return out
}

// Restore replaces the registry contents wholesale, used when rebuilding
// from the repository on start.
func (r *Registry) Restore(tickets map[uint64]models.TicketInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets = make(map[uint64]*models.TicketInfo, len(tickets))
	for t, info := range tickets {
		cp := info
		r.tickets[t] = &cp
	}
}
