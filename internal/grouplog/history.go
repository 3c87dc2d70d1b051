package grouplog

import (
	"strings"
	"sync"
	"time"

	"gridengine/internal/models"
)

// historyCap bounds the in-memory event ring so a long-running engine
// never grows this unbounded; the repository's trade_history table is
// the durable record.
const historyCap = 2000

// HistoryWriter decorates a Writer with an in-memory ring buffer of
// recent events, so the control surface can list and clear the event
// log, without a
// dedicated notifications table.
type HistoryWriter struct {
	Writer
	mu     sync.Mutex
	events []models.GroupEvent
	next   int
	full   bool
}

func NewHistoryWriter(w Writer) *HistoryWriter {
	return &HistoryWriter{Writer: w, events: make([]models.GroupEvent, historyCap)}
}

func (h *HistoryWriter) AppendEvent(event models.GroupEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	h.mu.Lock()
	h.events[h.next] = event
	h.next = (h.next + 1) % historyCap
	if h.next == 0 {
		h.full = true
	}
	h.mu.Unlock()

	h.Writer.AppendEvent(event)
}

// List returns up to limit events, most recent first, optionally
// filtered to the given event types (case-insensitive, empty = all).
func (h *HistoryWriter) List(types []string, limit int) []models.GroupEvent {
	wanted := make(map[string]struct{}, len(types))
	for _, t := range types {
		wanted[strings.ToUpper(t)] = struct{}{}
	}

	h.mu.Lock()
	n := h.next
	count := n
	if h.full {
		count = historyCap
	}
	ordered := make([]models.GroupEvent, count)
	for i := 0; i < count; i++ {
		idx := (n - 1 - i + historyCap) % historyCap
		ordered[i] = h.events[idx]
	}
	h.mu.Unlock()

	if len(wanted) == 0 && limit <= 0 {
		return ordered
	}
	out := make([]models.GroupEvent, 0, len(ordered))
	for _, e := range ordered {
		if len(wanted) > 0 {
			if _, ok := wanted[strings.ToUpper(string(e.Type))]; !ok {
				continue
			}
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Clear discards every buffered event.
func (h *HistoryWriter) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = make([]models.GroupEvent, historyCap)
	h.next = 0
	h.full = false
}
