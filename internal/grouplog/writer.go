package grouplog

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"gridengine/internal/models"
	"gridengine/pkg/utils"
)

// Writer is the Group Log Writer interface: the engine calls
// AppendEvent once for each event it emits during a tick, and
// RenderGroups renders a full status snapshot. It never blocks on a
// missing subscriber.
type Writer interface {
	AppendEvent(event models.GroupEvent)
	RenderGroups(status models.EngineStatus)
}

// HubWriter is the concrete Writer: it logs structured lines through
// the shared logger and pushes the same payload over the websocket hub.
type HubWriter struct {
	hub    *Hub
	logger *utils.Logger
}

func NewHubWriter(hub *Hub, logger *utils.Logger) *HubWriter {
	return &HubWriter{hub: hub, logger: logger}
}

func (w *HubWriter) AppendEvent(event models.GroupEvent) {
	fields := []zap.Field{
		utils.Symbol(event.Symbol),
		utils.GroupID(event.GroupID),
		utils.String("severity", event.Severity),
	}
	if event.PairIndex != nil {
		fields = append(fields, utils.Int("pair_index", int(*event.PairIndex)))
	}
	switch event.Severity {
	case models.SeverityError:
		w.logger.Error(event.Message, fields...)
	case models.SeverityWarn:
		w.logger.Warn(event.Message, fields...)
	default:
		w.logger.Info(event.Message, fields...)
	}
	if w.hub != nil {
		w.hub.BroadcastEvent(event)
	}
}

// RenderGroups emits a minimal text table of live group/pair state and
// pushes the full snapshot over the hub. A richer terminal renderer is
// out of scope.
func (w *HubWriter) RenderGroups(status models.EngineStatus) {
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s phase=%-13s group=%d anchor=%.2f\n",
		status.Symbol, status.State.Phase, status.State.CurrentGroup, status.State.AnchorPrice)
	for _, g := range status.Groups {
		fmt.Fprintf(&b, "  group %d: C=%d/highwater=%d pairs=%d\n",
			g.GroupID, g.LiveC, g.CHighwater, len(g.Pairs))
	}
	w.logger.Info(b.String(), utils.Symbol(status.Symbol))
	if w.hub != nil {
		w.hub.BroadcastStatus(status)
	}
}
