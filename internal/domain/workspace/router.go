package workspace

import (
	"errors"
	"fmt"
	"path"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/nuitester/internal/domain/console"
	"github.com/GriffinCanCode/nuitester/internal/domain/protocol"
	"github.com/GriffinCanCode/nuitester/internal/domain/rewrite"
)

// ErrDropped wraps the reason an inbound message was ignored.
var ErrDropped = errors.New("message dropped")

// Drop reasons, as counted in diagnostics.
const (
	DropUnmarked       = "unmarked"
	DropMalformed      = "malformed"
	DropUnknownKind    = "unknown_kind"
	DropWrongDirection = "wrong_direction"
	DropNoEntry        = "no_entry"
	DropClosed         = "closed"
)

type counters struct {
	builds        uint64
	buildFailures uint64
	inbound       map[protocol.Kind]uint64
	outbound      map[protocol.Kind]uint64
	dropped       map[string]uint64
}

// Diagnostics exposes every counter the workspace keeps for silent paths.
type Diagnostics struct {
	Rewrite       rewrite.Diagnostics `json:"rewrite"`
	Builds        uint64              `json:"builds"`
	BuildFailures uint64              `json:"build_failures"`
	LiveHandles   int                 `json:"live_handles"`
	Inbound       map[string]uint64   `json:"inbound"`
	Outbound      map[string]uint64   `json:"outbound"`
	Dropped       map[string]uint64   `json:"dropped"`
	LogEntries    int                 `json:"log_entries"`
	LogDropped    uint64              `json:"log_dropped"`
	Bridges       int                 `json:"bridges"`
}

// Diagnostics returns a copy of the counters.
func (w *Workspace) Diagnostics() Diagnostics {
	w.mu.Lock()
	defer w.mu.Unlock()

	d := Diagnostics{
		Rewrite:       w.rewriter.Diagnostics(),
		Builds:        w.counters.builds,
		BuildFailures: w.counters.buildFailures,
		LiveHandles:   w.liveHandles,
		Inbound:       make(map[string]uint64, len(w.counters.inbound)),
		Outbound:      make(map[string]uint64, len(w.counters.outbound)),
		Dropped:       make(map[string]uint64, len(w.counters.dropped)),
		LogEntries:    w.log.Len(),
		LogDropped:    w.log.Dropped(),
		Bridges:       w.bridgeCount(),
	}
	for k, v := range w.counters.inbound {
		d.Inbound[string(k)] = v
	}
	for k, v := range w.counters.outbound {
		d.Outbound[string(k)] = v
	}
	for k, v := range w.counters.dropped {
		d.Dropped[k] = v
	}
	return d
}

// HandleInbound routes one raw message from the sandbox. The marker is
// checked first; anything that is not a well-formed sandbox-to-host
// envelope is counted and dropped, and the returned error wraps ErrDropped.
func (w *Workspace) HandleInbound(raw []byte) error {
	msg, err := protocol.Decode(raw)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return w.dropLocked(DropClosed, "")
	}
	if err != nil {
		return w.dropLocked(dropReason(err), "")
	}
	return w.routeLocked(msg)
}

func (w *Workspace) routeLocked(msg protocol.Message) error {
	switch m := msg.(type) {
	case protocol.Console:
		w.countInbound(m)
		w.appendLog(console.TypeForLevel(m.Level), console.FormatArgs(m.Args))
	case protocol.Callback:
		w.countInbound(m)
		w.appendLog(console.TypeCallback, console.FormatCallback(m.Name, m.Data))
	case protocol.EditedHTML:
		if w.rec.Entry == "" {
			return w.dropLocked(DropNoEntry, m.Kind())
		}
		w.countInbound(m)
		w.applyEditsLocked(m.HTML)
	case protocol.Send, protocol.Invoke, protocol.ToggleEdit, protocol.ExportHTML:
		return w.dropLocked(DropWrongDirection, m.Kind())
	default:
		return w.dropLocked(DropUnknownKind, m.Kind())
	}
	return nil
}

// applyEditsLocked writes an exported document back to the entry file and
// rebuilds. Only the entry is touched.
func (w *Workspace) applyEditsLocked(edited string) {
	restored, ok := w.rewriter.Restore(edited, w.originals)
	if !ok {
		w.logger.Warn("Edited document could not be parsed, storing it as received")
	}
	if !w.store.SetContent(w.rec.Entry, []byte(restored)) {
		w.appendLog(console.TypeError, "Entry "+w.rec.Entry+" no longer exists, edits discarded")
		return
	}
	w.appendLog(console.TypeInfo, "Applied edits from Edit Mode to "+path.Base(w.rec.Entry))
	if err := w.rebuildLocked(); err != nil {
		w.appendLog(console.TypeError, "Rebuild failed: "+err.Error())
	}
}

func (w *Workspace) countInbound(msg protocol.Message) {
	w.counters.inbound[msg.Kind()]++
	if w.metrics != nil {
		w.metrics.RecordProtocolMessage(string(protocol.FromSandbox), string(msg.Kind()))
	}
}

func (w *Workspace) dropLocked(reason string, kind protocol.Kind) error {
	w.counters.dropped[reason]++
	if w.metrics != nil {
		w.metrics.RecordProtocolDrop(reason)
	}
	w.logger.Debug("Inbound message dropped", zap.String("reason", reason), zap.String("kind", string(kind)))
	if kind != "" {
		return fmt.Errorf("%w: %s (%s)", ErrDropped, reason, kind)
	}
	return fmt.Errorf("%w: %s", ErrDropped, reason)
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, protocol.ErrUnknownKind):
		return DropUnknownKind
	case errors.Is(err, protocol.ErrMalformed):
		return DropMalformed
	default:
		return DropUnmarked
	}
}
