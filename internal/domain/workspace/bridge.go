package workspace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nuitester/internal/domain/console"
	"github.com/GriffinCanCode/nuitester/internal/domain/protocol"
	"github.com/GriffinCanCode/nuitester/internal/shared/utils"
)

// Bridge delivers host messages to one connected sandbox.
type Bridge interface {
	Deliver(msg protocol.Message) error
}

// AttachBridge registers a sandbox connection. The returned function
// detaches it.
func (w *Workspace) AttachBridge(b Bridge) (detach func()) {
	w.bridgeMu.Lock()
	key := w.nextBridge
	w.nextBridge++
	w.bridges[key] = b
	w.bridgeMu.Unlock()

	return func() {
		w.bridgeMu.Lock()
		delete(w.bridges, key)
		w.bridgeMu.Unlock()
	}
}

func (w *Workspace) bridgeCount() int {
	w.bridgeMu.Lock()
	defer w.bridgeMu.Unlock()
	return len(w.bridges)
}

// deliver sends msg to every attached sandbox and returns how many took it.
// Sandboxes come and go with page reloads, so having none is not an error.
func (w *Workspace) deliver(msg protocol.Message) int {
	w.bridgeMu.Lock()
	targets := make([]Bridge, 0, len(w.bridges))
	for _, b := range w.bridges {
		targets = append(targets, b)
	}
	w.bridgeMu.Unlock()

	delivered := 0
	for _, b := range targets {
		if err := b.Deliver(msg); err != nil {
			w.logger.Debug("Bridge delivery failed", zap.String("kind", string(msg.Kind())), zap.Error(err))
			continue
		}
		delivered++
	}

	w.mu.Lock()
	w.counters.outbound[msg.Kind()]++
	w.mu.Unlock()
	if w.metrics != nil {
		w.metrics.RecordProtocolMessage(string(protocol.ToSandbox), string(msg.Kind()))
	}
	return delivered
}

// SendMessage forwards payload verbatim to the sandbox, where it arrives as
// a message event. Invalid JSON is logged and nothing is sent.
func (w *Workspace) SendMessage(payload string) (int, error) {
	raw, err := parseJSON(payload)
	if err != nil {
		w.logInput(console.TypeError, "Invalid JSON: "+err.Error())
		return 0, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if err := w.checkOpen(); err != nil {
		return 0, err
	}

	w.logInput(console.TypeOut, "SendNUIMessage "+payload)
	return w.deliver(protocol.Send{Payload: raw}), nil
}

// Invoke triggers the callback registered under name in the sandbox. The
// name is passed through as given. Empty data means an empty object.
func (w *Workspace) Invoke(name, data string) (int, error) {
	if name == "" {
		w.logInput(console.TypeError, "Invoke requires a callback name")
		return 0, fmt.Errorf("%w: callback name is required", ErrInvalidInput)
	}
	if err := utils.ValidateCallbackName(name); err != nil {
		w.logInput(console.TypeError, "Invalid callback name: "+err.Error())
		return 0, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if strings.TrimSpace(data) == "" {
		data = "{}"
	}
	raw, err := parseJSON(data)
	if err != nil {
		w.logInput(console.TypeError, "Invalid JSON: "+err.Error())
		return 0, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if err := w.checkOpen(); err != nil {
		return 0, err
	}

	w.logInput(console.TypeOut, fmt.Sprintf("Invoke NUI callback %s with %s", name, console.CompactJSON(raw)))
	return w.deliver(protocol.Invoke{Name: name, Data: raw}), nil
}

// ToggleEdit switches edit mode in the sandbox.
func (w *Workspace) ToggleEdit(enabled bool) (int, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return 0, ErrClosed
	}
	w.editMode = enabled
	w.mu.Unlock()

	return w.deliver(protocol.ToggleEdit{Enabled: enabled}), nil
}

// RequestExport asks the sandbox to send back its current document, which
// then arrives as editedHtml.
func (w *Workspace) RequestExport() (int, error) {
	if err := w.checkOpen(); err != nil {
		return 0, err
	}
	return w.deliver(protocol.ExportHTML{}), nil
}

func (w *Workspace) checkOpen() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return nil
}

func (w *Workspace) logInput(t console.EntryType, message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.appendLog(t, message)
}

// parseJSON validates s and returns it as a raw message, untouched.
func parseJSON(s string) (json.RawMessage, error) {
	var v any
	if err := sonic.ConfigStd.UnmarshalFromString(s, &v); err != nil {
		return nil, err
	}
	return json.RawMessage(bytes.TrimSpace([]byte(s))), nil
}
