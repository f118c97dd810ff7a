package shim

import (
	_ "embed"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/nuitester/internal/domain/protocol"
)

//go:embed prelude.js
var preludeSource string

// DefaultTimeout bounds every script run inside a harness.
const DefaultTimeout = 2 * time.Second

// NativeLine is one call that reached the guest's own console.
type NativeLine struct {
	Level   string
	Message string
}

// HarnessConfig configures a Harness.
type HarnessConfig struct {
	Timeout time.Duration
	// Document is what document.documentElement.outerHTML returns.
	Document string
}

// Harness runs the shim in a goja VM against a minimal window and document
// stub. Envelopes the shim posts to its parent are decoded and buffered.
type Harness struct {
	vm      *goja.Runtime
	timeout time.Duration

	mu       sync.Mutex
	outbox   []protocol.Message
	rejected int
	native   []NativeLine
	document string
}

// NewHarness boots the prelude and then source.
func NewHarness(source string, cfg HarnessConfig) (*Harness, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	h := &Harness{
		vm:       goja.New(),
		timeout:  cfg.Timeout,
		document: cfg.Document,
	}
	h.vm.SetMaxCallStackSize(1024)

	h.vm.Set("require", goja.Undefined())
	h.vm.Set("process", goja.Undefined())
	h.vm.Set("__hostPost", h.receive)
	h.vm.Set("__hostConsole", h.nativeConsole)
	h.vm.Set("__documentHTML", h.documentHTML)

	if _, err := h.run(preludeSource); err != nil {
		return nil, fmt.Errorf("harness prelude: %w", err)
	}
	if _, err := h.run(source); err != nil {
		return nil, fmt.Errorf("shim boot: %w", err)
	}
	return h, nil
}

// Eval runs script in the shim's global scope.
func (h *Harness) Eval(script string) (goja.Value, error) {
	return h.run(script)
}

// Deliver posts an encoded envelope to the window, as the host would.
func (h *Harness) Deliver(msg protocol.Message) error {
	raw, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return h.DeliverRaw(string(raw))
}

// DeliverRaw posts arbitrary JSON to the window.
func (h *Harness) DeliverRaw(raw string) error {
	h.vm.Set("__inbound", raw)
	_, err := h.run(`window.dispatchEvent(new MessageEvent('message', { data: JSON.parse(__inbound) }))`)
	return err
}

// Drain returns and clears the envelopes posted so far.
func (h *Harness) Drain() []protocol.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.outbox
	h.outbox = nil
	return out
}

// Rejected counts posted messages that failed to decode.
func (h *Harness) Rejected() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rejected
}

// Native returns the lines that reached the original console.
func (h *Harness) Native() []NativeLine {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]NativeLine(nil), h.native...)
}

// SetDocument changes what the document serializes to.
func (h *Harness) SetDocument(html string) {
	h.mu.Lock()
	h.document = html
	h.mu.Unlock()
}

// Close interrupts any running script.
func (h *Harness) Close() {
	h.vm.Interrupt("harness closed")
}

func (h *Harness) run(script string) (goja.Value, error) {
	timer := time.AfterFunc(h.timeout, func() {
		h.vm.Interrupt("execution timeout exceeded")
	})
	defer timer.Stop()

	v, err := h.vm.RunString(script)
	h.vm.ClearInterrupt()
	return v, err
}

func (h *Harness) receive(raw string) {
	msg, err := protocol.Decode([]byte(raw))

	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.rejected++
		return
	}
	h.outbox = append(h.outbox, msg)
}

func (h *Harness) nativeConsole(level, message string) {
	h.mu.Lock()
	h.native = append(h.native, NativeLine{Level: level, Message: message})
	h.mu.Unlock()
}

func (h *Harness) documentHTML() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.document
}
