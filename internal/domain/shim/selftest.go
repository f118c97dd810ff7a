package shim

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/nuitester/internal/domain/protocol"
)

// BootMessage is logged by the shim once it is installed.
const BootMessage = "[NUI Tester] Bridge initialized"

// SelfTest boots the rendered shim in a harness and checks the emulated
// API end to end: boot log, resource name, a registered callback round
// trip and the warning for an unregistered one.
func SelfTest(ctx context.Context, opts Options, timeout time.Duration) error {
	src, err := Render(opts)
	if err != nil {
		return err
	}
	h, err := NewHarness(src, HarnessConfig{Timeout: timeout})
	if err != nil {
		return err
	}
	defer h.Close()

	if err := expectConsole(h.Drain(), "info", BootMessage); err != nil {
		return fmt.Errorf("boot: %w", err)
	}

	want := opts.ResourceName
	if want == "" {
		want = DefaultResourceName
	}
	v, err := h.Eval(`GetParentResourceName()`)
	if err != nil {
		return fmt.Errorf("GetParentResourceName: %w", err)
	}
	if got := v.String(); got != want {
		return fmt.Errorf("GetParentResourceName returned %q, want %q", got, want)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := h.Eval(`RegisterNUICallback('__selftest', function (data, cb) { cb({ echo: data }); })`); err != nil {
		return fmt.Errorf("RegisterNUICallback: %w", err)
	}
	if err := h.Deliver(protocol.Invoke{Name: "__selftest", Data: json.RawMessage(`{"n":1}`)}); err != nil {
		return fmt.Errorf("invoke: %w", err)
	}
	msgs := h.Drain()
	if len(msgs) != 1 {
		return fmt.Errorf("invoke produced %d messages, want 1", len(msgs))
	}
	cb, ok := msgs[0].(protocol.Callback)
	if !ok || cb.Name != "__selftest" || string(cb.Data) != `{"echo":{"n":1}}` {
		return fmt.Errorf("unexpected callback response %#v", msgs[0])
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := h.Deliver(protocol.Invoke{Name: "__missing"}); err != nil {
		return fmt.Errorf("invoke missing: %w", err)
	}
	if err := expectConsole(h.Drain(), "warn", "No NUI callback registered for __missing"); err != nil {
		return fmt.Errorf("unregistered callback: %w", err)
	}
	return nil
}

func expectConsole(msgs []protocol.Message, level, text string) error {
	for _, m := range msgs {
		c, ok := m.(protocol.Console)
		if !ok || c.Level != level || len(c.Args) == 0 {
			continue
		}
		if strings.Contains(string(c.Args[0]), text) {
			return nil
		}
	}
	return fmt.Errorf("no %s console message containing %q among %d messages", level, text, len(msgs))
}
