package shim

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/nuitester/internal/domain/protocol"
)

func newHarness(t *testing.T) *Harness {
	t.Helper()
	src, err := Render(Options{})
	require.NoError(t, err)
	h, err := NewHarness(src, HarnessConfig{Timeout: time.Second})
	require.NoError(t, err)
	t.Cleanup(h.Close)
	h.Drain()
	return h
}

func consoles(msgs []protocol.Message) []protocol.Console {
	var out []protocol.Console
	for _, m := range msgs {
		if c, ok := m.(protocol.Console); ok {
			out = append(out, c)
		}
	}
	return out
}

func callbacks(msgs []protocol.Message) []protocol.Callback {
	var out []protocol.Callback
	for _, m := range msgs {
		if c, ok := m.(protocol.Callback); ok {
			out = append(out, c)
		}
	}
	return out
}

func TestRender(t *testing.T) {
	out, err := Render(Options{ResourceName: "my-hud", BridgeURL: "/workspaces/ws_1/bridge"})
	require.NoError(t, err)

	assert.NotContains(t, out, "__NUI_RESOURCE_NAME__")
	assert.NotContains(t, out, "__NUI_BRIDGE_URL__")
	assert.Contains(t, out, `var RESOURCE_NAME = "my-hud";`)
	assert.Contains(t, out, `var BRIDGE_URL = "/workspaces/ws_1/bridge";`)
	assert.NotContains(t, strings.ToLower(Source()), "</script")
}

func TestRenderEscapesValues(t *testing.T) {
	out, err := Render(Options{ResourceName: `x</script><script>alert(1)</script>`})
	require.NoError(t, err)
	assert.NotContains(t, strings.ToLower(out), "</script")
}

func TestRenderDefaultsResourceName(t *testing.T) {
	out, err := Render(Options{})
	require.NoError(t, err)
	assert.Contains(t, out, `"nui-tester"`)
}

func TestBootLogsThroughBridgeAndConsole(t *testing.T) {
	src, err := Render(Options{})
	require.NoError(t, err)
	h, err := NewHarness(src, HarnessConfig{})
	require.NoError(t, err)
	defer h.Close()

	cs := consoles(h.Drain())
	require.Len(t, cs, 1)
	assert.Equal(t, "info", cs[0].Level)
	assert.Equal(t, `"`+BootMessage+`"`, string(cs[0].Args[0]))

	native := h.Native()
	require.Len(t, native, 1)
	assert.Equal(t, NativeLine{Level: "info", Message: BootMessage}, native[0])
}

func TestConsoleInterception(t *testing.T) {
	h := newHarness(t)

	_, err := h.Eval(`console.warn('count', 3, { a: [1, 2] }, undefined, null, true)`)
	require.NoError(t, err)

	cs := consoles(h.Drain())
	require.Len(t, cs, 1)
	assert.Equal(t, "warn", cs[0].Level)
	var args []string
	for _, a := range cs[0].Args {
		args = append(args, string(a))
	}
	assert.Equal(t, []string{`"count"`, `3`, `{"a":[1,2]}`, `"undefined"`, `null`, `true`}, args)

	native := h.Native()
	assert.Equal(t, "warn", native[len(native)-1].Level, "original console still runs")
}

func TestConsoleHandlesUnserializableArgs(t *testing.T) {
	h := newHarness(t)

	_, err := h.Eval(`var o = {}; o.self = o; console.error(o, new Error('boom'), function named() {})`)
	require.NoError(t, err)

	cs := consoles(h.Drain())
	require.Len(t, cs, 1)
	require.Len(t, cs[0].Args, 3)
	assert.Equal(t, `"[object Object]"`, string(cs[0].Args[0]))
	assert.Equal(t, `"Error: boom"`, string(cs[0].Args[1]))
}

func TestGetParentResourceName(t *testing.T) {
	src, err := Render(Options{ResourceName: "hud"})
	require.NoError(t, err)
	h, err := NewHarness(src, HarnessConfig{})
	require.NoError(t, err)
	defer h.Close()

	v, err := h.Eval(`GetParentResourceName()`)
	require.NoError(t, err)
	assert.Equal(t, "hud", v.String())
}

func TestInvokeRegisteredCallback(t *testing.T) {
	h := newHarness(t)

	_, err := h.Eval(`RegisterNUICallback('save', function (data, cb) { cb({ saved: data.value }); })`)
	require.NoError(t, err)
	require.NoError(t, h.Deliver(protocol.Invoke{Name: "save", Data: json.RawMessage(`{"value":7}`)}))

	msgs := h.Drain()
	cbs := callbacks(msgs)
	require.Len(t, cbs, 1)
	assert.Equal(t, "save", cbs[0].Name)
	assert.JSONEq(t, `{"saved":7}`, string(cbs[0].Data))
	assert.Empty(t, consoles(msgs))
}

func TestInvokeUnregisteredCallbackWarnsOnce(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.Deliver(protocol.Invoke{Name: "neverRegistered", Data: json.RawMessage(`{}`)}))

	msgs := h.Drain()
	cs := consoles(msgs)
	require.Len(t, cs, 1)
	assert.Equal(t, "warn", cs[0].Level)
	assert.Equal(t, `"No NUI callback registered for neverRegistered"`, string(cs[0].Args[0]))
	assert.Empty(t, callbacks(msgs))
}

func TestInvokeThrowingCallbackReportsError(t *testing.T) {
	h := newHarness(t)

	_, err := h.Eval(`RegisterNUICallback('bad', function () { throw new Error('nope'); })`)
	require.NoError(t, err)
	require.NoError(t, h.Deliver(protocol.Invoke{Name: "bad"}))

	cs := consoles(h.Drain())
	require.Len(t, cs, 1)
	assert.Equal(t, "error", cs[0].Level)
	assert.Contains(t, string(cs[0].Args[0]), "nope")
}

func TestCallbackWithoutResponseData(t *testing.T) {
	h := newHarness(t)

	_, err := h.Eval(`RegisterNUICallback('close', function (data, cb) { cb(); })`)
	require.NoError(t, err)
	require.NoError(t, h.Deliver(protocol.Invoke{Name: "close"}))

	cbs := callbacks(h.Drain())
	require.Len(t, cbs, 1)
	assert.Empty(t, cbs[0].Data)
}

func TestSendRedispatchesPayload(t *testing.T) {
	h := newHarness(t)

	_, err := h.Eval(`var got = []; window.addEventListener('message', function (e) { if (!e.data.__nuiTester) got.push(e.data); })`)
	require.NoError(t, err)
	require.NoError(t, h.Deliver(protocol.Send{Payload: json.RawMessage(`{"action":"open","value":1}`)}))

	v, err := h.Eval(`JSON.stringify(got)`)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"action":"open","value":1}]`, v.String())
}

func TestUnmarkedMessagesIgnored(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.DeliverRaw(`{"kind":"invoke","payload":{"name":"x"}}`))
	require.NoError(t, h.DeliverRaw(`{"__nuiTester":"true","kind":"invoke","payload":{"name":"x"}}`))
	assert.Empty(t, h.Drain())
}

func TestEditMode(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.Deliver(protocol.ToggleEdit{Enabled: true}))
	v, err := h.Eval(`__docListenerCount('mousedown') + ',' + document.body.style.cursor`)
	require.NoError(t, err)
	assert.Equal(t, "1,move", v.String())

	_, err = h.Eval(`
		var el = document.createElement('div');
		el.rect = { left: 5, top: 6, width: 100, height: 50 };
		__pointer('mousedown', el, 10, 10);
		__pointer('mousemove', el, 25, 30);
		__pointer('mousemove', el, 30, 30);
		__pointer('mouseup', el, 30, 30);
		__pointer('mousemove', el, 90, 90);
	`)
	require.NoError(t, err)

	v, err = h.Eval(`[el.style.position, el.style.left, el.style.top].join(' ')`)
	require.NoError(t, err)
	assert.Equal(t, "relative 20px 20px", v.String())

	v, err = h.Eval(`var o = document.body.children[0]; [o.getAttribute('data-nui-overlay'), o.style.display, o.style.left, o.style.width].join('|')`)
	require.NoError(t, err)
	assert.Equal(t, "|block|5px|100px", v.String(), "outline stays on the last selection after mouseup")

	require.NoError(t, h.Deliver(protocol.ToggleEdit{Enabled: false}))
	v, err = h.Eval(`__docListenerCount('mousedown') + ',' + document.body.children[0].style.display`)
	require.NoError(t, err)
	assert.Equal(t, "0,none", v.String())
}

func TestEditModeIgnoresPointerWhenDisabled(t *testing.T) {
	h := newHarness(t)

	_, err := h.Eval(`
		var el = document.createElement('div');
		__pointer('mousedown', el, 0, 0);
		__pointer('mousemove', el, 50, 50);
	`)
	require.NoError(t, err)
	v, err := h.Eval(`el.style.left === undefined`)
	require.NoError(t, err)
	assert.True(t, v.ToBoolean())
}

func TestExportHTML(t *testing.T) {
	h := newHarness(t)
	h.SetDocument(`<html><body><p style="left: 3px">x</p></body></html>`)

	require.NoError(t, h.Deliver(protocol.ExportHTML{}))

	msgs := h.Drain()
	require.Len(t, msgs, 1)
	edited, ok := msgs[0].(protocol.EditedHTML)
	require.True(t, ok)
	assert.Equal(t, `<html><body><p style="left: 3px">x</p></body></html>`, edited.HTML)
}

func TestHarnessTimeout(t *testing.T) {
	src, err := Render(Options{})
	require.NoError(t, err)
	h, err := NewHarness(src, HarnessConfig{Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Eval(`for (;;) {}`)
	require.Error(t, err)

	v, err := h.Eval(`1 + 1`)
	require.NoError(t, err, "the harness stays usable after an interrupt")
	assert.Equal(t, int64(2), v.ToInteger())
}

func TestSelfTest(t *testing.T) {
	require.NoError(t, SelfTest(context.Background(), Options{ResourceName: "hud"}, time.Second))
}

func TestSelfTestHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SelfTest(ctx, Options{}, time.Second), context.Canceled)
}
