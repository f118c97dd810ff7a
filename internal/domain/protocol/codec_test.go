package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Message
		wantErr error
	}{
		{
			name: "console",
			raw:  `{"__nuiTester":true,"kind":"console","payload":{"level":"warn","args":["a",{"b":1}]}}`,
			want: Console{Level: "warn", Args: []json.RawMessage{json.RawMessage(`"a"`), json.RawMessage(`{"b":1}`)}},
		},
		{
			name: "callback",
			raw:  `{"__nuiTester":true,"kind":"callback","payload":{"name":"close","data":{"ok":true}}}`,
			want: Callback{Name: "close", Data: json.RawMessage(`{"ok":true}`)},
		},
		{
			name: "callback without data",
			raw:  `{"__nuiTester":true,"kind":"callback","payload":{"name":"close"}}`,
			want: Callback{Name: "close"},
		},
		{
			name: "edited html",
			raw:  `{"__nuiTester":true,"kind":"editedHtml","payload":{"html":"<html></html>"}}`,
			want: EditedHTML{HTML: "<html></html>"},
		},
		{
			name: "send keeps payload verbatim",
			raw:  `{"__nuiTester":true,"kind":"send","payload":{"action":"ping","value":1}}`,
			want: Send{Payload: json.RawMessage(`{"action":"ping","value":1}`)},
		},
		{
			name: "invoke",
			raw:  `{"__nuiTester":true,"kind":"invoke","payload":{"name":"save","data":{}}}`,
			want: Invoke{Name: "save", Data: json.RawMessage(`{}`)},
		},
		{
			name: "toggle edit",
			raw:  `{"__nuiTester":true,"kind":"toggleEdit","payload":{"enabled":true}}`,
			want: ToggleEdit{Enabled: true},
		},
		{
			name: "export html",
			raw:  `{"__nuiTester":true,"kind":"exportHtml"}`,
			want: ExportHTML{},
		},
		{name: "not json", raw: `hello`, wantErr: ErrUnmarked},
		{name: "array", raw: `[1,2]`, wantErr: ErrUnmarked},
		{name: "no marker", raw: `{"kind":"console","payload":{}}`, wantErr: ErrUnmarked},
		{name: "false marker", raw: `{"__nuiTester":false,"kind":"console","payload":{}}`, wantErr: ErrUnmarked},
		{name: "string marker", raw: `{"__nuiTester":"yes","kind":"console","payload":{}}`, wantErr: ErrUnmarked},
		{name: "missing kind", raw: `{"__nuiTester":true}`, wantErr: ErrMalformed},
		{name: "unknown kind", raw: `{"__nuiTester":true,"kind":"teleport","payload":{}}`, wantErr: ErrUnknownKind},
		{name: "console bad payload", raw: `{"__nuiTester":true,"kind":"console","payload":"x"}`, wantErr: ErrMalformed},
		{name: "console missing payload", raw: `{"__nuiTester":true,"kind":"console"}`, wantErr: ErrMalformed},
		{name: "callback without name", raw: `{"__nuiTester":true,"kind":"callback","payload":{"data":1}}`, wantErr: ErrMalformed},
		{name: "edited without html", raw: `{"__nuiTester":true,"kind":"editedHtml","payload":{}}`, wantErr: ErrMalformed},
		{name: "send without payload", raw: `{"__nuiTester":true,"kind":"send"}`, wantErr: ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeProducesMarkedEnvelope(t *testing.T) {
	raw, err := Encode(Invoke{Name: "save", Data: json.RawMessage(`{"a":1}`)})
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, true, env[Marker])
	assert.Equal(t, "invoke", env["kind"])
	assert.Equal(t, map[string]any{"name": "save", "data": map[string]any{"a": float64(1)}}, env["payload"])
}

func TestEncodeDecodeHostKinds(t *testing.T) {
	msgs := []Message{
		Send{Payload: json.RawMessage(`[1,"two"]`)},
		Invoke{Name: "close"},
		ToggleEdit{Enabled: true},
		ExportHTML{},
	}
	for _, msg := range msgs {
		t.Run(string(msg.Kind()), func(t *testing.T) {
			assert.Equal(t, ToSandbox, msg.Direction())
			raw, err := Encode(msg)
			require.NoError(t, err)
			got, err := Decode(raw)
			require.NoError(t, err)
			assert.Equal(t, msg, got)
		})
	}
}

func TestDirections(t *testing.T) {
	for _, msg := range []Message{Console{}, Callback{}, EditedHTML{}} {
		assert.Equal(t, FromSandbox, msg.Direction(), msg.Kind())
	}
	assert.Len(t, Kinds(), 7)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid([]byte(`{"action":"ping"}`)))
	assert.True(t, Valid([]byte(`42`)))
	assert.False(t, Valid([]byte(`{action:ping}`)))
	assert.False(t, Valid([]byte(``)))
}
