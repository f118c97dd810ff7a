package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

var (
	// ErrUnmarked means the data is not tester traffic at all.
	ErrUnmarked = errors.New("message is not marked as tester traffic")
	// ErrMalformed means the envelope is marked but its payload does not
	// fit its kind.
	ErrMalformed = errors.New("malformed envelope")
	// ErrUnknownKind means the envelope names a kind this build does not know.
	ErrUnknownKind = errors.New("unknown envelope kind")
)

var api = sonic.ConfigStd

type envelope struct {
	Marker  bool            `json:"__nuiTester"`
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode wraps msg in a marked envelope.
func Encode(msg Message) ([]byte, error) {
	var (
		payload []byte
		err     error
	)
	switch m := msg.(type) {
	case Send:
		payload = m.Payload
		if len(bytes.TrimSpace(payload)) == 0 {
			payload = []byte("null")
		}
	case ExportHTML:
		payload = nil
	default:
		payload, err = api.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", msg.Kind(), err)
		}
	}
	return api.Marshal(envelope{Marker: true, Kind: msg.Kind(), Payload: payload})
}

// Decode parses one envelope. The marker is checked before anything else:
// data that is not a JSON object, or lacks a true marker, is ErrUnmarked.
func Decode(raw []byte) (Message, error) {
	var fields map[string]json.RawMessage
	if err := api.Unmarshal(raw, &fields); err != nil {
		return nil, ErrUnmarked
	}
	if m, ok := fields[Marker]; !ok || string(bytes.TrimSpace(m)) != "true" {
		return nil, ErrUnmarked
	}

	var kind Kind
	if err := api.Unmarshal(fields["kind"], &kind); err != nil {
		return nil, fmt.Errorf("%w: kind: %v", ErrMalformed, err)
	}
	payload := fields["payload"]

	switch kind {
	case KindConsole:
		var m Console
		if err := decodePayload(payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	case KindCallback:
		var m Callback
		if err := decodePayload(payload, &m); err != nil {
			return nil, err
		}
		if m.Name == "" {
			return nil, fmt.Errorf("%w: callback without name", ErrMalformed)
		}
		return m, nil
	case KindEditedHTML:
		var m struct {
			HTML *string `json:"html"`
		}
		if err := decodePayload(payload, &m); err != nil {
			return nil, err
		}
		if m.HTML == nil {
			return nil, fmt.Errorf("%w: editedHtml without html", ErrMalformed)
		}
		return EditedHTML{HTML: *m.HTML}, nil
	case KindSend:
		if len(payload) == 0 {
			return nil, fmt.Errorf("%w: send without payload", ErrMalformed)
		}
		return Send{Payload: append(json.RawMessage(nil), payload...)}, nil
	case KindInvoke:
		var m Invoke
		if err := decodePayload(payload, &m); err != nil {
			return nil, err
		}
		if m.Name == "" {
			return nil, fmt.Errorf("%w: invoke without name", ErrMalformed)
		}
		return m, nil
	case KindToggleEdit:
		var m ToggleEdit
		if err := decodePayload(payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	case KindExportHTML:
		return ExportHTML{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

func decodePayload(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: missing payload", ErrMalformed)
	}
	if err := api.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// Valid reports whether data is one well-formed JSON value.
func Valid(data []byte) bool {
	return api.Valid(data)
}
