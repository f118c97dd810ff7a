package protocol

import (
	"encoding/json"
)

// Marker is the envelope field that separates tester traffic from any
// other postMessage or socket traffic the guest produces.
const Marker = "__nuiTester"

// Kind names an envelope variant.
type Kind string

const (
	KindConsole    Kind = "console"
	KindCallback   Kind = "callback"
	KindEditedHTML Kind = "editedHtml"
	KindSend       Kind = "send"
	KindInvoke     Kind = "invoke"
	KindToggleEdit Kind = "toggleEdit"
	KindExportHTML Kind = "exportHtml"
)

// Direction tells which side of the bridge may originate a kind.
type Direction string

const (
	FromSandbox Direction = "inbound"
	ToSandbox   Direction = "outbound"
)

// Message is the closed set of envelope payloads. Only types in this
// package implement it.
type Message interface {
	Kind() Kind
	Direction() Direction
	sealed()
}

// Console carries one intercepted console call.
type Console struct {
	Level string            `json:"level"`
	Args  []json.RawMessage `json:"args"`
}

// Callback carries the response a guest callback produced.
type Callback struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EditedHTML carries the serialized document after edit mode.
type EditedHTML struct {
	HTML string `json:"html"`
}

// Send is an unsolicited host push. Payload is any JSON value.
type Send struct {
	Payload json.RawMessage
}

// Invoke asks the shim to run a registered NUI callback.
type Invoke struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ToggleEdit switches edit mode.
type ToggleEdit struct {
	Enabled bool `json:"enabled"`
}

// ExportHTML asks the shim to send its current document back.
type ExportHTML struct{}

func (Console) Kind() Kind    { return KindConsole }
func (Callback) Kind() Kind   { return KindCallback }
func (EditedHTML) Kind() Kind { return KindEditedHTML }
func (Send) Kind() Kind       { return KindSend }
func (Invoke) Kind() Kind     { return KindInvoke }
func (ToggleEdit) Kind() Kind { return KindToggleEdit }
func (ExportHTML) Kind() Kind { return KindExportHTML }

func (Console) Direction() Direction    { return FromSandbox }
func (Callback) Direction() Direction   { return FromSandbox }
func (EditedHTML) Direction() Direction { return FromSandbox }
func (Send) Direction() Direction       { return ToSandbox }
func (Invoke) Direction() Direction     { return ToSandbox }
func (ToggleEdit) Direction() Direction { return ToSandbox }
func (ExportHTML) Direction() Direction { return ToSandbox }

func (Console) sealed()    {}
func (Callback) sealed()   {}
func (EditedHTML) sealed() {}
func (Send) sealed()       {}
func (Invoke) sealed()     {}
func (ToggleEdit) sealed() {}
func (ExportHTML) sealed() {}

// Kinds lists every known kind.
func Kinds() []Kind {
	return []Kind{KindConsole, KindCallback, KindEditedHTML, KindSend, KindInvoke, KindToggleEdit, KindExportHTML}
}
