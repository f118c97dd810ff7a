package console

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/microcosm-cc/bluemonday"
)

// TypeForLevel maps a console level to an entry type. Unknown levels are
// kept as TypeOther.
func TypeForLevel(level string) EntryType {
	switch EntryType(level) {
	case TypeLog, TypeInfo, TypeWarn, TypeError:
		return EntryType(level)
	default:
		return TypeOther
	}
}

// FormatArgs renders console arguments the way the browser console would
// print them in one line: strings as-is, objects and arrays as compact
// JSON, other primitives by their literal text, joined by spaces.
func FormatArgs(args []json.RawMessage) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, formatValue(a))
	}
	return strings.Join(parts, " ")
}

// FormatCallback renders a callback response as "name: <json>".
func FormatCallback(name string, data json.RawMessage) string {
	return fmt.Sprintf("%s: %s", name, CompactJSON(data))
}

func formatValue(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "undefined"
	}
	if raw[0] == '"' {
		var s string
		if err := sonic.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return CompactJSON(raw)
}

// CompactJSON renders raw without insignificant whitespace. It keeps key
// order, which a decode and re-encode would not. Empty input is "undefined".
func CompactJSON(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "undefined"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

var stripMarkup = bluemonday.StrictPolicy()

// RenderText renders entries one per line for terminals and plain text
// downloads.
func RenderText(entries []Entry) string {
	var sb strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&sb, "%s [%s] %s\n", e.Timestamp.Format("15:04:05.000"), e.Type, e.Message)
	}
	return sb.String()
}

// RenderHTML renders entries as list items safe to embed in the host page.
// Guest supplied markup in messages is stripped, never interpreted.
func RenderHTML(entries []Entry) string {
	var sb strings.Builder
	sb.WriteString("<ul class=\"nui-log\">\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "<li class=\"nui-log-%s\"><time>%s</time> %s</li>\n",
			e.Type, e.Timestamp.Format("15:04:05.000"), stripMarkup.Sanitize(e.Message))
	}
	sb.WriteString("</ul>\n")
	return sb.String()
}
