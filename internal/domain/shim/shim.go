package shim

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
)

//go:embed bridge.js
var bridgeSource string

// DefaultResourceName is what GetParentResourceName returns by default.
const DefaultResourceName = "nui-tester"

// ErrUnsafeSource is returned when the rendered shim could terminate the
// script element it is embedded in.
var ErrUnsafeSource = errors.New("shim source contains a closing script tag")

var closingScript = regexp.MustCompile(`(?i)</script`)

// Options parameterize the shim for one workspace.
type Options struct {
	// ResourceName is returned by the emulated GetParentResourceName.
	ResourceName string
	// BridgeURL is the WebSocket endpoint of the workspace. Empty means the
	// shim talks to its parent window with postMessage only.
	BridgeURL string
}

// Source returns the unrendered template.
func Source() string {
	return bridgeSource
}

// Render fills the template. Values are embedded as JSON string literals
// with HTML escaping, so they cannot break out of the script element.
func Render(opts Options) (string, error) {
	if opts.ResourceName == "" {
		opts.ResourceName = DefaultResourceName
	}
	name, err := sonic.ConfigStd.MarshalToString(opts.ResourceName)
	if err != nil {
		return "", fmt.Errorf("encode resource name: %w", err)
	}
	bridge, err := sonic.ConfigStd.MarshalToString(opts.BridgeURL)
	if err != nil {
		return "", fmt.Errorf("encode bridge url: %w", err)
	}

	out := strings.NewReplacer(
		"__NUI_RESOURCE_NAME__", name,
		"__NUI_BRIDGE_URL__", bridge,
	).Replace(bridgeSource)

	if closingScript.MatchString(out) {
		return "", ErrUnsafeSource
	}
	return out, nil
}

// MustRender is Render for options known to be valid.
func MustRender(opts Options) string {
	out, err := Render(opts)
	if err != nil {
		panic(err)
	}
	return out
}
