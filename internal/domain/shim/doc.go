// Package shim holds the bridge script injected into every preview.
//
// The script emulates the host runtime's callback API inside the sandbox,
// forwards console output and implements edit mode. It is rendered per
// workspace and can be exercised without a browser through Harness, which
// runs it in goja against a small DOM stub.
package shim
