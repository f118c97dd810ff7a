/*
Package workspace ties the preview pieces together for one uploaded bundle.

A Workspace owns a virtual file store, the selected entry document, the
live resource generation, the rendered preview, the console log and the
version history. It is the single owner of that state: HTTP handlers and
WebSocket connections only call its methods, which serialize on one mutex.

# Builds

Builds happen only on explicit triggers: Upload, Rebuild, SaveAndUpdate,
Revert with rebuild and an editedHtml message from the sandbox. A build
allocates a handle for every file, rewrites the entry against them and
releases the previous generation.

# Bridge traffic

Host to sandbox messages (send, invoke, toggleEdit, exportHtml) go to every
attached Bridge. Sandbox to host messages arrive through HandleInbound,
which drops and counts anything unmarked, malformed or travelling the
wrong way.

# Usage

	mgr := workspace.NewManager(cfg, logger).WithMetrics(metrics)
	w, _ := mgr.Create(ctx, "hud")
	w.Upload(ctx, records)
	w.Invoke("saveSettings", `{"volume":3}`)
*/
package workspace
