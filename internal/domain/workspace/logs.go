package workspace

import "github.com/GriffinCanCode/nuitester/internal/domain/console"

// Logs returns the retained console entries, oldest first.
func (w *Workspace) Logs() []console.Entry {
	return w.log.Entries()
}

// LogsSince returns entries with a sequence number above seq.
func (w *Workspace) LogsSince(seq uint64) []console.Entry {
	return w.log.Since(seq)
}

// ClearLogs empties the console.
func (w *Workspace) ClearLogs() {
	w.log.Clear()
}

// SubscribeLogs streams entries appended from now on. The channel closes
// when the workspace does.
func (w *Workspace) SubscribeLogs(buffer int) (<-chan console.Entry, func()) {
	return w.log.Subscribe(buffer)
}
