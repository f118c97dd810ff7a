// Package version keeps immutable snapshots of a workspace and moves them in
// and out of archives.
//
// Snapshot ids start at 1 and are always one above the highest id seen, so
// reverting to an old version and saving again never reuses an id.
package version
