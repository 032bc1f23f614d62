// Package kvstore is an ordered key-value store with caller-supplied keys on
// top of a shared Pebble handle.
//
// The store can be opened as the primary writer, as a read-only view, or as a
// secondary replica that follows a primary through CatchUp. Scans return
// paginated cursors that hold their own engine reference, so closing the
// store does not invalidate cursors already handed out.
package kvstore
