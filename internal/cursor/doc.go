// Package cursor implements the resumable, batched scan shared by the
// segmented log and the key-value store.
//
// A cursor reads at most one page of pairs per engine round trip and keeps
// no iterator open between pages: each load opens a fresh iterator, copies up
// to BatchSize pairs out, peeks one pair further to learn where the next page
// starts, and closes the iterator again. Pages therefore never pin engine
// state across calls, and a cursor survives its owner's Close because it
// holds its own reference on the engine.
//
//	c, _ := cursor.New(src, cursor.Options{BatchSize: 100})
//	defer c.Close()
//	for rec, ok := c.Next(); ok; rec, ok = c.Next() {
//	    _ = rec
//	}
package cursor
