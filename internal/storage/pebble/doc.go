// Package pebblestore wraps Pebble as a shared, reference-counted engine
// handle with three open modes, per-profile tuning, an fsync policy and
// minimal metrics hooks.
//
// Read-only and secondary handles never take the primary directory's lock:
// they open a private mirror of the primary's files, and a secondary
// refreshes its mirror on CatchUp.
//
// Usage:
//
//	db, err := pebblestore.Open(pebblestore.Options{
//	    Path:  "./data/log",
//	    Fsync: pebblestore.FsyncModeInterval,
//	})
//	if err != nil { /* handle */ }
//	defer db.Release()
//
//	b, _ := db.NewBatch()
//	_ = b.Set([]byte("k"), []byte("v"), nil)
//	_ = db.CommitBatch(context.Background(), b)
//	b.Close()
package pebblestore
