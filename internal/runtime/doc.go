// Package runtime opens the segmented log and the key-value store described
// by a config.Config and hands them to the servers and CLI.
//
// Example:
//
//	cfg := config.Default()
//	cfg.DataDir = "./data"
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
//	k, _ := rt.Log().Append(context.Background(), []byte("hello"))
package runtime
