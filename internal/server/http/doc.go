// Package httpserver is the REST gateway for the segmented log and the
// key-value store. Routes live under /v1; byte fields are base64 in JSON and
// key-value path keys are base64url.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{Config: config.Default()})
//	s := httpserver.New(rt, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":7070")
package httpserver
