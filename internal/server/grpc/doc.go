// Package grpcserver exposes the segmented log over gRPC as seglog.v1.Log.
// Messages are plain Go structs carried by a JSON codec registered under the
// "json" content-subtype; LogClient selects it on every call.
//
// Example:
//
//	s := grpcserver.New(rt, logger)
//	go s.ListenAndServe(ctx, ":7071")
//
//	conn, _ := grpc.NewClient("localhost:7071", grpc.WithTransportCredentials(insecure.NewCredentials()))
//	c := grpcserver.NewLogClient(conn)
//	res, _ := c.Append(ctx, [][]byte{[]byte("hello")})
package grpcserver
