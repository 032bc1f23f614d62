package transports

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	grpcserver "github.com/rzbill/seglog/internal/server/grpc"
)

// GRPC talks to a running seglog server.
type GRPC struct {
	conn *grpc.ClientConn
	cli  *grpcserver.LogClient
}

// DialGRPC connects to addr with insecure transport for local/dev use.
func DialGRPC(addr string, opts ...grpc.DialOption) (*GRPC, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &GRPC{conn: conn, cli: grpcserver.NewLogClient(conn)}, nil
}

func (g *GRPC) Append(ctx context.Context, values [][]byte) ([]int64, error) {
	res, err := g.cli.Append(ctx, values)
	if err != nil {
		return nil, err
	}
	return res.Seqs, nil
}

func (g *GRPC) Put(ctx context.Context, id int64, value []byte) error {
	return g.cli.Put(ctx, id, value)
}

func (g *GRPC) Get(ctx context.Context, id int64) ([]byte, error) {
	return g.cli.Get(ctx, id)
}

func (g *GRPC) ReadLast(ctx context.Context, count int) ([]Entry, error) {
	res, err := g.cli.ReadLast(ctx, count)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(res.Entries))
	for i, e := range res.Entries {
		out[i] = Entry{Seq: e.Seq, Value: e.Value}
	}
	return out, nil
}

func (g *GRPC) LastKey(ctx context.Context) (int64, bool, error) {
	res, err := g.cli.LastKey(ctx)
	if err != nil {
		return 0, false, err
	}
	return res.Seq, res.Found, nil
}

func (g *GRPC) Scan(ctx context.Context, req ScanRequest, onEntry func(Entry) error) error {
	return g.cli.Scan(ctx, &grpcserver.ScanRequest{
		Start:     req.Start,
		Reverse:   req.Reverse,
		BatchSize: req.BatchSize,
		Limit:     req.Limit,
		Filter:    req.Filter,
	}, func(e grpcserver.Entry) error {
		return onEntry(Entry{Seq: e.Seq, Value: e.Value})
	})
}

func (g *GRPC) Truncate(ctx context.Context, before int64) error {
	return g.cli.Truncate(ctx, before)
}

func (g *GRPC) Trim(ctx context.Context, keep *int, maxBytes *int64) (int64, error) {
	return g.cli.Trim(ctx, keep, maxBytes)
}

func (g *GRPC) CatchUp(ctx context.Context) (int64, error) {
	res, err := g.cli.CatchUp(ctx)
	if err != nil {
		return 0, err
	}
	return res.NextSeq, nil
}

func (g *GRPC) Close() error { return g.conn.Close() }
