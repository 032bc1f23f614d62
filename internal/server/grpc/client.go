package grpcserver

import (
	"context"
	"io"

	"google.golang.org/grpc"
)

// LogClient is a typed client for seglog.v1.Log.
type LogClient struct {
	cc grpc.ClientConnInterface
}

// NewLogClient wraps a connection. Calls select the JSON codec themselves.
func NewLogClient(cc grpc.ClientConnInterface) *LogClient {
	return &LogClient{cc: cc}
}

func (c *LogClient) invoke(ctx context.Context, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...)
}

func (c *LogClient) Health(ctx context.Context, opts ...grpc.CallOption) (*HealthResponse, error) {
	out := new(HealthResponse)
	return out, c.invoke(ctx, "Health", &HealthRequest{}, out, opts...)
}

func (c *LogClient) Append(ctx context.Context, values [][]byte, opts ...grpc.CallOption) (*AppendResponse, error) {
	out := new(AppendResponse)
	return out, c.invoke(ctx, "Append", &AppendRequest{Values: values}, out, opts...)
}

func (c *LogClient) Put(ctx context.Context, id int64, value []byte, opts ...grpc.CallOption) error {
	return c.invoke(ctx, "Put", &PutRequest{Seq: id, Value: value}, &PutResponse{}, opts...)
}

func (c *LogClient) Get(ctx context.Context, id int64, opts ...grpc.CallOption) ([]byte, error) {
	out := new(GetResponse)
	if err := c.invoke(ctx, "Get", &GetRequest{Seq: id}, out, opts...); err != nil {
		return nil, err
	}
	return out.Value, nil
}

func (c *LogClient) ReadLast(ctx context.Context, count int, opts ...grpc.CallOption) (*ReadLastResponse, error) {
	out := new(ReadLastResponse)
	return out, c.invoke(ctx, "ReadLast", &ReadLastRequest{Count: count}, out, opts...)
}

func (c *LogClient) LastKey(ctx context.Context, opts ...grpc.CallOption) (*LastKeyResponse, error) {
	out := new(LastKeyResponse)
	return out, c.invoke(ctx, "LastKey", &LastKeyRequest{}, out, opts...)
}

func (c *LogClient) Truncate(ctx context.Context, before int64, opts ...grpc.CallOption) error {
	return c.invoke(ctx, "Truncate", &TruncateRequest{Before: before}, &TruncateResponse{}, opts...)
}

// Trim applies one retention bound; pass nil for the other.
func (c *LogClient) Trim(ctx context.Context, keep *int, maxBytes *int64, opts ...grpc.CallOption) (int64, error) {
	out := new(TrimResponse)
	if err := c.invoke(ctx, "Trim", &TrimRequest{Keep: keep, MaxBytes: maxBytes}, out, opts...); err != nil {
		return 0, err
	}
	return out.Before, nil
}

func (c *LogClient) CatchUp(ctx context.Context, opts ...grpc.CallOption) (*CatchUpResponse, error) {
	out := new(CatchUpResponse)
	return out, c.invoke(ctx, "CatchUp", &CatchUpRequest{}, out, opts...)
}

// Scan calls fn for every streamed entry until the stream ends or fn fails.
func (c *LogClient) Scan(ctx context.Context, req *ScanRequest, fn func(Entry) error, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	stream, err := c.cc.NewStream(ctx, &LogServiceDesc.Streams[0], "/"+serviceName+"/Scan", opts...)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(req); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		var e Entry
		if err := stream.RecvMsg(&e); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}
