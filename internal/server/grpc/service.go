package grpcserver

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rzbill/seglog/internal/cursor"
	"github.com/rzbill/seglog/internal/filter"
	"github.com/rzbill/seglog/internal/runtime"
	"github.com/rzbill/seglog/pkg/dberrors"
	"github.com/rzbill/seglog/pkg/seq"
)

const serviceName = "seglog.v1.Log"

// LogServer is the server API for seglog.v1.Log.
type LogServer interface {
	Health(context.Context, *HealthRequest) (*HealthResponse, error)
	Append(context.Context, *AppendRequest) (*AppendResponse, error)
	Put(context.Context, *PutRequest) (*PutResponse, error)
	Get(context.Context, *GetRequest) (*GetResponse, error)
	ReadLast(context.Context, *ReadLastRequest) (*ReadLastResponse, error)
	LastKey(context.Context, *LastKeyRequest) (*LastKeyResponse, error)
	Truncate(context.Context, *TruncateRequest) (*TruncateResponse, error)
	Trim(context.Context, *TrimRequest) (*TrimResponse, error)
	CatchUp(context.Context, *CatchUpRequest) (*CatchUpResponse, error)
	Scan(*ScanRequest, grpc.ServerStream) error
}

func unary[Req any, Resp any](method string, call func(LogServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LogServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(LogServer), ctx, req.(*Req))
			})
		},
	}
}

// LogServiceDesc describes seglog.v1.Log for grpc.Server.RegisterService.
var LogServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*LogServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Health", LogServer.Health),
		unary("Append", LogServer.Append),
		unary("Put", LogServer.Put),
		unary("Get", LogServer.Get),
		unary("ReadLast", LogServer.ReadLast),
		unary("LastKey", LogServer.LastKey),
		unary("Truncate", LogServer.Truncate),
		unary("Trim", LogServer.Trim),
		unary("CatchUp", LogServer.CatchUp),
	},
	Streams: []grpc.StreamDesc{{
		StreamName:    "Scan",
		ServerStreams: true,
		Handler: func(srv any, stream grpc.ServerStream) error {
			in := new(ScanRequest)
			if err := stream.RecvMsg(in); err != nil {
				return err
			}
			return srv.(LogServer).Scan(in, stream)
		},
	}},
}

type logSvc struct {
	rt *runtime.Runtime
}

func (s *logSvc) Health(ctx context.Context, _ *HealthRequest) (*HealthResponse, error) {
	mode := s.rt.Config().StoreMode().String()
	if err := s.rt.CheckHealth(ctx); err != nil {
		return &HealthResponse{Status: "not_serving", Mode: mode}, nil
	}
	return &HealthResponse{Status: "ok", Mode: mode}, nil
}

func (s *logSvc) Append(ctx context.Context, req *AppendRequest) (*AppendResponse, error) {
	if len(req.Values) == 0 {
		return nil, status.Error(codes.InvalidArgument, "values is required")
	}
	keys, err := s.rt.Log().AppendBatch(ctx, req.Values)
	if err != nil {
		return nil, toStatus(err)
	}
	out := &AppendResponse{Seqs: make([]int64, len(keys))}
	for i, k := range keys {
		out.Seqs[i] = k.Seq()
	}
	return out, nil
}

func (s *logSvc) Put(ctx context.Context, req *PutRequest) (*PutResponse, error) {
	if err := s.rt.Log().Put(ctx, req.Seq, req.Value); err != nil {
		return nil, toStatus(err)
	}
	return &PutResponse{}, nil
}

func (s *logSvc) Get(ctx context.Context, req *GetRequest) (*GetResponse, error) {
	v, err := s.rt.Log().Get(req.Seq)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetResponse{Value: v}, nil
}

func (s *logSvc) ReadLast(ctx context.Context, req *ReadLastRequest) (*ReadLastResponse, error) {
	count := req.Count
	if count == 0 {
		count = 1
	}
	recs, err := s.rt.Log().ReadLast(count)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ReadLastResponse{Entries: toEntries(recs)}, nil
}

func (s *logSvc) LastKey(ctx context.Context, _ *LastKeyRequest) (*LastKeyResponse, error) {
	k, ok, err := s.rt.Log().LastKey()
	if err != nil {
		return nil, toStatus(err)
	}
	return &LastKeyResponse{Found: ok, Seq: k.Seq()}, nil
}

func (s *logSvc) Truncate(ctx context.Context, req *TruncateRequest) (*TruncateResponse, error) {
	if err := s.rt.Log().TruncateBefore(ctx, req.Before); err != nil {
		return nil, toStatus(err)
	}
	return &TruncateResponse{}, nil
}

func (s *logSvc) Trim(ctx context.Context, req *TrimRequest) (*TrimResponse, error) {
	var (
		bound int64
		err   error
	)
	switch {
	case req.Keep != nil && req.MaxBytes == nil:
		bound, err = s.rt.Log().TrimToCount(ctx, *req.Keep)
	case req.MaxBytes != nil && req.Keep == nil:
		bound, err = s.rt.Log().TrimToMaxBytes(ctx, *req.MaxBytes)
	default:
		return nil, status.Error(codes.InvalidArgument, "exactly one of keep or maxBytes is required")
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return &TrimResponse{Before: bound}, nil
}

func (s *logSvc) CatchUp(ctx context.Context, _ *CatchUpRequest) (*CatchUpResponse, error) {
	if err := s.rt.Log().CatchUp(); err != nil {
		return nil, toStatus(err)
	}
	return &CatchUpResponse{NextSeq: s.rt.Log().NextSeq()}, nil
}

// Scan streams matching entries page by page until the log is exhausted,
// Limit is reached or the client goes away. With Follow it then waits for
// new appends and resumes after the last entry read.
func (s *logSvc) Scan(req *ScanRequest, stream grpc.ServerStream) error {
	if req.Follow && req.Reverse {
		return status.Error(codes.InvalidArgument, "follow requires a forward scan")
	}
	f, err := filter.New(req.Filter)
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	var start []byte
	if req.Start != nil {
		k := seq.Encode(*req.Start)
		start = k.Bytes()
	}
	batch := req.BatchSize
	if batch <= 0 {
		batch = s.rt.Config().ScanBatchSize
	}
	lg := s.rt.Log()
	ctx := stream.Context()
	sent := 0
	for {
		var woken <-chan struct{}
		if req.Follow {
			woken = lg.Appended()
		}
		var cur *cursor.Cursor
		if req.Reverse {
			cur, err = lg.IterateFromEnd(start, batch)
		} else {
			cur, err = lg.IterateFrom(start, batch)
		}
		if err != nil {
			return toStatus(err)
		}
		last, done, err := s.drain(ctx, cur, f, stream, req.Limit, &sent)
		_ = cur.Close()
		if err != nil || done || !req.Follow {
			return err
		}
		if last != nil {
			n, _ := seq.Decode(last)
			k := seq.Encode(n + 1)
			start = k.Bytes()
		}
		select {
		case <-ctx.Done():
			return nil
		case <-woken:
		}
	}
}

// drain sends every filtered record of cur and returns the last key read.
// done reports that the limit was reached.
func (s *logSvc) drain(ctx context.Context, cur *cursor.Cursor, f *filter.Filter, stream grpc.ServerStream, limit int, sent *int) ([]byte, bool, error) {
	var last []byte
	for cur.HasNext() {
		if err := ctx.Err(); err != nil {
			return last, true, status.FromContextError(err).Err()
		}
		page := cur.NextBatch()
		if len(page) > 0 {
			last = page[len(page)-1].Key
		}
		for _, e := range toEntries(f.Apply(page)) {
			if err := stream.SendMsg(&e); err != nil {
				return last, true, err
			}
			*sent++
			if limit > 0 && *sent >= limit {
				return last, true, nil
			}
		}
	}
	if err := cur.Err(); err != nil {
		return last, true, toStatus(err)
	}
	return last, false, nil
}

func toEntries(recs []cursor.Record) []Entry {
	out := make([]Entry, 0, len(recs))
	for _, r := range recs {
		n, err := seq.Decode(r.Key)
		if err != nil {
			continue
		}
		out = append(out, Entry{Seq: n, Value: r.Value})
	}
	return out
}

// toStatus maps storage failures to gRPC codes.
func toStatus(err error) error {
	code := codes.Internal
	switch {
	case errors.Is(err, dberrors.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, dberrors.ErrInvalidArgument):
		code = codes.InvalidArgument
	case errors.Is(err, pebble.ErrReadOnly):
		code = codes.PermissionDenied
	case errors.Is(err, dberrors.ErrClosed):
		code = codes.Unavailable
	case errors.Is(err, dberrors.ErrCatchUp):
		code = codes.FailedPrecondition
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = codes.Canceled
	}
	return status.Error(code, err.Error())
}
