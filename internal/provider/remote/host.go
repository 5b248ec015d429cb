// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

package remote

import (
	"context"
	"errors"
	"strings"
	"sync"

	apperr "dbscript/cli/internal/errors"
	"dbscript/cli/internal/scripting"

	"github.com/pterm/pterm"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Dispatcher routes a scripting request to a provider. *scripting.Service satisfies it.
type Dispatcher interface {
	Script(ctx context.Context, connectionURI string, metadata scripting.ObjectMetadata, op scripting.Operation, params scripting.ParamDetails) (*scripting.Result, error)
}

const subscriberBuffer = 64

// Host serves a Dispatcher over gRPC and fans completion notifications out to
// every connected Completions stream. Register it as the completion sink of the
// providers it serves.
type Host struct {
	dispatch Dispatcher
	logger   *pterm.Logger
	token    string

	mu   sync.Mutex
	subs map[chan *scripting.CompleteResult]struct{}
}

// NewHost creates a Host. A non-empty token is required as a bearer credential.
func NewHost(dispatch Dispatcher, token string, logger *pterm.Logger) *Host {
	if logger == nil {
		l := pterm.DefaultLogger
		logger = &l
	}
	return &Host{
		dispatch: dispatch,
		logger:   logger,
		token:    token,
		subs:     make(map[chan *scripting.CompleteResult]struct{}),
	}
}

// Register adds the ScriptingHost service to s.
func (h *Host) Register(s *grpc.Server) {
	s.RegisterService(&hostServiceDesc, h)
}

// OnScriptingComplete delivers res to every subscriber. Slow subscribers lose
// notifications rather than blocking providers.
func (h *Host) OnScriptingComplete(handle int, res *scripting.CompleteResult) {
	if res == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- res:
		default:
			h.logger.Warn("Dropped completion for slow subscriber", h.logger.Args("operation_id", res.OperationID))
		}
	}
}

func (h *Host) subscribe() chan *scripting.CompleteResult {
	ch := make(chan *scripting.CompleteResult, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Host) unsubscribe(ch chan *scripting.CompleteResult) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

func (h *Host) authorize(ctx context.Context) error {
	if h.token == "" {
		return nil
	}
	md, _ := metadata.FromIncomingContext(ctx)
	for _, v := range md.Get(tokenHeader) {
		if strings.TrimPrefix(v, "Bearer ") == h.token {
			return nil
		}
	}
	return status.Error(codes.Unauthenticated, "missing or invalid token")
}

func (h *Host) scriptAsOperation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := h.authorize(ctx); err != nil {
		return nil, err
	}
	req, err := decodeRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	h.logger.Debug("Script request", h.logger.Args(
		"connection", req.ConnectionURI,
		"operation", req.Operation.String(),
		"object", req.Metadata.QualifiedName(),
	))

	res, err := h.dispatch.Script(ctx, req.ConnectionURI, req.Metadata, req.Operation, req.Params)
	if err != nil {
		return nil, toStatus(err, res)
	}
	if res == nil {
		return &structpb.Struct{}, nil
	}
	out, err := encodeResult(res)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (h *Host) completions(_ *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()
	if err := h.authorize(ctx); err != nil {
		return err
	}
	ch := h.subscribe()
	defer h.unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case res := <-ch:
			msg, err := encodeCompletion(res)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		}
	}
}

// toStatus maps an application error to a gRPC status carrying the operation id.
func toStatus(err error, res *scripting.Result) error {
	code := codes.Internal
	switch apperr.KindOf(err) {
	case apperr.InvalidConnection:
		code = codes.FailedPrecondition
	case apperr.ObjectNotFound:
		code = codes.NotFound
	case apperr.UnsupportedOperation:
		code = codes.Unimplemented
	case apperr.ProviderUnavailable:
		code = codes.Aborted
	}
	switch {
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	st := status.New(code, err.Error())
	if res != nil && res.OperationID != "" {
		if detail, derr := encodeResult(res); derr == nil {
			if withDetail, werr := st.WithDetails(detail); werr == nil {
				st = withDetail
			}
		}
	}
	return st.Err()
}

type hostServer interface {
	scriptAsOperation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	completions(in *structpb.Struct, stream grpc.ServerStream) error
}

var hostServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*hostServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ScriptAsOperation", Handler: scriptAsOperationHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Completions", Handler: completionsHandler, ServerStreams: true},
	},
	Metadata: "dbscript/scripting_host",
}

func scriptAsOperationHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(hostServer).scriptAsOperation(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: scriptMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(hostServer).scriptAsOperation(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func completionsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(hostServer).completions(in, stream)
}
