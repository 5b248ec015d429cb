// Copyright (c) 2025 dbscript
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package remote forwards scripting requests to a scripting host over gRPC and
// serves local providers to remote clients.
//
// The host exposes two methods on the dbscript.ScriptingHost service: a unary
// ScriptAsOperation call that starts an operation and a server stream of
// completion notifications.
//
// The host broadcasts every completion to every open stream. A client Provider
// forwards only completions for operations it started itself and holds back
// early arrivals until the matching ScriptAsOperation call returns. Output
// files are always written on the client; the host never receives a path.
package remote

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"

	apperr "dbscript/cli/internal/errors"
	"dbscript/cli/internal/provider"
	"dbscript/cli/internal/scripting"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// maxPending bounds the completions held for operations not yet known to be ours.
const maxPending = 256

const (
	serviceName       = "dbscript.ScriptingHost"
	scriptMethod      = "/" + serviceName + "/ScriptAsOperation"
	completionsMethod = "/" + serviceName + "/Completions"
	tokenHeader       = "authorization"
)

var completionsStream = &grpc.StreamDesc{StreamName: "Completions", ServerStreams: true}

// Dial creates a client connection to a scripting host. Without insecure the
// connection uses TLS with the host name as SNI, and port 443 when none is given.
func Dial(address string, useInsecure bool) (*grpc.ClientConn, error) {
	if useInsecure {
		return grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	host, target := address, address
	if h, _, err := net.SplitHostPort(address); err == nil {
		host = h
	} else {
		target = net.JoinHostPort(address, "443")
	}
	creds := credentials.NewTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
	return grpc.NewClient(target, grpc.WithTransportCredentials(creds))
}

// Option configures a Provider.
type Option func(*Provider)

// WithToken sends token as a bearer credential on every call.
func WithToken(token string) Option {
	return func(p *Provider) { p.token = token }
}

// Provider implements scripting.Provider by delegating to a remote host.
// Completions arrive through Listen.
type Provider struct {
	handle int
	sink   scripting.CompletionSink
	conn   grpc.ClientConnInterface
	token  string

	mu       sync.Mutex
	started  map[string]bool
	pending  map[string]*scripting.CompleteResult
	arrivals []string
}

// New creates a Provider over conn reporting completions to sink under handle.
func New(handle int, sink scripting.CompletionSink, conn grpc.ClientConnInterface, opts ...Option) *Provider {
	p := &Provider{
		handle:  handle,
		sink:    sink,
		conn:    conn,
		started: make(map[string]bool),
		pending: make(map[string]*scripting.CompleteResult),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) outgoing(ctx context.Context) context.Context {
	if p.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, tokenHeader, "Bearer "+p.token)
}

// ScriptAsOperation asks the host to script metadata and returns the host's result.
// A host with no provider for the connection answers with an empty message, which
// yields a nil result and nil error. When params name a file the script is
// written locally once the host returns it.
func (p *Provider) ScriptAsOperation(ctx context.Context, connectionURI string, op scripting.Operation, md scripting.ObjectMetadata, params scripting.ParamDetails) (*scripting.Result, error) {
	out := params.FilePath
	params.FilePath = ""
	req, err := encodeRequest(scriptRequest{ConnectionURI: connectionURI, Operation: op, Metadata: md, Params: params})
	if err != nil {
		return nil, apperr.Wrap(apperr.TransportFailed, "encode request", err)
	}
	resp := new(structpb.Struct)
	if err := p.conn.Invoke(p.outgoing(ctx), scriptMethod, req, resp); err != nil {
		res := failedResult(err)
		if res != nil {
			p.claim(res.OperationID)
		}
		return res, fromStatus(err)
	}
	if _, ok := resp.GetFields()["operation_id"]; !ok {
		return nil, nil
	}
	res := decodeResult(resp)
	p.claim(res.OperationID)
	if out != "" {
		if err := provider.WriteScript(out, res.Script); err != nil {
			return res, err
		}
	}
	return res, nil
}

// claim marks an operation as started by this client and releases a
// completion that arrived before the call returned.
func (p *Provider) claim(opID string) {
	if opID == "" {
		return
	}
	p.mu.Lock()
	res, ok := p.pending[opID]
	if ok {
		delete(p.pending, opID)
	} else {
		p.started[opID] = true
	}
	p.mu.Unlock()
	if ok && p.sink != nil {
		p.sink.OnScriptingComplete(p.handle, res)
	}
}

// accept reports whether a completion belongs to an operation this client
// started. Unknown completions are held, oldest dropped first, in case their
// ScriptAsOperation call has not returned yet.
func (p *Provider) accept(res *scripting.CompleteResult) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started[res.OperationID] {
		delete(p.started, res.OperationID)
		return true
	}
	if _, held := p.pending[res.OperationID]; !held {
		p.arrivals = append(p.arrivals, res.OperationID)
	}
	p.pending[res.OperationID] = res
	if len(p.arrivals) > 2*maxPending {
		live := p.arrivals[:0]
		for _, id := range p.arrivals {
			if _, ok := p.pending[id]; ok {
				live = append(live, id)
			}
		}
		p.arrivals = live
	}
	for len(p.pending) > maxPending && len(p.arrivals) > 0 {
		delete(p.pending, p.arrivals[0])
		p.arrivals = p.arrivals[1:]
	}
	return false
}

// Listen forwards completion notifications for this client's operations from
// the host to the sink until the stream ends or ctx is canceled.
func (p *Provider) Listen(ctx context.Context) error {
	stream, err := p.conn.NewStream(p.outgoing(ctx), completionsStream, completionsMethod)
	if err != nil {
		return fromStatus(err)
	}
	if err := stream.SendMsg(&structpb.Struct{}); err != nil {
		return fromStatus(err)
	}
	if err := stream.CloseSend(); err != nil {
		return fromStatus(err)
	}

	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fromStatus(err)
		}
		res := decodeCompletion(msg)
		if p.accept(res) && p.sink != nil {
			p.sink.OnScriptingComplete(p.handle, res)
		}
	}
}

// failedResult recovers the operation id the host attaches to a failed call.
func failedResult(err error) *scripting.Result {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}
	for _, d := range st.Details() {
		if s, ok := d.(*structpb.Struct); ok {
			return decodeResult(s)
		}
	}
	return nil
}

// fromStatus maps a gRPC error to an application error. The status stays in
// the chain for transport classification.
func fromStatus(err error) error {
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.NotFound:
		return apperr.Wrap(apperr.ObjectNotFound, st.Message(), err)
	case codes.Unimplemented:
		return apperr.Wrap(apperr.UnsupportedOperation, st.Message(), err)
	case codes.FailedPrecondition, codes.InvalidArgument:
		return apperr.Wrap(apperr.InvalidConnection, st.Message(), err)
	case codes.Aborted:
		return apperr.Wrap(apperr.ProviderUnavailable, st.Message(), err)
	case codes.Canceled:
		return apperr.Wrap(apperr.TransportFailed, "scripting host call canceled", context.Canceled)
	}
	return apperr.Wrap(apperr.TransportFailed, "scripting host call failed", err)
}
