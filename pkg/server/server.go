// Package server wires the audience engine's operations into the RPC method
// table the worker exposes.
package server

import (
	"context"
	"encoding/json"

	"github.com/kunthar/zops-audience/internal/audience"
	"github.com/kunthar/zops-audience/pkg/logger"
	"github.com/kunthar/zops-audience/pkg/rpc"
	"github.com/kunthar/zops-audience/pkg/server/commands"
	"github.com/kunthar/zops-audience/pkg/setstore"
	"github.com/kunthar/zops-audience/pkg/storage"
)

// Method names of the worker's closed operation set.
const (
	MethodPostPushMessage = "post_push_message"
	MethodResolveSegment  = "resolve_segment"
)

type Server struct {
	logger   logger.Logger
	resolver *audience.Resolver
	mux      *rpc.Mux
}

type Opt func(*options)

type options struct {
	resolverOpts []audience.ResolverOpt
}

// WithResolverOpts forwards options to the audience resolver.
func WithResolverOpts(opts ...audience.ResolverOpt) Opt {
	return func(o *options) {
		o.resolverOpts = append(o.resolverOpts, opts...)
	}
}

// New builds a server over its collaborators and registers every method at
// construction, so an unknown method name is a startup-visible condition
// rather than a runtime dispatch surprise.
func New(sets setstore.SetStore, docs storage.DocumentStore, dispatcher commands.Dispatcher, log logger.Logger, opts ...Opt) *Server {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	resolver := audience.NewResolver(sets, docs, log, o.resolverOpts...)

	s := &Server{
		logger:   log,
		resolver: resolver,
		mux:      rpc.NewMux(log),
	}

	pushCmd := commands.NewPostPushMessageCommand(resolver, dispatcher, log)
	s.mux.Register(MethodPostPushMessage, func(ctx context.Context, params json.RawMessage) (any, error) {
		var req commands.PostPushMessageRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, rpc.NewError(rpc.CodeInvalidParams, err.Error())
		}
		return pushCmd.Execute(ctx, &req)
	})

	resolveQuery := commands.NewResolveSegmentQuery(resolver, log)
	s.mux.Register(MethodResolveSegment, func(ctx context.Context, params json.RawMessage) (any, error) {
		var req commands.ResolveSegmentRequest
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, rpc.NewError(rpc.CodeInvalidParams, err.Error())
		}
		return resolveQuery.Execute(ctx, &req)
	})

	return s
}

// Handle processes one raw request frame and returns the response frame.
// The surrounding transport owns delivery and reply routing.
func (s *Server) Handle(ctx context.Context, frame []byte) []byte {
	return s.mux.Handle(ctx, frame)
}

// Methods lists the operations the server answers.
func (s *Server) Methods() []string {
	return s.mux.Methods()
}

func (s *Server) Close() {
	s.resolver.Close()
}
