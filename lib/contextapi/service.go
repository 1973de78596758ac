// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package contextapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/bureau-foundation/wscontext/lib/grpcwire"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "bureau.context.v1.WorkspaceContextService"

// GetWorkspaceContextMethod is the full method name of the single RPC.
const GetWorkspaceContextMethod = "/" + ServiceName + "/GetWorkspaceContext"

// WorkspaceContextServer is implemented by the context service.
type WorkspaceContextServer interface {
	GetWorkspaceContext(ctx context.Context, request *GetWorkspaceContextRequest) (*GetWorkspaceContextResponse, error)
}

// ServiceDesc describes the service to grpc.Server. Requests and
// responses use the CBOR codec from lib/grpcwire.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*WorkspaceContextServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetWorkspaceContext",
			Handler:    getWorkspaceContextHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bureau/context/v1",
}

// RegisterWorkspaceContextServer registers server on registrar.
func RegisterWorkspaceContextServer(registrar grpc.ServiceRegistrar, server WorkspaceContextServer) {
	registrar.RegisterService(&ServiceDesc, server)
}

func getWorkspaceContextHandler(server any, ctx context.Context, decode func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	request := new(GetWorkspaceContextRequest)
	if err := decode(request); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return server.(WorkspaceContextServer).GetWorkspaceContext(ctx, request)
	}
	info := &grpc.UnaryServerInfo{
		Server:     server,
		FullMethod: GetWorkspaceContextMethod,
	}
	handler := func(ctx context.Context, request any) (any, error) {
		return server.(WorkspaceContextServer).GetWorkspaceContext(ctx, request.(*GetWorkspaceContextRequest))
	}
	return interceptor(ctx, request, info, handler)
}

// Client calls the context service over an existing connection.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps conn. The caller owns conn and closes it.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// GetWorkspaceContext provisions a workspace for contextURL. The
// caller's credential travels in ctx; see [WithBearerToken].
func (c *Client) GetWorkspaceContext(ctx context.Context, contextURL string, options ...grpc.CallOption) (*GetWorkspaceContextResponse, error) {
	request := &GetWorkspaceContextRequest{ContextURL: contextURL}
	response := new(GetWorkspaceContextResponse)
	options = append([]grpc.CallOption{grpc.CallContentSubtype(grpcwire.CodecName)}, options...)
	if err := c.conn.Invoke(ctx, GetWorkspaceContextMethod, request, response, options...); err != nil {
		return nil, err
	}
	return response, nil
}

// WithBearerToken returns a context whose outgoing calls carry token
// as a bearer credential.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}
