// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"io"
	"maps"
	"net"
	"os"
	"time"

	"github.com/bureau-foundation/wscontext/lib/codec"
	"github.com/bureau-foundation/wscontext/lib/schema/telemetry"
)

// dialTimeout bounds the connect phase only.
const dialTimeout = 5 * time.Second

// responseReadTimeout is the longest a client waits for a response
// when ctx has no earlier deadline. Covers the server's read and write
// timeouts plus handler time.
const responseReadTimeout = 45 * time.Second

// maxResponseSize matches the server's maxRequestSize.
const maxResponseSize = 1024 * 1024

// ServiceError is returned by Call when the server answered with
// ok=false.
type ServiceError struct {
	Action  string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error on %q: %s", e.Action, e.Message)
}

// ServiceClient sends requests to a Bureau service socket, one
// connection per Call.
//
// Every request carries the client's token (when it has one) as the
// "token" field, and the trace from ctx (when there is one) as
// "trace_id" and "span_id".
type ServiceClient struct {
	socketPath string
	tokenBytes []byte
}

// NewServiceClient creates a client that presents the token stored at
// tokenPath. The file must exist and be non-empty.
func NewServiceClient(socketPath, tokenPath string) (*ServiceClient, error) {
	tokenBytes, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("reading service token from %s: %w", tokenPath, err)
	}
	if len(tokenBytes) == 0 {
		return nil, fmt.Errorf("service token file %s is empty", tokenPath)
	}
	return &ServiceClient{
		socketPath: socketPath,
		tokenBytes: tokenBytes,
	}, nil
}

// NewServiceClientFromToken creates a client with token bytes already
// in hand. A nil token sends unauthenticated requests.
func NewServiceClientFromToken(socketPath string, tokenBytes []byte) *ServiceClient {
	return &ServiceClient{
		socketPath: socketPath,
		tokenBytes: tokenBytes,
	}
}

// SocketPath returns the socket this client dials.
func (c *ServiceClient) SocketPath() string {
	return c.socketPath
}

// Call sends action with fields and decodes the response data into
// result (if both are non-nil). fields must not contain the envelope
// keys; the client sets them.
//
// A server-side failure is returned as *ServiceError. Connection and
// encoding failures are returned as plain errors.
func (c *ServiceClient) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	request := c.buildRequest(ctx, action, fields)

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}

	if !response.OK {
		return &ServiceError{
			Action:  action,
			Message: response.Error,
		}
	}

	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}

	return nil
}

func (c *ServiceClient) buildRequest(ctx context.Context, action string, fields map[string]any) map[string]any {
	request := make(map[string]any, len(fields)+4)
	maps.Copy(request, fields)

	request["action"] = action
	if c.tokenBytes != nil {
		request["token"] = c.tokenBytes
	}
	if trace, ok := telemetry.TraceFromContext(ctx); ok {
		request["trace_id"] = trace.TraceID
		request["span_id"] = trace.SpanID
	}
	return request
}

func (c *ServiceClient) send(ctx context.Context, request any) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	// The dial honors ctx; after that the connection deadline does.
	deadline := time.Now().Add(responseReadTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetDeadline(deadline)

	// Cancellation mid-exchange unblocks the read.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", ctxErrOr(ctx, err))
	}

	// Half-close so the server sees EOF after the request.
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", ctxErrOr(ctx, err))
	}

	return &response, nil
}

// ctxErrOr prefers the context's error, so callers can match
// context.Canceled and context.DeadlineExceeded instead of a deadline
// error from the socket.
func ctxErrOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
