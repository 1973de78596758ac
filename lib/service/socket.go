// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/wscontext/lib/codec"
	"github.com/bureau-foundation/wscontext/lib/schema/telemetry"
)

// ActionFunc handles one socket request. raw is the complete CBOR
// request, including the envelope fields ("action", "trace_id",
// "span_id"); the handler decodes whatever action-specific fields it
// needs from it.
//
// A nil result produces {ok: true}. A non-nil result is CBOR-encoded
// into the response's "data" field. A non-nil error produces
// {ok: false, error: err.Error()}.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// Response is the envelope of every socket response.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// requestEnvelope holds the fields the server reads before dispatch.
type requestEnvelope struct {
	Action  string            `cbor:"action"`
	Token   []byte            `cbor:"token"`
	TraceID telemetry.TraceID `cbor:"trace_id"`
	SpanID  telemetry.SpanID  `cbor:"span_id"`
}

// SocketServer serves Bureau's CBOR request-response protocol on a
// Unix socket. Each connection carries exactly one exchange: the
// client writes one CBOR value, the server dispatches it by its
// "action" field and writes one CBOR [Response].
//
// When a request carries trace_id, the handler's context holds that
// trace (see telemetry.TraceFromContext), so collaborator logs can be
// joined with the caller's.
//
// After RequireToken, requests whose "token" field differs from the
// configured token are refused before dispatch.
type SocketServer struct {
	socketPath string
	handlers   map[string]ActionFunc
	logger     *slog.Logger
	token      []byte

	// activeConnections lets Serve drain in-flight handlers before
	// returning.
	activeConnections sync.WaitGroup

	ready chan struct{}
}

// NewSocketServer creates a server for socketPath. A nil logger
// discards output. Register actions with Handle before calling Serve.
func NewSocketServer(socketPath string, logger *slog.Logger) *SocketServer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SocketServer{
		socketPath: socketPath,
		handlers:   make(map[string]ActionFunc),
		logger:     logger,
		ready:      make(chan struct{}),
	}
}

// Handle registers handler for action. Panics on a duplicate
// registration. Must not be called after Serve.
func (s *SocketServer) Handle(action string, handler ActionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("service.SocketServer: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

// RequireToken makes every request present token. Must not be called
// after Serve.
func (s *SocketServer) RequireToken(token []byte) {
	if len(token) == 0 {
		panic("service.SocketServer: RequireToken with an empty token")
	}
	s.token = token
}

// UnauthorizedMessage is the response error for a missing or wrong
// token.
const UnauthorizedMessage = "unauthorized"

// Ready is closed once the socket is listening.
func (s *SocketServer) Ready() <-chan struct{} {
	return s.ready
}

// Serve listens on the socket and dispatches requests until ctx is
// cancelled, then waits for in-flight handlers to finish.
//
// A stale socket file at the path is removed first. The socket file is
// removed on return.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("socket server listening", "path", s.socketPath)
	close(s.ready)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// readTimeout bounds how long a connected client may take to send its
// request.
const readTimeout = 30 * time.Second

// writeTimeout bounds writing the response.
const writeTimeout = 10 * time.Second

// maxRequestSize bounds a single CBOR request. Resolved contexts and
// start specifications are a few kilobytes at most.
const maxRequestSize = 1024 * 1024

func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	// CBOR is self-delimiting: one Decode reads exactly one request.
	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}

	var envelope requestEnvelope
	if err := codec.Unmarshal(raw, &envelope); err != nil {
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if envelope.Action == "" {
		s.writeError(conn, "missing required field: action")
		return
	}

	if s.token != nil && subtle.ConstantTimeCompare(envelope.Token, s.token) != 1 {
		s.logger.DebugContext(ctx, "request refused",
			"action", envelope.Action,
			"token_present", len(envelope.Token) > 0,
		)
		s.writeError(conn, UnauthorizedMessage)
		return
	}

	handler, exists := s.handlers[envelope.Action]
	if !exists {
		s.writeError(conn, fmt.Sprintf("unknown action %q", envelope.Action))
		return
	}

	if !envelope.TraceID.IsZero() {
		ctx = telemetry.WithTrace(ctx, telemetry.Trace{
			TraceID: envelope.TraceID,
			SpanID:  envelope.SpanID,
		})
	}

	result, err := handler(ctx, []byte(raw))
	if err != nil {
		s.logger.DebugContext(ctx, "action failed",
			"action", envelope.Action,
			"trace_id", envelope.TraceID,
			"error", err,
		)
		s.writeError(conn, err.Error())
		return
	}

	s.writeSuccess(conn, result)
}

// writeError sends {ok: false, error: message}. Write failures are only
// logged; the connection closes either way.
func (s *SocketServer) writeError(conn net.Conn, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(Response{
		OK:    false,
		Error: message,
	}); err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
}

func (s *SocketServer) writeSuccess(conn net.Conn, result any) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.writeError(conn, fmt.Sprintf("internal: marshaling response: %v", err))
			return
		}
		response.Data = data
	}

	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("failed to write success response", "error", err)
	}
}
