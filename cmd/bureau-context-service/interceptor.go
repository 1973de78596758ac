// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bureau-foundation/wscontext/lib/clock"
	"github.com/bureau-foundation/wscontext/lib/schema/telemetry"
)

// loggingInterceptor starts a trace for every unary call and logs the
// outcome: debug for successes, info for failures. A handler panic is
// logged at error and answered with Internal so one bad request cannot
// take the process down.
func loggingInterceptor(clk clock.Clock, logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, request any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (response any, err error) {
		trace := telemetry.NewTrace()
		ctx = telemetry.WithTrace(ctx, trace)
		started := clk.Now()

		defer func() {
			if recovered := recover(); recovered != nil {
				logger.ErrorContext(ctx, "rpc handler panicked",
					"method", info.FullMethod,
					"trace_id", trace.TraceID.String(),
					"panic", recovered,
				)
				response = nil
				err = status.Errorf(codes.Internal, "internal error (trace %s)", trace.TraceID)
			}

			code := status.Code(err)
			attributes := []any{
				"method", info.FullMethod,
				"code", code.String(),
				"duration", clock.Since(clk, started),
				"trace_id", trace.TraceID.String(),
			}
			if code == codes.OK {
				logger.DebugContext(ctx, "rpc completed", attributes...)
				return
			}
			logger.InfoContext(ctx, "rpc failed", attributes...)
		}()

		return handler(ctx, request)
	}
}
