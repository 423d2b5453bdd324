// Package grpc serves the standard gRPC health service, driven by database readiness.
package grpc

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/Additional-Code/kitchen/internal/config"
	"github.com/Additional-Code/kitchen/internal/database"
)

// ServiceName is the health-checked service name; the empty name reports the whole server.
const ServiceName = "kitchen.Orders"

// Module exposes the gRPC server and its lifecycle to Fx.
var Module = fx.Module("grpc_server",
	fx.Provide(
		NewServer,
		health.NewServer,
		func(conns *database.Connections) ReadinessProbe { return conns },
	),
	fx.Invoke(Run),
)

// ReadinessProbe reports whether the backing stores answer.
type ReadinessProbe interface {
	Ready(ctx context.Context) error
}

// NewServer builds a server with recovery and access logging, and registers the health service.
func NewServer(logger *zap.Logger, healthSrv *health.Server) *grpc.Server {
	log := logger.Named("grpc")
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(recoverUnary(log), logUnary(log)),
		grpc.ChainStreamInterceptor(logStream(log)),
	)
	healthpb.RegisterHealthServer(server, healthSrv)
	return server
}

func recoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc handler panicked",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()),
				)
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

func logUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(log, info.FullMethod, start, err)
		return resp, err
	}
}

func logStream(log *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logCall(log, info.FullMethod, start, err)
		return err
	}
}

func logCall(log *zap.Logger, method string, start time.Time, err error) {
	fields := []zap.Field{
		zap.String("method", method),
		zap.Stringer("code", status.Code(err)),
		zap.Duration("took", time.Since(start)),
	}
	if err != nil {
		log.Warn("grpc call failed", append(fields, zap.Error(err))...)
		return
	}
	log.Debug("grpc call", fields...)
}

// Run binds the listener on start, keeps health current while serving, and drains on stop. A serve
// failure shuts the application down.
func Run(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg config.Config, server *grpc.Server, healthSrv *health.Server, probe ReadinessProbe, logger *zap.Logger) {
	addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	probes := newProber(probe, healthSrv, logger)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen grpc %s: %w", addr, err)
			}
			probes.start()
			go func() {
				if err := server.Serve(ln); err != nil {
					logger.Error("grpc server stopped unexpectedly", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			logger.Info("gRPC server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			probes.stop()

			drained := make(chan struct{})
			go func() {
				server.GracefulStop()
				close(drained)
			}()
			select {
			case <-drained:
				logger.Info("gRPC server stopped")
				return nil
			case <-ctx.Done():
				server.Stop()
				return ctx.Err()
			}
		},
	})
}
