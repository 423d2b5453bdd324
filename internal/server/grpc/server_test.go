package grpc_test

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	grpcserver "github.com/Additional-Code/kitchen/internal/server/grpc"
)

type probeFunc func(ctx context.Context) error

func (f probeFunc) Ready(ctx context.Context) error { return f(ctx) }

func TestHealthFollowsReadiness(t *testing.T) {
	healthSrv := health.NewServer()
	server := grpcserver.NewServer(zap.NewNop(), healthSrv)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	client := healthpb.NewHealthClient(conn)

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		resp, err := client.Check(t.Context(), &healthpb.HealthCheckRequest{Service: grpcserver.ServiceName})
		require.NoError(t, err)
		return resp.GetStatus()
	}

	grpcserver.Probe(t.Context(), probeFunc(func(context.Context) error { return nil }), healthSrv, zap.NewNop())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check())

	grpcserver.Probe(t.Context(), probeFunc(func(context.Context) error { return errors.New("db down") }), healthSrv, zap.NewNop())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check())
}
