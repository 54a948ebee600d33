package detection

import (
	"context"
	"log"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// HealthChecker reports whether a detection backend is serving.
type HealthChecker interface {
	Healthy() bool
	Close() error
}

// GRPCHealthChecker probes the sidecar's standard gRPC health service.
// Results are cached for 30 seconds so the per-frame path never waits on a
// health RPC.
type GRPCHealthChecker struct {
	conn   *grpc.ClientConn
	client healthpb.HealthClient

	mu        sync.Mutex
	healthy   bool
	lastProbe time.Time
}

// NewGRPCHealthChecker dials the sidecar's gRPC endpoint. The connection is
// lazy; a down backend surfaces as unhealthy, not as a construction error.
func NewGRPCHealthChecker(target string) (*GRPCHealthChecker, error) {
	kacp := keepalive.ClientParameters{
		Time:                10 * time.Second,
		Timeout:             5 * time.Second,
		PermitWithoutStream: true,
	}

	conn, err := grpc.NewClient(target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	)
	if err != nil {
		return nil, err
	}

	return &GRPCHealthChecker{
		conn:   conn,
		client: healthpb.NewHealthClient(conn),
	}, nil
}

// Healthy returns the cached serving status, refreshing it when stale.
func (c *GRPCHealthChecker) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastProbe) < 30*time.Second {
		return c.healthy
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := c.client.Check(ctx, &healthpb.HealthCheckRequest{})
	c.lastProbe = time.Now()
	if err != nil {
		log.Printf("[Detector] gRPC health check failed: %v", err)
		c.healthy = false
		return false
	}

	c.healthy = resp.Status == healthpb.HealthCheckResponse_SERVING
	return c.healthy
}

// Close tears down the gRPC connection.
func (c *GRPCHealthChecker) Close() error {
	return c.conn.Close()
}
