// Package grpcserver hosts the gRPC admin listener: health service plus the
// logging and recovery interceptors.
package grpcserver

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health entry for the auction core.
const ServiceName = "bidhouse.Auction"

const probeTimeout = 2 * time.Second

// Check is a named dependency probe.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// NewServer returns a gRPC server with interceptors and the health service
// registered.
func NewServer(log *zap.Logger, hs *health.Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(RecoverUnary(log), LoggingUnary(log)),
		grpc.ChainStreamInterceptor(RecoverStream(log), LoggingStream(log)),
	)
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, hs)
	return s
}

// HealthReporter keeps the health server in sync with dependency probes.
type HealthReporter struct {
	hs       *health.Server
	checks   []Check
	interval time.Duration
	log      *zap.Logger
}

func NewHealthReporter(hs *health.Server, interval time.Duration, log *zap.Logger, checks ...Check) *HealthReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthReporter{hs: hs, checks: checks, interval: interval, log: log}
}

// Probe runs every check once and publishes the result.
func (r *HealthReporter) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	for _, c := range r.checks {
		if err := c.Ping(ctx); err != nil {
			r.log.Warn("health: dependency down", zap.String("dep", c.Name), zap.Error(err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	r.hs.SetServingStatus("", st)
	r.hs.SetServingStatus(ServiceName, st)
	return st
}

// Run probes on every interval until ctx is done, then marks everything
// NOT_SERVING.
func (r *HealthReporter) Run(ctx context.Context) {
	r.Probe(ctx)
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.hs.Shutdown()
			return
		case <-t.C:
			r.Probe(ctx)
		}
	}
}
