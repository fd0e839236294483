package health

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const ServiceName = "restaurant"

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Status struct {
	Healthy   bool
	CheckedAt time.Time
	Error     string
}

// Checker pings the database on an interval and mirrors the result into the gRPC health server.
type Checker struct {
	db       Pinger
	interval time.Duration
	server   *health.Server

	mu     sync.RWMutex
	status Status
}

func NewChecker(db Pinger, interval time.Duration) *Checker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	server := health.NewServer()
	server.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Checker{db: db, interval: interval, server: server}
}

func (c *Checker) Server() *health.Server {
	return c.server
}

func (c *Checker) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Checker) Check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, c.interval)
	defer cancel()

	status := Status{Healthy: true, CheckedAt: time.Now().UTC()}
	if err := c.db.PingContext(ctx); err != nil {
		status.Healthy = false
		status.Error = err.Error()
	}

	c.mu.Lock()
	changed := c.status.Healthy != status.Healthy || c.status.CheckedAt.IsZero()
	c.status = status
	c.mu.Unlock()

	serving := healthpb.HealthCheckResponse_SERVING
	if !status.Healthy {
		serving = healthpb.HealthCheckResponse_NOT_SERVING
	}
	c.server.SetServingStatus(ServiceName, serving)
	c.server.SetServingStatus("", serving)

	if changed {
		entry := log.WithFields(log.Fields{"healthy": status.Healthy})
		if status.Healthy {
			entry.Info("database health changed")
		} else {
			entry.WithField("error", status.Error).Warn("database health changed")
		}
	}
	return status
}

// Run checks immediately and then on every tick until ctx is done.
func (c *Checker) Run(ctx context.Context) error {
	c.Check(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.server.Shutdown()
			return nil
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}
