package redis

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"nexuscred/internal/platform/config"
)

// PoolMetrics mirrors go-redis pool statistics into Prometheus.
type PoolMetrics struct {
	hits       prometheus.Counter
	misses     prometheus.Counter
	timeouts   prometheus.Counter
	staleConns prometheus.Counter
	totalConns prometheus.Gauge
	idleConns  prometheus.Gauge
}

// NewPoolMetrics registers the pool metrics with reg.
func NewPoolMetrics(reg prometheus.Registerer) *PoolMetrics {
	m := &PoolMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexuscred_redis_pool_hits_total",
			Help: "Number of times a connection was found in the pool",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexuscred_redis_pool_misses_total",
			Help: "Number of times a connection was not found in the pool",
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexuscred_redis_pool_timeouts_total",
			Help: "Number of times a connection was not obtained due to timeout",
		}),
		staleConns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexuscred_redis_pool_stale_conns_total",
			Help: "Number of stale connections removed from the pool",
		}),
		totalConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nexuscred_redis_pool_total_conns",
			Help: "Number of total connections in the pool",
		}),
		idleConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nexuscred_redis_pool_idle_conns",
			Help: "Number of idle connections in the pool",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.timeouts, m.staleConns, m.totalConns, m.idleConns)
	}
	return m
}

// Client wraps the go-redis client with health checking capabilities.
type Client struct {
	*redis.Client
	metrics   *PoolMetrics
	lastStats *redis.PoolStats
}

// New creates a Redis client from cfg and pings it.
// Returns nil if the URL is empty (Redis not configured).
func New(ctx context.Context, cfg config.Redis, metrics *PoolMetrics) (*Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{Client: client, metrics: metrics}, nil
}

// Wrap adapts an existing go-redis client. Used by tests.
func Wrap(client *redis.Client, metrics *PoolMetrics) *Client {
	return &Client{Client: client, metrics: metrics}
}

// Health checks if the Redis connection is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.Client.Close()
}

// RecordPoolStats updates the pool metrics from the current statistics.
// Counters advance by the delta since the previous call.
func (c *Client) RecordPoolStats() {
	if c.metrics == nil {
		return
	}
	stats := c.PoolStats()
	m := c.metrics

	m.totalConns.Set(float64(stats.TotalConns))
	m.idleConns.Set(float64(stats.IdleConns))

	var last redis.PoolStats
	if c.lastStats != nil {
		last = *c.lastStats
	}
	addDelta(m.hits, stats.Hits, last.Hits)
	addDelta(m.misses, stats.Misses, last.Misses)
	addDelta(m.timeouts, stats.Timeouts, last.Timeouts)
	addDelta(m.staleConns, stats.StaleConns, last.StaleConns)

	c.lastStats = stats
}

func addDelta(c prometheus.Counter, now, before uint32) {
	if now > before {
		c.Add(float64(now - before))
	}
}
