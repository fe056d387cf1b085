// Package ratelimit throttles API traffic per client network address.
package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Class groups endpoints that share a quota.
type Class string

const (
	ClassRead  Class = "read"
	ClassWrite Class = "write"
)

// ClassOf maps safe methods to ClassRead and everything else to ClassWrite.
func ClassOf(method string) Class {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ClassRead
	default:
		return ClassWrite
	}
}

// Policy is a request quota over a window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Result is the outcome of one quota check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is whole seconds until the window frees capacity; zero when allowed.
	RetryAfter int
}

// Store consumes one unit from the quota identified by key.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// Limiter applies per-class policies to a store.
type Limiter struct {
	store    Store
	policies map[Class]Policy
}

// NewLimiter returns a limiter enforcing policies. Classes without a policy
// are not limited.
func NewLimiter(store Store, policies map[Class]Policy) *Limiter {
	return &Limiter{store: store, policies: policies}
}

// Check consumes one request for client under class.
func (l *Limiter) Check(ctx context.Context, client string, class Class) (*Result, error) {
	p, ok := l.policies[class]
	if !ok || p.Limit <= 0 {
		return &Result{Allowed: true}, nil
	}
	res, err := l.store.Allow(ctx, key(client, class), p.Limit, p.Window)
	if err != nil {
		return nil, fmt.Errorf("check %s limit: %w", class, err)
	}
	return res, nil
}

func key(client string, class Class) string {
	return "nexuscred:rl:" + string(class) + ":" + client
}

func retryAfterSeconds(now, resetAt time.Time) int {
	d := resetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
