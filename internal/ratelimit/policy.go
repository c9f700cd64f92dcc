// Package ratelimit provides the burst-control strategies consulted by the
// admission service before the subscription quota is checked.
package ratelimit

import (
	"context"
	"time"
)

// Policy decides whether a keyed action may proceed right now. retryAfter
// is only meaningful when allowed is false.
type Policy interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// AlwaysAllow bypasses burst control entirely. Selected by configuration
// for local development and in tests that exercise quota semantics alone.
type AlwaysAllow struct{}

func NewAlwaysAllow() *AlwaysAllow {
	return &AlwaysAllow{}
}

func (*AlwaysAllow) Allow(context.Context, string) (bool, time.Duration, error) {
	return true, 0, nil
}
