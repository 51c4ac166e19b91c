// Copyright 2026 The Latchkey Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"sync"

	"golang.org/x/time/rate"
)

// maxTrackedIPs bounds the limiter map. When exceeded the map is
// reset; losing bucket state grants at most one fresh burst per
// address, which is acceptable for a brute-force brake.
const maxTrackedIPs = 10000

// ipLimiter hands out one token bucket per client address. The
// code-bearing endpoints share a single ipLimiter so an address
// cannot multiply its guessing budget across routes.
type ipLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func newIPLimiter(limit rate.Limit, burst int) *ipLimiter {
	return &ipLimiter{
		buckets: make(map[string]*rate.Limiter),
		limit:   limit,
		burst:   burst,
	}
}

// allow reports whether the address may proceed, consuming one token.
func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[ip]
	if !ok {
		if len(l.buckets) >= maxTrackedIPs {
			l.buckets = make(map[string]*rate.Limiter)
		}
		bucket = rate.NewLimiter(l.limit, l.burst)
		l.buckets[ip] = bucket
	}
	return bucket.Allow()
}
