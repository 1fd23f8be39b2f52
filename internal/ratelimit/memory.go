package ratelimit

import (
	"context"
	"sync"
	"time"
)

// pruneThreshold is the map size above which stale windows are dropped.
const pruneThreshold = 4096

type memoryEntry struct {
	window int64
	count  int
}

// MemoryLimiter implements a fixed-window in-memory rate limiter for a single process.
type MemoryLimiter struct {
	mu       sync.Mutex
	counters map[string]*memoryEntry
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		counters: make(map[string]*memoryEntry),
	}
}

// Allow checks whether the request should be allowed in the current second.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	sec := now.Unix()
	reset := time.Unix(sec+1, 0).UTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.counters) > pruneThreshold {
		l.prune(sec)
	}
	entry := l.counters[key]
	if entry == nil {
		entry = &memoryEntry{window: sec}
		l.counters[key] = entry
	}
	if entry.window != sec {
		entry.window = sec
		entry.count = 0
	}
	if entry.count >= limit {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	entry.count++
	return Result{Allowed: true, Remaining: limit - entry.count, Reset: reset}, nil
}

func (l *MemoryLimiter) prune(sec int64) {
	for k, e := range l.counters {
		if e.window != sec {
			delete(l.counters, k)
		}
	}
}
