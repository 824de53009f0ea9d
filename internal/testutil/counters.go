package testutil

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/spec-kit/ticket-intake/internal/counters"
)

// Counters is an in-memory counters.Store. Setting Err makes every call
// fail, which simulates a store outage.
type Counters struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	Err    error
}

var _ counters.Store = (*Counters)(nil)

// NewCounters returns an empty store.
func NewCounters() *Counters {
	return &Counters{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (c *Counters) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return 0, c.Err
	}
	n, _ := strconv.ParseInt(c.values[key], 10, 64)
	n++
	c.values[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (c *Counters) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.ttls[key] = ttl
	return nil
}

func (c *Counters) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return "", c.Err
	}
	return c.values[key], nil
}

func (c *Counters) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.values[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *Counters) MGet(_ context.Context, keys ...string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = c.values[k]
	}
	return out, nil
}

// TTL returns the last expiry set on key.
func (c *Counters) TTL(key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ttl, ok := c.ttls[key]
	return ttl, ok
}

// Flush drops every key, as if all windows elapsed.
func (c *Counters) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = map[string]string{}
	c.ttls = map[string]time.Duration{}
}
