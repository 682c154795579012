package issue

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/multierr"
)

// Collector gathers issues emitted during a build.
type Collector struct {
	mu     sync.Mutex
	issues []Issue
	seen   map[string]struct{}
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{seen: make(map[string]struct{})}
}

// Emit records iss. Identical issues are recorded once.
func (c *Collector) Emit(iss Issue) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := iss.Key()
	if _, ok := c.seen[k]; ok {
		return
	}
	c.seen[k] = struct{}{}
	c.issues = append(c.issues, iss)
}

// Issues returns the recorded issues, most severe first.
func (c *Collector) Issues() []Issue {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Issue, len(c.issues))
	copy(out, c.issues)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Severity != out[j].Severity {
			return out[i].Severity < out[j].Severity
		}
		return out[i].Context < out[j].Context
	})
	return out
}

// HasErrors reports whether any issue fails the build.
func (c *Collector) HasErrors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, iss := range c.issues {
		if iss.Severity.IsError() {
			return true
		}
	}
	return false
}

// Err combines every failing issue into one error, or returns nil.
func (c *Collector) Err() error {
	var err error
	for _, iss := range c.Issues() {
		if iss.Severity.IsError() {
			err = multierr.Append(err, iss)
		}
	}
	return err
}

type collectorKey struct{}

// WithCollector attaches c to ctx.
func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, collectorKey{}, c)
}

// FromContext returns the collector attached to ctx.
func FromContext(ctx context.Context) (*Collector, bool) {
	c, ok := ctx.Value(collectorKey{}).(*Collector)
	return c, ok
}

// Emit records iss on the collector attached to ctx. Without a collector the
// issue is dropped.
func Emit(ctx context.Context, iss Issue) {
	if c, ok := FromContext(ctx); ok {
		c.Emit(iss)
	}
}
