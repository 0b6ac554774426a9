// Package querylog collects the statements executed on behalf of a single
// request. A Collector travels in the request context; stores append to it
// when one is present and do nothing otherwise.
package querylog

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Entry is one executed statement.
type Entry struct {
	Seq      int           `json:"seq"`
	Kind     string        `json:"kind"`
	Query    string        `json:"query"`
	Args     []any         `json:"args,omitempty"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
}

// Collector is safe for concurrent use.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
}

// New returns an empty collector.
func New() *Collector {
	return &Collector{}
}

// Record appends a statement.
func (c *Collector) Record(query string, args []any, d time.Duration, err error) {
	if c == nil {
		return
	}
	clean := Clean(query)
	e := Entry{Kind: Kind(clean), Query: clean, Args: args, Duration: d}
	if err != nil {
		e.Err = err.Error()
	}

	c.mu.Lock()
	e.Seq = len(c.entries) + 1
	c.entries = append(c.entries, e)
	c.mu.Unlock()
}

// Entries returns a copy of the recorded statements in execution order.
func (c *Collector) Entries() []Entry {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Total is the summed duration of all statements.
func (c *Collector) Total() time.Duration {
	var total time.Duration
	for _, e := range c.Entries() {
		total += e.Duration
	}
	return total
}

type ctxKey struct{}

// WithCollector attaches c to ctx.
func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the collector attached to ctx, or nil.
func FromContext(ctx context.Context) *Collector {
	c, _ := ctx.Value(ctxKey{}).(*Collector)
	return c
}

// Record appends to the collector in ctx, if any.
func Record(ctx context.Context, query string, args []any, d time.Duration, err error) {
	FromContext(ctx).Record(query, args, d, err)
}

var whitespace = regexp.MustCompile(`\s+`)

// Clean collapses whitespace so multi-line statements log on one line.
func Clean(query string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(query, " "))
}

// Kind returns the leading SQL verb in lower case, e.g. "select".
func Kind(query string) string {
	verb, _, _ := strings.Cut(strings.TrimSpace(query), " ")
	return strings.ToLower(verb)
}
