package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// SequenceChance returns predetermined values in order, then repeats the
// last one. With no values it always returns 0.99, which never trips an
// error roll below 99%.
//
// Thread-safety: SequenceChance is safe for concurrent use via internal mutex.
type SequenceChance struct {
	mu     sync.Mutex
	values []float64
	idx    int
}

// NewSequenceChance creates a chance that yields values in order.
func NewSequenceChance(values ...float64) *SequenceChance {
	return &SequenceChance{values: values}
}

// Float64 returns the next value.
func (c *SequenceChance) Float64() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.values) == 0 {
		return 0.99
	}
	if c.idx >= len(c.values) {
		return c.values[len(c.values)-1]
	}
	v := c.values[c.idx]
	c.idx++
	return v
}

// ConstantChance always returns the same value.
type ConstantChance float64

// Float64 returns c.
func (c ConstantChance) Float64() float64 { return float64(c) }

// RecordingSleeper records requested sleeps and returns immediately,
// unless ctx is already done.
//
// Thread-safety: RecordingSleeper is safe for concurrent use via internal mutex.
type RecordingSleeper struct {
	mu    sync.Mutex
	slept []time.Duration
}

// NewRecordingSleeper creates an empty sleeper.
func NewRecordingSleeper() *RecordingSleeper {
	return &RecordingSleeper{}
}

// Sleep records d.
func (s *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slept = append(s.slept, d)
	return nil
}

// Slept returns a copy of the recorded durations.
func (s *RecordingSleeper) Slept() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.slept...)
}

// BlockingSleeper blocks until ctx is done. It simulates an operation that
// never finishes on its own.
type BlockingSleeper struct{}

// Sleep waits for ctx.
func (BlockingSleeper) Sleep(ctx context.Context, _ time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}

// SequenceIDGenerator generates "<prefix>-1", "<prefix>-2", ...
//
// This enables deterministic request ids in logs and golden output.
//
// Thread-safety: SequenceIDGenerator is safe for concurrent use via internal mutex.
type SequenceIDGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceIDGenerator creates a generator. An empty prefix becomes "req".
func NewSequenceIDGenerator(prefix string) *SequenceIDGenerator {
	if prefix == "" {
		prefix = "req"
	}
	return &SequenceIDGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *SequenceIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
