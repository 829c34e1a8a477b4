package fetch

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Chance is a source of uniform random numbers in [0, 1).
type Chance interface {
	Float64() float64
}

// Sleeper waits for a duration or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// RandomChance draws from math/rand/v2's global source, which is safe for
// concurrent use.
type RandomChance struct{}

// Float64 returns a pseudo-random number in [0, 1).
func (RandomChance) Float64() float64 { return rand.Float64() }

// TimerSleeper sleeps on a real timer.
type TimerSleeper struct{}

// Sleep blocks for d or until ctx is done, whichever is first.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// LatencyRange is a closed interval of simulated delays.
type LatencyRange struct {
	Min time.Duration
	Max time.Duration
}

// Pick returns a delay uniformly distributed in [Min, Max].
func (r LatencyRange) Pick(c Chance) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(c.Float64()*float64(r.Max-r.Min))
}

// Simulation describes the artificial latency and failure injected in front
// of every adapter operation.
type Simulation struct {
	ReadLatency  LatencyRange
	WriteLatency LatencyRange
	// ErrorRate is the probability in [0, 1] that an operation fails with
	// one of SimulatedCodes.
	ErrorRate float64
}

// DefaultSimulation mimics a slow, slightly flaky backend:
// 200-500ms reads, 300-600ms writes, 5% errors.
func DefaultSimulation() Simulation {
	return Simulation{
		ReadLatency:  LatencyRange{Min: 200 * time.Millisecond, Max: 500 * time.Millisecond},
		WriteLatency: LatencyRange{Min: 300 * time.Millisecond, Max: 600 * time.Millisecond},
		ErrorRate:    0.05,
	}
}

// NoSimulation disables latency and error injection.
func NoSimulation() Simulation {
	return Simulation{}
}

// Validate checks that the ranges and rate are usable.
func (s Simulation) Validate() error {
	for name, r := range map[string]LatencyRange{"read": s.ReadLatency, "write": s.WriteLatency} {
		if r.Min < 0 || r.Max < 0 {
			return fmt.Errorf("%s latency must not be negative", name)
		}
		if r.Max < r.Min {
			return fmt.Errorf("%s latency max %s is below min %s", name, r.Max, r.Min)
		}
	}
	if s.ErrorRate < 0 || s.ErrorRate > 1 {
		return fmt.Errorf("error rate must be in [0,1], got %v", s.ErrorRate)
	}
	return nil
}

// simulator applies a Simulation using injected randomness and sleeping.
//
// Each call draws from Chance in a fixed order: latency, error roll, then
// the error code only when the roll fails.
type simulator struct {
	sim     Simulation
	chance  Chance
	sleeper Sleeper
}

// read simulates a read round trip.
func (s *simulator) read(ctx context.Context, op string) error {
	return s.step(ctx, op, s.sim.ReadLatency)
}

// write simulates a write round trip.
func (s *simulator) write(ctx context.Context, op string) error {
	return s.step(ctx, op, s.sim.WriteLatency)
}

func (s *simulator) step(ctx context.Context, op string, latency LatencyRange) error {
	if err := s.sleeper.Sleep(ctx, latency.Pick(s.chance)); err != nil {
		return err
	}
	if s.sim.ErrorRate <= 0 || s.chance.Float64() >= s.sim.ErrorRate {
		return nil
	}

	idx := int(s.chance.Float64() * float64(len(SimulatedCodes)))
	idx = min(max(idx, 0), len(SimulatedCodes)-1)
	e := NewError(SimulatedCodes[idx], op, "simulated failure")
	e.Simulated = true
	return e
}
