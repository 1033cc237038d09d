package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// ErrInvalidRange is returned when a delay range is empty or negative.
var ErrInvalidRange = errors.New("invalid delay range")

// Source is the subset of *rand.Rand used to draw delays.
type Source interface {
	Int64N(n int64) int64
}

type globalSource struct{}

func (globalSource) Int64N(n int64) int64 { return rand.Int64N(n) }

// Range is an inclusive interval of pause durations. Each pause is drawn
// uniformly from [Min, Max].
type Range struct {
	Min time.Duration
	Max time.Duration
}

// NewRange validates and returns a Range. It fails when Min > Max or when either
// bound is negative, so a bad range is rejected before any draw happens.
func NewRange(min, max time.Duration) (Range, error) {
	r := Range{Min: min, Max: max}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// Validate reports whether r can be drawn from.
func (r Range) Validate() error {
	if r.Min < 0 || r.Max < 0 {
		return fmt.Errorf("%w: negative bound (min %s, max %s)", ErrInvalidRange, r.Min, r.Max)
	}
	if r.Min > r.Max {
		return fmt.Errorf("%w: min %s exceeds max %s", ErrInvalidRange, r.Min, r.Max)
	}
	return nil
}

// Draw returns a duration in [Min, Max] using src, or the process-wide
// generator when src is nil. A span of math.MaxInt64 cannot be widened by one,
// so that range draws from [Min, Max).
func (r Range) Draw(src Source) time.Duration {
	if src == nil {
		src = globalSource{}
	}
	span := int64(r.Max - r.Min)
	if span <= 0 {
		return r.Min
	}
	if span == math.MaxInt64 {
		return r.Min + time.Duration(src.Int64N(span))
	}
	return r.Min + time.Duration(src.Int64N(span+1))
}

// String renders the range for logs.
func (r Range) String() string {
	return fmt.Sprintf("[%s, %s]", r.Min, r.Max)
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep blocks for d, returning early with ctx.Err() if the context is
// canceled first.
func Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
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
