// Package retry drives a fallible producer until a caller supplied predicate
// accepts its result or the attempt budget runs out.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"reflect"
	"time"
)

const DefaultMaxAttempts = 5

var ErrBudgetExhausted = errors.New("retry: attempt budget exhausted")

// Producer performs one attempt.
type Producer[T any] func(ctx context.Context, attempt int) (T, error)

type Predicate[T any] func(T) bool

// DelayFunc returns the pause taken before the given attempt index.
type DelayFunc func(attempt int) time.Duration

type SleepFunc func(ctx context.Context, delay time.Duration) error

type Config[T any] struct {
	MaxAttempts int
	Accept      Predicate[T]
	Delay       DelayFunc
	Sleep       SleepFunc
	// OnFailure is called after every rejected attempt. err is nil when the
	// producer succeeded but Accept refused the value.
	OnFailure func(attempt int, err error)
}

type Outcome[T any] struct {
	Value    T
	Attempts int
}

// Until runs produce until Accept passes. Attempts after the first wait for
// Delay(attempt) first. On exhaustion the most recent producer error is
// returned, or ErrBudgetExhausted when no attempt failed with an error.
func Until[T any](ctx context.Context, cfg Config[T], produce Producer[T]) (Outcome[T], error) {
	var zero Outcome[T]
	if produce == nil {
		return zero, errors.New("retry: producer is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := cfg.Sleep(ctx, cfg.Delay(attempt)); err != nil {
				return Outcome[T]{Attempts: attempt}, err
			}
		}
		if err := ctx.Err(); err != nil {
			return Outcome[T]{Attempts: attempt}, err
		}

		value, err := produce(ctx, attempt)
		if err == nil && cfg.Accept(value) {
			return Outcome[T]{Value: value, Attempts: attempt + 1}, nil
		}
		if err != nil {
			lastErr = err
		}
		if cfg.OnFailure != nil {
			cfg.OnFailure(attempt, err)
		}
	}

	if lastErr != nil {
		return Outcome[T]{Attempts: cfg.MaxAttempts}, lastErr
	}
	return Outcome[T]{Attempts: cfg.MaxAttempts}, ErrBudgetExhausted
}

func (c Config[T]) withDefaults() Config[T] {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Accept == nil {
		c.Accept = Truthy[T]
	}
	if c.Delay == nil {
		c.Delay = DefaultBackoff().Delay
	}
	if c.Sleep == nil {
		c.Sleep = Wait
	}
	return c
}

// Truthy accepts any value that is not the zero value of its type.
func Truthy[T any](value T) bool {
	rv := reflect.ValueOf(any(value))
	if !rv.IsValid() {
		return false
	}
	return !rv.IsZero()
}

// Wait pauses for delay or until ctx is done.
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff computes Base * Exponent^(Factor*attempt) plus uniform jitter in
// [0, JitterMax).
type Backoff struct {
	Base      time.Duration
	Exponent  float64
	Factor    float64
	JitterMax time.Duration
	// Rand returns a float in [0,1). Defaults to math/rand/v2.
	Rand func() float64
}

func DefaultBackoff() Backoff {
	return Backoff{
		Base:      time.Second,
		Exponent:  2,
		Factor:    1.1,
		JitterMax: 3 * time.Second,
	}
}

func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := b.Exponential(attempt)
	jitter := b.Jitter()
	if base > time.Duration(math.MaxInt64)-jitter {
		return time.Duration(math.MaxInt64)
	}
	return base + jitter
}

func (b Backoff) Exponential(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	exponent := b.Exponent
	if exponent < 1 {
		exponent = 1
	}
	factor := b.Factor
	if factor < 0 {
		factor = 0
	}
	scaled := float64(b.Base) * math.Pow(exponent, factor*float64(attempt))
	if math.IsInf(scaled, 0) || scaled > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(scaled)
}

func (b Backoff) Jitter() time.Duration {
	if b.JitterMax <= 0 {
		return 0
	}
	random := b.Rand
	if random == nil {
		random = rand.Float64
	}
	sample := random()
	if sample < 0 {
		sample = 0
	}
	if sample >= 1 {
		sample = math.Nextafter(1, 0)
	}
	return time.Duration(sample * float64(b.JitterMax))
}
