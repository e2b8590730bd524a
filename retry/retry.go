// Copyright (c) 2021 Widetable, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package retry

import (
	"context"
	"math"
	"time"

	"github.com/uber-go/tally"
)

type retrier struct {
	opts           Options
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	jitterFactor   float64
	rngFn          RngFn
	metrics        retrierMetrics
}

type retrierMetrics struct {
	attempts tally.Counter
	success  tally.Counter
	errors   tally.Counter
	retries  tally.Counter
}

// NewRetrier creates a new retrier.
func NewRetrier(opts Options) Retrier {
	scope := opts.MetricsScope()
	return &retrier{
		opts:           opts,
		maxAttempts:    opts.MaxAttempts(),
		initialBackoff: opts.InitialBackoff(),
		maxBackoff:     opts.MaxBackoff(),
		jitterFactor:   opts.JitterFactor(),
		rngFn:          opts.RngFn(),
		metrics: retrierMetrics{
			attempts: scope.Counter("attempts"),
			success:  scope.Counter("success"),
			errors:   scope.Counter("errors"),
			retries:  scope.Counter("retries"),
		},
	}
}

func (r *retrier) Options() Options {
	return r.opts
}

func (r *retrier) Attempt(ctx context.Context, fn Fn) error {
	return r.attempt(ctx, fn, nil)
}

func (r *retrier) AttemptWithReport(ctx context.Context, fn Fn, onFailure OnFailureFn) error {
	return r.attempt(ctx, fn, onFailure)
}

func (r *retrier) attempt(ctx context.Context, fn Fn, onFailure OnFailureFn) error {
	for attempt := 1; ; attempt++ {
		r.metrics.attempts.Inc(1)
		err := fn()
		if err == nil {
			r.metrics.success.Inc(1)
			return nil
		}
		r.metrics.errors.Inc(1)

		if attempt >= r.maxAttempts {
			// The terminal failure is the result, not a notification.
			return err
		}

		backoff := r.backoffFor(attempt)
		if onFailure != nil {
			onFailure(attempt, err, backoff)
		}
		r.metrics.retries.Inc(1)

		timer := time.NewTimer(backoff)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// backoffFor computes min(initial * 2^(attempt-1), max) with a uniform
// random adjustment in [-jitterFactor, +jitterFactor] of that value.
func (r *retrier) backoffFor(attempt int) time.Duration {
	backoff := float64(r.initialBackoff) * math.Pow(2, float64(attempt-1))
	if max := float64(r.maxBackoff); backoff > max {
		backoff = max
	}
	if r.jitterFactor > 0 {
		if span := int64(backoff * r.jitterFactor); span > 0 {
			backoff += float64(r.rngFn(2*span+1) - span)
		}
	}
	if backoff < 0 {
		backoff = 0
	}
	return time.Duration(int64(backoff))
}
