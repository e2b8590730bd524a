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

// Package retry provides a bounded retry primitive with exponential
// backoff and jitter used to mask transient storage failures.
package retry

import (
	"context"
	"time"

	"github.com/uber-go/tally"
)

// Fn is a function that can be retried.
type Fn func() error

// OnFailureFn is invoked once per failed attempt except the final one.
// The attempt number is 1-based, err is the attempt's error and backoff
// is the delay before the next attempt begins.
type OnFailureFn func(attempt int, err error, backoff time.Duration)

// RngFn returns a non-negative pseudo-random number in [0, n).
type RngFn func(n int64) int64

// Retrier retries a function a bounded number of times, sleeping with
// exponential backoff between attempts.
type Retrier interface {
	// Options returns the retrier options.
	Options() Options

	// Attempt performs the function until it succeeds or all attempts
	// are exhausted, returning the error of the final attempt.
	Attempt(ctx context.Context, fn Fn) error

	// AttemptWithReport is Attempt with a callback invoked for every
	// non-final failure. The final failure is returned, never reported.
	AttemptWithReport(ctx context.Context, fn Fn, onFailure OnFailureFn) error
}

// Options controls retry behavior.
type Options interface {
	// SetMetricsScope sets the metrics scope.
	SetMetricsScope(value tally.Scope) Options

	// MetricsScope returns the metrics scope.
	MetricsScope() tally.Scope

	// SetMaxAttempts sets the maximum number of attempts. A value of
	// one means no retries.
	SetMaxAttempts(value int) Options

	// MaxAttempts returns the maximum number of attempts.
	MaxAttempts() int

	// SetInitialBackoff sets the backoff before the second attempt.
	SetInitialBackoff(value time.Duration) Options

	// InitialBackoff returns the backoff before the second attempt.
	InitialBackoff() time.Duration

	// SetMaxBackoff sets the ceiling on the computed backoff.
	SetMaxBackoff(value time.Duration) Options

	// MaxBackoff returns the ceiling on the computed backoff.
	MaxBackoff() time.Duration

	// SetJitterFactor sets the fraction of the computed backoff used
	// as the uniform jitter span in both directions.
	SetJitterFactor(value float64) Options

	// JitterFactor returns the jitter fraction.
	JitterFactor() float64

	// SetRngFn sets the random number generator for jitter.
	SetRngFn(value RngFn) Options

	// RngFn returns the random number generator for jitter.
	RngFn() RngFn
}
