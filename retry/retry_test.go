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
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testOptions() Options {
	return NewOptions().
		SetInitialBackoff(time.Microsecond).
		SetMaxBackoff(time.Microsecond).
		SetJitterFactor(0)
}

func TestRetrierExhaustsAttempts(t *testing.T) {
	var (
		invocations int
		failures    []int
		errs        []error
	)
	r := NewRetrier(testOptions().SetMaxAttempts(4))

	fn := func() error {
		invocations++
		return fmt.Errorf("attempt %d failed", invocations)
	}
	onFailure := func(attempt int, err error, backoff time.Duration) {
		failures = append(failures, attempt)
		errs = append(errs, err)
	}

	err := r.AttemptWithReport(context.Background(), fn, onFailure)
	require.Error(t, err)
	require.Equal(t, "attempt 4 failed", err.Error())
	require.Equal(t, 4, invocations)
	require.Equal(t, []int{1, 2, 3}, failures)
	for i, e := range errs {
		require.Equal(t, fmt.Sprintf("attempt %d failed", i+1), e.Error())
	}
}

func TestRetrierSuccessAfterFailures(t *testing.T) {
	var (
		invocations int
		failures    int
	)
	r := NewRetrier(testOptions().SetMaxAttempts(5))

	fn := func() error {
		invocations++
		if invocations <= 2 {
			return fmt.Errorf("transient")
		}
		return nil
	}
	onFailure := func(attempt int, err error, backoff time.Duration) {
		failures++
	}

	err := r.AttemptWithReport(context.Background(), fn, onFailure)
	require.NoError(t, err)
	require.Equal(t, 3, invocations)
	require.Equal(t, 2, failures)
}

func TestRetrierSingleAttemptNoRetries(t *testing.T) {
	var invocations int
	r := NewRetrier(testOptions().SetMaxAttempts(1))

	err := r.AttemptWithReport(context.Background(), func() error {
		invocations++
		return fmt.Errorf("boom")
	}, func(attempt int, err error, backoff time.Duration) {
		t.Fatal("onFailure must not be called for the final attempt")
	})
	require.Error(t, err)
	require.Equal(t, 1, invocations)
}

func TestRetrierNeverRetriesOnSuccess(t *testing.T) {
	var invocations int
	r := NewRetrier(testOptions().SetMaxAttempts(10))

	require.NoError(t, r.Attempt(context.Background(), func() error {
		invocations++
		return nil
	}))
	require.Equal(t, 1, invocations)
}

func TestRetrierContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRetrier(NewOptions().
		SetMaxAttempts(3).
		SetInitialBackoff(time.Hour).
		SetJitterFactor(0))

	var invocations int
	err := r.Attempt(ctx, func() error {
		invocations++
		cancel()
		return fmt.Errorf("boom")
	})
	require.Equal(t, context.Canceled, err)
	require.Equal(t, 1, invocations)
}

func TestBackoffExponentialWithCeiling(t *testing.T) {
	r := NewRetrier(NewOptions().
		SetInitialBackoff(time.Second).
		SetMaxBackoff(4 * time.Second).
		SetJitterFactor(0)).(*retrier)

	require.Equal(t, time.Second, r.backoffFor(1))
	require.Equal(t, 2*time.Second, r.backoffFor(2))
	require.Equal(t, 4*time.Second, r.backoffFor(3))
	require.Equal(t, 4*time.Second, r.backoffFor(4))
}

func TestBackoffJitterBounds(t *testing.T) {
	// Fixed rng at the extremes of [0, 2*span] maps the jitter to
	// exactly -span and +span.
	newRetrier := func(rngFn RngFn) *retrier {
		return NewRetrier(NewOptions().
			SetInitialBackoff(time.Second).
			SetMaxBackoff(time.Minute).
			SetJitterFactor(0.5).
			SetRngFn(rngFn)).(*retrier)
	}

	low := newRetrier(func(n int64) int64 { return 0 })
	require.Equal(t, 500*time.Millisecond, low.backoffFor(1))

	high := newRetrier(func(n int64) int64 { return n - 1 })
	require.Equal(t, 1500*time.Millisecond, high.backoffFor(1))
}
