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
	"time"

	"github.com/uber-go/tally"
)

// Configuration configures options for retry attempts.
type Configuration struct {
	// Maximum number of attempts, one means no retries.
	MaxAttempts int `yaml:"maxAttempts"`

	// Backoff before the second attempt.
	InitialBackoff time.Duration `yaml:"initialBackoff"`

	// Maximum backoff time.
	MaxBackoff time.Duration `yaml:"maxBackoff"`

	// Fraction of the computed backoff applied as jitter in both directions.
	JitterFactor float64 `yaml:"jitterFactor"`
}

// NewRetrier creates a new retrier based on the configuration.
func (c Configuration) NewRetrier(scope tally.Scope) Retrier {
	return NewRetrier(c.NewOptions(scope))
}

// NewOptions creates new retry options based on the configuration.
func (c Configuration) NewOptions(scope tally.Scope) Options {
	opts := NewOptions().SetMetricsScope(scope)
	if c.MaxAttempts != 0 {
		opts = opts.SetMaxAttempts(c.MaxAttempts)
	}
	if c.InitialBackoff != 0 {
		opts = opts.SetInitialBackoff(c.InitialBackoff)
	}
	if c.MaxBackoff != 0 {
		opts = opts.SetMaxBackoff(c.MaxBackoff)
	}
	if c.JitterFactor != 0.0 {
		opts = opts.SetJitterFactor(c.JitterFactor)
	}
	return opts
}
