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
	"math/rand"
	"time"

	"github.com/uber-go/tally"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = 30 * time.Second
	defaultJitterFactor   = 0.25
)

type options struct {
	scope          tally.Scope
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	jitterFactor   float64
	rngFn          RngFn
}

// NewOptions creates new retry options with defaults.
func NewOptions() Options {
	return &options{
		scope:          tally.NoopScope,
		maxAttempts:    defaultMaxAttempts,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		jitterFactor:   defaultJitterFactor,
		rngFn:          rand.Int63n,
	}
}

func (o *options) SetMetricsScope(value tally.Scope) Options {
	opts := *o
	opts.scope = value
	return &opts
}

func (o *options) MetricsScope() tally.Scope {
	return o.scope
}

func (o *options) SetMaxAttempts(value int) Options {
	opts := *o
	opts.maxAttempts = value
	return &opts
}

func (o *options) MaxAttempts() int {
	return o.maxAttempts
}

func (o *options) SetInitialBackoff(value time.Duration) Options {
	opts := *o
	opts.initialBackoff = value
	return &opts
}

func (o *options) InitialBackoff() time.Duration {
	return o.initialBackoff
}

func (o *options) SetMaxBackoff(value time.Duration) Options {
	opts := *o
	opts.maxBackoff = value
	return &opts
}

func (o *options) MaxBackoff() time.Duration {
	return o.maxBackoff
}

func (o *options) SetJitterFactor(value float64) Options {
	opts := *o
	opts.jitterFactor = value
	return &opts
}

func (o *options) JitterFactor() float64 {
	return o.jitterFactor
}

func (o *options) SetRngFn(value RngFn) Options {
	opts := *o
	opts.rngFn = value
	return &opts
}

func (o *options) RngFn() RngFn {
	return o.rngFn
}
