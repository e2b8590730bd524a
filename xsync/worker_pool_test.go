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

package xsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

const testWorkerPoolSize = 5

func TestGo(t *testing.T) {
	var (
		p     = NewWorkerPool(testWorkerPoolSize)
		count atomic.Uint32
		wg    sync.WaitGroup
	)
	p.Init()

	n := testWorkerPoolSize * 3
	wg.Add(n)
	for i := 0; i < n; i++ {
		p.Go(func() {
			count.Inc()
			wg.Done()
		})
	}
	wg.Wait()

	require.Equal(t, uint32(n), count.Load())
}

func TestGoIfAvailableAlwaysFalseWhenBusy(t *testing.T) {
	p := NewWorkerPool(1)
	p.Init()

	block := make(chan struct{})
	done := make(chan struct{})
	require.True(t, p.GoIfAvailable(func() {
		<-block
		close(done)
	}))

	require.False(t, p.GoIfAvailable(func() {}))

	close(block)
	<-done
}

func TestGoWithTimeout(t *testing.T) {
	p := NewWorkerPool(1)
	p.Init()

	block := make(chan struct{})
	done := make(chan struct{})
	require.True(t, p.GoWithTimeout(func() {
		<-block
		close(done)
	}, time.Minute))

	require.False(t, p.GoWithTimeout(func() {}, time.Millisecond))

	close(block)
	<-done
}

func TestGoWithContextCanceled(t *testing.T) {
	p := NewWorkerPool(1)
	p.Init()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.False(t, p.GoWithContext(ctx, func() {}))
}
