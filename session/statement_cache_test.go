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

package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingSession struct {
	Session

	mu       sync.Mutex
	prepares int
	err      error
}

func (s *countingSession) Prepare(_ context.Context, stmt string) (PreparedStatement, error) {
	s.mu.Lock()
	s.prepares++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return fakePrepared{text: stmt}, nil
}

type fakePrepared struct {
	text string
}

func (p fakePrepared) Bind(args ...interface{}) BoundStatement {
	return BoundStatement{Statement: p.text, Args: args}
}

func TestStatementCacheMemoizes(t *testing.T) {
	var (
		s     = &countingSession{}
		cache = NewStatementCache(s)
		ctx   = context.Background()
	)

	first, err := cache.Prepare(ctx, "SELECT 1")
	require.NoError(t, err)

	second, err := cache.Prepare(ctx, "SELECT 1")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, s.prepares)

	_, err = cache.Prepare(ctx, "SELECT 2")
	require.NoError(t, err)
	require.Equal(t, 2, s.prepares)
}

func TestStatementCachePrepareErrorNotCached(t *testing.T) {
	var (
		s     = &countingSession{err: errors.New("unavailable")}
		cache = NewStatementCache(s)
		ctx   = context.Background()
	)

	_, err := cache.Prepare(ctx, "SELECT 1")
	require.Error(t, err)

	s.err = nil
	ps, err := cache.Prepare(ctx, "SELECT 1")
	require.NoError(t, err)
	require.NotNil(t, ps)
	require.Equal(t, 2, s.prepares)
}

func TestStatementCacheConcurrentFirstUseConverges(t *testing.T) {
	var (
		s     = &countingSession{}
		cache = NewStatementCache(s)
		wg    sync.WaitGroup
	)

	results := make([]PreparedStatement, 8)
	for i := 0; i < len(results); i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			ps, err := cache.Prepare(context.Background(), "SELECT 1")
			require.NoError(t, err)
			results[i] = ps
		}()
	}
	wg.Wait()

	// Duplicate preparation is tolerated but the cache converges.
	final, err := cache.Prepare(context.Background(), "SELECT 1")
	require.NoError(t, err)
	for _, ps := range results {
		require.NotNil(t, ps)
	}
	require.Equal(t, final, results[0])
}
