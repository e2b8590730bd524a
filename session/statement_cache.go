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
	"sync"
)

// StatementCache memoizes prepared statements by statement text.
// Concurrent first-use races prepare the same statement more than
// once, the cache converges to a single prepared statement.
type StatementCache struct {
	sync.RWMutex

	session  Session
	prepared map[string]PreparedStatement
}

// NewStatementCache creates a new statement cache on top of a session.
func NewStatementCache(session Session) *StatementCache {
	return &StatementCache{
		session:  session,
		prepared: make(map[string]PreparedStatement),
	}
}

// Prepare returns the memoized prepared statement for stmt, preparing
// it on first use.
func (c *StatementCache) Prepare(ctx context.Context, stmt string) (PreparedStatement, error) {
	c.RLock()
	ps, ok := c.prepared[stmt]
	c.RUnlock()
	if ok {
		return ps, nil
	}

	// Prepare outside the lock, duplicate preparation is wasteful but
	// not unsafe.
	ps, err := c.session.Prepare(ctx, stmt)
	if err != nil {
		return nil, err
	}

	c.Lock()
	if existing, ok := c.prepared[stmt]; ok {
		ps = existing
	} else {
		c.prepared[stmt] = ps
	}
	c.Unlock()
	return ps, nil
}
