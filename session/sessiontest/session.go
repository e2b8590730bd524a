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

// Package sessiontest provides an in-memory session fake for tests.
package sessiontest

import (
	"context"
	"sync"

	"github.com/pborman/uuid"

	"github.com/widetable/persistence/session"
)

// Session is a configurable fake storage session. Zero value is usable,
// unconfigured operations succeed with empty results.
type Session struct {
	sync.Mutex

	// PrepareErr fails every Prepare when set.
	PrepareErr error

	// SelectOneFn handles single-row reads when set.
	SelectOneFn func(stmt session.BoundStatement) (session.Row, error)

	// SelectFn handles streaming reads when set.
	SelectFn func(stmt session.BoundStatement) session.RowIterator

	// ExecuteWriteFn handles writes when set.
	ExecuteWriteFn func(stmt session.BoundStatement) error

	// ExecuteBatchFn handles batches when set.
	ExecuteBatchFn func(stmts []session.BoundStatement) error

	// Prepared records every statement text prepared.
	Prepared []string

	// Writes records every write executed.
	Writes []session.BoundStatement

	// Batches records every batch executed.
	Batches [][]session.BoundStatement
}

func (s *Session) Prepare(_ context.Context, stmt string) (session.PreparedStatement, error) {
	s.Lock()
	defer s.Unlock()
	if s.PrepareErr != nil {
		return nil, s.PrepareErr
	}
	s.Prepared = append(s.Prepared, stmt)
	return preparedStatement{text: stmt}, nil
}

func (s *Session) SelectOne(_ context.Context, stmt session.BoundStatement) (session.Row, error) {
	if s.SelectOneFn == nil {
		return nil, nil
	}
	return s.SelectOneFn(stmt)
}

func (s *Session) Select(_ context.Context, stmt session.BoundStatement) session.RowIterator {
	if s.SelectFn == nil {
		return NewRowIterator()
	}
	return s.SelectFn(stmt)
}

func (s *Session) ExecuteWrite(_ context.Context, stmt session.BoundStatement) error {
	s.Lock()
	s.Writes = append(s.Writes, stmt)
	s.Unlock()
	if s.ExecuteWriteFn == nil {
		return nil
	}
	return s.ExecuteWriteFn(stmt)
}

func (s *Session) ExecuteBatch(_ context.Context, stmts []session.BoundStatement) error {
	s.Lock()
	s.Batches = append(s.Batches, stmts)
	s.Unlock()
	if s.ExecuteBatchFn == nil {
		return nil
	}
	return s.ExecuteBatchFn(stmts)
}

type preparedStatement struct {
	text string
}

func (p preparedStatement) Bind(args ...interface{}) session.BoundStatement {
	return session.BoundStatement{Statement: p.text, Args: args}
}

// Row is a fake row keyed by column name. A key present with a nil
// value models a null column, an absent key models a column missing
// from the row shape entirely.
type Row map[string]interface{}

func (r Row) String(column string) string {
	v, _ := r[column].(string)
	return v
}

func (r Row) Int64(column string) int64 {
	v, _ := r[column].(int64)
	return v
}

func (r Row) Int32(column string) int32 {
	v, _ := r[column].(int32)
	return v
}

func (r Row) Bytes(column string) []byte {
	v, _ := r[column].([]byte)
	return v
}

func (r Row) UUID(column string) uuid.UUID {
	v, _ := r[column].(uuid.UUID)
	return v
}

func (r Row) IsNull(column string) bool {
	v, ok := r[column]
	return !ok || v == nil
}

func (r Row) HasColumn(column string) bool {
	_, ok := r[column]
	return ok
}

type rowIterator struct {
	rows []session.Row
	idx  int
	err  error
}

// NewRowIterator creates an iterator over the given rows.
func NewRowIterator(rows ...session.Row) session.RowIterator {
	return &rowIterator{rows: rows, idx: -1}
}

// NewErrRowIterator creates an iterator that fails after yielding the
// given rows.
func NewErrRowIterator(err error, rows ...session.Row) session.RowIterator {
	return &rowIterator{rows: rows, idx: -1, err: err}
}

func (it *rowIterator) Next() bool {
	if it.idx+1 >= len(it.rows) {
		return false
	}
	it.idx++
	return true
}

func (it *rowIterator) Current() session.Row {
	return it.rows[it.idx]
}

func (it *rowIterator) Err() error {
	if it.idx+1 >= len(it.rows) {
		return it.err
	}
	return nil
}

func (it *rowIterator) Close() error {
	return nil
}
