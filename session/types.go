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

// Package session declares the narrow contract this plugin consumes
// from the storage driver. The driver, connection pooling and cluster
// topology live outside this module.
package session

import (
	"context"

	"github.com/pborman/uuid"
)

// Session executes prepared statements against the storage cluster.
type Session interface {
	// Prepare prepares a statement for execution.
	Prepare(ctx context.Context, stmt string) (PreparedStatement, error)

	// SelectOne executes a read returning at most one row, nil when no
	// row matched.
	SelectOne(ctx context.Context, stmt BoundStatement) (Row, error)

	// Select executes a read returning a lazily consumed row stream.
	Select(ctx context.Context, stmt BoundStatement) RowIterator

	// ExecuteWrite executes a single write statement.
	ExecuteWrite(ctx context.Context, stmt BoundStatement) error

	// ExecuteBatch executes the statements as one unlogged batch.
	ExecuteBatch(ctx context.Context, stmts []BoundStatement) error
}

// PreparedStatement is a statement prepared once and bound per call.
type PreparedStatement interface {
	// Bind binds positional arguments producing an executable statement.
	Bind(args ...interface{}) BoundStatement
}

// BoundStatement is a prepared statement together with its arguments.
type BoundStatement struct {
	Statement string
	Args      []interface{}
}

// Row provides column access by name and native type.
type Row interface {
	// String returns the named string column.
	String(column string) string

	// Int64 returns the named i64 column.
	Int64(column string) int64

	// Int32 returns the named i32 column.
	Int32(column string) int32

	// Bytes returns the named blob column.
	Bytes(column string) []byte

	// UUID returns the named uuid column.
	UUID(column string) uuid.UUID

	// IsNull returns whether the named column holds no value.
	IsNull(column string) bool

	// HasColumn returns whether the row shape carries the named column
	// at all, distinct from a present-but-null value.
	HasColumn(column string) bool
}

// RowIterator consumes a row stream incrementally.
type RowIterator interface {
	// Next advances to the next row.
	Next() bool

	// Current returns the current row.
	Current() Row

	// Err returns any error hit while iterating.
	Err() error

	// Close releases iterator resources.
	Close() error
}
