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

// Package bucket maps event timestamps onto coarse time buckets used
// as partition keys for tag index rows.
package bucket

import (
	"errors"
	"time"
)

// Different bucket sizes that are supported.
const (
	// None is a placeholder for bucket sizes, it doesn't represent an
	// actual bucket size.
	None Size = iota
	Minute
	Hour
	Day
)

var (
	errUnrecognizedSize = errors.New("unrecognized bucket size")
)

// Size represents the granularity of a time bucket.
type Size byte

// Duration is the time span covered by one bucket of this size.
func (s Size) Duration() (time.Duration, error) {
	if d, found := sizesToDuration[s]; found {
		return d, nil
	}
	return 0, errUnrecognizedSize
}

// IsValid returns whether the given bucket size is valid / supported.
func (s Size) IsValid() bool {
	_, valid := sizesToDuration[s]
	return valid
}

// String returns the string representation for the bucket size.
func (s Size) String() string {
	if str, found := sizeStrings[s]; found {
		return str
	}
	return "unknown"
}

// ParseSize creates a bucket size from its string representation.
func ParseSize(str string) (Size, error) {
	if s, found := stringsToSize[str]; found {
		return s, nil
	}
	return None, errUnrecognizedSize
}

var (
	sizeStrings = map[Size]string{
		Minute: "minute",
		Hour:   "hour",
		Day:    "day",
	}

	stringsToSize   = make(map[string]Size)
	sizesToDuration = map[Size]time.Duration{
		Minute: time.Minute,
		Hour:   time.Hour,
		Day:    24 * time.Hour,
	}
)

func init() {
	for s, str := range sizeStrings {
		stringsToSize[str] = s
	}
}
