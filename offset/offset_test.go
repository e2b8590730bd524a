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

package offset

import (
	"strings"
	"testing"
	"time"

	"github.com/pborman/uuid"
	"github.com/stretchr/testify/require"
)

func TestUUIDAtTimeRoundTrip(t *testing.T) {
	for _, ts := range []time.Time{
		time.Unix(0, 0).UTC(),
		time.Date(2021, time.May, 1, 12, 34, 56, 700, time.UTC),
		time.Date(2038, time.January, 19, 3, 14, 7, 0, time.UTC),
	} {
		u := UUIDAtTime(ts)
		extracted, err := TimeOf(u)
		require.NoError(t, err)
		require.Equal(t, ts, extracted)
	}
}

func TestTimeOfGeneratedUUID(t *testing.T) {
	before := time.Now().Add(-time.Second)
	u := uuid.NewUUID()
	extracted, err := TimeOf(u)
	require.NoError(t, err)
	require.True(t, extracted.After(before))
	require.True(t, extracted.Before(time.Now().Add(time.Second)))
}

func TestTimeOfRejectsNonTimeUUID(t *testing.T) {
	_, err := TimeOf(uuid.NewRandom())
	require.Error(t, err)
}

func TestFormatIncludesTimestamp(t *testing.T) {
	ts := time.Date(2021, time.May, 1, 12, 0, 0, 0, time.UTC)
	u := UUIDAtTime(ts)
	formatted := Format(u)
	require.True(t, strings.HasPrefix(formatted, u.String()))
	require.Contains(t, formatted, "2021-05-01T12:00:00Z")
}

func TestFormatNonTimeUUIDFallsBack(t *testing.T) {
	u := uuid.NewRandom()
	require.Equal(t, u.String(), Format(u))
}
