//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package cosmosdb

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/cosmoserr"
)

// stubFeed serves pages of raw items keyed by continuation token. The token
// of page i is its index, and the first page has an empty token.
type stubFeed struct {
	pages    [][]string
	failures map[string]int
	tokens   []string
}

func (f *stubFeed) fetch(ctx context.Context, continuation string) (page, error) {
	f.tokens = append(f.tokens, continuation)
	if f.failures[continuation] > 0 {
		f.failures[continuation]--
		return page{}, cosmoserr.New(cosmoserr.Transient, "service unavailable")
	}

	idx := 0
	if continuation != "" {
		idx, _ = strconv.Atoi(continuation)
	}

	p := page{requestCharge: 1.5}
	for _, s := range f.pages[idx] {
		p.items = append(p.items, json.RawMessage(s))
	}
	if idx+1 < len(f.pages) {
		p.continuation = strconv.Itoa(idx + 1)
	}
	return p, nil
}

func newStubCursor(c *Client, f *stubFeed) *ResultCursor[int] {
	return newResultCursor(c, f.fetch, decodeDocument[int])
}

func stubClient() *Client {
	return &Client{rootCtx: context.Background()}
}

func drain(t *testing.T, rc *ResultCursor[int]) []int {
	var out []int
	for {
		v, ok, err := rc.Next()
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

func TestCursorEmpty(t *testing.T) {
	f := &stubFeed{pages: [][]string{{}}}
	rc := newStubCursor(stubClient(), f)

	for i := 0; i < 3; i++ {
		_, ok, err := rc.Next()
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 1, rc.PagesFetched())
	assert.Equal(t, []string{""}, f.tokens)
}

func TestCursorPages(t *testing.T) {
	f := &stubFeed{pages: [][]string{{"1", "2"}, {}, {"3"}, {}}}
	rc := newStubCursor(stubClient(), f)

	assert.Equal(t, []int{1, 2, 3}, drain(t, rc))
	assert.Equal(t, 4, rc.PagesFetched())
	assert.Equal(t, 6.0, rc.RequestCharge())
	assert.Equal(t, []string{"", "1", "2", "3"}, f.tokens)

	// Exhausted cursors stay exhausted without fetching.
	_, ok, err := rc.Next()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, f.tokens, 4)
}

func TestCursorLazyFetch(t *testing.T) {
	f := &stubFeed{pages: [][]string{{"1"}, {"2"}}}
	rc := newStubCursor(stubClient(), f)
	assert.Empty(t, f.tokens, "no page should be fetched before Next")

	v, ok, err := rc.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, []string{""}, f.tokens)
}

func TestCursorDecodeError(t *testing.T) {
	f := &stubFeed{pages: [][]string{{"1", `"x"`, "3"}}}
	rc := newStubCursor(stubClient(), f)

	v, ok, err := rc.Next()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok, err = rc.Next()
	assert.False(t, ok)
	assert.Truef(t, cosmoserr.Is(err, cosmoserr.Deserialization), "Next() should have failed with Deserialization, got %v", err)

	v, ok, err = rc.Next()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestCursorFetchErrorKeepsPosition(t *testing.T) {
	tests := []struct {
		desc    string
		failing string
		tokens  []string
	}{
		{"first page", "", []string{"", "", "1"}},
		{"later page", "1", []string{"", "1", "1"}},
	}

	for _, r := range tests {
		f := &stubFeed{
			pages:    [][]string{{"1"}, {"2"}},
			failures: map[string]int{r.failing: 1},
		}
		rc := newStubCursor(stubClient(), f)

		var got []int
		var errs int
		for i := 0; i < 10; i++ {
			v, ok, err := rc.Next()
			if err != nil {
				errs++
				assert.Truef(t, cosmoserr.Is(err, cosmoserr.Transient), "%s: unexpected error %v", r.desc, err)
				continue
			}
			if !ok {
				break
			}
			got = append(got, v)
		}

		assert.Equalf(t, 1, errs, "%s: unexpected number of errors", r.desc)
		assert.Equalf(t, []int{1, 2}, got, "%s: unexpected items", r.desc)
		assert.Equalf(t, r.tokens, f.tokens, "%s: unexpected continuation tokens", r.desc)
	}
}

func TestCursorClientClosed(t *testing.T) {
	c := stubClient()
	f := &stubFeed{pages: [][]string{{"1", "2"}}}
	rc := newStubCursor(c, f)

	v, ok, err := rc.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, v)

	c.closed.Store(true)
	_, ok, err = rc.Next()
	assert.False(t, ok)
	assert.True(t, errors.Is(err, cosmoserr.ErrClientClosed), "Next() should fail once the client is closed, got %v", err)

	// An exhausted cursor reports the end even after the client is closed.
	c2 := stubClient()
	rc = newStubCursor(c2, &stubFeed{pages: [][]string{{}}})
	_, ok, err = rc.Next()
	require.NoError(t, err)
	require.False(t, ok)
	c2.closed.Store(true)
	_, ok, err = rc.Next()
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestCursorClose(t *testing.T) {
	f := &stubFeed{pages: [][]string{{"1", "2"}, {"3"}}}
	rc := newStubCursor(stubClient(), f)

	_, ok, err := rc.Next()
	require.NoError(t, err)
	require.True(t, ok)

	rc.Close()
	_, ok, err = rc.Next()
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, f.tokens, 1)
}
