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

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"

	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/cosmoserr"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/internal/proto"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/jsonutil"
)

// Page envelopes of feed responses.
const (
	documentsEnvelope        = "Documents"
	storedProceduresEnvelope = "StoredProcedures"
)

// page is one page of a feed.
type page struct {
	items         []json.RawMessage
	continuation  string
	requestCharge float64
}

// pageFetcher fetches the page that continues from the given continuation
// token; an empty token fetches the first page.
type pageFetcher func(ctx context.Context, continuation string) (page, error)

// cursorState is the state of a ResultCursor.
type cursorState int

const (
	cursorCreated cursorState = iota
	cursorActive
	cursorExhausted
	cursorClosed
)

// ResultCursor is a lazy sequence over the results of a query or feed. Pages
// are fetched from the service as the items of the previous page are consumed.
//
// A ResultCursor is not safe for concurrent use.
type ResultCursor[T any] struct {
	pager   *runtime.Pager[page]
	decode  func(json.RawMessage) (T, error)
	client  *Client
	items   []json.RawMessage
	state   cursorState
	charge  float64
	fetched int
}

func newResultCursor[T any](c *Client, fetch pageFetcher, decode func(json.RawMessage) (T, error)) *ResultCursor[T] {
	pager := runtime.NewPager(runtime.PagingHandler[page]{
		More: func(p page) bool {
			return p.continuation != ""
		},
		Fetcher: func(ctx context.Context, cur *page) (page, error) {
			var token string
			if cur != nil {
				token = cur.continuation
			}
			return fetch(ctx, token)
		},
	})

	return &ResultCursor[T]{
		pager:  pager,
		decode: decode,
		client: c,
	}
}

// Next returns the next item of the sequence.
//
// It returns ok=false with a nil error once the sequence is exhausted, and on
// every later call. Once the client is closed, Next fails with a
// cosmoserr.ConfigurationError unless the sequence was already exhausted.
// If an item cannot be decoded into T, Next returns a
// cosmoserr.Deserialization error for that item and the following call moves
// on to the next item. If a page cannot be fetched the classified error is
// returned and the following call fetches the same page again.
func (rc *ResultCursor[T]) Next() (item T, ok bool, err error) {
	for {
		switch rc.state {
		case cursorExhausted, cursorClosed:
			return item, false, nil
		}

		if rc.client.isClosed() {
			rc.items = nil
			return item, false, cosmoserr.NewClientClosed()
		}

		if len(rc.items) > 0 {
			raw := rc.items[0]
			rc.items[0] = nil
			rc.items = rc.items[1:]
			if item, err = rc.decode(raw); err != nil {
				return item, false, err
			}
			return item, true, nil
		}

		if rc.state == cursorActive && !rc.pager.More() {
			rc.state = cursorExhausted
			rc.items = nil
			return item, false, nil
		}

		if err = rc.fetch(); err != nil {
			return item, false, err
		}
	}
}

func (rc *ResultCursor[T]) fetch() error {
	p, err := rc.pager.NextPage(rc.client.rootCtx)
	if err != nil {
		return cosmoserr.Classify(err)
	}

	rc.state = cursorActive
	rc.items = p.items
	rc.charge += p.requestCharge
	rc.fetched++
	return nil
}

// RequestCharge returns the request units consumed by the pages fetched so far.
func (rc *ResultCursor[T]) RequestCharge() float64 {
	return rc.charge
}

// PagesFetched returns the number of pages fetched so far.
func (rc *ResultCursor[T]) PagesFetched() int {
	return rc.fetched
}

// Close releases the buffered items of the cursor. After Close, Next reports
// the end of the sequence.
func (rc *ResultCursor[T]) Close() {
	rc.items = nil
	if rc.state != cursorExhausted {
		rc.state = cursorClosed
	}
}

// decodeDocument decodes a raw document into T.
func decodeDocument[T any](raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, cosmoserr.NewDeserialization(err, "cannot decode document into %T", v)
	}
	return v, nil
}

// decodeStoredProcedure projects the id, body and etag of a stored procedure
// resource. All three must be present as strings.
func decodeStoredProcedure(raw json.RawMessage) (StoredProcedure, error) {
	m, err := jsonutil.GetStringValues(raw, "id", "body", "_etag")
	if err != nil {
		return StoredProcedure{}, cosmoserr.NewDeserialization(err, "invalid stored procedure")
	}

	return StoredProcedure{
		ID:   m["id"],
		Body: m["body"],
		ETag: m["_etag"],
	}, nil
}

// readPage extracts the items of a feed page and its continuation token.
func readPage(raw *rawResponse, envelope string) (page, error) {
	items, err := jsonutil.Elements(raw.body, envelope)
	if err != nil {
		return page{}, cosmoserr.NewDeserialization(err, "invalid %s page", envelope)
	}

	return page{
		items:         items,
		continuation:  raw.header.Get(proto.HeaderContinuation),
		requestCharge: headerFloat(raw.header, proto.HeaderRequestCharge),
	}, nil
}
