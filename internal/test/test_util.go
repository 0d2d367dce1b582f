//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package test

import (
	"math/rand"

	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb"
)

// Item is the document type used in tests. The test containers are
// partitioned on /pk.
type Item struct {
	ID    string   `json:"id"`
	PK    string   `json:"pk"`
	Name  string   `json:"name,omitempty"`
	Count int      `json:"count"`
	Tags  []string `json:"tags,omitempty"`
	ETag  string   `json:"_etag,omitempty"`
}

// Collect drains a cursor and returns all of its items.
func Collect[T any](cursor *cosmosdb.ResultCursor[T]) ([]T, error) {
	defer cursor.Close()

	var items []T
	for {
		item, ok, err := cursor.Next()
		if err != nil {
			return items, err
		}
		if !ok {
			return items, nil
		}
		items = append(items, item)
	}
}

const letterBytes = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenString generates a random string of length n.
func GenString(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}
