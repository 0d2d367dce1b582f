//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package cosmosdb

import (
	"encoding/json"
	"math"
	"strconv"
)

// PartitionKeyKind identifies the kind of value held by a PartitionKey.
type PartitionKeyKind int

const (
	// PartitionKeyNone represents the absence of a partition key.
	PartitionKeyNone PartitionKeyKind = iota // 0

	// PartitionKeyString represents a string partition key.
	PartitionKeyString // 1

	// PartitionKeyInteger represents an integer partition key.
	PartitionKeyInteger // 2

	// PartitionKeyDouble represents a floating point partition key.
	PartitionKeyDouble // 3
)

func (k PartitionKeyKind) String() string {
	switch k {
	case PartitionKeyString:
		return "String"
	case PartitionKeyInteger:
		return "Integer"
	case PartitionKeyDouble:
		return "Double"
	default:
		return "None"
	}
}

// PartitionKey is the value that routes a request to a logical partition.
//
// The zero value is NoPartitionKey. A request without a partition key is sent
// as a cross-partition request where the operation allows it.
type PartitionKey struct {
	kind PartitionKeyKind
	s    string
	i    int64
	f    float64
}

// NoPartitionKey is the partition key of requests that do not target a single
// logical partition.
var NoPartitionKey = PartitionKey{}

// NewPartitionKey classifies v as a partition key:
//
//	string                              -> string key
//	int, int8 ... int64, uint ... uint64 -> integer key
//	float32, float64                    -> double key
//	json.Number                         -> integer key if it parses as int64, else double key
//
// Unsigned values above math.MaxInt64 become double keys. Anything else,
// including nil, booleans, NaN and infinities, yields NoPartitionKey.
// NewPartitionKey never fails and always returns the same key for the same value.
func NewPartitionKey(v interface{}) PartitionKey {
	switch x := v.(type) {
	case PartitionKey:
		return x
	case string:
		return PartitionKey{kind: PartitionKeyString, s: x}
	case int:
		return intKey(int64(x))
	case int8:
		return intKey(int64(x))
	case int16:
		return intKey(int64(x))
	case int32:
		return intKey(int64(x))
	case int64:
		return intKey(x)
	case uint:
		return uintKey(uint64(x))
	case uint8:
		return intKey(int64(x))
	case uint16:
		return intKey(int64(x))
	case uint32:
		return intKey(int64(x))
	case uint64:
		return uintKey(x)
	case float32:
		return doubleKey(float64(x))
	case float64:
		return doubleKey(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return intKey(i)
		}
		if f, err := x.Float64(); err == nil {
			return doubleKey(f)
		}
		return NoPartitionKey
	default:
		return NoPartitionKey
	}
}

func intKey(i int64) PartitionKey {
	return PartitionKey{kind: PartitionKeyInteger, i: i}
}

func uintKey(u uint64) PartitionKey {
	if u > math.MaxInt64 {
		return doubleKey(float64(u))
	}
	return intKey(int64(u))
}

func doubleKey(f float64) PartitionKey {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return NoPartitionKey
	}
	return PartitionKey{kind: PartitionKeyDouble, f: f}
}

// Kind returns the kind of the partition key.
func (pk PartitionKey) Kind() PartitionKeyKind {
	return pk.kind
}

// IsNone reports whether pk is NoPartitionKey.
func (pk PartitionKey) IsNone() bool {
	return pk.kind == PartitionKeyNone
}

// Value returns the key as a string, int64 or float64, or nil for NoPartitionKey.
func (pk PartitionKey) Value() interface{} {
	switch pk.kind {
	case PartitionKeyString:
		return pk.s
	case PartitionKeyInteger:
		return pk.i
	case PartitionKeyDouble:
		return pk.f
	default:
		return nil
	}
}

// Equal reports whether pk and other have the same kind and value.
func (pk PartitionKey) Equal(other PartitionKey) bool {
	return pk == other
}

// String returns a readable form of the key.
func (pk PartitionKey) String() string {
	switch pk.kind {
	case PartitionKeyString:
		return strconv.Quote(pk.s)
	case PartitionKeyInteger:
		return strconv.FormatInt(pk.i, 10)
	case PartitionKeyDouble:
		return strconv.FormatFloat(pk.f, 'g', -1, 64)
	default:
		return "None"
	}
}

// headerValue returns the value of the partition key header: a JSON array
// holding the key. It returns an empty string for NoPartitionKey.
func (pk PartitionKey) headerValue() string {
	if pk.IsNone() {
		return ""
	}
	b, err := json.Marshal([]interface{}{pk.Value()})
	if err != nil {
		return ""
	}
	return string(b)
}
