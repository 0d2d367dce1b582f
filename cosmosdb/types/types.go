//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package types defines the enumerations shared by client configuration and
// request options.
package types

import (
	"fmt"
	"strings"
)

// ConsistencyLevel is used to provide consistency guarantees for reads.
//
// The zero value, Unspecified, means that no level is sent with a request and
// the level configured on the client, or else the account default, applies.
//
// A request may only relax the account consistency level, never strengthen it.
type ConsistencyLevel int

const (
	// Unspecified inherits the client or account consistency level.
	Unspecified ConsistencyLevel = iota // 0

	// Strong consistency.
	Strong // 1

	// BoundedStaleness consistency.
	BoundedStaleness // 2

	// Session consistency.
	Session // 3

	// Eventual consistency.
	Eventual // 4

	// ConsistentPrefix consistency.
	ConsistentPrefix // 5
)

var consistencyNames = [...]string{"", "Strong", "BoundedStaleness", "Session", "Eventual", "ConsistentPrefix"}

// String returns the name used for the level on the wire, or an empty string
// for Unspecified.
func (c ConsistencyLevel) String() string {
	if c < 0 || int(c) >= len(consistencyNames) {
		return fmt.Sprintf("ConsistencyLevel(%d)", int(c))
	}
	return consistencyNames[c]
}

// IsValid reports whether c is Unspecified or one of the defined levels.
func (c ConsistencyLevel) IsValid() bool {
	return c >= Unspecified && c <= ConsistentPrefix
}

// GoString implements fmt.GoStringer.
func (c ConsistencyLevel) GoString() string {
	if c == Unspecified {
		return "Unspecified"
	}
	return c.String()
}

// ParseConsistencyLevel returns the ConsistencyLevel named by s. The match is
// case-insensitive. An empty string yields Unspecified.
func ParseConsistencyLevel(s string) (ConsistencyLevel, error) {
	if s == "" {
		return Unspecified, nil
	}
	for i := Strong; i <= ConsistentPrefix; i++ {
		if strings.EqualFold(s, consistencyNames[i]) {
			return i, nil
		}
	}
	return Unspecified, fmt.Errorf("invalid consistency level %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ConsistencyLevel) UnmarshalText(text []byte) (err error) {
	*c, err = ParseConsistencyLevel(string(text))
	return
}

// MarshalText implements encoding.TextMarshaler.
func (c ConsistencyLevel) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// IndexingDirective controls whether a written document is indexed.
//
// The zero value, IndexingDefault, leaves the container's indexing policy in charge.
type IndexingDirective int

const (
	// IndexingDefault applies the container's indexing policy.
	IndexingDefault IndexingDirective = iota // 0

	// IndexingInclude adds the document to the index.
	IndexingInclude // 1

	// IndexingExclude omits the document from the index.
	IndexingExclude // 2
)

// String returns the name used for the directive on the wire.
func (d IndexingDirective) String() string {
	switch d {
	case IndexingDefault:
		return "Default"
	case IndexingInclude:
		return "Include"
	case IndexingExclude:
		return "Exclude"
	default:
		return fmt.Sprintf("IndexingDirective(%d)", int(d))
	}
}

// ParseIndexingDirective returns the IndexingDirective named by s, ignoring case.
// An empty string yields IndexingDefault.
func ParseIndexingDirective(s string) (IndexingDirective, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return IndexingDefault, nil
	case "include":
		return IndexingInclude, nil
	case "exclude":
		return IndexingExclude, nil
	default:
		return IndexingDefault, fmt.Errorf("invalid indexing directive %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *IndexingDirective) UnmarshalText(text []byte) (err error) {
	*d, err = ParseIndexingDirective(string(text))
	return
}

// ConnectionMode selects the transport settings a client is configured with.
type ConnectionMode int

const (
	// Gateway mode sends requests through the account gateway endpoint.
	// This is the default mode.
	Gateway ConnectionMode = iota // 0

	// Direct mode applies the direct connection settings: per-endpoint
	// connection limits, idle timeouts and a per-request network timeout.
	Direct // 1
)

// String returns the name of the connection mode.
func (m ConnectionMode) String() string {
	switch m {
	case Gateway:
		return "Gateway"
	case Direct:
		return "Direct"
	default:
		return fmt.Sprintf("ConnectionMode(%d)", int(m))
	}
}
