//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package proto defines the operation codes, resource links and HTTP headers
// of the Cosmos DB REST protocol.
package proto

import (
	"net/http"
	"net/url"
	"strings"
)

// Resource types as they appear in resource links and signatures.
const (
	ResourceDatabase        = "dbs"
	ResourceCollection      = "colls"
	ResourceDocument        = "docs"
	ResourceStoredProcedure = "sprocs"
)

// Request headers.
const (
	HeaderAuthorization             = "Authorization"
	HeaderContentType               = "Content-Type"
	HeaderIfMatch                   = "If-Match"
	HeaderIfNoneMatch               = "If-None-Match"
	HeaderPrefer                    = "Prefer"
	HeaderUserAgent                 = "User-Agent"
	HeaderActivityID                = "x-ms-activity-id"
	HeaderConsistencyLevel          = "x-ms-consistency-level"
	HeaderContinuation              = "x-ms-continuation"
	HeaderDate                      = "x-ms-date"
	HeaderDedicatedGatewayMaxAge    = "x-ms-dedicatedgateway-max-age"
	HeaderEnableCrossPartition      = "x-ms-documentdb-query-enablecrosspartition"
	HeaderEnableScan                = "x-ms-documentdb-query-enable-scan"
	HeaderEnableScriptLogging       = "x-ms-documentdb-script-enable-logging"
	HeaderIndexingDirective         = "x-ms-indexing-directive"
	HeaderIsQuery                   = "x-ms-documentdb-isquery"
	HeaderMaxItemCount              = "x-ms-max-item-count"
	HeaderParallelizeCrossPartition = "x-ms-documentdb-query-parallelizecrosspartitionquery"
	HeaderPartitionKey              = "x-ms-documentdb-partitionkey"
	HeaderPopulateIndexMetrics      = "x-ms-cosmos-populateindexmetrics"
	HeaderPopulateQueryMetrics      = "x-ms-documentdb-populatequerymetrics"
	HeaderPostTriggerInclude        = "x-ms-documentdb-post-trigger-include"
	HeaderPreTriggerInclude         = "x-ms-documentdb-pre-trigger-include"
	HeaderResponseContinuationLimit = "x-ms-documentdb-responsecontinuationtokenlimitinkb"
	HeaderSessionToken              = "x-ms-session-token"
	HeaderVersion                   = "x-ms-version"
)

// Header values.
const (
	ContentTypeJSON      = "application/json"
	ContentTypeQuery     = "application/query+json"
	PreferMinimal        = "return=minimal"
	PreferRepresentation = "return=representation"
)

// Response headers.
const (
	HeaderETag              = "etag"
	HeaderRequestCharge     = "x-ms-request-charge"
	HeaderResourceQuota     = "x-ms-resource-quota"
	HeaderResourceUsage     = "x-ms-resource-usage"
	HeaderScriptLogResults  = "x-ms-documentdb-script-log-results"
	HeaderSubStatus         = "x-ms-substatus"
	HeaderRequestDurationMs = "x-ms-request-duration-ms"
)

// OpCode identifies a data-plane operation.
type OpCode int

const (
	CreateDocument          OpCode = iota // 0
	ReplaceDocument                       // 1
	ReadDocument                          // 2
	DeleteDocument                        // 3
	QueryDocuments                        // 4
	ReadDocumentFeed                      // 5
	CreateStoredProcedure                 // 6
	ReadStoredProcedureFeed               // 7
	DeleteStoredProcedure                 // 8
	ExecuteStoredProcedure                // 9
)

var opNames = [...]string{
	"CreateDocument",
	"ReplaceDocument",
	"ReadDocument",
	"DeleteDocument",
	"QueryDocuments",
	"ReadDocumentFeed",
	"CreateStoredProcedure",
	"ReadStoredProcedureFeed",
	"DeleteStoredProcedure",
	"ExecuteStoredProcedure",
}

func (op OpCode) String() string {
	if op < 0 || int(op) >= len(opNames) {
		return "Unknown"
	}
	return opNames[op]
}

// Method returns the HTTP method of the operation.
func (op OpCode) Method() string {
	switch op {
	case ReplaceDocument:
		return http.MethodPut
	case ReadDocument, ReadDocumentFeed, ReadStoredProcedureFeed:
		return http.MethodGet
	case DeleteDocument, DeleteStoredProcedure:
		return http.MethodDelete
	default:
		return http.MethodPost
	}
}

// ResourceType returns the resource type the operation is signed for.
func (op OpCode) ResourceType() string {
	switch op {
	case CreateStoredProcedure, ReadStoredProcedureFeed, DeleteStoredProcedure, ExecuteStoredProcedure:
		return ResourceStoredProcedure
	default:
		return ResourceDocument
	}
}

// IsRead reports whether the operation only reads data and may therefore be
// served by a read region.
func (op OpCode) IsRead() bool {
	switch op {
	case ReadDocument, QueryDocuments, ReadDocumentFeed, ReadStoredProcedureFeed:
		return true
	default:
		return false
	}
}

// CollectionLink returns the resource link of a container.
func CollectionLink(databaseID, containerID string) string {
	return ResourceDatabase + "/" + databaseID + "/" + ResourceCollection + "/" + containerID
}

// FeedLink returns the link of the document or stored procedure feed of a container.
func FeedLink(databaseID, containerID, resourceType string) string {
	return CollectionLink(databaseID, containerID) + "/" + resourceType
}

// ItemLink returns the link of a single document or stored procedure.
func ItemLink(databaseID, containerID, resourceType, id string) string {
	return FeedLink(databaseID, containerID, resourceType) + "/" + id
}

// EscapeLink escapes each segment of a resource link for use as a URL path.
func EscapeLink(link string) string {
	segs := strings.Split(link, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
