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
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/internal/proto"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/jsonutil"
)

// Diagnostics represents client-side diagnostics of an operation.
type Diagnostics struct {
	// Duration is the end-to-end latency of the operation as seen by the client.
	Duration time.Duration `json:"duration"`

	// RegionsContacted lists the regions, or the endpoint host when the
	// region is not known, the operation was sent to.
	RegionsContacted []string `json:"regionsContacted"`
}

// DocumentResponse represents the result of a document write, read or delete.
type DocumentResponse struct {
	// StatusCode is the HTTP status code of the response.
	StatusCode int `json:"statusCode"`

	// ActivityID identifies the request in service logs.
	ActivityID string `json:"activityId"`

	// ETag is the entity tag of the document after the operation.
	ETag string `json:"etag"`

	// Item is the document returned by the service. It is empty for deletes,
	// and for writes when content response on write is disabled.
	Item json.RawMessage `json:"item,omitempty"`

	// RequestCharge is the number of request units consumed by the operation.
	RequestCharge float64 `json:"requestCharge"`

	// SessionToken is the session token to use for session consistent reads.
	SessionToken string `json:"sessionToken"`

	// Duration is the time the service spent processing the request.
	Duration time.Duration `json:"duration"`

	Diagnostics Diagnostics `json:"diagnostics"`

	// ResponseHeaders holds every response header. Repeated headers are
	// joined with a comma.
	ResponseHeaders map[string]string `json:"responseHeaders"`

	// MaxResourceQuota is the resource quota of the container, for example
	// "documentSize=10240;documentsSize=10485760;collectionSize=10485760;".
	MaxResourceQuota string `json:"maxResourceQuota"`

	// CurrentResourceQuotaUsage is the current usage of the resource quota.
	CurrentResourceQuotaUsage string `json:"currentResourceQuotaUsage"`
}

func (r DocumentResponse) String() string {
	return jsonutil.AsJSON(r)
}

// StoredProcedure represents a stored procedure registered on a container.
type StoredProcedure struct {
	// ID is the id of the stored procedure.
	ID string `json:"id"`

	// Body is the JavaScript source of the stored procedure.
	Body string `json:"body"`

	// ETag is the entity tag of the stored procedure.
	ETag string `json:"_etag,omitempty"`
}

func (r StoredProcedure) String() string {
	return jsonutil.AsJSON(r)
}

// StoredProcedureResponse represents the result of deleting or executing a
// stored procedure.
type StoredProcedureResponse struct {
	StatusCode    int     `json:"statusCode"`
	ActivityID    string  `json:"activityId"`
	RequestCharge float64 `json:"requestCharge"`

	// ResponseAsString is the body of the response, which for an execution
	// is the value the procedure passed to setBody.
	ResponseAsString string `json:"responseAsString"`

	// ScriptLog holds the console output of the procedure when script
	// logging is enabled.
	ScriptLog string `json:"scriptLog"`

	SessionToken string `json:"sessionToken"`
}

func (r StoredProcedureResponse) String() string {
	return jsonutil.AsJSON(r)
}

// rawResponse is a response as received from the pipeline, before projection.
type rawResponse struct {
	statusCode int
	header     http.Header
	body       []byte
	elapsed    time.Duration
	regions    []string
}

// requestDiagnostics are the response details recorded on operation spans.
type requestDiagnostics struct {
	statusCode    int
	requestCharge float64
	activityID    string
	regions       []string
}

func (raw *rawResponse) diagnostics() *requestDiagnostics {
	if raw == nil {
		return nil
	}

	return &requestDiagnostics{
		statusCode:    raw.statusCode,
		requestCharge: headerFloat(raw.header, proto.HeaderRequestCharge),
		activityID:    raw.header.Get(proto.HeaderActivityID),
		regions:       raw.regions,
	}
}

// projectDocumentResponse builds a DocumentResponse from a raw response. It
// never fails: malformed numeric headers project as zero and missing
// diagnostics as empty values.
func projectDocumentResponse(raw *rawResponse) *DocumentResponse {
	r := &DocumentResponse{
		StatusCode:                raw.statusCode,
		ActivityID:                raw.header.Get(proto.HeaderActivityID),
		ETag:                      raw.header.Get(proto.HeaderETag),
		RequestCharge:             headerFloat(raw.header, proto.HeaderRequestCharge),
		SessionToken:              raw.header.Get(proto.HeaderSessionToken),
		Duration:                  headerMillis(raw.header, proto.HeaderRequestDurationMs),
		ResponseHeaders:           flattenHeaders(raw.header),
		MaxResourceQuota:          raw.header.Get(proto.HeaderResourceQuota),
		CurrentResourceQuotaUsage: raw.header.Get(proto.HeaderResourceUsage),
		Diagnostics: Diagnostics{
			Duration:         raw.elapsed,
			RegionsContacted: append([]string{}, raw.regions...),
		},
	}
	if r.Diagnostics.Duration < 0 {
		r.Diagnostics.Duration = 0
	}

	if body := trimBody(raw.body); len(body) > 0 {
		r.Item = json.RawMessage(body)
	}

	return r
}

// projectStoredProcedureResponse builds a StoredProcedureResponse from a raw
// response. It never fails.
func projectStoredProcedureResponse(raw *rawResponse) *StoredProcedureResponse {
	return &StoredProcedureResponse{
		StatusCode:       raw.statusCode,
		ActivityID:       raw.header.Get(proto.HeaderActivityID),
		RequestCharge:    headerFloat(raw.header, proto.HeaderRequestCharge),
		ResponseAsString: string(trimBody(raw.body)),
		ScriptLog:        scriptLog(raw.header.Get(proto.HeaderScriptLogResults)),
		SessionToken:     raw.header.Get(proto.HeaderSessionToken),
	}
}

func trimBody(body []byte) []byte {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return nil
	}
	return []byte(s)
}

// headerFloat parses a numeric header, returning 0 if it is missing or malformed.
func headerFloat(h http.Header, key string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(h.Get(key)), 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// headerMillis parses a header holding fractional milliseconds. Values beyond
// the range of time.Duration are clamped to its maximum.
func headerMillis(h http.Header, key string) time.Duration {
	d := headerFloat(h, key) * float64(time.Millisecond)
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

func flattenHeaders(h http.Header) map[string]string {
	m := make(map[string]string, len(h))
	for k, v := range h {
		m[strings.ToLower(k)] = strings.Join(v, ",")
	}
	return m
}

// scriptLog decodes the script log header, which the service sends URL encoded.
func scriptLog(v string) string {
	if v == "" {
		return ""
	}
	if s, err := url.PathUnescape(v); err == nil {
		return s
	}
	return v
}
