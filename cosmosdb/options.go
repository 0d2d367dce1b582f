//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package cosmosdb

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/cosmoserr"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/internal/proto"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/types"
)

// DedicatedGatewayOptions represents sparse options for requests served by a
// dedicated gateway with an integrated cache.
type DedicatedGatewayOptions struct {
	// MaxIntegratedCacheStaleness is the maximum age, in seconds, of a cached
	// response that may be returned.
	MaxIntegratedCacheStaleness *int64 `yaml:"maxIntegratedCacheStaleness"`
}

// ItemOptions represents sparse options for document writes, reads and deletes.
// Zero fields inherit the client configuration or the service default.
type ItemOptions struct {
	ConsistencyLevel                types.ConsistencyLevel   `yaml:"consistencyLevel"`
	IndexingDirective               types.IndexingDirective  `yaml:"indexingDirective"`
	ContentResponseOnWriteEnabled   *bool                    `yaml:"contentResponseOnWriteEnabled"`
	DedicatedGatewayRequestOptions  *DedicatedGatewayOptions `yaml:"dedicatedGatewayRequestOptions"`
	IfMatchETag                     string                   `yaml:"ifMatchETag"`
	IfNoneMatchETag                 string                   `yaml:"ifNoneMatchETag"`
	PreTriggerInclude               []string                 `yaml:"preTriggerInclude"`
	PostTriggerInclude              []string                 `yaml:"postTriggerInclude"`
	SessionToken                    string                   `yaml:"sessionToken"`
	ThresholdForDiagnosticsOnTracer *int64                   `yaml:"thresholdForDiagnosticsOnTracer"`
}

// QueryOptions represents sparse options for document queries and feeds.
type QueryOptions struct {
	ConsistencyLevel                   types.ConsistencyLevel   `yaml:"consistencyLevel"`
	DedicatedGatewayRequestOptions     *DedicatedGatewayOptions `yaml:"dedicatedGatewayRequestOptions"`
	IndexMetricsEnabled                *bool                    `yaml:"indexMetricsEnabled"`
	QueryMetricsEnabled                *bool                    `yaml:"queryMetricsEnabled"`
	ScanInQueryEnabled                 *bool                    `yaml:"scanInQueryEnabled"`
	MaxBufferedItemCount               *int64                   `yaml:"maxBufferedItemCount"`
	MaxDegreeOfParallelism             *int64                   `yaml:"maxDegreeOfParallelism"`
	MaxItemCount                       *int64                   `yaml:"maxItemCount"`
	ResponseContinuationTokenLimitInKb *int64                   `yaml:"responseContinuationTokenLimitInKb"`
	PartitionKey                       interface{}              `yaml:"partitionkey"`
	SessionToken                       string                   `yaml:"sessionToken"`
	ThresholdForDiagnosticsOnTracer    *int64                   `yaml:"thresholdForDiagnosticsOnTracer"`
}

// UnmarshalYAML decodes query options. The continuation token limit may also
// be given under its short key limitInKb.
func (o *QueryOptions) UnmarshalYAML(value *yaml.Node) error {
	type plain QueryOptions
	var aux struct {
		plain     `yaml:",inline"`
		LimitInKb *int64 `yaml:"limitInKb"`
	}
	if err := value.Decode(&aux); err != nil {
		return err
	}

	*o = QueryOptions(aux.plain)
	if o.ResponseContinuationTokenLimitInKb == nil {
		o.ResponseContinuationTokenLimitInKb = aux.LimitInKb
	}
	return nil
}

// StoredProcedureOptions represents sparse options for stored procedure
// creation, deletion and execution.
type StoredProcedureOptions struct {
	IfMatchETag          string      `yaml:"ifMatchETag"`
	IfNoneMatchETag      string      `yaml:"ifNoneMatchETag"`
	PartitionKey         interface{} `yaml:"partitionkey"`
	ScriptLoggingEnabled *bool       `yaml:"scriptLoggingEnabled"`
	SessionToken         string      `yaml:"sessionToken"`
}

// StoredProcedureExecuteOptions represents sparse options for executing a
// stored procedure: the script arguments and the nested request options.
type StoredProcedureExecuteOptions struct {
	Parameters     []interface{}           `yaml:"parameters"`
	RequestOptions *StoredProcedureOptions `yaml:"cosmosStoredProcedureRequestOptions"`
}

// RequestOptions represents built options for a document write, read or delete.
type RequestOptions struct {
	// ConsistencyLevel overrides the client level when not types.Unspecified.
	ConsistencyLevel types.ConsistencyLevel

	// IndexingDirective overrides the indexing policy when not types.IndexingDefault.
	IndexingDirective types.IndexingDirective

	// ContentResponseOnWriteEnabled overrides the client setting when not nil.
	ContentResponseOnWriteEnabled *bool

	// MaxIntegratedCacheStaleness is sent to the dedicated gateway when not nil.
	MaxIntegratedCacheStaleness *time.Duration

	IfMatchETag        string
	IfNoneMatchETag    string
	PreTriggerInclude  []string
	PostTriggerInclude []string
	SessionToken       string

	// DiagnosticsThreshold is the latency above which the operation is
	// reported as slow. Zero disables the report.
	DiagnosticsThreshold time.Duration
}

// QueryRequestOptions represents built options for a document query or feed.
// Nil fields are not sent.
type QueryRequestOptions struct {
	ConsistencyLevel                   types.ConsistencyLevel
	MaxIntegratedCacheStaleness        *time.Duration
	IndexMetricsEnabled                *bool
	QueryMetricsEnabled                *bool
	ScanInQueryEnabled                 *bool
	MaxBufferedItemCount               *int32
	MaxDegreeOfParallelism             *int32
	MaxItemCount                       *int32
	ResponseContinuationTokenLimitInKb *int32
	PartitionKey                       PartitionKey
	SessionToken                       string
	DiagnosticsThreshold               time.Duration
}

// StoredProcedureRequestOptions represents built options for stored procedure requests.
type StoredProcedureRequestOptions struct {
	IfMatchETag          string
	IfNoneMatchETag      string
	PartitionKey         PartitionKey
	ScriptLoggingEnabled bool
	SessionToken         string
}

// BuildItemOptions builds request options from sparse item options. Only the
// fields present in opts are set. A nil opts yields empty options.
func BuildItemOptions(opts *ItemOptions) (*RequestOptions, error) {
	ro := &RequestOptions{}
	if opts == nil {
		return ro, nil
	}

	if !opts.ConsistencyLevel.IsValid() {
		return nil, cosmoserr.NewConfiguration("invalid consistencyLevel %v", opts.ConsistencyLevel)
	}
	ro.ConsistencyLevel = opts.ConsistencyLevel

	switch opts.IndexingDirective {
	case types.IndexingDefault, types.IndexingInclude, types.IndexingExclude:
		ro.IndexingDirective = opts.IndexingDirective
	default:
		return nil, cosmoserr.NewConfiguration("invalid indexingDirective %v", opts.IndexingDirective)
	}

	if opts.ContentResponseOnWriteEnabled != nil {
		v := *opts.ContentResponseOnWriteEnabled
		ro.ContentResponseOnWriteEnabled = &v
	}

	var err error
	if ro.MaxIntegratedCacheStaleness, err = cacheStaleness(opts.DedicatedGatewayRequestOptions); err != nil {
		return nil, err
	}

	ro.IfMatchETag = opts.IfMatchETag
	ro.IfNoneMatchETag = opts.IfNoneMatchETag
	ro.PreTriggerInclude = append([]string(nil), opts.PreTriggerInclude...)
	ro.PostTriggerInclude = append([]string(nil), opts.PostTriggerInclude...)
	ro.SessionToken = opts.SessionToken

	if ro.DiagnosticsThreshold, err = seconds("thresholdForDiagnosticsOnTracer", opts.ThresholdForDiagnosticsOnTracer, 0); err != nil {
		return nil, err
	}

	return ro, nil
}

// BuildQueryOptions builds query options from sparse query options. Only the
// fields present in opts are set. A nil opts yields empty options.
func BuildQueryOptions(opts *QueryOptions) (*QueryRequestOptions, error) {
	qo := &QueryRequestOptions{}
	if opts == nil {
		return qo, nil
	}

	if !opts.ConsistencyLevel.IsValid() {
		return nil, cosmoserr.NewConfiguration("invalid consistencyLevel %v", opts.ConsistencyLevel)
	}
	qo.ConsistencyLevel = opts.ConsistencyLevel

	var err error
	if qo.MaxIntegratedCacheStaleness, err = cacheStaleness(opts.DedicatedGatewayRequestOptions); err != nil {
		return nil, err
	}

	qo.IndexMetricsEnabled = copyBool(opts.IndexMetricsEnabled)
	qo.QueryMetricsEnabled = copyBool(opts.QueryMetricsEnabled)
	qo.ScanInQueryEnabled = copyBool(opts.ScanInQueryEnabled)

	if qo.MaxBufferedItemCount, err = optionalInt32("maxBufferedItemCount", opts.MaxBufferedItemCount, false); err != nil {
		return nil, err
	}
	// A negative degree of parallelism lets the service choose.
	if qo.MaxDegreeOfParallelism, err = optionalInt32("maxDegreeOfParallelism", opts.MaxDegreeOfParallelism, true); err != nil {
		return nil, err
	}
	// A negative page size lets the service choose.
	if qo.MaxItemCount, err = optionalInt32("maxItemCount", opts.MaxItemCount, true); err != nil {
		return nil, err
	}
	if qo.ResponseContinuationTokenLimitInKb, err = optionalInt32("responseContinuationTokenLimitInKb", opts.ResponseContinuationTokenLimitInKb, false); err != nil {
		return nil, err
	}

	qo.PartitionKey = NewPartitionKey(opts.PartitionKey)
	qo.SessionToken = opts.SessionToken

	if qo.DiagnosticsThreshold, err = seconds("thresholdForDiagnosticsOnTracer", opts.ThresholdForDiagnosticsOnTracer, 0); err != nil {
		return nil, err
	}

	return qo, nil
}

// BuildStoredProcedureOptions builds stored procedure options from sparse
// options. A nil opts yields empty options.
func BuildStoredProcedureOptions(opts *StoredProcedureOptions) (*StoredProcedureRequestOptions, error) {
	so := &StoredProcedureRequestOptions{}
	if opts == nil {
		return so, nil
	}

	so.IfMatchETag = opts.IfMatchETag
	so.IfNoneMatchETag = opts.IfNoneMatchETag
	so.PartitionKey = NewPartitionKey(opts.PartitionKey)
	if opts.ScriptLoggingEnabled != nil {
		so.ScriptLoggingEnabled = *opts.ScriptLoggingEnabled
	}
	so.SessionToken = opts.SessionToken
	return so, nil
}

// BuildExecuteOptions builds the options for a stored procedure execution.
// The partition key pk is always set first and the nested request options are
// then layered on top, so a valid partition key in the nested options replaces
// pk. The script parameters are returned separately and are never nil.
func BuildExecuteOptions(pk interface{}, opts *StoredProcedureExecuteOptions) (*StoredProcedureRequestOptions, []interface{}, error) {
	var nested *StoredProcedureOptions
	params := []interface{}{}
	if opts != nil {
		nested = opts.RequestOptions
		if opts.Parameters != nil {
			params = append(params, opts.Parameters...)
		}
	}

	so, err := BuildStoredProcedureOptions(nested)
	if err != nil {
		return nil, nil, err
	}
	if so.PartitionKey.IsNone() {
		so.PartitionKey = NewPartitionKey(pk)
	}

	return so, params, nil
}

func cacheStaleness(opts *DedicatedGatewayOptions) (*time.Duration, error) {
	if opts == nil || opts.MaxIntegratedCacheStaleness == nil {
		return nil, nil
	}
	d, err := seconds("dedicatedGatewayRequestOptions.maxIntegratedCacheStaleness", opts.MaxIntegratedCacheStaleness, 0)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func optionalInt32(name string, v *int64, allowNegative bool) (*int32, error) {
	if v == nil {
		return nil, nil
	}
	if *v < 0 && !allowNegative {
		return nil, cosmoserr.NewConfiguration("%s must not be negative, got %d", name, *v)
	}
	if *v > math.MaxInt32 || *v < math.MinInt32 {
		return nil, cosmoserr.NewConfiguration("%s is out of range, got %d", name, *v)
	}
	n := int32(*v)
	return &n, nil
}

func copyBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

// consistencyHeader resolves the consistency level of a request against the
// client default.
func consistencyHeader(h http.Header, level types.ConsistencyLevel, cfg *Config) {
	if level == types.Unspecified {
		level = cfg.ConsistencyLevel
	}
	if level != types.Unspecified {
		h.Set(proto.HeaderConsistencyLevel, level.String())
	}
}

func setIf(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}

func setBool(h http.Header, key string, b *bool) {
	if b != nil {
		h.Set(key, strconv.FormatBool(*b))
	}
}

func setInt32(h http.Header, key string, n *int32) {
	if n != nil {
		h.Set(key, strconv.FormatInt(int64(*n), 10))
	}
}

func setStaleness(h http.Header, d *time.Duration) {
	if d != nil {
		h.Set(proto.HeaderDedicatedGatewayMaxAge, strconv.FormatInt(d.Milliseconds(), 10))
	}
}

// writeHeaders writes the item options onto h, resolving inherited values
// against cfg.
func (o *RequestOptions) writeHeaders(h http.Header, cfg *Config) {
	consistencyHeader(h, o.ConsistencyLevel, cfg)

	if o.IndexingDirective != types.IndexingDefault {
		h.Set(proto.HeaderIndexingDirective, o.IndexingDirective.String())
	}

	contentResponse := cfg.ContentResponseOnWriteEnabled
	if o.ContentResponseOnWriteEnabled != nil {
		contentResponse = o.ContentResponseOnWriteEnabled
	}
	if contentResponse != nil && !*contentResponse {
		h.Set(proto.HeaderPrefer, proto.PreferMinimal)
	}

	setStaleness(h, o.MaxIntegratedCacheStaleness)
	setIf(h, proto.HeaderIfMatch, o.IfMatchETag)
	setIf(h, proto.HeaderIfNoneMatch, o.IfNoneMatchETag)
	setIf(h, proto.HeaderPreTriggerInclude, strings.Join(o.PreTriggerInclude, ","))
	setIf(h, proto.HeaderPostTriggerInclude, strings.Join(o.PostTriggerInclude, ","))
	setIf(h, proto.HeaderSessionToken, o.SessionToken)
}

// writeHeaders writes the query options onto h, resolving inherited values
// against cfg. The partition key is written by the caller.
func (o *QueryRequestOptions) writeHeaders(h http.Header, cfg *Config) {
	consistencyHeader(h, o.ConsistencyLevel, cfg)
	setStaleness(h, o.MaxIntegratedCacheStaleness)
	setBool(h, proto.HeaderPopulateIndexMetrics, o.IndexMetricsEnabled)
	setBool(h, proto.HeaderPopulateQueryMetrics, o.QueryMetricsEnabled)
	setBool(h, proto.HeaderEnableScan, o.ScanInQueryEnabled)
	setInt32(h, proto.HeaderResponseContinuationLimit, o.ResponseContinuationTokenLimitInKb)
	setIf(h, proto.HeaderSessionToken, o.SessionToken)

	if o.MaxDegreeOfParallelism != nil && *o.MaxDegreeOfParallelism != 0 {
		h.Set(proto.HeaderParallelizeCrossPartition, "true")
	}

	if n := o.pageSize(); n != nil {
		setInt32(h, proto.HeaderMaxItemCount, n)
	}
}

// pageSize returns the number of items requested per page: MaxItemCount,
// capped by MaxBufferedItemCount when both are set.
func (o *QueryRequestOptions) pageSize() *int32 {
	switch {
	case o.MaxItemCount == nil:
		return o.MaxBufferedItemCount
	case o.MaxBufferedItemCount != nil && *o.MaxItemCount > *o.MaxBufferedItemCount && *o.MaxBufferedItemCount > 0:
		return o.MaxBufferedItemCount
	default:
		return o.MaxItemCount
	}
}

// writeHeaders writes the stored procedure options onto h. The partition key
// is written by the caller.
func (o *StoredProcedureRequestOptions) writeHeaders(h http.Header) {
	setIf(h, proto.HeaderIfMatch, o.IfMatchETag)
	setIf(h, proto.HeaderIfNoneMatch, o.IfNoneMatchETag)
	setIf(h, proto.HeaderSessionToken, o.SessionToken)
	if o.ScriptLoggingEnabled {
		h.Set(proto.HeaderEnableScriptLogging, "true")
	}
}
