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
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/cosmoserr"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/types"
)

func i32(v int32) *int32 { return &v }

func durPtr(d time.Duration) *time.Duration { return &d }

func TestBuildOptionsNil(t *testing.T) {
	ro, err := BuildItemOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, &RequestOptions{}, ro)

	qo, err := BuildQueryOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, &QueryRequestOptions{}, qo)
	assert.True(t, qo.PartitionKey.IsNone())

	so, err := BuildStoredProcedureOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, &StoredProcedureRequestOptions{}, so)

	so, params, err := BuildExecuteOptions("p", nil)
	require.NoError(t, err)
	assert.Equal(t, NewPartitionKey("p"), so.PartitionKey)
	assert.NotNil(t, params)
	assert.Empty(t, params)
}

func TestBuildItemOptions(t *testing.T) {
	in := &ItemOptions{
		ConsistencyLevel:              types.BoundedStaleness,
		IndexingDirective:             types.IndexingExclude,
		ContentResponseOnWriteEnabled: boolPtr(false),
		DedicatedGatewayRequestOptions: &DedicatedGatewayOptions{
			MaxIntegratedCacheStaleness: i64(30),
		},
		IfMatchETag:                     `"e1"`,
		IfNoneMatchETag:                 `"e2"`,
		PreTriggerInclude:               []string{"pre1", "pre2"},
		PostTriggerInclude:              []string{"post1"},
		SessionToken:                    "0:-1#12",
		ThresholdForDiagnosticsOnTracer: i64(2),
	}

	got, err := BuildItemOptions(in)
	require.NoError(t, err)

	want := &RequestOptions{
		ConsistencyLevel:              types.BoundedStaleness,
		IndexingDirective:             types.IndexingExclude,
		ContentResponseOnWriteEnabled: boolPtr(false),
		MaxIntegratedCacheStaleness:   durPtr(30 * time.Second),
		IfMatchETag:                   `"e1"`,
		IfNoneMatchETag:               `"e2"`,
		PreTriggerInclude:             []string{"pre1", "pre2"},
		PostTriggerInclude:            []string{"post1"},
		SessionToken:                  "0:-1#12",
		DiagnosticsThreshold:          2 * time.Second,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildItemOptions() mismatch (-want +got):\n%s", diff)
	}

	// The built options do not alias the input.
	in.PreTriggerInclude[0] = "changed"
	*in.ContentResponseOnWriteEnabled = true
	assert.Equal(t, "pre1", got.PreTriggerInclude[0])
	assert.False(t, *got.ContentResponseOnWriteEnabled)
}

func TestBuildItemOptionsInvalid(t *testing.T) {
	tests := []struct {
		desc string
		in   *ItemOptions
	}{
		{"unknown consistency level", &ItemOptions{ConsistencyLevel: types.ConsistencyLevel(42)}},
		{"unknown indexing directive", &ItemOptions{IndexingDirective: types.IndexingDirective(9)}},
		{"negative staleness", &ItemOptions{DedicatedGatewayRequestOptions: &DedicatedGatewayOptions{MaxIntegratedCacheStaleness: i64(-1)}}},
		{"staleness out of range", &ItemOptions{DedicatedGatewayRequestOptions: &DedicatedGatewayOptions{MaxIntegratedCacheStaleness: i64(math.MaxInt64)}}},
		{"negative threshold", &ItemOptions{ThresholdForDiagnosticsOnTracer: i64(-3)}},
	}

	for _, r := range tests {
		_, err := BuildItemOptions(r.in)
		assert.Truef(t, cosmoserr.IsConfiguration(err), "%s: BuildItemOptions() should have failed with "+
			"ConfigurationError, got %v", r.desc, err)
	}
}

func TestBuildQueryOptions(t *testing.T) {
	got, err := BuildQueryOptions(&QueryOptions{
		ConsistencyLevel:                   types.Eventual,
		IndexMetricsEnabled:                boolPtr(true),
		QueryMetricsEnabled:                boolPtr(false),
		ScanInQueryEnabled:                 boolPtr(true),
		MaxBufferedItemCount:               i64(100),
		MaxDegreeOfParallelism:             i64(-1),
		MaxItemCount:                       i64(-1),
		ResponseContinuationTokenLimitInKb: i64(4),
		PartitionKey:                       "p1",
		SessionToken:                       "tok",
		ThresholdForDiagnosticsOnTracer:    i64(1),
	})
	require.NoError(t, err)

	want := &QueryRequestOptions{
		ConsistencyLevel:                   types.Eventual,
		IndexMetricsEnabled:                boolPtr(true),
		QueryMetricsEnabled:                boolPtr(false),
		ScanInQueryEnabled:                 boolPtr(true),
		MaxBufferedItemCount:               i32(100),
		MaxDegreeOfParallelism:             i32(-1),
		MaxItemCount:                       i32(-1),
		ResponseContinuationTokenLimitInKb: i32(4),
		PartitionKey:                       NewPartitionKey("p1"),
		SessionToken:                       "tok",
		DiagnosticsThreshold:               time.Second,
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(PartitionKey{})); diff != "" {
		t.Errorf("BuildQueryOptions() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildQueryOptionsInvalid(t *testing.T) {
	tests := []struct {
		desc string
		in   *QueryOptions
	}{
		{"unknown consistency level", &QueryOptions{ConsistencyLevel: types.ConsistencyLevel(-1)}},
		{"negative buffered item count", &QueryOptions{MaxBufferedItemCount: i64(-1)}},
		{"negative continuation limit", &QueryOptions{ResponseContinuationTokenLimitInKb: i64(-1)}},
		{"item count above int32", &QueryOptions{MaxItemCount: i64(math.MaxInt32 + 1)}},
		{"item count below int32", &QueryOptions{MaxItemCount: i64(math.MinInt32 - 1)}},
		{"parallelism above int32", &QueryOptions{MaxDegreeOfParallelism: i64(math.MaxInt64)}},
		{"negative staleness", &QueryOptions{DedicatedGatewayRequestOptions: &DedicatedGatewayOptions{MaxIntegratedCacheStaleness: i64(-10)}}},
	}

	for _, r := range tests {
		_, err := BuildQueryOptions(r.in)
		assert.Truef(t, cosmoserr.IsConfiguration(err), "%s: BuildQueryOptions() should have failed with "+
			"ConfigurationError, got %v", r.desc, err)
	}
}

func TestBuildExecuteOptions(t *testing.T) {
	tests := []struct {
		desc      string
		pk        interface{}
		opts      *StoredProcedureExecuteOptions
		wantPK    PartitionKey
		wantParam []interface{}
	}{
		{
			desc:      "explicit key only",
			pk:        "p",
			wantPK:    NewPartitionKey("p"),
			wantParam: []interface{}{},
		},
		{
			desc: "nested key layered over explicit key",
			pk:   7,
			opts: &StoredProcedureExecuteOptions{
				Parameters:     []interface{}{"a", 1},
				RequestOptions: &StoredProcedureOptions{PartitionKey: "nested"},
			},
			wantPK:    NewPartitionKey("nested"),
			wantParam: []interface{}{"a", 1},
		},
		{
			desc: "explicit key kept when nested key is invalid",
			pk:   7,
			opts: &StoredProcedureExecuteOptions{
				RequestOptions: &StoredProcedureOptions{PartitionKey: true, SessionToken: "tok"},
			},
			wantPK:    NewPartitionKey(7),
			wantParam: []interface{}{},
		},
		{
			desc: "nested key when no explicit key",
			pk:   nil,
			opts: &StoredProcedureExecuteOptions{
				RequestOptions: &StoredProcedureOptions{PartitionKey: "nested"},
			},
			wantPK:    NewPartitionKey("nested"),
			wantParam: []interface{}{},
		},
	}

	for _, r := range tests {
		so, params, err := BuildExecuteOptions(r.pk, r.opts)
		if !assert.NoErrorf(t, err, "%s: BuildExecuteOptions() got error %v", r.desc, err) {
			continue
		}
		assert.Truef(t, r.wantPK.Equal(so.PartitionKey), "%s: got partition key %v, want %v", r.desc, so.PartitionKey, r.wantPK)
		assert.Equalf(t, r.wantParam, params, "%s: unexpected parameters", r.desc)
	}

	so, _, err := BuildExecuteOptions("p", &StoredProcedureExecuteOptions{
		RequestOptions: &StoredProcedureOptions{
			IfMatchETag:          `"e"`,
			ScriptLoggingEnabled: boolPtr(true),
			SessionToken:         "tok",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, `"e"`, so.IfMatchETag)
	assert.True(t, so.ScriptLoggingEnabled)
	assert.Equal(t, "tok", so.SessionToken)
}

func TestItemOptionsHeaders(t *testing.T) {
	cfg := &Config{ConsistencyLevel: types.Session, ContentResponseOnWriteEnabled: boolPtr(false)}

	h := http.Header{}
	(&RequestOptions{}).writeHeaders(h, cfg)
	assert.Equal(t, "Session", h.Get("x-ms-consistency-level"))
	assert.Equal(t, "return=minimal", h.Get("Prefer"))
	assert.Empty(t, h.Get("x-ms-indexing-directive"))

	h = http.Header{}
	ro, err := BuildItemOptions(&ItemOptions{
		ConsistencyLevel:              types.Strong,
		IndexingDirective:             types.IndexingInclude,
		ContentResponseOnWriteEnabled: boolPtr(true),
		DedicatedGatewayRequestOptions: &DedicatedGatewayOptions{
			MaxIntegratedCacheStaleness: i64(0),
		},
		IfMatchETag:        `"m"`,
		IfNoneMatchETag:    `"n"`,
		PreTriggerInclude:  []string{"t1", "t2"},
		PostTriggerInclude: []string{"t3"},
		SessionToken:       "tok",
	})
	require.NoError(t, err)
	ro.writeHeaders(h, cfg)

	want := http.Header{}
	want.Set("x-ms-consistency-level", "Strong")
	want.Set("x-ms-indexing-directive", "Include")
	want.Set("x-ms-dedicatedgateway-max-age", "0")
	want.Set("If-Match", `"m"`)
	want.Set("If-None-Match", `"n"`)
	want.Set("x-ms-documentdb-pre-trigger-include", "t1,t2")
	want.Set("x-ms-documentdb-post-trigger-include", "t3")
	want.Set("x-ms-session-token", "tok")
	if diff := cmp.Diff(want, h); diff != "" {
		t.Errorf("writeHeaders() mismatch (-want +got):\n%s", diff)
	}

	// Nothing is inherited from an empty client configuration.
	h = http.Header{}
	(&RequestOptions{}).writeHeaders(h, &Config{})
	assert.Empty(t, h)
}

func TestQueryOptionsHeaders(t *testing.T) {
	tests := []struct {
		desc     string
		opts     *QueryOptions
		pageSize string
	}{
		{"no page size", &QueryOptions{}, ""},
		{"item count", &QueryOptions{MaxItemCount: i64(10)}, "10"},
		{"capped by buffered count", &QueryOptions{MaxItemCount: i64(50), MaxBufferedItemCount: i64(20)}, "20"},
		{"below buffered count", &QueryOptions{MaxItemCount: i64(5), MaxBufferedItemCount: i64(20)}, "5"},
		{"buffered count only", &QueryOptions{MaxBufferedItemCount: i64(30)}, "30"},
		{"zero buffered count does not cap", &QueryOptions{MaxItemCount: i64(8), MaxBufferedItemCount: i64(0)}, "8"},
		{"service chosen", &QueryOptions{MaxItemCount: i64(-1)}, "-1"},
	}

	for _, r := range tests {
		qo, err := BuildQueryOptions(r.opts)
		require.NoErrorf(t, err, "%s: BuildQueryOptions() got error %v", r.desc, err)
		h := http.Header{}
		qo.writeHeaders(h, &Config{})
		assert.Equalf(t, r.pageSize, h.Get("x-ms-max-item-count"), "%s: unexpected page size", r.desc)
	}

	qo, err := BuildQueryOptions(&QueryOptions{
		IndexMetricsEnabled:                boolPtr(true),
		QueryMetricsEnabled:                boolPtr(false),
		ScanInQueryEnabled:                 boolPtr(true),
		MaxDegreeOfParallelism:             i64(4),
		ResponseContinuationTokenLimitInKb: i64(8),
		SessionToken:                       "tok",
		PartitionKey:                       "p",
	})
	require.NoError(t, err)
	h := http.Header{}
	qo.writeHeaders(h, &Config{ConsistencyLevel: types.ConsistentPrefix})
	assert.Equal(t, "ConsistentPrefix", h.Get("x-ms-consistency-level"))
	assert.Equal(t, "true", h.Get("x-ms-cosmos-populateindexmetrics"))
	assert.Equal(t, "false", h.Get("x-ms-documentdb-populatequerymetrics"))
	assert.Equal(t, "true", h.Get("x-ms-documentdb-query-enable-scan"))
	assert.Equal(t, "true", h.Get("x-ms-documentdb-query-parallelizecrosspartitionquery"))
	assert.Equal(t, "8", h.Get("x-ms-documentdb-responsecontinuationtokenlimitinkb"))
	assert.Equal(t, "tok", h.Get("x-ms-session-token"))
	assert.Empty(t, h.Get("x-ms-documentdb-partitionkey"), "the partition key is written by the caller")
}

func TestStoredProcedureOptionsHeaders(t *testing.T) {
	h := http.Header{}
	(&StoredProcedureRequestOptions{}).writeHeaders(h)
	assert.Empty(t, h)

	(&StoredProcedureRequestOptions{
		IfMatchETag:          `"a"`,
		IfNoneMatchETag:      `"b"`,
		ScriptLoggingEnabled: true,
		SessionToken:         "tok",
	}).writeHeaders(h)
	assert.Equal(t, `"a"`, h.Get("If-Match"))
	assert.Equal(t, `"b"`, h.Get("If-None-Match"))
	assert.Equal(t, "true", h.Get("x-ms-documentdb-script-enable-logging"))
	assert.Equal(t, "tok", h.Get("x-ms-session-token"))
}

func TestOptionsFromYAML(t *testing.T) {
	data := []byte(`
consistencyLevel: Eventual
maxItemCount: 25
responseContinuationTokenLimitInKb: 2
maxBufferedItemCount: 40
maxDegreeOfParallelism: -1
indexMetricsEnabled: true
queryMetricsEnabled: false
sessionToken: "0:1#9"
thresholdForDiagnosticsOnTracer: 3
partitionkey: tenant1
scanInQueryEnabled: true
dedicatedGatewayRequestOptions:
  maxIntegratedCacheStaleness: 5
`)
	var opts QueryOptions
	require.NoError(t, yaml.Unmarshal(data, &opts))

	qo, err := BuildQueryOptions(&opts)
	require.NoError(t, err)
	assert.Equal(t, types.Eventual, qo.ConsistencyLevel)
	assert.Equal(t, i32(25), qo.MaxItemCount)
	assert.Equal(t, i32(2), qo.ResponseContinuationTokenLimitInKb)
	assert.Equal(t, NewPartitionKey("tenant1"), qo.PartitionKey)
	assert.Equal(t, boolPtr(true), qo.ScanInQueryEnabled)
	assert.Equal(t, durPtr(5*time.Second), qo.MaxIntegratedCacheStaleness)
	assert.Equal(t, i32(40), qo.MaxBufferedItemCount)
	assert.Equal(t, i32(-1), qo.MaxDegreeOfParallelism)
	assert.Equal(t, boolPtr(true), qo.IndexMetricsEnabled)
	assert.Equal(t, boolPtr(false), qo.QueryMetricsEnabled)
	assert.Equal(t, "0:1#9", qo.SessionToken)
	assert.Equal(t, 3*time.Second, qo.DiagnosticsThreshold)

	// The short key of the continuation token limit is accepted too; the
	// full key wins when both are given.
	for in, want := range map[string]*int32{
		"limitInKb: 6\n": i32(6),
		"limitInKb: 6\nresponseContinuationTokenLimitInKb: 8\n": i32(8),
		"maxItemCount: 1\n": nil,
	} {
		var o QueryOptions
		require.NoErrorf(t, yaml.Unmarshal([]byte(in), &o), "yaml.Unmarshal(%q)", in)
		built, err := BuildQueryOptions(&o)
		require.NoError(t, err)
		assert.Equalf(t, want, built.ResponseContinuationTokenLimitInKb, "yaml %q", in)
	}

	data = []byte(`
indexingDirective: Exclude
ifMatchETag: '"e1"'
ifNoneMatchETag: '"e2"'
preTriggerInclude: [pre]
postTriggerInclude: [post]
contentResponseOnWriteEnabled: false
`)
	var item ItemOptions
	require.NoError(t, yaml.Unmarshal(data, &item))
	ro, err := BuildItemOptions(&item)
	require.NoError(t, err)
	assert.Equal(t, types.IndexingExclude, ro.IndexingDirective)
	assert.Equal(t, `"e1"`, ro.IfMatchETag)
	assert.Equal(t, `"e2"`, ro.IfNoneMatchETag)
	assert.Equal(t, []string{"pre"}, ro.PreTriggerInclude)
	assert.Equal(t, []string{"post"}, ro.PostTriggerInclude)
	assert.Equal(t, boolPtr(false), ro.ContentResponseOnWriteEnabled)

	data = []byte(`
parameters: [1, "two"]
cosmosStoredProcedureRequestOptions:
  partitionkey: p
  scriptLoggingEnabled: true
`)
	var exec StoredProcedureExecuteOptions
	require.NoError(t, yaml.Unmarshal(data, &exec))
	so, params, err := BuildExecuteOptions(nil, &exec)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1, "two"}, params)
	assert.Equal(t, NewPartitionKey("p"), so.PartitionKey)
	assert.True(t, so.ScriptLoggingEnabled)
}
