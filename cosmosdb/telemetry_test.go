//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package cosmosdb

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/cosmoserr"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/internal/proto"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/logger"
	"github.com/cosmosdb-go/cosmos-go-sdk/internal/test/fakegw"
)

type telemetryFixture struct {
	client   *Client
	fake     *fakegw.Server
	recorder *tracetest.SpanRecorder
	registry *prometheus.Registry
	logs     *bytes.Buffer
}

func newTelemetryFixture(t *testing.T) *telemetryFixture {
	f := &telemetryFixture{
		fake:     fakegw.New(),
		recorder: tracetest.NewSpanRecorder(),
		registry: prometheus.NewRegistry(),
		logs:     &bytes.Buffer{},
	}
	t.Cleanup(f.fake.Close)
	f.fake.CreateContainer(testDB, testColl)

	conn := ConnectionConfig{
		BaseURL:                   f.fake.URL,
		PrimaryKeyOrResourceToken: testMasterKey,
	}
	conn.Logger = logger.New(f.logs, logger.Warn, false)
	conn.TracerProvider = sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(f.recorder))
	conn.MetricsRegisterer = f.registry

	var err error
	f.client, err = NewClient(conn, nil)
	require.NoErrorf(t, err, "NewClient() got error %v", err)
	t.Cleanup(func() { f.client.Close() })
	return f
}

func spanAttr(s sdktrace.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range s.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func lastSpan(t *testing.T, sr *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	spans := sr.Ended()
	require.NotEmpty(t, spans, "no span was recorded")
	return spans[len(spans)-1]
}

func TestTelemetrySpans(t *testing.T) {
	f := newTelemetryFixture(t)
	createTestDoc(t, f.client, testDoc{ID: "d1", PK: "p1"})

	s := lastSpan(t, f.recorder)
	assert.Equal(t, "cosmosdb.CreateDocument", s.Name())
	assert.Equal(t, trace.SpanKindClient, s.SpanKind())
	assert.Equal(t, codes.Ok, s.Status().Code)

	v, ok := spanAttr(s, dbSystemKey)
	require.True(t, ok)
	assert.Equal(t, "cosmosdb", v.AsString())
	v, _ = spanAttr(s, databaseKey)
	assert.Equal(t, testDB, v.AsString())
	v, _ = spanAttr(s, containerKey)
	assert.Equal(t, testColl, v.AsString())
	v, _ = spanAttr(s, statusCodeKey)
	assert.Equal(t, int64(http.StatusCreated), v.AsInt64())
	v, _ = spanAttr(s, requestChargeKey)
	assert.Equal(t, fakegw.WriteCharge, v.AsFloat64())
	v, ok = spanAttr(s, activityIDKey)
	require.True(t, ok)
	assert.NotEmpty(t, v.AsString())
	_, ok = spanAttr(s, errorCodeKey)
	assert.False(t, ok)

	_, err := f.client.ReadDocument(&ReadDocumentRequest{
		DatabaseID:   testDB,
		ContainerID:  testColl,
		DocumentID:   "missing",
		PartitionKey: "p1",
	})
	require.Truef(t, cosmoserr.IsNotFound(err), "ReadDocument() should have failed with NotFound, got %v", err)

	s = lastSpan(t, f.recorder)
	assert.Equal(t, "cosmosdb.ReadDocument", s.Name())
	assert.Equal(t, codes.Error, s.Status().Code)
	v, _ = spanAttr(s, errorCodeKey)
	assert.Equal(t, "NotFound", v.AsString())
	require.NotEmpty(t, s.Events())
	assert.Equal(t, "exception", s.Events()[0].Name)
}

func TestTelemetryMetrics(t *testing.T) {
	f := newTelemetryFixture(t)
	createTestDoc(t, f.client, testDoc{ID: "d1", PK: "p1"})
	createTestDoc(t, f.client, testDoc{ID: "d2", PK: "p1"})

	_, err := f.client.CreateDocument(&CreateDocumentRequest{
		DatabaseID:   testDB,
		ContainerID:  testColl,
		Document:     testDoc{ID: "d1", PK: "p1"},
		PartitionKey: "p1",
	})
	require.Truef(t, cosmoserr.Is(err, cosmoserr.Conflict), "CreateDocument() should have failed with Conflict, got %v", err)

	m := f.client.telemetry.metrics
	require.NotNil(t, m)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("CreateDocument", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("CreateDocument", "Conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("CreateDocument", "Conflict")))
	assert.InDelta(t, 2*fakegw.WriteCharge, testutil.ToFloat64(m.requestCharge.WithLabelValues("CreateDocument")), 1e-9)

	n, err := testutil.GatherAndCount(f.registry, "cosmosdb_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTelemetryMetricsShared(t *testing.T) {
	f := newTelemetryFixture(t)

	conn := ConnectionConfig{
		BaseURL:                   f.fake.URL,
		PrimaryKeyOrResourceToken: testMasterKey,
	}
	conn.DisableLogging = true
	conn.MetricsRegisterer = f.registry
	other, err := NewClient(conn, nil)
	require.NoErrorf(t, err, "a second client on the same registerer got error %v", err)
	defer other.Close()

	assert.Same(t, f.client.telemetry.metrics.requests, other.telemetry.metrics.requests)

	createTestDoc(t, f.client, testDoc{ID: "d1", PK: "p1"})
	createTestDoc(t, other, testDoc{ID: "d2", PK: "p1"})
	assert.Equal(t, 2.0, testutil.ToFloat64(f.client.telemetry.metrics.requests.WithLabelValues("CreateDocument", "ok")))
}

func TestTelemetryMetricsConflict(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "requests_total",
		Help:      "Something else.",
	}))

	_, err := newTelemetry(TelemetryConfig{MetricsRegisterer: reg}, nil)
	assert.Truef(t, cosmoserr.IsConfiguration(err), "newTelemetry() should have failed with "+
		"ConfigurationError, got %v", err)
}

func TestTelemetryThreshold(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	var logs bytes.Buffer
	tel, err := newTelemetry(TelemetryConfig{
		TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)),
	}, logger.New(&logs, logger.Warn, false))
	require.NoError(t, err)

	tests := []struct {
		desc      string
		threshold time.Duration
		slow      bool
	}{
		{"disabled", 0, false},
		{"not exceeded", time.Hour, false},
		{"exceeded", time.Millisecond, true},
	}

	for _, r := range tests {
		logs.Reset()
		_, span := tel.start(context.Background(), proto.QueryDocuments, testDB, testColl, r.threshold)
		time.Sleep(5 * time.Millisecond)
		span.end(&requestDiagnostics{statusCode: http.StatusOK, requestCharge: 1}, nil)

		s := lastSpan(t, sr)
		var found bool
		for _, e := range s.Events() {
			if e.Name == slowEventName {
				found = true
			}
		}
		assert.Equalf(t, r.slow, found, "%s: unexpected slow event", r.desc)
		if r.slow {
			assert.Containsf(t, logs.String(), "exceeding the diagnostics threshold", "%s: missing warning", r.desc)
		} else {
			assert.Emptyf(t, logs.String(), "%s: unexpected log output", r.desc)
		}
	}
}

func TestTelemetryThresholdFromOptions(t *testing.T) {
	f := newTelemetryFixture(t)
	createTestDoc(t, f.client, testDoc{ID: "d1", PK: "p1"})
	f.fake.SetDelay(1100 * time.Millisecond)

	_, err := f.client.ReadDocument(&ReadDocumentRequest{
		DatabaseID:   testDB,
		ContainerID:  testColl,
		DocumentID:   "d1",
		PartitionKey: "p1",
		Options:      &ItemOptions{ThresholdForDiagnosticsOnTracer: i64(1)},
	})
	require.NoError(t, err)

	s := lastSpan(t, f.recorder)
	require.NotEmpty(t, s.Events())
	assert.Equal(t, slowEventName, s.Events()[0].Name)
	assert.Contains(t, f.logs.String(), "ReadDocument took")
	assert.Contains(t, f.logs.String(), `"activityId"`)
}
