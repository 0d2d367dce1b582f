//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package cosmosdb

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/cosmoserr"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/internal/proto"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/internal/sdkutil"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/logger"
)

const (
	tracerName       = "github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb"
	metricsNamespace = "cosmosdb"
	slowEventName    = "cosmosdb.diagnostics.threshold_exceeded"
)

// Attribute keys recorded on operation spans.
var (
	dbSystemKey      = attribute.Key("db.system")
	dbOperationKey   = attribute.Key("db.operation")
	databaseKey      = attribute.Key("db.cosmosdb.database")
	containerKey     = attribute.Key("db.cosmosdb.container")
	statusCodeKey    = attribute.Key("db.cosmosdb.status_code")
	requestChargeKey = attribute.Key("db.cosmosdb.request_charge")
	activityIDKey    = attribute.Key("db.cosmosdb.activity_id")
	regionsKey       = attribute.Key("db.cosmosdb.regions_contacted")
	errorCodeKey     = attribute.Key("db.cosmosdb.error_code")
	thresholdKey     = attribute.Key("db.cosmosdb.diagnostics_threshold_ms")
	durationKey      = attribute.Key("db.cosmosdb.duration_ms")
)

// metrics holds the request metrics of a client.
type metrics struct {
	requests      *prometheus.CounterVec
	requestCharge *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	errors        *prometheus.CounterVec
}

// newMetrics creates the request metrics and registers them with reg. Metrics
// already registered by another client on the same registerer are reused.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Total number of requests sent to the service.",
		}, []string{"operation", "status"}),
		requestCharge: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "request_charge_total",
			Help:      "Total request units consumed.",
		}, []string{"operation"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "Request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "request_errors_total",
			Help:      "Total number of failed requests by error code.",
		}, []string{"operation", "code"}),
	}

	var err error
	if m.requests, err = register(reg, m.requests); err != nil {
		return nil, err
	}
	if m.requestCharge, err = register(reg, m.requestCharge); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.errors, err = register(reg, m.errors); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// telemetry records a span, metrics and slow-operation logs for each operation.
type telemetry struct {
	tracer  trace.Tracer
	metrics *metrics
	logger  *logger.Logger
}

func newTelemetry(cfg TelemetryConfig, lg *logger.Logger) (*telemetry, error) {
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	t := &telemetry{
		tracer: tp.Tracer(tracerName, trace.WithInstrumentationVersion(sdkutil.SDKVersion())),
		logger: lg,
	}

	if cfg.MetricsRegisterer != nil {
		m, err := newMetrics(cfg.MetricsRegisterer)
		if err != nil {
			return nil, cosmoserr.NewWithCause(cosmoserr.ConfigurationError, err, "cannot register metrics")
		}
		t.metrics = m
	}

	return t, nil
}

// opSpan tracks a single operation.
type opSpan struct {
	t         *telemetry
	op        proto.OpCode
	span      trace.Span
	start     time.Time
	threshold time.Duration
}

// start begins a span for op against the container.
func (t *telemetry) start(ctx context.Context, op proto.OpCode, databaseID, containerID string, threshold time.Duration) (context.Context, *opSpan) {
	ctx, span := t.tracer.Start(ctx, "cosmosdb."+op.String(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			dbSystemKey.String("cosmosdb"),
			dbOperationKey.String(op.String()),
			databaseKey.String(databaseID),
			containerKey.String(containerID),
		))

	return ctx, &opSpan{t: t, op: op, span: span, start: time.Now(), threshold: threshold}
}

// end completes the span. diag may be nil when the request failed before a
// response was received.
func (s *opSpan) end(diag *requestDiagnostics, err error) {
	elapsed := time.Since(s.start)
	op := s.op.String()

	if diag != nil {
		s.span.SetAttributes(
			statusCodeKey.Int(diag.statusCode),
			requestChargeKey.Float64(diag.requestCharge),
			activityIDKey.String(diag.activityID),
			regionsKey.StringSlice(diag.regions),
		)
	}

	if s.threshold > 0 && elapsed > s.threshold {
		s.span.AddEvent(slowEventName, trace.WithAttributes(
			thresholdKey.Int64(s.threshold.Milliseconds()),
			durationKey.Int64(elapsed.Milliseconds()),
		))
		lg := s.t.logger
		if diag != nil {
			lg = lg.With(zap.String("activityId", diag.activityID))
		}
		lg.Warn("%s took %v, exceeding the diagnostics threshold of %v", op, elapsed, s.threshold)
	}

	status := "ok"
	if err != nil {
		code := cosmoserr.Code(err)
		status = code.String()
		s.span.SetAttributes(errorCodeKey.String(code.String()))
		s.span.SetStatus(codes.Error, err.Error())
		s.span.RecordError(err)
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()

	m := s.t.metrics
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, status).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
	if diag != nil && diag.requestCharge > 0 {
		m.requestCharge.WithLabelValues(op).Add(diag.requestCharge)
	}
	if err != nil {
		m.errors.WithLabelValues(op, status).Inc()
	}
}
