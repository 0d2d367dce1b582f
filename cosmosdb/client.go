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
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"golang.org/x/sync/semaphore"

	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/auth"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/cosmoserr"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/httputil"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/internal/proto"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/logger"
)

// Client represents a Cosmos DB data-plane client used to work with the
// documents and stored procedures of the containers of an account.
//
// A Client is safe for concurrent use by multiple goroutines. It holds a pool
// of connections that is released by Close.
type Client struct {
	// Config specifies the resolved configuration of the Client.
	Config

	// HTTPClient represents the pooled HTTP client that carries the requests
	// of the Client. It is nil when the Client was created with a custom executor.
	HTTPClient *httputil.HTTPClient

	// executor specifies the request executor at the end of the pipeline.
	executor httputil.RequestExecutor

	// pipeline is the request pipeline every operation is sent through.
	pipeline runtime.Pipeline

	telemetry *telemetry

	// logger specifies a Client logger used to log events.
	logger *logger.Logger

	// rootCtx is cancelled when the Client is closed.
	rootCtx context.Context
	cancel  context.CancelFunc

	closed atomic.Bool
}

func errNilRequest() error {
	return cosmoserr.NewConfiguration("request must be non-nil")
}

// NewClient creates a Client for the account described by conn, with the
// optional overrides in custom applied. See ResolveConfig for how the two
// are merged.
//
// If any errors occurred during the creation, it returns a non-nil error and
// a nil Client that should not be used.
//
// Applications should call the Close() method on the Client when it terminates.
func NewClient(conn ConnectionConfig, custom *CustomConfig) (*Client, error) {
	cfg, err := ResolveConfig(conn, custom)
	if err != nil {
		return nil, err
	}

	return newClient(cfg, nil)
}

// newClient creates a Client with a resolved configuration. If executor is
// nil, a pooled HTTPClient is created, or acquired when connection sharing is
// enabled.
func newClient(cfg *Config, executor httputil.RequestExecutor) (*Client, error) {
	authz, err := auth.NewProvider(cfg.credential)
	if err != nil {
		return nil, cosmoserr.NewWithCause(cosmoserr.ConfigurationError, err, "invalid primaryKeyOrResourceToken")
	}

	lg := cfg.logger()
	tel, err := newTelemetry(cfg.TelemetryConfig, lg)
	if err != nil {
		return nil, err
	}

	var hc *httputil.HTTPClient
	if executor == nil {
		if cfg.ConnectionSharingAcrossClientsEnabled {
			hc, err = httputil.AcquireShared(cfg.httpConfig())
		} else {
			hc, err = httputil.NewHTTPClient(cfg.httpConfig())
		}
		if err != nil {
			return nil, cosmoserr.NewWithCause(cosmoserr.ConfigurationError, err, "cannot create HTTP client")
		}
		executor = hc
	}

	c := &Client{
		Config:     *cfg,
		HTTPClient: hc,
		executor:   executor,
		telemetry:  tel,
		logger:     lg,
	}
	limit := semaphore.NewWeighted(cfg.MaxConcurrentRequests())
	c.pipeline = newPipeline(cfg, executor, authz, limit)
	c.rootCtx, c.cancel = context.WithCancel(context.Background())

	lg.Debug("created client for %s in %s mode, consistency level %q",
		cfg.Endpoint, cfg.ConnectionMode, cfg.ConsistencyLevel)
	return c, nil
}

// Close releases the connections held by the Client and stops any request or
// cursor that is still running. Operations on a closed Client, including a
// second Close, fail with a cosmoserr.ConfigurationError.
//
// When connection sharing is enabled the shared pool is only released once
// every Client using it has been closed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return cosmoserr.NewClientClosed()
	}

	c.cancel()
	if c.HTTPClient != nil {
		c.HTTPClient.Close()
	}

	// do not close logger; it may have been passed to us and
	// may still be in use by the application
	c.logger.Debug("closed client for %s", c.Endpoint)
	c.logger.Sync()
	return nil
}

func (c *Client) isClosed() bool {
	return c.closed.Load()
}

// CreateDocument creates a document in a container.
//
// The service fails the request with a cosmoserr.Conflict error if a document
// with the same id already exists in the logical partition.
func (c *Client) CreateDocument(req *CreateDocumentRequest) (*DocumentResponse, error) {
	if req == nil {
		return nil, errNilRequest()
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	opts, err := BuildItemOptions(req.Options)
	if err != nil {
		return nil, err
	}

	body, err := encodeDocument(req.Document)
	if err != nil {
		return nil, err
	}

	o := c.itemOperation(proto.CreateDocument, req.DatabaseID, req.ContainerID, "", NewPartitionKey(req.PartitionKey), opts)
	o.body = body
	raw, err := c.execute(o)
	if err != nil {
		return nil, err
	}

	return projectDocumentResponse(raw), nil
}

// ReplaceDocument replaces the content of an existing document.
//
// The service fails the request with a cosmoserr.NotFound error if the
// document does not exist, or with a cosmoserr.PreconditionFailed error if
// Options.IfMatchETag is set and does not match the current document.
func (c *Client) ReplaceDocument(req *ReplaceDocumentRequest) (*DocumentResponse, error) {
	if req == nil {
		return nil, errNilRequest()
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	opts, err := BuildItemOptions(req.Options)
	if err != nil {
		return nil, err
	}

	body, err := encodeDocument(req.Document)
	if err != nil {
		return nil, err
	}

	o := c.itemOperation(proto.ReplaceDocument, req.DatabaseID, req.ContainerID, req.DocumentID, NewPartitionKey(req.PartitionKey), opts)
	o.body = body
	raw, err := c.execute(o)
	if err != nil {
		return nil, err
	}

	return projectDocumentResponse(raw), nil
}

// ReadDocument reads a document and returns it undecoded in
// DocumentResponse.Item. Use GetDocument to decode the document into a Go value.
func (c *Client) ReadDocument(req *ReadDocumentRequest) (*DocumentResponse, error) {
	if req == nil {
		return nil, errNilRequest()
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	opts, err := BuildItemOptions(req.Options)
	if err != nil {
		return nil, err
	}

	o := c.itemOperation(proto.ReadDocument, req.DatabaseID, req.ContainerID, req.DocumentID, NewPartitionKey(req.PartitionKey), opts)
	raw, err := c.execute(o)
	if err != nil {
		return nil, err
	}

	return projectDocumentResponse(raw), nil
}

// GetDocument reads a document and decodes it into a value of type T.
//
// It fails with a cosmoserr.NotFound error if the document does not exist,
// and with a cosmoserr.Deserialization error if the document cannot be
// decoded into T.
func GetDocument[T any](c *Client, req *ReadDocumentRequest) (T, error) {
	var v T
	res, err := c.ReadDocument(req)
	if err != nil {
		return v, err
	}

	if len(res.Item) == 0 {
		return v, cosmoserr.NewDeserialization(nil, "document %s has no content (status=%d)",
			req.DocumentID, res.StatusCode)
	}

	return decodeDocument[T](res.Item)
}

// DeleteDocument deletes a document.
//
// The service fails the request with a cosmoserr.NotFound error if the
// document does not exist.
func (c *Client) DeleteDocument(req *DeleteDocumentRequest) (*DocumentResponse, error) {
	if req == nil {
		return nil, errNilRequest()
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	opts, err := BuildItemOptions(req.Options)
	if err != nil {
		return nil, err
	}

	o := c.itemOperation(proto.DeleteDocument, req.DatabaseID, req.ContainerID, req.DocumentID, NewPartitionKey(req.PartitionKey), opts)
	raw, err := c.execute(o)
	if err != nil {
		return nil, err
	}

	return projectDocumentResponse(raw), nil
}

// QueryDocuments runs a SQL query against a container and returns a cursor
// over the results, each decoded into a value of type T.
//
// No request is sent until the first call to ResultCursor.Next. Results are
// fetched one page at a time as the cursor advances.
func QueryDocuments[T any](c *Client, req *QueryDocumentsRequest) (*ResultCursor[T], error) {
	if req == nil {
		return nil, errNilRequest()
	}
	if c.isClosed() {
		return nil, cosmoserr.NewClientClosed()
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	opts, err := BuildQueryOptions(req.Options)
	if err != nil {
		return nil, err
	}

	params := req.Parameters
	if params == nil {
		params = []QueryParameter{}
	}
	body, err := json.Marshal(querySpec{Query: req.Query, Parameters: params})
	if err != nil {
		return nil, cosmoserr.NewWithCause(cosmoserr.ConfigurationError, err, "cannot encode query parameters")
	}

	fetch := c.feedFetcher(proto.QueryDocuments, req.DatabaseID, req.ContainerID, opts.PartitionKey, opts,
		func(o *operation) {
			o.header.Set(proto.HeaderIsQuery, "true")
			o.body = body
			o.contentType = proto.ContentTypeQuery
		})
	return newResultCursor(c, fetch, decodeDocument[T]), nil
}

// querySpec is the body of a query request.
type querySpec struct {
	Query      string           `json:"query"`
	Parameters []QueryParameter `json:"parameters"`
}

// ListDocuments returns a cursor over all documents of a container, or of
// one logical partition, each decoded into a value of type T.
//
// No request is sent until the first call to ResultCursor.Next.
func ListDocuments[T any](c *Client, req *ListDocumentsRequest) (*ResultCursor[T], error) {
	if req == nil {
		return nil, errNilRequest()
	}
	if c.isClosed() {
		return nil, cosmoserr.NewClientClosed()
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	opts, err := BuildQueryOptions(req.Options)
	if err != nil {
		return nil, err
	}

	pk := NewPartitionKey(req.PartitionKey)
	if pk.IsNone() {
		pk = opts.PartitionKey
	}

	fetch := c.feedFetcher(proto.ReadDocumentFeed, req.DatabaseID, req.ContainerID, pk, opts, nil)
	return newResultCursor(c, fetch, decodeDocument[T]), nil
}

// CreateStoredProcedure registers a stored procedure on a container and
// returns the stored procedure as created by the service.
func (c *Client) CreateStoredProcedure(req *CreateStoredProcedureRequest) (*StoredProcedure, error) {
	if req == nil {
		return nil, errNilRequest()
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	opts, err := BuildStoredProcedureOptions(req.Options)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(StoredProcedure{ID: req.StoredProcedureID, Body: req.Body})
	if err != nil {
		return nil, cosmoserr.NewWithCause(cosmoserr.ConfigurationError, err, "cannot encode stored procedure")
	}

	o := c.scriptOperation(proto.CreateStoredProcedure, req.DatabaseID, req.ContainerID, "", opts)
	o.body = body
	raw, err := c.execute(o)
	if err != nil {
		return nil, err
	}

	sp, err := decodeStoredProcedure(raw.body)
	if err != nil {
		return nil, err
	}
	return &sp, nil
}

// ListStoredProcedures returns a cursor over the stored procedures of a container.
func (c *Client) ListStoredProcedures(req *ListStoredProceduresRequest) (*ResultCursor[StoredProcedure], error) {
	if req == nil {
		return nil, errNilRequest()
	}
	if c.isClosed() {
		return nil, cosmoserr.NewClientClosed()
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	var pageSize *int32
	if req.MaxItemCount > 0 {
		n, err := optionalInt32("MaxItemCount", ptrInt64(int64(req.MaxItemCount)), false)
		if err != nil {
			return nil, err
		}
		pageSize = n
	}

	fetch := func(ctx context.Context, continuation string) (page, error) {
		o := c.scriptOperation(proto.ReadStoredProcedureFeed, req.DatabaseID, req.ContainerID, "", &StoredProcedureRequestOptions{})
		o.ctx = ctx
		setInt32(o.header, proto.HeaderMaxItemCount, pageSize)
		setIf(o.header, proto.HeaderContinuation, continuation)
		raw, err := c.execute(o)
		if err != nil {
			return page{}, err
		}
		return readPage(raw, storedProceduresEnvelope)
	}
	return newResultCursor(c, fetch, decodeStoredProcedure), nil
}

// DeleteStoredProcedure deletes a stored procedure.
func (c *Client) DeleteStoredProcedure(req *DeleteStoredProcedureRequest) (*StoredProcedureResponse, error) {
	if req == nil {
		return nil, errNilRequest()
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	opts, err := BuildStoredProcedureOptions(req.Options)
	if err != nil {
		return nil, err
	}

	o := c.scriptOperation(proto.DeleteStoredProcedure, req.DatabaseID, req.ContainerID, req.StoredProcedureID, opts)
	raw, err := c.execute(o)
	if err != nil {
		return nil, err
	}

	return projectStoredProcedureResponse(raw), nil
}

// ExecuteStoredProcedure runs a stored procedure within a logical partition.
// The procedure arguments are taken from Options.Parameters.
func (c *Client) ExecuteStoredProcedure(req *ExecuteStoredProcedureRequest) (*StoredProcedureResponse, error) {
	if req == nil {
		return nil, errNilRequest()
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	opts, params, err := BuildExecuteOptions(req.PartitionKey, req.Options)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, cosmoserr.NewWithCause(cosmoserr.ConfigurationError, err, "cannot encode stored procedure parameters")
	}

	o := c.scriptOperation(proto.ExecuteStoredProcedure, req.DatabaseID, req.ContainerID, req.StoredProcedureID, opts)
	o.body = body
	raw, err := c.execute(o)
	if err != nil {
		return nil, err
	}

	return projectStoredProcedureResponse(raw), nil
}

// operation describes a request to send.
type operation struct {
	op          proto.OpCode
	databaseID  string
	containerID string

	// link is the resource link signed for the request.
	link string

	// path is the resource path the request is sent to.
	path string

	header      http.Header
	body        []byte
	contentType string
	threshold   time.Duration

	// ctx is the parent context of the request. If nil, the root context
	// of the Client is used.
	ctx context.Context
}

// itemOperation creates a document operation. An empty id addresses the
// document feed of the container.
func (c *Client) itemOperation(op proto.OpCode, databaseID, containerID, id string, pk PartitionKey, opts *RequestOptions) *operation {
	o := newOperation(op, databaseID, containerID, proto.ResourceDocument, id)
	opts.writeHeaders(o.header, &c.Config)
	setIf(o.header, proto.HeaderPartitionKey, pk.headerValue())
	o.threshold = opts.DiagnosticsThreshold
	return o
}

// scriptOperation creates a stored procedure operation. An empty id
// addresses the stored procedure feed of the container.
func (c *Client) scriptOperation(op proto.OpCode, databaseID, containerID, id string, opts *StoredProcedureRequestOptions) *operation {
	o := newOperation(op, databaseID, containerID, proto.ResourceStoredProcedure, id)
	opts.writeHeaders(o.header)
	setIf(o.header, proto.HeaderPartitionKey, opts.PartitionKey.headerValue())
	return o
}

func newOperation(op proto.OpCode, databaseID, containerID, resourceType, id string) *operation {
	o := &operation{
		op:          op,
		databaseID:  databaseID,
		containerID: containerID,
		header:      http.Header{},
		contentType: proto.ContentTypeJSON,
	}

	// Requests addressing a feed are signed with the link of the container.
	if id == "" {
		o.link = proto.CollectionLink(databaseID, containerID)
		o.path = proto.FeedLink(databaseID, containerID, resourceType)
	} else {
		o.link = proto.ItemLink(databaseID, containerID, resourceType, id)
		o.path = o.link
	}
	return o
}

// feedFetcher returns a fetcher for the pages of a document query or feed.
func (c *Client) feedFetcher(op proto.OpCode, databaseID, containerID string, pk PartitionKey,
	opts *QueryRequestOptions, prepare func(o *operation)) pageFetcher {

	return func(ctx context.Context, continuation string) (page, error) {
		o := newOperation(op, databaseID, containerID, proto.ResourceDocument, "")
		o.ctx = ctx
		o.threshold = opts.DiagnosticsThreshold
		opts.writeHeaders(o.header, &c.Config)
		if pk.IsNone() {
			o.header.Set(proto.HeaderEnableCrossPartition, "true")
		} else {
			o.header.Set(proto.HeaderPartitionKey, pk.headerValue())
		}
		setIf(o.header, proto.HeaderContinuation, continuation)
		if prepare != nil {
			prepare(o)
		}

		raw, err := c.execute(o)
		if err != nil {
			return page{}, err
		}
		return readPage(raw, documentsEnvelope)
	}
}

// execute sends the operation and records its telemetry. The returned error,
// if any, is a classified *cosmoserr.Error.
func (c *Client) execute(o *operation) (*rawResponse, error) {
	if c.isClosed() {
		return nil, cosmoserr.NewClientClosed()
	}

	parent := o.ctx
	if parent == nil {
		parent = c.rootCtx
	}

	ctx, span := c.telemetry.start(parent, o.op, o.databaseID, o.containerID, o.threshold)
	raw, err := c.send(ctx, o)
	span.end(raw.diagnostics(), err)

	if err != nil {
		c.logger.Info("%s %s failed: %v", o.op, o.path, err)
		return nil, err
	}

	c.logger.LogWithFn(logger.Fine, func() string {
		return o.op.String() + " " + o.path + " completed with status " + http.StatusText(raw.statusCode) +
			" in " + raw.elapsed.String()
	})
	return raw, nil
}

// send issues the request through the pipeline.
func (c *Client) send(ctx context.Context, o *operation) (*rawResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.RequestTimeout())
	defer cancel()

	info := &requestInfo{op: o.op, link: o.link}
	req, err := runtime.NewRequest(withRequestInfo(ctx, info), o.op.Method(),
		runtime.JoinPaths(c.Endpoint, proto.EscapeLink(o.path)))
	if err != nil {
		return nil, cosmoserr.NewWithCause(cosmoserr.ConfigurationError, err, "cannot create request for %s", o.path)
	}

	h := req.Raw().Header
	for k, v := range o.header {
		h[k] = v
	}
	if o.body != nil {
		if err = req.SetBody(streaming.NopCloser(bytes.NewReader(o.body)), o.contentType); err != nil {
			return nil, cosmoserr.NewWithCause(cosmoserr.ConfigurationError, err, "cannot set request body")
		}
	}

	start := time.Now()
	resp, err := c.pipeline.Do(req)
	if err != nil {
		return nil, cosmoserr.Classify(err)
	}

	if !successful(resp.StatusCode) {
		return nil, cosmoserr.FromResponse(resp)
	}

	body, err := runtime.Payload(resp)
	if err != nil {
		return nil, cosmoserr.Classify(err)
	}

	regions := info.regions
	if len(regions) == 0 {
		regions = []string{c.endpointURL.Host}
	}

	return &rawResponse{
		statusCode: resp.StatusCode,
		header:     resp.Header,
		body:       body,
		elapsed:    time.Since(start),
		regions:    regions,
	}, nil
}

// successful reports whether status is a success. Not Modified is returned
// for reads whose If-None-Match precondition matched.
func successful(status int) bool {
	return (status >= 200 && status < 300) || status == http.StatusNotModified
}

// encodeDocument encodes a document as JSON. Raw JSON is sent unchanged.
func encodeDocument(doc interface{}) ([]byte, error) {
	switch d := doc.(type) {
	case json.RawMessage:
		if !json.Valid(d) {
			return nil, cosmoserr.NewConfiguration("Document is not valid JSON")
		}
		return d, nil
	case []byte:
		if !json.Valid(d) {
			return nil, cosmoserr.NewConfiguration("Document is not valid JSON")
		}
		return d, nil
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return nil, cosmoserr.NewWithCause(cosmoserr.ConfigurationError, err, "cannot encode document")
	}
	return b, nil
}

func ptrInt64(v int64) *int64 {
	return &v
}
