//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package fakegw provides an in-memory fake of the Cosmos DB gateway REST
// protocol for tests.
//
// The fake serves the document and stored procedure resources of the
// containers created with CreateContainer. Queries are limited to
//
//	SELECT * FROM c
//	SELECT * FROM c WHERE c.<field> = @<param>
//
// Stored procedures cannot run JavaScript; their behavior is supplied with
// HandleProcedure.
package fakegw

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Request charges reported by the fake.
const (
	WriteCharge = 5.71
	ReadCharge  = 1.0
	QueryCharge = 2.5
)

// DefaultPageSize is the page size used when a request does not set
// x-ms-max-item-count.
const DefaultPageSize = 100

// Request is a request received by the fake.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// Procedure implements a stored procedure. It receives the raw arguments of
// the execution and returns the value passed to setBody, along with the
// console output of the procedure.
type Procedure func(args []json.RawMessage) (body interface{}, log string, err error)

// Server is a fake gateway backed by an httptest.Server.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	containers map[string]*container
	procs      map[string]Procedure
	faults     []fault
	requests   []Request
	delay      time.Duration
	seq        int
}

type container struct {
	docs   []*document
	sprocs []*sproc
}

type document struct {
	id   string
	pk   string
	body map[string]interface{}
	etag string
}

type sproc struct {
	id   string
	body string
	etag string
}

type fault struct {
	status    int
	subStatus int
	times     int
}

// New starts a fake gateway. Call Close to stop it.
func New() *Server {
	s := &Server{
		containers: make(map[string]*container),
		procs:      make(map[string]Procedure),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	return s
}

// CreateContainer creates an empty container.
func (s *Server) CreateContainer(databaseID, containerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.containers[databaseID+"/"+containerID] = &container{}
}

// HandleProcedure sets the implementation of the stored procedures with the
// given id. The procedure must still be created before it can be executed.
func (s *Server) HandleProcedure(id string, p Procedure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procs[id] = p
}

// Fail makes the next n requests fail with the given status and sub-status.
func (s *Server) Fail(status, subStatus, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, fault{status: status, subStatus: subStatus, times: n})
}

// SetDelay delays every response by d.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Requests returns the requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// LastRequest returns the most recent request, or the zero Request if none
// has been received.
func (s *Server) LastRequest() Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}
	}
	return s.requests[len(s.requests)-1]
}

// ResetRequests forgets the requests received so far.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// route is a parsed resource path.
type route struct {
	databaseID   string
	containerID  string
	resourceType string
	id           string
}

func parsePath(escaped string) (route, bool) {
	segs := strings.Split(strings.Trim(escaped, "/"), "/")
	for i, seg := range segs {
		s, err := url.PathUnescape(seg)
		if err != nil {
			return route{}, false
		}
		segs[i] = s
	}

	if len(segs) < 5 || len(segs) > 6 || segs[0] != "dbs" || segs[2] != "colls" {
		return route{}, false
	}
	r := route{databaseID: segs[1], containerID: segs[3], resourceType: segs[4]}
	if len(segs) == 6 {
		r.id = segs[5]
	}
	return r, r.resourceType == "docs" || r.resourceType == "sprocs"
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	delay := s.delay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   r.URL.EscapedPath(),
		Header: r.Header.Clone(),
		Body:   body,
	})

	w.Header().Set("x-ms-activity-id", r.Header.Get("x-ms-activity-id"))

	if len(s.faults) > 0 {
		f := &s.faults[0]
		if f.times--; f.times <= 0 {
			s.faults = s.faults[1:]
		}
		if f.status == http.StatusTooManyRequests {
			w.Header().Set("x-ms-retry-after-ms", "100")
		}
		writeError(w, f.status, f.subStatus, "injected failure")
		return
	}

	if r.Header.Get("Authorization") == "" || r.Header.Get("x-ms-date") == "" {
		writeError(w, http.StatusUnauthorized, 0, "The input authorization token can't serve the request.")
		return
	}
	if r.Header.Get("x-ms-version") == "" {
		writeError(w, http.StatusBadRequest, 0, "x-ms-version header is required")
		return
	}

	rt, ok := parsePath(r.URL.EscapedPath())
	if !ok {
		writeError(w, http.StatusNotFound, 0, "Resource Not Found")
		return
	}
	c := s.containers[rt.databaseID+"/"+rt.containerID]
	if c == nil {
		writeError(w, http.StatusNotFound, 1003, "Owner resource does not exist")
		return
	}

	switch {
	case rt.resourceType == "docs" && rt.id == "" && r.Method == http.MethodPost:
		if strings.EqualFold(r.Header.Get("x-ms-documentdb-isquery"), "true") {
			s.queryDocuments(w, r, c, body)
		} else {
			s.createDocument(w, r, c, body)
		}
	case rt.resourceType == "docs" && rt.id == "" && r.Method == http.MethodGet:
		s.readFeed(w, r, c, c.matching(r.Header.Get("x-ms-documentdb-partitionkey"), nil))
	case rt.resourceType == "docs" && r.Method == http.MethodGet:
		s.readDocument(w, r, c, rt.id)
	case rt.resourceType == "docs" && r.Method == http.MethodPut:
		s.replaceDocument(w, r, c, rt.id, body)
	case rt.resourceType == "docs" && r.Method == http.MethodDelete:
		s.deleteDocument(w, r, c, rt.id)
	case rt.resourceType == "sprocs" && rt.id == "" && r.Method == http.MethodPost:
		s.createProcedure(w, c, body)
	case rt.resourceType == "sprocs" && rt.id == "" && r.Method == http.MethodGet:
		s.listProcedures(w, r, c)
	case rt.resourceType == "sprocs" && r.Method == http.MethodDelete:
		s.deleteProcedure(w, c, rt.id)
	case rt.resourceType == "sprocs" && r.Method == http.MethodPost:
		s.executeProcedure(w, r, c, rt.id, body)
	default:
		writeError(w, http.StatusMethodNotAllowed, 0, "method not allowed")
	}
}

func (s *Server) nextETag() string {
	s.seq++
	return fmt.Sprintf("\"%08d-0000-0000-0000-%012d\"", s.seq, s.seq)
}

func (c *container) find(pk, id string) (int, *document) {
	for i, d := range c.docs {
		if d.id == id && d.pk == pk {
			return i, d
		}
	}
	return -1, nil
}

func (c *container) matching(pk string, keep func(*document) bool) []*document {
	var docs []*document
	for _, d := range c.docs {
		if pk != "" && d.pk != pk {
			continue
		}
		if keep != nil && !keep(d) {
			continue
		}
		docs = append(docs, d)
	}
	return docs
}

func (d *document) render() map[string]interface{} {
	m := make(map[string]interface{}, len(d.body)+3)
	for k, v := range d.body {
		m[k] = v
	}
	m["_etag"] = d.etag
	m["_rid"] = "rid-" + d.id
	m["_ts"] = time.Now().Unix()
	return m
}

func (s *Server) decodeDocument(w http.ResponseWriter, body []byte) (map[string]interface{}, string, bool) {
	var m map[string]interface{}
	if err := json.Unmarshal(body, &m); err != nil || m == nil {
		writeError(w, http.StatusBadRequest, 0, "The request payload is invalid.")
		return nil, "", false
	}
	id, _ := m["id"].(string)
	if id == "" {
		writeError(w, http.StatusBadRequest, 0, "The input content is invalid because the required property, id, is missing.")
		return nil, "", false
	}
	return m, id, true
}

func writeDocumentHeaders(w http.ResponseWriter, etag string, charge float64) {
	h := w.Header()
	h.Set("etag", etag)
	h.Set("x-ms-request-charge", strconv.FormatFloat(charge, 'f', -1, 64))
	h.Set("x-ms-session-token", "0:-1#"+strconv.Itoa(len(etag)))
	h.Set("x-ms-request-duration-ms", "1.25")
	h.Set("x-ms-resource-quota", "documentSize=10240;documentsSize=10485760;collectionSize=10485760;")
	h.Set("x-ms-resource-usage", "documentSize=0;documentsSize=1;collectionSize=1;")
}

func minimal(r *http.Request) bool {
	return r.Header.Get("Prefer") == "return=minimal"
}

func (s *Server) createDocument(w http.ResponseWriter, r *http.Request, c *container, body []byte) {
	m, id, ok := s.decodeDocument(w, body)
	if !ok {
		return
	}
	pk := r.Header.Get("x-ms-documentdb-partitionkey")
	if _, d := c.find(pk, id); d != nil {
		writeError(w, http.StatusConflict, 0, "Entity with the specified id already exists in the system.")
		return
	}

	d := &document{id: id, pk: pk, body: m, etag: s.nextETag()}
	c.docs = append(c.docs, d)
	writeDocumentHeaders(w, d.etag, WriteCharge)
	if minimal(r) {
		w.WriteHeader(http.StatusCreated)
		return
	}
	writeJSON(w, http.StatusCreated, d.render())
}

func (s *Server) replaceDocument(w http.ResponseWriter, r *http.Request, c *container, id string, body []byte) {
	m, bodyID, ok := s.decodeDocument(w, body)
	if !ok {
		return
	}
	if bodyID != id {
		writeError(w, http.StatusBadRequest, 0, "The id of the document does not match the request.")
		return
	}
	_, d := c.find(r.Header.Get("x-ms-documentdb-partitionkey"), id)
	if d == nil {
		writeError(w, http.StatusNotFound, 0, "Entity with the specified id does not exist in the system.")
		return
	}
	if tag := r.Header.Get("If-Match"); tag != "" && tag != d.etag {
		writeError(w, http.StatusPreconditionFailed, 0, "Operation cannot be performed because one of the specified precondition is not met.")
		return
	}

	d.body = m
	d.etag = s.nextETag()
	writeDocumentHeaders(w, d.etag, WriteCharge)
	if minimal(r) {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, d.render())
}

func (s *Server) readDocument(w http.ResponseWriter, r *http.Request, c *container, id string) {
	_, d := c.find(r.Header.Get("x-ms-documentdb-partitionkey"), id)
	if d == nil {
		writeError(w, http.StatusNotFound, 0, "Entity with the specified id does not exist in the system.")
		return
	}
	writeDocumentHeaders(w, d.etag, ReadCharge)
	if r.Header.Get("If-None-Match") == d.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, d.render())
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request, c *container, id string) {
	i, d := c.find(r.Header.Get("x-ms-documentdb-partitionkey"), id)
	if d == nil {
		writeError(w, http.StatusNotFound, 0, "Entity with the specified id does not exist in the system.")
		return
	}
	if tag := r.Header.Get("If-Match"); tag != "" && tag != d.etag {
		writeError(w, http.StatusPreconditionFailed, 0, "Operation cannot be performed because one of the specified precondition is not met.")
		return
	}
	c.docs = append(c.docs[:i], c.docs[i+1:]...)
	writeDocumentHeaders(w, d.etag, WriteCharge)
	w.WriteHeader(http.StatusNoContent)
}

var (
	selectAll   = regexp.MustCompile(`(?i)^\s*SELECT\s+\*\s+FROM\s+(\w+)\s*$`)
	selectWhere = regexp.MustCompile(`(?i)^\s*SELECT\s+\*\s+FROM\s+(\w+)\s+WHERE\s+(\w+)\.(\w+)\s*=\s*(@\w+)\s*$`)
)

func (s *Server) queryDocuments(w http.ResponseWriter, r *http.Request, c *container, body []byte) {
	if r.Header.Get("Content-Type") != "application/query+json" {
		writeError(w, http.StatusBadRequest, 0, "The provided Content-Type header is not supported for queries.")
		return
	}

	pk := r.Header.Get("x-ms-documentdb-partitionkey")
	if pk == "" && !strings.EqualFold(r.Header.Get("x-ms-documentdb-query-enablecrosspartition"), "true") {
		writeError(w, http.StatusBadRequest, 1004, "Cross partition query is required but disabled.")
		return
	}

	query := gjson.GetBytes(body, "query").String()
	var keep func(*document) bool
	switch {
	case selectAll.MatchString(query):
	case selectWhere.MatchString(query):
		m := selectWhere.FindStringSubmatch(query)
		if !strings.EqualFold(m[1], m[2]) {
			writeError(w, http.StatusBadRequest, 0, "Identifier '"+m[2]+"' could not be resolved.")
			return
		}
		field, param := m[3], m[4]
		var want gjson.Result
		for _, p := range gjson.GetBytes(body, "parameters").Array() {
			if p.Get("name").String() == param {
				want = p.Get("value")
			}
		}
		if !want.Exists() {
			writeError(w, http.StatusBadRequest, 0, "Parameter "+param+" is not defined.")
			return
		}
		keep = func(d *document) bool {
			v, ok := d.body[field]
			if !ok {
				return false
			}
			b, _ := json.Marshal(v)
			return reflect.DeepEqual(gjson.ParseBytes(b).Value(), want.Value())
		}
	default:
		writeError(w, http.StatusBadRequest, 0, "Syntax error, unsupported query.")
		return
	}

	s.readFeed(w, r, c, c.matching(pk, keep))
}

func (s *Server) readFeed(w http.ResponseWriter, r *http.Request, c *container, docs []*document) {
	items := make([]interface{}, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.render())
	}
	writePage(w, r, "Documents", items, QueryCharge)
}

// writePage writes one page of items. The continuation token is the offset
// of the next page.
func writePage(w http.ResponseWriter, r *http.Request, envelope string, items []interface{}, charge float64) {
	offset := 0
	if token := r.Header.Get("x-ms-continuation"); token != "" {
		n, err := strconv.Atoi(token)
		if err != nil || n < 0 || n > len(items) {
			writeError(w, http.StatusBadRequest, 0, "Invalid continuation token.")
			return
		}
		offset = n
	}

	size := DefaultPageSize
	if n, err := strconv.Atoi(r.Header.Get("x-ms-max-item-count")); err == nil && n > 0 {
		size = n
	}

	end := offset + size
	if end > len(items) {
		end = len(items)
	}
	if end < len(items) {
		w.Header().Set("x-ms-continuation", strconv.Itoa(end))
	}
	w.Header().Set("x-ms-request-charge", strconv.FormatFloat(charge, 'f', -1, 64))
	w.Header().Set("x-ms-session-token", "0:-1#1")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"_rid":   "rid",
		envelope: items[offset:end],
		"_count": end - offset,
	})
}

func (s *Server) createProcedure(w http.ResponseWriter, c *container, body []byte) {
	id := gjson.GetBytes(body, "id").String()
	if id == "" {
		writeError(w, http.StatusBadRequest, 0, "The input content is invalid because the required property, id, is missing.")
		return
	}
	for _, sp := range c.sprocs {
		if sp.id == id {
			writeError(w, http.StatusConflict, 0, "Resource with specified id or name already exists.")
			return
		}
	}

	sp := &sproc{id: id, body: gjson.GetBytes(body, "body").String(), etag: s.nextETag()}
	c.sprocs = append(c.sprocs, sp)
	w.Header().Set("x-ms-request-charge", strconv.FormatFloat(WriteCharge, 'f', -1, 64))
	writeJSON(w, http.StatusCreated, sp.render())
}

func (sp *sproc) render() map[string]interface{} {
	return map[string]interface{}{
		"id":    sp.id,
		"body":  sp.body,
		"_etag": sp.etag,
		"_rid":  "rid-" + sp.id,
		"_ts":   time.Now().Unix(),
	}
}

func (s *Server) listProcedures(w http.ResponseWriter, r *http.Request, c *container) {
	sorted := append([]*sproc(nil), c.sprocs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].id < sorted[j].id })
	items := make([]interface{}, 0, len(sorted))
	for _, sp := range sorted {
		items = append(items, sp.render())
	}
	writePage(w, r, "StoredProcedures", items, ReadCharge)
}

func (s *Server) deleteProcedure(w http.ResponseWriter, c *container, id string) {
	for i, sp := range c.sprocs {
		if sp.id == id {
			c.sprocs = append(c.sprocs[:i], c.sprocs[i+1:]...)
			w.Header().Set("x-ms-request-charge", strconv.FormatFloat(WriteCharge, 'f', -1, 64))
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	writeError(w, http.StatusNotFound, 0, "Resource Not Found")
}

func (s *Server) executeProcedure(w http.ResponseWriter, r *http.Request, c *container, id string, body []byte) {
	found := false
	for _, sp := range c.sprocs {
		found = found || sp.id == id
	}
	if !found {
		writeError(w, http.StatusNotFound, 0, "Resource Not Found")
		return
	}
	if r.Header.Get("x-ms-documentdb-partitionkey") == "" {
		writeError(w, http.StatusBadRequest, 0, "PartitionKey value must be supplied for this operation.")
		return
	}

	var args []json.RawMessage
	if len(body) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			writeError(w, http.StatusBadRequest, 0, "The stored procedure parameters must be a JSON array.")
			return
		}
	}

	var (
		result interface{}
		log    string
	)
	if p := s.procs[id]; p != nil {
		var err error
		if result, log, err = p(args); err != nil {
			writeError(w, http.StatusBadRequest, 0, "Encountered exception while executing function. Exception = "+err.Error())
			return
		}
	}

	h := w.Header()
	h.Set("x-ms-request-charge", strconv.FormatFloat(WriteCharge, 'f', -1, 64))
	h.Set("x-ms-session-token", "0:-1#1")
	if log != "" && strings.EqualFold(r.Header.Get("x-ms-documentdb-script-enable-logging"), "true") {
		h.Set("x-ms-documentdb-script-log-results", url.PathEscape(log))
	}

	if result == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status, subStatus int, msg string) {
	if subStatus != 0 {
		w.Header().Set("x-ms-substatus", strconv.Itoa(subStatus))
	}
	if w.Header().Get("x-ms-activity-id") == "" {
		w.Header().Set("x-ms-activity-id", uuid.NewString())
	}
	writeJSON(w, status, map[string]string{
		"code":    strings.ReplaceAll(http.StatusText(status), " ", ""),
		"message": msg,
	})
}
