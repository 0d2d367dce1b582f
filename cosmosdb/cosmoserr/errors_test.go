//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package cosmoserr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/stretchr/testify/suite"
)

// CosmosErrorsTestSuite contains tests for the client errors.
type CosmosErrorsTestSuite struct {
	suite.Suite
}

func (suite *CosmosErrorsTestSuite) TestNewErrors() {
	var e *Error

	e = NewConfiguration("missing %s", "baseUrl")
	suite.Equalf(ConfigurationError, e.Code, "unexpected error code")
	suite.Equalf("missing baseUrl", e.Message, "unexpected error message")
	suite.Falsef(e.Retryable(), "ConfigurationError should not be retryable")
	suite.Equal("[ConfigurationError]: missing baseUrl", e.Error())

	e = New(Transient, "throttled")
	suite.Truef(e.Retryable(), "Transient error should be retryable")

	cause := errors.New("unexpected end of JSON input")
	e = NewDeserialization(cause, "cannot decode item")
	suite.Equal(Deserialization, e.Code)
	suite.Contains(e.Error(), "Caused by:")
	suite.Contains(e.Error(), cause.Error())
	suite.ErrorIs(e, cause)
	suite.False(e.Retryable())
}

func (suite *CosmosErrorsTestSuite) TestNewClientClosed() {
	e1, e2 := NewClientClosed(), NewClientClosed()
	suite.NotSame(e1, e2)
	suite.True(IsConfiguration(e1))
	suite.ErrorIs(e1, ErrClientClosed)

	e1.Message = "modified"
	suite.Equal("cannot use a closed client", e2.Message)
	suite.ErrorIs(e2, ErrClientClosed)
}

func (suite *CosmosErrorsTestSuite) TestIsErrors() {
	e1 := NewConfiguration("client closed")
	e2 := New(NotFound, "document d1 does not exist")
	e3 := New(Transient, "request rate is large")
	wrapped := fmt.Errorf("read failed: %w", e2)

	suite.True(IsConfiguration(e1))
	suite.False(IsConfiguration(e2))
	suite.True(IsNotFound(e2))
	suite.True(IsNotFound(wrapped))
	suite.True(Is(e3, NotFound, Transient))
	suite.False(Is(e3, NotFound, Conflict))
	suite.True(Is(e1))
	suite.True(IsRetryable(e3))
	suite.False(IsRetryable(e2))

	otherErr := errors.New("this is not a Cosmos error")
	suite.False(Is(otherErr))
	suite.False(IsRetryable(otherErr))
}

func (suite *CosmosErrorsTestSuite) TestCodeForStatus() {
	tests := []struct {
		status int
		want   ErrorCode
	}{
		{200, NoError},
		{201, NoError},
		{204, NoError},
		{400, Permanent},
		{401, Permanent},
		{403, Permanent},
		{404, NotFound},
		{408, Transient},
		{409, Conflict},
		{410, Transient},
		{412, PreconditionFailed},
		{413, Permanent},
		{429, Transient},
		{449, Transient},
		{500, Permanent},
		{503, Transient},
		{504, Transient},
	}

	for _, r := range tests {
		suite.Equalf(r.want, CodeForStatus(r.status), "CodeForStatus(%d)", r.status)
	}
}

func newResponse(status int, body string, hdr map[string]string) *http.Response {
	resp := &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
	for k, v := range hdr {
		resp.Header.Set(k, v)
	}
	return resp
}

func (suite *CosmosErrorsTestSuite) TestFromResponse() {
	resp := newResponse(429, `{"code":"TooManyRequests","message":"Request rate is large"}`, map[string]string{
		"x-ms-substatus":      "3200",
		"x-ms-activity-id":    "a1",
		"x-ms-retry-after-ms": "15.5",
	})

	e := FromResponse(resp)
	suite.Equal(Transient, e.Code)
	suite.Equal("Request rate is large", e.Message)
	suite.Equal(429, e.StatusCode)
	suite.Equal(3200, e.SubStatusCode)
	suite.Equal("a1", e.ActivityID)
	suite.Equal(15500*time.Microsecond, e.RetryAfter)
	suite.True(e.Retryable())

	e = FromResponse(newResponse(412, "", nil))
	suite.Equal(PreconditionFailed, e.Code)
	suite.Equal(http.StatusText(412), e.Message)

	e = FromResponse(newResponse(500, "backend exploded", nil))
	suite.Equal(Permanent, e.Code)
	suite.Equal("backend exploded", e.Message)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func (suite *CosmosErrorsTestSuite) TestClassify() {
	suite.Nil(Classify(nil))
	suite.Equal(NoError, Code(nil))

	already := New(Conflict, "id exists")
	suite.Same(already, Classify(already))
	suite.Same(already, Classify(fmt.Errorf("wrapped: %w", already)))

	var syntaxErr *json.SyntaxError
	err := json.Unmarshal([]byte("{"), &struct{}{})
	suite.Require().ErrorAs(err, &syntaxErr)

	respErr := &azcore.ResponseError{
		StatusCode:  404,
		RawResponse: newResponse(404, `{"message":"Resource Not Found"}`, nil),
	}

	tests := []struct {
		err  error
		want ErrorCode
	}{
		{context.DeadlineExceeded, Transient},
		{fmt.Errorf("dial: %w", syscall.ECONNRESET), Transient},
		{io.ErrUnexpectedEOF, Transient},
		{timeoutErr{}, Transient},
		{context.Canceled, Permanent},
		{errors.New("tls: bad certificate"), Permanent},
		{err, Deserialization},
		{respErr, NotFound},
		{&azcore.ResponseError{StatusCode: 503}, Transient},
	}

	for i, r := range tests {
		suite.Equalf(r.want, Code(r.err), "Testcase %d: Code(%v)", i+1, r.err)
	}
}

func TestCosmosErrors(t *testing.T) {
	suite.Run(t, new(CosmosErrorsTestSuite))
}
