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
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/tidwall/gjson"
)

// Response headers consulted when building an error from a failed response.
const (
	headerSubStatus    = "x-ms-substatus"
	headerActivityID   = "x-ms-activity-id"
	headerRetryAfterMs = "x-ms-retry-after-ms"
)

// maxErrorBody bounds how much of an error response body is read.
const maxErrorBody = 64 * 1024

// CodeForStatus maps an HTTP status code returned by the service to an ErrorCode.
func CodeForStatus(status int) ErrorCode {
	switch status {
	case http.StatusNotFound:
		return NotFound
	case http.StatusConflict:
		return Conflict
	case http.StatusPreconditionFailed:
		return PreconditionFailed
	case http.StatusRequestTimeout,
		http.StatusGone,
		http.StatusTooManyRequests,
		449, // retry with
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return Transient
	default:
		if status >= 200 && status < 300 {
			return NoError
		}
		return Permanent
	}
}

// FromResponse builds an error from a response whose status code is not
// successful. The response body is consumed and closed.
func FromResponse(resp *http.Response) *Error {
	var body []byte
	if resp.Body != nil {
		body, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
	}

	code := CodeForStatus(resp.StatusCode)
	if code == NoError {
		code = Permanent
	}

	e := &Error{
		Code:       code,
		Message:    errorMessage(resp.StatusCode, body),
		StatusCode: resp.StatusCode,
		ActivityID: resp.Header.Get(headerActivityID),
	}
	e.SubStatusCode, _ = strconv.Atoi(resp.Header.Get(headerSubStatus))
	if ms, err := strconv.ParseFloat(resp.Header.Get(headerRetryAfterMs), 64); err == nil && ms > 0 {
		e.RetryAfter = time.Duration(ms * float64(time.Millisecond))
	}

	return e
}

// errorMessage extracts the service message from an error body of the form
// {"code": "...", "message": "..."}, falling back to the raw body text.
func errorMessage(status int, body []byte) string {
	if len(body) > 0 && gjson.ValidBytes(body) {
		if msg := gjson.GetBytes(body, "message"); msg.Exists() && msg.String() != "" {
			return msg.String()
		}
	}

	if s := strings.TrimSpace(string(body)); s != "" {
		return s
	}

	return http.StatusText(status)
}

// Classify converts any error into an *Error with a single ErrorCode.
// Errors that are already classified are returned unchanged; nil stays nil.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		if respErr.RawResponse != nil {
			ce := FromResponse(respErr.RawResponse)
			ce.Cause = err
			return ce
		}
		return &Error{
			Code:       CodeForStatus(respErr.StatusCode),
			Message:    respErr.ErrorCode,
			Cause:      err,
			StatusCode: respErr.StatusCode,
		}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewWithCause(Transient, err, "request timed out")

	case errors.Is(err, context.Canceled):
		return NewWithCause(Permanent, err, "request canceled")

	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF):
		return NewWithCause(Transient, err, "connection dropped")
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewWithCause(Transient, err, "network timeout")
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return NewDeserialization(err, "cannot decode payload")
	}

	return NewWithCause(Permanent, err, "request failed")
}

// Code returns the ErrorCode of err after classification, or NoError if err is nil.
func Code(err error) ErrorCode {
	if err == nil {
		return NoError
	}
	return Classify(err).Code
}
