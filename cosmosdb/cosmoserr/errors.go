//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package cosmoserr defines types and error code constants that represent errors
// which may return by the Cosmos DB client.
//
// Every error returned from a client operation is an *Error carrying exactly
// one ErrorCode. Callers decide whether to retry by checking Retryable; the
// client itself never retries.
package cosmoserr

import (
	"errors"
	"fmt"
	"time"
)

// Error represents an error that wraps the error code, error message and an
// optional cause of the error, along with the service diagnostics that came
// with a failed response.
//
// This implements the error interface.
type Error struct {
	// Code specifies the error code.
	Code ErrorCode `json:"code"`

	// Message specifies the description of error.
	Message string `json:"message"`

	// Cause optionally specifies the cause of error.
	Cause error `json:"cause,omitempty"`

	// StatusCode is the HTTP status returned by the service, or 0 if the
	// request never produced a response.
	StatusCode int `json:"statusCode,omitempty"`

	// SubStatusCode is the value of the x-ms-substatus response header.
	SubStatusCode int `json:"subStatusCode,omitempty"`

	// ActivityID is the service activity id of the failed request.
	ActivityID string `json:"activityId,omitempty"`

	// RetryAfter is the back-off suggested by the service for throttled requests.
	RetryAfter time.Duration `json:"retryAfter,omitempty"`
}

// New creates an error with the specified error code and message.
func New(code ErrorCode, msgFmt string, msgArgs ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(msgFmt, msgArgs...),
	}
}

// NewWithCause creates an error with the specified error code, message and the cause of error.
func NewWithCause(code ErrorCode, cause error, msgFmt string, msgArgs ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(msgFmt, msgArgs...),
		Cause:   cause,
	}
}

// Error returns a descriptive message for the error.
func (e *Error) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status=%d, substatus=%d, activityId=%s)",
			e.Message, e.StatusCode, e.SubStatusCode, e.ActivityID)
	}

	if e.Cause == nil {
		return fmt.Sprintf("[%s]: %s", e.Code.String(), msg)
	}

	return fmt.Sprintf("[%s]: %s. Caused by:\n\t%s", e.Code.String(), msg, e.Cause.Error())
}

// Unwrap returns the cause of the error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable returns whether the error is retryable.
func (e *Error) Retryable() bool {
	return retryableErrors[e.Code]
}

// retryableErrors represents a map whose keys are the error codes of pre-defined
// errors that are retryable.
var retryableErrors = map[ErrorCode]bool{
	Transient: true,
}

// NewConfiguration creates a ConfigurationError with the specified message.
func NewConfiguration(msgFmt string, msgArgs ...interface{}) *Error {
	return New(ConfigurationError, msgFmt, msgArgs...)
}

// NewDeserialization creates a Deserialization error with the specified cause.
func NewDeserialization(cause error, msgFmt string, msgArgs ...interface{}) *Error {
	return NewWithCause(Deserialization, cause, msgFmt, msgArgs...)
}

// ErrClientClosed is the cause of the errors returned for operations attempted
// on a closed client. Use errors.Is to test for it.
var ErrClientClosed = errors.New("client closed")

// NewClientClosed creates the ConfigurationError returned for an operation
// attempted on a closed client. It wraps ErrClientClosed.
func NewClientClosed() *Error {
	return NewWithCause(ConfigurationError, ErrClientClosed, "cannot use a closed client")
}

// Is checks if the specified error is, or wraps, an Error value and the error
// code matches any of the expected error codes if specified.
func Is(err error, expectedCodes ...ErrorCode) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	if len(expectedCodes) == 0 {
		return true
	}

	for _, code := range expectedCodes {
		if e.Code == code {
			return true
		}
	}

	return false
}

// IsNotFound returns true if the specified error is a NotFound error,
// otherwise returns false.
func IsNotFound(err error) bool {
	return Is(err, NotFound)
}

// IsConfiguration returns true if the specified error is a ConfigurationError,
// otherwise returns false.
func IsConfiguration(err error) bool {
	return Is(err, ConfigurationError)
}

// IsRetryable returns true if the specified error is an Error that the caller
// may retry.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}

// ErrorCode represents the error code.
// Error codes are divided into categories as follows:
//
// 1. Error codes for caller-generated errors, range from 1 to 50(exclusive).
// These include invalid configuration, missing resources, failed
// preconditions, conflicts and undecodable payloads.
//
// 2. Error codes for transient service or network conditions, range from 100
// to 125(exclusive). The operation may succeed if retried by the caller.
//
// 3. Other failures, begin from 125. These are not expected to succeed on retry.
type ErrorCode int

const (
	// NoError represents there is no error.
	NoError ErrorCode = iota // 0

	// ConfigurationError represents invalid client configuration or request
	// options, or an operation attempted on a closed client.
	ConfigurationError // 1

	// NotFound represents that the addressed document or stored procedure
	// does not exist.
	NotFound // 2

	// PreconditionFailed represents that an if-match or if-none-match
	// condition did not hold.
	PreconditionFailed // 3

	// Conflict represents an attempt to create a resource whose id already exists.
	Conflict // 4

	// Deserialization represents a payload that could not be decoded into the
	// requested type.
	Deserialization // 5
)

const (
	// Transient represents a throttled request, a timeout, an unavailable
	// service or a dropped connection.
	Transient ErrorCode = iota + 100 // 100
)

const (
	// Permanent represents every other failure.
	Permanent ErrorCode = iota + 125 // 125
)

// String returns the name of the error code.
func (c ErrorCode) String() string {
	switch c {
	case NoError:
		return "NoError"
	case ConfigurationError:
		return "ConfigurationError"
	case NotFound:
		return "NotFound"
	case PreconditionFailed:
		return "PreconditionFailed"
	case Conflict:
		return "Conflict"
	case Deserialization:
		return "Deserialization"
	case Transient:
		return "Transient"
	case Permanent:
		return "Permanent"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}
