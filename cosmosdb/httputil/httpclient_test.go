//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package httputil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient(t *testing.T) {
	hc, err := NewHTTPClient(HTTPConfig{
		MaxConnsPerHost: 8,
		IdleConnTimeout: 5 * time.Second,
		ConnectTimeout:  2 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, 8, hc.transport.MaxConnsPerHost)
	assert.Equal(t, 8, hc.transport.MaxIdleConnsPerHost)
	assert.Equal(t, 5*time.Second, hc.transport.IdleConnTimeout)
	assert.Nil(t, hc.transport.TLSClientConfig)

	_, err = NewHTTPClient(HTTPConfig{CertPath: "/nonexistent/cert.pem"})
	assert.Error(t, err)

	_, err = NewHTTPClient(HTTPConfig{ProxyURL: "://bad"})
	assert.Error(t, err)

	hc, err = NewHTTPClient(HTTPConfig{InsecureSkipVerify: true})
	require.NoError(t, err)
	assert.True(t, hc.transport.TLSClientConfig.InsecureSkipVerify)
}

func TestDo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	hc, err := NewHTTPClient(HTTPConfig{})
	require.NoError(t, err)
	defer hc.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := hc.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(b))
}

func TestAcquireShared(t *testing.T) {
	cfg := HTTPConfig{MaxConnsPerHost: 3, ServerName: "shared-test"}

	a, err := AcquireShared(cfg)
	require.NoError(t, err)
	b, err := AcquireShared(cfg)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 2, sharedRefs(cfg))

	other, err := AcquireShared(HTTPConfig{MaxConnsPerHost: 4, ServerName: "shared-test"})
	require.NoError(t, err)
	assert.NotSame(t, a, other)
	other.Close()

	a.Close()
	assert.Equal(t, 1, sharedRefs(cfg))
	b.Close()
	assert.Equal(t, 0, sharedRefs(cfg))

	c, err := AcquireShared(cfg)
	require.NoError(t, err)
	assert.NotSame(t, a, c)
	c.Close()
}

func TestBasicAuth(t *testing.T) {
	assert.Equal(t, "Basic dXNlcjpwYXNz", BasicAuth("user", []byte("pass")))
}
