//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package httputil provides the pooled HTTP client that carries requests to
// a Cosmos DB account.
package httputil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"
)

// HTTPClient represents an HTTP client.
// It is used to handle connections, send HTTP requests to and receive HTTP
// responses from server. It is implemented based on http.Client, providing
// convenient configuration options to take control of client connections.
//
// The underlying Transport maintains internal state, such as cached TCP
// connections, which can be reused. So an HTTPClient can handle multiple
// client connections, it should be reused instead of created as needed.
type HTTPClient struct {
	// client represents the underlying http.Client.
	client *http.Client

	// transport is the pooled transport owned by client.
	transport *http.Transport

	// shareKey is set for clients obtained from AcquireShared.
	shareKey *HTTPConfig
}

// NewHTTPClient creates an HTTPClient using the specified configurations.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	// Set default values for Transport, the values will later be overwritten by
	// the provided configurations if specified.
	tr := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		IdleConnTimeout:       90 * time.Second,
		DisableKeepAlives:     false,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	if cfg.UseProxyFromEnv {
		tr.Proxy = http.ProxyFromEnvironment
	} else if cfg.ProxyURL != "" {
		pu, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		tr.Proxy = http.ProxyURL(pu)
		if cfg.ProxyUsername != "" && cfg.ProxyPassword != "" {
			tr.ProxyConnectHeader = http.Header{}
			tr.ProxyConnectHeader.Add("Proxy-Authorization", BasicAuth(cfg.ProxyUsername, []byte(cfg.ProxyPassword)))
		}
	}

	if cfg.MaxIdleConns != 0 {
		tr.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxIdleConnsPerHost != 0 {
		tr.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	}
	if cfg.MaxConnsPerHost != 0 {
		tr.MaxConnsPerHost = cfg.MaxConnsPerHost
		if tr.MaxIdleConnsPerHost > cfg.MaxConnsPerHost {
			tr.MaxIdleConnsPerHost = cfg.MaxConnsPerHost
		}
	}
	if cfg.IdleConnTimeout != 0 {
		tr.IdleConnTimeout = cfg.IdleConnTimeout
	}

	if cfg.InsecureSkipVerify || cfg.CertPath != "" {
		rootCAs, _ := x509.SystemCertPool()
		if rootCAs == nil {
			rootCAs = x509.NewCertPool()
		}
		if !cfg.InsecureSkipVerify && cfg.CertPath != "" {
			certs, err := os.ReadFile(cfg.CertPath)
			if err != nil {
				return nil, err
			}
			if ok := rootCAs.AppendCertsFromPEM(certs); !ok {
				return nil, fmt.Errorf("no valid PEM certs found in %s", cfg.CertPath)
			}
		}
		tr.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			RootCAs:            rootCAs,
			ServerName:         cfg.ServerName,
		}
	}

	connectTimeout := 30 * time.Second
	if cfg.ConnectTimeout != 0 {
		connectTimeout = cfg.ConnectTimeout
	}
	tr.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext

	return &HTTPClient{
		client:    &http.Client{Transport: tr},
		transport: tr,
	}, nil
}

// Do sends an HTTP request and returns an HTTP response.
// It implements the RequestExecutor interface.
func (hc *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	return hc.client.Do(req)
}

// Close releases the pooled connections of the client. For a client obtained
// from AcquireShared the pool is only released once every holder has closed it.
func (hc *HTTPClient) Close() {
	if hc.shareKey != nil {
		releaseShared(hc)
		return
	}
	hc.closeIdle()
}

func (hc *HTTPClient) closeIdle() {
	if hc.transport != nil {
		hc.transport.CloseIdleConnections()
	}
}

type sharedEntry struct {
	hc   *HTTPClient
	refs int
}

var shared = struct {
	sync.Mutex
	m map[HTTPConfig]*sharedEntry
}{m: make(map[HTTPConfig]*sharedEntry)}

// AcquireShared returns an HTTPClient that is shared by every caller passing
// an equal configuration. Each successful call must be paired with a Close.
func AcquireShared(cfg HTTPConfig) (*HTTPClient, error) {
	shared.Lock()
	defer shared.Unlock()

	if e, ok := shared.m[cfg]; ok {
		e.refs++
		return e.hc, nil
	}

	hc, err := NewHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	key := cfg
	hc.shareKey = &key
	shared.m[cfg] = &sharedEntry{hc: hc, refs: 1}
	return hc, nil
}

func releaseShared(hc *HTTPClient) {
	shared.Lock()
	defer shared.Unlock()

	e, ok := shared.m[*hc.shareKey]
	if !ok || e.hc != hc {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(shared.m, *hc.shareKey)
		hc.closeIdle()
	}
}

// sharedRefs reports how many holders share the pool of cfg.
func sharedRefs(cfg HTTPConfig) int {
	shared.Lock()
	defer shared.Unlock()
	if e, ok := shared.m[cfg]; ok {
		return e.refs
	}
	return 0
}

// HTTPConfig contains parameters used to configure HTTPClient.
//
// HTTPConfig values are comparable; equal values share one pool when passed
// to AcquireShared.
type HTTPConfig struct {
	// ProxyURL specifies an HTTP proxy server URL.
	// If specified, all transports go through the proxy server.
	ProxyURL string `yaml:"proxyUrl"`

	// ProxyUsername specifies the username used to authenticate with HTTP proxy
	// server if required.
	ProxyUsername string `yaml:"proxyUsername"`

	// ProxyPassword specifies the password used to authenticate with HTTP proxy
	// server if required.
	ProxyPassword string `yaml:"proxyPassword"`

	// UseProxyFromEnv indicates whether to use the proxy server that is set by
	// the environment variables HTTP_PROXY, HTTPS_PROXY and NO_PROXY
	// (or the lowercase versions thereof).
	// If UseProxyFromEnv is true, it takes precedence over the ProxyURL
	// parameter.
	UseProxyFromEnv bool `yaml:"useProxyFromEnv"`

	// MaxIdleConns controls the maximum number of idle (keep-alive) connections
	// across all hosts.
	// The default value is 100.
	MaxIdleConns int `yaml:"-"`

	// MaxIdleConnsPerHost controls the maximum idle (keep-alive) connections
	// to keep per-host.
	// The default value is 100.
	MaxIdleConnsPerHost int `yaml:"-"`

	// MaxConnsPerHost limits the total number of connections per host.
	// Zero means no limit.
	MaxConnsPerHost int `yaml:"-"`

	// IdleConnTimeout is the maximum amount of time an idle (keep-alive)
	// connection will remain idle before closing itself.
	// The default is 90 seconds.
	IdleConnTimeout time.Duration `yaml:"-"`

	// ConnectTimeout bounds the time to establish a connection.
	// The default is 30 seconds.
	ConnectTimeout time.Duration `yaml:"-"`

	// InsecureSkipVerify controls whether a client verifies the server's
	// certificate chain and host name. This is typically only set for the
	// local emulator.
	InsecureSkipVerify bool `yaml:"insecureSkipVerify"`

	// CertPath specifies the path to a pem-encoded certificate file.
	// Certificates in this file will be used in addition to system certificates.
	// If InsecureSkipVerify is true, this field is ignored.
	CertPath string `yaml:"certPath"`

	// ServerName is used to verify the hostname for self-signed certificates.
	// If InsecureSkipVerify is true, this field is ignored.
	ServerName string `yaml:"serverName"`
}
