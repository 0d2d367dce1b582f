//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package cosmosdb

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/common"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/cosmoserr"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/httputil"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/logger"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/types"
)

const (
	// The default timeout value for requests sent in Gateway mode.
	defaultGatewayRequestTimeout = 60 * time.Second

	// Direct connection defaults.
	defaultConnectTimeout            = 5 * time.Second
	defaultIdleEndpointTimeout       = time.Hour
	defaultNetworkRequestTimeout     = 5 * time.Second
	defaultMaxConnectionsPerEndpoint = 130
	defaultMaxRequestsPerConnection  = 30

	// Gateway connection defaults.
	defaultMaxConnectionPoolSize   = 1000
	defaultGatewayIdleConnTimeout  = 60 * time.Second
	defaultConnectionRediscoveryOn = true
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their configuration key rather than the Go field name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// ConnectionConfig represents the base configuration for a Client: the
// account endpoint and credential, plus ambient settings for transport
// security, logging and telemetry.
type ConnectionConfig struct {
	// BaseURL specifies the account endpoint, for example
	// https://myacct.documents.azure.com:443/. It is required.
	BaseURL string `yaml:"baseUrl" validate:"required,url"`

	// PrimaryKeyOrResourceToken specifies the credential used to authorize
	// requests: either a base64 encoded account key or a resource token.
	// It is required.
	PrimaryKeyOrResourceToken string `yaml:"primaryKeyOrResourceToken" validate:"required"`

	// Configurations for proxies and TLS verification. Connection pool
	// settings are derived from the connection mode and are ignored here.
	httputil.HTTPConfig `yaml:",inline"`

	// Configurations for logging.
	LoggingConfig `yaml:"-"`

	// Configurations for tracing and metrics.
	TelemetryConfig `yaml:"-"`
}

// LoggingConfig represents logging configurations.
type LoggingConfig struct {
	// Configurations for the logger.
	// If this is not set, use logger.DefaultLogger unless DisableLogging is set.
	*logger.Logger

	// DisableLogging represents whether logging is disabled.
	DisableLogging bool
}

// TelemetryConfig represents tracing and metrics configurations.
type TelemetryConfig struct {
	// TracerProvider supplies the tracer used to record a span per operation.
	// If not set, the global provider registered with otel is used.
	TracerProvider trace.TracerProvider

	// MetricsRegisterer is where the client registers its request metrics.
	// If not set, metrics are not collected.
	MetricsRegisterer prometheus.Registerer
}

// CustomConfig represents optional overrides applied on top of the defaults.
// A nil or zero field leaves the default in place.
type CustomConfig struct {
	// ConsistencyLevel specifies the consistency level sent with every
	// request unless the request specifies its own. types.Unspecified
	// inherits the account default.
	ConsistencyLevel types.ConsistencyLevel `yaml:"consistencyLevel"`

	// DirectConnectionConfig selects Direct mode and overrides its settings.
	DirectConnectionConfig *DirectConnectionConfig `yaml:"directConnectionConfig"`

	// GatewayConnectionConfig selects Gateway mode, or when given together
	// with DirectConnectionConfig, supplies the pool limits for Direct mode.
	GatewayConnectionConfig *GatewayConnectionConfig `yaml:"gatewayConnectionConfig"`

	// DirectMode selects Direct mode the same way as DirectConnectionConfig,
	// with the Gateway settings nested alongside. A sub-configuration may be
	// given either here or at the top level, not both.
	DirectMode *DirectModeConfig `yaml:"directMode"`

	// ConnectionSharingAcrossClientsEnabled lets clients with identical
	// connection settings share one connection pool.
	ConnectionSharingAcrossClientsEnabled *bool `yaml:"connectionSharingAcrossClientsEnabled"`

	// UserAgentSuffix is appended to the User-Agent header.
	UserAgentSuffix *string `yaml:"userAgentSuffix"`

	// PreferredRegions lists the regions reads should be served from, most
	// preferred first, by display name ("West US 2") or normalized name ("westus2").
	PreferredRegions []string `yaml:"preferredRegions"`

	// ContentResponseOnWriteEnabled controls whether writes return the
	// written document. The service default is to return it.
	ContentResponseOnWriteEnabled *bool `yaml:"contentResponseOnWriteEnabled"`
}

// DirectModeConfig groups the Direct mode settings with the Gateway settings
// used as its fallback. Without DirectConnectionConfig it does not select
// Direct mode.
type DirectModeConfig struct {
	DirectConnectionConfig  *DirectConnectionConfig  `yaml:"directConnectionConfig"`
	GatewayConnectionConfig *GatewayConnectionConfig `yaml:"gatewayConnectionConfig"`
}

// connectionConfigs returns the Direct and Gateway sub-configurations, taken
// from the top level or from DirectMode.
func (c *CustomConfig) connectionConfigs() (*DirectConnectionConfig, *GatewayConnectionConfig, error) {
	direct, gateway := c.DirectConnectionConfig, c.GatewayConnectionConfig
	if c.DirectMode == nil {
		return direct, gateway, nil
	}

	if d := c.DirectMode.DirectConnectionConfig; d != nil {
		if direct != nil {
			return nil, nil, cosmoserr.NewConfiguration("directConnectionConfig must not be given " +
				"both at the top level and under directMode")
		}
		direct = d
	}
	if g := c.DirectMode.GatewayConnectionConfig; g != nil {
		if gateway != nil {
			return nil, nil, cosmoserr.NewConfiguration("gatewayConnectionConfig must not be given " +
				"both at the top level and under directMode")
		}
		gateway = g
	}
	return direct, gateway, nil
}

// DirectConnectionConfig represents sparse Direct mode settings. Durations
// are given in whole seconds.
type DirectConnectionConfig struct {
	ConnectTimeout                       *int64 `yaml:"connectTimeout"`
	IdleConnectionTimeout                *int64 `yaml:"idleConnectionTimeout"`
	IdleEndpointTimeout                  *int64 `yaml:"idleEndpointTimeout"`
	MaxConnectionsPerEndpoint            *int64 `yaml:"maxConnectionsPerEndpoint"`
	MaxRequestsPerConnection             *int64 `yaml:"maxRequestsPerConnection"`
	NetworkRequestTimeout                *int64 `yaml:"networkRequestTimeout"`
	ConnectionEndpointRediscoveryEnabled *bool  `yaml:"connectionEndpointRediscoveryEnabled"`
}

// GatewayConnectionConfig represents sparse Gateway mode settings. Durations
// are given in whole seconds.
type GatewayConnectionConfig struct {
	MaxConnectionPoolSize *int64 `yaml:"maxConnectionPoolSize"`
	IdleConnectionTimeout *int64 `yaml:"idleConnectionTimeout"`
}

// DirectConnectionSettings represents resolved Direct mode settings.
type DirectConnectionSettings struct {
	ConnectTimeout                       time.Duration
	IdleConnectionTimeout                time.Duration
	IdleEndpointTimeout                  time.Duration
	NetworkRequestTimeout                time.Duration
	MaxConnectionsPerEndpoint            int32
	MaxRequestsPerConnection             int32
	ConnectionEndpointRediscoveryEnabled bool
}

// GatewayConnectionSettings represents resolved Gateway mode settings.
type GatewayConnectionSettings struct {
	MaxConnectionPoolSize int32
	IdleConnectionTimeout time.Duration
}

func defaultDirectSettings() DirectConnectionSettings {
	return DirectConnectionSettings{
		ConnectTimeout:                       defaultConnectTimeout,
		IdleEndpointTimeout:                  defaultIdleEndpointTimeout,
		NetworkRequestTimeout:                defaultNetworkRequestTimeout,
		MaxConnectionsPerEndpoint:            defaultMaxConnectionsPerEndpoint,
		MaxRequestsPerConnection:             defaultMaxRequestsPerConnection,
		ConnectionEndpointRediscoveryEnabled: defaultConnectionRediscoveryOn,
	}
}

func defaultGatewaySettings() GatewayConnectionSettings {
	return GatewayConnectionSettings{
		MaxConnectionPoolSize: defaultMaxConnectionPoolSize,
		IdleConnectionTimeout: defaultGatewayIdleConnTimeout,
	}
}

// Config represents the resolved configuration of a Client.
//
// A Config is produced once by ResolveConfig and is never modified afterwards.
type Config struct {
	// Endpoint is the account endpoint with any trailing slash removed.
	Endpoint string

	// ConsistencyLevel is the client default consistency level.
	ConsistencyLevel types.ConsistencyLevel

	// ConnectionMode is the connection mode the transport is configured for.
	ConnectionMode types.ConnectionMode

	// Direct holds the Direct mode settings. They only apply in Direct mode.
	Direct DirectConnectionSettings

	// Gateway holds the Gateway mode settings.
	Gateway GatewayConnectionSettings

	// PreferredRegions lists the normalized preferred read regions.
	PreferredRegions []common.Region

	// UserAgentSuffix is appended to the User-Agent header.
	UserAgentSuffix string

	// ConnectionSharingAcrossClientsEnabled reports whether the connection
	// pool is shared with other clients that have the same settings.
	ConnectionSharingAcrossClientsEnabled bool

	// ContentResponseOnWriteEnabled is the client default for returning
	// documents from writes. Nil leaves the service default.
	ContentResponseOnWriteEnabled *bool

	httputil.HTTPConfig
	LoggingConfig
	TelemetryConfig

	endpointURL *url.URL
	credential  string
}

// ResolveConfig merges the override onto the base configuration and the
// defaults, and validates the result.
//
// Both the Direct and the Gateway settings may be given: the client then runs
// in Direct mode and takes its overall pool limit from the Gateway settings.
// When only one of them is given that mode applies, and when neither is given
// the client runs in Gateway mode.
//
// Any invalid value yields a cosmoserr.ConfigurationError.
func ResolveConfig(base ConnectionConfig, override *CustomConfig) (*Config, error) {
	base.BaseURL = strings.TrimSpace(base.BaseURL)
	base.PrimaryKeyOrResourceToken = strings.TrimSpace(base.PrimaryKeyOrResourceToken)
	if err := validate.Struct(base); err != nil {
		return nil, configError(err)
	}

	u, err := url.Parse(base.BaseURL)
	if err != nil {
		return nil, cosmoserr.NewConfiguration("invalid baseUrl %q: %v", base.BaseURL, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, cosmoserr.NewConfiguration("the protocol %q of baseUrl is not supported, "+
			"must use \"https\" or \"http\"", u.Scheme)
	}

	cfg := &Config{
		Endpoint:        strings.TrimRight(base.BaseURL, "/"),
		ConnectionMode:  types.Gateway,
		Direct:          defaultDirectSettings(),
		Gateway:         defaultGatewaySettings(),
		HTTPConfig:      base.HTTPConfig,
		LoggingConfig:   base.LoggingConfig,
		TelemetryConfig: base.TelemetryConfig,
		endpointURL:     u,
		credential:      base.PrimaryKeyOrResourceToken,
	}

	if override == nil {
		return cfg, nil
	}

	if !override.ConsistencyLevel.IsValid() {
		return nil, cosmoserr.NewConfiguration("invalid consistencyLevel %v", override.ConsistencyLevel)
	}
	cfg.ConsistencyLevel = override.ConsistencyLevel

	direct, gateway, err := override.connectionConfigs()
	if err != nil {
		return nil, err
	}
	if d := direct; d != nil {
		cfg.ConnectionMode = types.Direct
		if err := mergeDirect(&cfg.Direct, d); err != nil {
			return nil, err
		}
	}
	if g := gateway; g != nil {
		if err := mergeGateway(&cfg.Gateway, g); err != nil {
			return nil, err
		}
	}

	if override.ConnectionSharingAcrossClientsEnabled != nil {
		cfg.ConnectionSharingAcrossClientsEnabled = *override.ConnectionSharingAcrossClientsEnabled
	}
	if override.UserAgentSuffix != nil {
		cfg.UserAgentSuffix = strings.TrimSpace(*override.UserAgentSuffix)
	}
	if override.ContentResponseOnWriteEnabled != nil {
		v := *override.ContentResponseOnWriteEnabled
		cfg.ContentResponseOnWriteEnabled = &v
	}
	for _, name := range override.PreferredRegions {
		r := common.NormalizeRegion(name)
		if r == "" {
			return nil, cosmoserr.NewConfiguration("preferredRegions must not contain empty names")
		}
		cfg.PreferredRegions = append(cfg.PreferredRegions, r)
	}

	return cfg, nil
}

func mergeDirect(dst *DirectConnectionSettings, src *DirectConnectionConfig) (err error) {
	if dst.ConnectTimeout, err = seconds("directConnectionConfig.connectTimeout", src.ConnectTimeout, dst.ConnectTimeout); err != nil {
		return
	}
	if dst.IdleConnectionTimeout, err = seconds("directConnectionConfig.idleConnectionTimeout", src.IdleConnectionTimeout, dst.IdleConnectionTimeout); err != nil {
		return
	}
	if dst.IdleEndpointTimeout, err = seconds("directConnectionConfig.idleEndpointTimeout", src.IdleEndpointTimeout, dst.IdleEndpointTimeout); err != nil {
		return
	}
	if dst.NetworkRequestTimeout, err = seconds("directConnectionConfig.networkRequestTimeout", src.NetworkRequestTimeout, dst.NetworkRequestTimeout); err != nil {
		return
	}
	if dst.MaxConnectionsPerEndpoint, err = int32Value("directConnectionConfig.maxConnectionsPerEndpoint", src.MaxConnectionsPerEndpoint, dst.MaxConnectionsPerEndpoint); err != nil {
		return
	}
	if dst.MaxRequestsPerConnection, err = int32Value("directConnectionConfig.maxRequestsPerConnection", src.MaxRequestsPerConnection, dst.MaxRequestsPerConnection); err != nil {
		return
	}
	if src.ConnectionEndpointRediscoveryEnabled != nil {
		dst.ConnectionEndpointRediscoveryEnabled = *src.ConnectionEndpointRediscoveryEnabled
	}
	switch {
	case dst.NetworkRequestTimeout == 0:
		return cosmoserr.NewConfiguration("directConnectionConfig.networkRequestTimeout must be positive")
	case dst.MaxConnectionsPerEndpoint == 0:
		return cosmoserr.NewConfiguration("directConnectionConfig.maxConnectionsPerEndpoint must be positive")
	case dst.MaxRequestsPerConnection == 0:
		return cosmoserr.NewConfiguration("directConnectionConfig.maxRequestsPerConnection must be positive")
	}
	return nil
}

func mergeGateway(dst *GatewayConnectionSettings, src *GatewayConnectionConfig) (err error) {
	if dst.MaxConnectionPoolSize, err = int32Value("gatewayConnectionConfig.maxConnectionPoolSize", src.MaxConnectionPoolSize, dst.MaxConnectionPoolSize); err != nil {
		return
	}
	if dst.IdleConnectionTimeout, err = seconds("gatewayConnectionConfig.idleConnectionTimeout", src.IdleConnectionTimeout, dst.IdleConnectionTimeout); err != nil {
		return
	}
	if dst.MaxConnectionPoolSize == 0 {
		return cosmoserr.NewConfiguration("gatewayConnectionConfig.maxConnectionPoolSize must be positive")
	}
	return nil
}

// maxSeconds is the largest number of seconds representable as a time.Duration.
const maxSeconds = math.MaxInt64 / int64(time.Second)

// seconds converts an optional number of seconds into a duration, returning
// def when v is nil.
func seconds(name string, v *int64, def time.Duration) (time.Duration, error) {
	if v == nil {
		return def, nil
	}
	if *v < 0 {
		return 0, cosmoserr.NewConfiguration("%s must not be negative, got %d", name, *v)
	}
	if *v > maxSeconds {
		return 0, cosmoserr.NewConfiguration("%s is out of range, got %d", name, *v)
	}
	return time.Duration(*v) * time.Second, nil
}

// int32Value narrows an optional integer to int32, returning def when v is nil.
func int32Value(name string, v *int64, def int32) (int32, error) {
	if v == nil {
		return def, nil
	}
	if *v < 0 {
		return 0, cosmoserr.NewConfiguration("%s must not be negative, got %d", name, *v)
	}
	if *v > math.MaxInt32 {
		return 0, cosmoserr.NewConfiguration("%s is out of range, got %d", name, *v)
	}
	return int32(*v), nil
}

// configError converts validator errors into a ConfigurationError naming the
// offending configuration keys.
func configError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return cosmoserr.NewWithCause(cosmoserr.ConfigurationError, err, "invalid connection configuration")
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s must be specified", fe.Field()))
		case "url":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid URL", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return cosmoserr.NewConfiguration("%s", strings.Join(msgs, "; "))
}

// RequestTimeout returns the per-request timeout of the client: the network
// request timeout in Direct mode, or a fixed gateway timeout otherwise.
func (c *Config) RequestTimeout() time.Duration {
	if c.ConnectionMode == types.Direct {
		return c.Direct.NetworkRequestTimeout
	}
	return defaultGatewayRequestTimeout
}

// MaxConcurrentRequests returns how many requests a client may have in flight.
func (c *Config) MaxConcurrentRequests() int64 {
	if c.ConnectionMode == types.Direct {
		return int64(c.Direct.MaxConnectionsPerEndpoint) * int64(c.Direct.MaxRequestsPerConnection)
	}
	return int64(c.Gateway.MaxConnectionPoolSize)
}

// httpConfig returns the transport settings for the resolved connection mode.
func (c *Config) httpConfig() httputil.HTTPConfig {
	hc := c.HTTPConfig
	switch c.ConnectionMode {
	case types.Direct:
		hc.MaxConnsPerHost = int(c.Direct.MaxConnectionsPerEndpoint)
		hc.MaxIdleConnsPerHost = int(c.Direct.MaxConnectionsPerEndpoint)
		hc.MaxIdleConns = int(c.Gateway.MaxConnectionPoolSize)
		hc.ConnectTimeout = c.Direct.ConnectTimeout
		hc.IdleConnTimeout = c.Direct.IdleConnectionTimeout
		if hc.IdleConnTimeout == 0 {
			hc.IdleConnTimeout = c.Direct.IdleEndpointTimeout
		}
	default:
		hc.MaxConnsPerHost = int(c.Gateway.MaxConnectionPoolSize)
		hc.MaxIdleConnsPerHost = int(c.Gateway.MaxConnectionPoolSize)
		hc.MaxIdleConns = int(c.Gateway.MaxConnectionPoolSize)
		hc.IdleConnTimeout = c.Gateway.IdleConnectionTimeout
	}
	return hc
}

// logger returns the logger configured for the client.
func (c *Config) logger() *logger.Logger {
	if c.DisableLogging {
		return nil
	}
	if c.Logger == nil {
		return logger.DefaultLogger
	}
	return c.Logger
}

// configFile is the layout of a configuration file.
type configFile struct {
	Connection ConnectionConfig `yaml:"connection"`
	Custom     *CustomConfig    `yaml:"custom"`
}

// LoadConfigFile reads a base configuration and an optional override from a
// YAML file of the form:
//
//	connection:
//	  baseUrl: https://myacct.documents.azure.com:443/
//	  primaryKeyOrResourceToken: ${COSMOS_KEY}
//	custom:
//	  consistencyLevel: Session
//	  gatewayConnectionConfig:
//	    maxConnectionPoolSize: 200
//
// References to environment variables are expanded before the file is parsed.
// Unknown keys are rejected.
func LoadConfigFile(path string) (ConnectionConfig, *CustomConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ConnectionConfig{}, nil, cosmoserr.NewWithCause(cosmoserr.ConfigurationError, err,
			"cannot read configuration file %s", path)
	}

	return parseConfig([]byte(os.ExpandEnv(string(data))))
}

func parseConfig(data []byte) (ConnectionConfig, *CustomConfig, error) {
	var f configFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return ConnectionConfig{}, nil, cosmoserr.NewWithCause(cosmoserr.ConfigurationError, err,
			"cannot parse configuration")
	}

	return f.Connection, f.Custom, nil
}
