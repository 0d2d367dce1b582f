//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package cosmosdb

import (
	"context"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/log"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/auth"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/common"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/cosmoserr"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/httputil"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/internal/proto"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/internal/sdkutil"
	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/logger"
)

const moduleName = "cosmosdb"

// requestInfo carries the operation details the pipeline policies need.
type requestInfo struct {
	op proto.OpCode

	// link is the resource link covered by the authorization signature.
	link string

	// regions records the regional endpoints the request was sent to.
	regions []string
}

type requestInfoKey struct{}

func withRequestInfo(ctx context.Context, info *requestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

func requestInfoFrom(req *policy.Request) *requestInfo {
	info, _ := req.Raw().Context().Value(requestInfoKey{}).(*requestInfo)
	return info
}

type policyFunc func(req *policy.Request) (*http.Response, error)

func (fn policyFunc) Do(req *policy.Request) (*http.Response, error) {
	return fn(req)
}

// newPipeline builds the request pipeline of a client. The pipeline never
// retries: a request is sent exactly once and its outcome is returned.
func newPipeline(cfg *Config, transport httputil.RequestExecutor, authz auth.Provider, limit *semaphore.Weighted) runtime.Pipeline {
	perCall := []policy.Policy{
		headersPolicy(sdkutil.UserAgentWithSuffix(cfg.UserAgentSuffix)),
		limiterPolicy(limit),
	}
	if len(cfg.PreferredRegions) > 0 {
		perCall = append(perCall, regionPolicy(cfg.PreferredRegions))
	}

	return runtime.NewPipeline(moduleName, sdkutil.SDKVersion(),
		runtime.PipelineOptions{
			PerCall:  perCall,
			PerRetry: []policy.Policy{authPolicy(authz)},
		},
		&policy.ClientOptions{
			Transport: transport,
			Retry:     policy.RetryOptions{MaxRetries: -1},
			Telemetry: policy.TelemetryOptions{Disabled: true},
			Logging: policy.LogOptions{
				AllowedHeaders: []string{
					proto.HeaderActivityID,
					proto.HeaderRequestCharge,
					proto.HeaderSubStatus,
					proto.HeaderContinuation,
				},
			},
		})
}

// headersPolicy stamps the protocol version, user agent and a fresh activity
// id on every request.
func headersPolicy(userAgent string) policy.Policy {
	return policyFunc(func(req *policy.Request) (*http.Response, error) {
		h := req.Raw().Header
		h.Set(proto.HeaderVersion, sdkutil.APIVersion)
		h.Set(proto.HeaderUserAgent, userAgent)
		if h.Get(proto.HeaderActivityID) == "" {
			h.Set(proto.HeaderActivityID, uuid.NewString())
		}
		return req.Next()
	})
}

// limiterPolicy bounds the number of requests in flight.
func limiterPolicy(sem *semaphore.Weighted) policy.Policy {
	return policyFunc(func(req *policy.Request) (*http.Response, error) {
		if err := sem.Acquire(req.Raw().Context(), 1); err != nil {
			return nil, err
		}
		defer sem.Release(1)
		return req.Next()
	})
}

// regionPolicy sends reads to the regional endpoint of the most preferred
// region. Writes always go to the account endpoint.
func regionPolicy(regions []common.Region) policy.Policy {
	return policyFunc(func(req *policy.Request) (*http.Response, error) {
		info := requestInfoFrom(req)
		if info == nil || !info.op.IsRead() {
			return req.Next()
		}

		u := req.Raw().URL
		host, err := regions[0].Endpoint(u.Hostname())
		if err != nil {
			// Not a public cloud account, such as the emulator.
			return req.Next()
		}
		if port := u.Port(); port != "" {
			host += ":" + port
		}
		u.Host = host
		req.Raw().Host = host
		info.regions = append(info.regions, regions[0].DisplayName())
		return req.Next()
	})
}

// authPolicy signs each request with the client credential.
func authPolicy(p auth.Provider) policy.Policy {
	return policyFunc(func(req *policy.Request) (*http.Response, error) {
		raw := req.Raw()
		info := requestInfoFrom(req)
		if info == nil {
			return nil, cosmoserr.NewConfiguration("request has no operation details")
		}

		now := time.Now()
		token, err := p.AuthorizationString(auth.Request{
			Verb:         raw.Method,
			ResourceType: info.op.ResourceType(),
			ResourceLink: info.link,
			Date:         now,
		})
		if err != nil {
			return nil, cosmoserr.NewWithCause(cosmoserr.ConfigurationError, err, "cannot authorize request")
		}

		raw.Header.Set(proto.HeaderDate, auth.FormatDate(now))
		raw.Header.Set(proto.HeaderAuthorization, token)
		return req.Next()
	})
}

// ForwardPipelineLogs routes the request and response events of the
// underlying Azure HTTP pipeline to lg at the Fine level. Only the given
// events are forwarded, or all events if none are given. A nil lg stops
// forwarding.
//
// The setting is process-wide and applies to every client.
func ForwardPipelineLogs(lg *logger.Logger, events ...log.Event) {
	if lg == nil {
		log.SetListener(nil)
		return
	}

	log.SetEvents(events...)
	log.SetListener(func(e log.Event, msg string) {
		lg.Fine("[%s] %s", e, msg)
	})
}
