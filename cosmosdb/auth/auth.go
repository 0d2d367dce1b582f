//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package auth provides the authorization providers used to sign requests
// sent to a Cosmos DB account.
//
// Two kinds of credential are supported: an account master key, which signs
// each request with HMAC-SHA256, and a resource token, which is sent as is.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// MasterToken is the token type of signatures computed from an account key.
	MasterToken string = "master"

	// ResourceToken is the token type of resource tokens issued for a user permission.
	ResourceToken string = "resource"

	// TokenVersion is the version of the authorization token format.
	TokenVersion string = "1.0"
)

// resourceTokenPrefix identifies a credential string as a resource token.
const resourceTokenPrefix = "type=" + ResourceToken

// Request describes the parts of a REST request that are covered by the
// authorization signature.
type Request struct {
	// Verb is the HTTP method, such as GET or POST.
	Verb string

	// ResourceType is the type of the addressed resource, such as "docs" or "sprocs".
	ResourceType string

	// ResourceLink is the link of the addressed resource for item requests,
	// or of the parent resource for feed and create requests.
	ResourceLink string

	// Date is the request time. It must match the x-ms-date header.
	Date time.Time
}

// Provider is an interface that provides request authorization for clients.
//
// Implementations of this interface must be safe for concurrent use by multiple goroutines.
type Provider interface {
	// AuthorizationScheme returns the token type of the credential.
	AuthorizationScheme() string

	// AuthorizationString returns the value of the Authorization header for the specified request.
	AuthorizationString(req Request) (string, error)
}

// NewProvider returns the Provider for a credential string. Strings that begin
// with "type=resource" are resource tokens, anything else is treated as a
// base64 encoded master key.
func NewProvider(keyOrToken string) (Provider, error) {
	keyOrToken = strings.TrimSpace(keyOrToken)
	if keyOrToken == "" {
		return nil, errors.New("credential must be non-empty")
	}

	if strings.HasPrefix(keyOrToken, resourceTokenPrefix) {
		return &ResourceTokenProvider{token: keyOrToken}, nil
	}

	return NewMasterKeyProvider(keyOrToken)
}

// MasterKeyProvider signs requests with an account master key.
type MasterKeyProvider struct {
	key []byte
}

// NewMasterKeyProvider creates a provider with the specified base64 encoded master key.
func NewMasterKeyProvider(masterKey string) (*MasterKeyProvider, error) {
	key, err := base64.StdEncoding.DecodeString(masterKey)
	if err != nil {
		return nil, fmt.Errorf("master key is not valid base64: %w", err)
	}
	if len(key) == 0 {
		return nil, errors.New("master key must be non-empty")
	}

	return &MasterKeyProvider{key: key}, nil
}

// AuthorizationScheme returns MasterToken.
func (p *MasterKeyProvider) AuthorizationScheme() string {
	return MasterToken
}

// AuthorizationString computes the signature over the verb, resource type,
// resource link and date of req and returns it URL encoded.
func (p *MasterKeyProvider) AuthorizationString(req Request) (string, error) {
	if req.Verb == "" {
		return "", errors.New("verb must be non-empty")
	}
	if req.Date.IsZero() {
		return "", errors.New("request date must be set")
	}

	payload := strings.ToLower(req.Verb) + "\n" +
		strings.ToLower(req.ResourceType) + "\n" +
		req.ResourceLink + "\n" +
		strings.ToLower(FormatDate(req.Date)) + "\n" +
		"" + "\n"

	mac := hmac.New(sha256.New, p.key)
	mac.Write([]byte(payload))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return url.QueryEscape("type=" + MasterToken + "&ver=" + TokenVersion + "&sig=" + sig), nil
}

// ResourceTokenProvider authorizes requests with a resource token.
type ResourceTokenProvider struct {
	token string
}

// AuthorizationScheme returns ResourceToken.
func (p *ResourceTokenProvider) AuthorizationScheme() string {
	return ResourceToken
}

// AuthorizationString returns the resource token unchanged.
func (p *ResourceTokenProvider) AuthorizationString(Request) (string, error) {
	return p.token, nil
}

// FormatDate formats t in the RFC 1123 form required by the x-ms-date header.
func FormatDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}
