//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package sdkutil

import (
	"fmt"
	"runtime"
	"strings"
)

const (
	// Major, minor and patch versions for the SDK.
	major = 1
	minor = 0
	patch = 0

	// APIVersion is the Cosmos DB REST API version sent in the x-ms-version header.
	APIVersion = "2018-12-31"

	// maxUserAgentLength bounds the User-Agent header including any suffix.
	maxUserAgentLength = 255
)

var sdkVersion, userAgent string

// Sets sdkVersion and userAgent in package init function
func init() {
	sdkVersion = fmt.Sprintf("%d.%d.%d", major, minor, patch)
	// A sample User-Agent header: Cosmos-GoSDK/1.0.0 (go1.23.1; linux/amd64)
	userAgent = fmt.Sprintf("Cosmos-GoSDK/%s (%s; %s/%s)",
		sdkVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// SDKVersion returns the Cosmos DB Go SDK version.
func SDKVersion() string {
	return sdkVersion
}

// UserAgent returns a descriptive string that can be set in the "User-Agent"
// header of HTTP requests.
func UserAgent() string {
	return userAgent
}

// UserAgentWithSuffix returns UserAgent with the specified suffix appended,
// truncated to the maximum header length the service accepts.
func UserAgentWithSuffix(suffix string) string {
	suffix = strings.TrimSpace(suffix)
	if suffix == "" {
		return userAgent
	}

	ua := userAgent + " " + suffix
	if len(ua) > maxUserAgentLength {
		ua = ua[:maxUserAgentLength]
	}
	return ua
}
