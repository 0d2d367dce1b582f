//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package httputil

import (
	"encoding/base64"
	"fmt"
	"net/http"
)

// RequestExecutor represents an interface used to execute an HTTP request.
//
// It has the same method set as the transporter of an azcore pipeline, so an
// HTTPClient, or a test double, can be plugged in as the pipeline transport.
type RequestExecutor interface {
	// Do is used to send an http request to server, returns an http response
	// and an error if occurred during execution.
	Do(req *http.Request) (*http.Response, error)
}

// BasicAuth returns a basic authentication string of the format:
//
//	Basic base64(clientId:clientSecret)
func BasicAuth(clientID string, clientSecret []byte) string {
	s := fmt.Sprintf("%s:%s", clientID, string(clientSecret))
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(s))
}
