//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package jsonutil provides helpers for encoding values as JSON strings and
// for picking fields out of raw JSON payloads without decoding them fully.
package jsonutil

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

const emptyJsonObject = "{}"

// AsJSON encodes the specified value into a json string.
func AsJSON(v interface{}) string {
	return asJSONString(v, false)
}

// AsPrettyJSON encodes the specified value into a json string, adding
// appropriate indents in the returned string.
func AsPrettyJSON(v interface{}) string {
	return asJSONString(v, true)
}

func asJSONString(v interface{}, pretty bool) string {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return emptyJsonObject
	}
	return string(b)
}

// Elements returns the raw elements of the array found at path within data.
// A missing path yields an empty slice. It is an error if data is not valid
// JSON or the value at path is not an array.
func Elements(data []byte, path string) ([]json.RawMessage, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON payload")
	}

	arr := gjson.GetBytes(data, path)
	if !arr.Exists() {
		return []json.RawMessage{}, nil
	}
	if !arr.IsArray() {
		return nil, fmt.Errorf("%q is not an array", path)
	}

	elems := arr.Array()
	out := make([]json.RawMessage, len(elems))
	for i, e := range elems {
		out[i] = json.RawMessage(e.Raw)
	}
	return out, nil
}

// GetString returns the string at path within data.
func GetString(data []byte, path string) (string, error) {
	r := gjson.GetBytes(data, path)
	if !r.Exists() {
		return "", fmt.Errorf("cannot find field %q", path)
	}
	if r.Type != gjson.String {
		return "", fmt.Errorf("field %q is not a string", path)
	}
	return r.Str, nil
}

// GetStringValues returns the string values of the specified fields of a JSON
// object. It fails on the first field that is missing or is not a string.
func GetStringValues(data []byte, fieldNames ...string) (map[string]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON payload")
	}
	if !gjson.ParseBytes(data).IsObject() {
		return nil, fmt.Errorf("payload is not a JSON object")
	}

	m := make(map[string]string, len(fieldNames))
	for _, name := range fieldNames {
		s, err := GetString(data, name)
		if err != nil {
			return nil, err
		}
		m[name] = s
	}
	return m, nil
}
