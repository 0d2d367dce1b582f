//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

// Package test provides configurations and utility functions for Cosmos DB client tests.
package test

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb"
)

// Test modes.
const (
	// FakeMode runs the tests against an in-process fake gateway.
	FakeMode = "fake"

	// LiveMode runs the tests against a Cosmos DB account or the emulator.
	LiveMode = "live"
)

// EmulatorKey is the well-known master key of the Cosmos DB emulator. It is
// also accepted by the fake gateway.
const EmulatorKey = "C2y6yDjf5/R+ob0N8A7Cgv30VRDJIWEHLM+4QDU5DE2nQ9nDuVTqobD4b8mGGyPMbIZnqyMsEcaGQy67XIw/Jw=="

// Config represents a test configuration.
type Config struct {
	// Mode specifies on which mode the tests run.
	// Available test modes are:
	//
	//   fake : test with the in-process fake gateway (the default)
	//   live : test with a Cosmos DB account or the emulator
	//
	Mode string `yaml:"mode"`

	// Endpoint specifies the account endpoint. Only used in live mode.
	Endpoint string `yaml:"endpoint"`

	// PrimaryKey specifies the account master key. Only used in live mode.
	// If not set the emulator key is used.
	PrimaryKey string `yaml:"primaryKey"`

	// DatabaseID and ContainerID name an existing container partitioned on
	// /pk that the tests write to.
	DatabaseID  string `yaml:"databaseId"`
	ContainerID string `yaml:"containerId"`

	// IDPrefix specifies a prefix for the ids of documents and stored
	// procedures created in the tests.
	IDPrefix string `yaml:"idPrefix"`

	// DeleteOnTearDown specifies whether to delete the documents and stored
	// procedures that were created during testing on teardown of test suite.
	DeleteOnTearDown bool `yaml:"deleteOnTearDown"`

	// Custom holds client overrides.
	Custom *cosmosdb.CustomConfig `yaml:"custom"`
}

// defaultConfig is used when no configuration file is given.
func defaultConfig() *Config {
	return &Config{
		Mode:        FakeMode,
		DatabaseID:  "testdb",
		ContainerID: "testcoll",
		IDPrefix:    "GoSDKTest",
	}
}

// newConfig creates a test configuration object from the specified YAML file.
func newConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %v", configFile, err)
	}

	cfg := defaultConfig()
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configurations from file %s: %v", configFile, err)
	}

	switch cfg.Mode {
	case FakeMode:
	case LiveMode:
		if cfg.Endpoint == "" {
			return nil, errors.New("endpoint must be specified in live mode")
		}
	default:
		return nil, fmt.Errorf("unknown test mode %q", cfg.Mode)
	}

	if cfg.PrimaryKey == "" {
		cfg.PrimaryKey = EmulatorKey
	}
	return cfg, nil
}

// IsFake returns true if tests are configured to run against the fake gateway.
func (cfg *Config) IsFake() bool {
	return cfg == nil || cfg.Mode == FakeMode
}

// createConfig creates a test configuration object from the YAML file
// specified on command line of the form:
//
//	testConfig=<path to YAML file>
//
// If no file is specified the tests run against the fake gateway.
func createConfig() (*Config, error) {
	if !flag.Parsed() {
		flag.Parse()
	}

	const key = "testConfig="
	for _, arg := range flag.Args() {
		if strings.HasPrefix(arg, key) {
			return newConfig(arg[len(key):])
		}
	}

	cfg := defaultConfig()
	cfg.PrimaryKey = EmulatorKey
	return cfg, nil
}
