//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

/*
This is a Go SDK for the data plane of Azure Cosmos DB for NoSQL.

Installation

	go get github.com/cosmosdb-go/cosmos-go-sdk

Configuration

A client is configured with the account endpoint and a master key or resource
token, either in code or from a YAML file loaded with cosmosdb.LoadConfigFile.
Connection mode, consistency level, preferred regions and the other client
settings are optional overrides.

Full Example

See the examples directory for programs that create, read, query and delete
documents, and that register and execute stored procedures.
*/
package cosmos
