//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

/*
Package cosmosdb provides the public APIs for Go applications to use the data
plane of an Azure Cosmos DB for NoSQL account.

A Client is created from a ConnectionConfig, which names the account endpoint
and credential, and an optional CustomConfig that overrides the defaults:

	client, err := cosmosdb.NewClient(cosmosdb.ConnectionConfig{
		BaseURL:                   "https://myacct.documents.azure.com:443/",
		PrimaryKeyOrResourceToken: key,
	}, &cosmosdb.CustomConfig{ConsistencyLevel: types.Session})

The client writes, reads, replaces and deletes documents, runs SQL queries
and lists the documents of a container, and manages and executes stored
procedures. Queries and listings return a ResultCursor that fetches pages
lazily as items are consumed.

Every operation is sent exactly once. Failures are returned as a
*cosmoserr.Error whose Code tells the caller whether the operation may be
retried.
*/
package cosmosdb
