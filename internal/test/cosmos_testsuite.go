//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package test

import (
	"github.com/stretchr/testify/suite"

	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb"
	"github.com/cosmosdb-go/cosmos-go-sdk/internal/test/fakegw"
)

// CosmosTestSuite provides generic utility methods and configurations for test suites.
//
// It should be embedded into test suites that test the cases where a Cosmos DB client is needed.
type CosmosTestSuite struct {
	suite.Suite
	*Config
	Client *cosmosdb.Client

	// Fake is the fake gateway the client talks to in fake mode, nil otherwise.
	Fake *fakegw.Server

	allDocuments []docRef
	allProcs     []string
}

type docRef struct {
	id string
	pk interface{}
}

// NewCosmosTestSuite creates a test suite with the configuration given on the
// command line, or against the fake gateway if there is none.
func NewCosmosTestSuite() *CosmosTestSuite {
	cfg, err := createConfig()
	if err != nil {
		panic(err)
	}

	return &CosmosTestSuite{Config: cfg}
}

// This implements the suite.SetupAllSuite interface defined in testify package.
func (suite *CosmosTestSuite) SetupSuite() {
	endpoint := suite.Endpoint
	if suite.IsFake() {
		suite.Fake = fakegw.New()
		suite.Fake.CreateContainer(suite.DatabaseID, suite.ContainerID)
		endpoint = suite.Fake.URL
	}

	conn := cosmosdb.ConnectionConfig{
		BaseURL:                   endpoint,
		PrimaryKeyOrResourceToken: suite.PrimaryKey,
	}
	conn.DisableLogging = true

	client, err := cosmosdb.NewClient(conn, suite.Custom)
	suite.Require().NoErrorf(err, "NewClient(): %v", err)
	suite.Client = client
}

// This implements the suite.TearDownAllSuite interface defined in testify package.
func (suite *CosmosTestSuite) TearDownSuite() {
	if suite.Client == nil {
		return
	}

	if suite.DeleteOnTearDown {
		for _, d := range suite.allDocuments {
			suite.Client.DeleteDocument(&cosmosdb.DeleteDocumentRequest{
				DatabaseID:   suite.DatabaseID,
				ContainerID:  suite.ContainerID,
				DocumentID:   d.id,
				PartitionKey: d.pk,
			})
		}
		for _, id := range suite.allProcs {
			suite.Client.DeleteStoredProcedure(&cosmosdb.DeleteStoredProcedureRequest{
				DatabaseID:        suite.DatabaseID,
				ContainerID:       suite.ContainerID,
				StoredProcedureID: id,
			})
		}
	}

	suite.Client.Close()
	if suite.Fake != nil {
		suite.Fake.Close()
	}
}

// GetID returns the id to use for a test resource.
func (suite *CosmosTestSuite) GetID(name string) string {
	return suite.IDPrefix + name
}

// CreateItem creates the item, failing the test on error, and records it for
// deletion on teardown.
func (suite *CosmosTestSuite) CreateItem(item *Item) *cosmosdb.DocumentResponse {
	res, err := suite.Client.CreateDocument(&cosmosdb.CreateDocumentRequest{
		DatabaseID:   suite.DatabaseID,
		ContainerID:  suite.ContainerID,
		Document:     item,
		PartitionKey: item.PK,
	})
	suite.Require().NoErrorf(err, "CreateDocument(id=%s): %v", item.ID, err)
	suite.AddToDocuments(item.ID, item.PK)
	return res
}

// AddToDocuments records a document for deletion on teardown.
func (suite *CosmosTestSuite) AddToDocuments(id string, pk interface{}) {
	for _, d := range suite.allDocuments {
		if d.id == id && d.pk == pk {
			return
		}
	}
	suite.allDocuments = append(suite.allDocuments, docRef{id: id, pk: pk})
}

// AddToProcedures records a stored procedure for deletion on teardown.
func (suite *CosmosTestSuite) AddToProcedures(id string) {
	for _, p := range suite.allProcs {
		if p == id {
			return
		}
	}
	suite.allProcs = append(suite.allProcs, id)
}

// ReadItem reads and decodes an item.
func (suite *CosmosTestSuite) ReadItem(id, pk string) (Item, error) {
	return cosmosdb.GetDocument[Item](suite.Client, &cosmosdb.ReadDocumentRequest{
		DatabaseID:   suite.DatabaseID,
		ContainerID:  suite.ContainerID,
		DocumentID:   id,
		PartitionKey: pk,
	})
}

// QueryItems runs a query and returns all its results.
func (suite *CosmosTestSuite) QueryItems(query string, opts *cosmosdb.QueryOptions, params ...cosmosdb.QueryParameter) ([]Item, error) {
	cursor, err := cosmosdb.QueryDocuments[Item](suite.Client, &cosmosdb.QueryDocumentsRequest{
		DatabaseID:  suite.DatabaseID,
		ContainerID: suite.ContainerID,
		Query:       query,
		Parameters:  params,
		Options:     opts,
	})
	if err != nil {
		return nil, err
	}
	return Collect(cursor)
}
