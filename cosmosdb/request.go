//
// Copyright (c) 2019, 2023 Oracle and/or its affiliates. All rights reserved.
//
// Licensed under the Universal Permissive License v 1.0 as shown at
//  https://oss.oracle.com/licenses/upl/
//

package cosmosdb

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cosmosdb-go/cosmos-go-sdk/cosmosdb/cosmoserr"
)

// CreateDocumentRequest represents a request for creating a document.
//
// It is used as the input to a Client.CreateDocument() operation.
type CreateDocumentRequest struct {
	// DatabaseID specifies the database that holds the container.
	// It is required and must be non-empty.
	DatabaseID string `json:"databaseId"`

	// ContainerID specifies the container the document is written to.
	// It is required and must be non-empty.
	ContainerID string `json:"containerId"`

	// Document specifies the document to create. It is encoded as JSON; a
	// json.RawMessage or []byte is sent unchanged. The document must carry
	// an "id" property.
	// It is required and must be non-nil.
	Document interface{} `json:"document"`

	// PartitionKey specifies the partition key value of the document. It may
	// be any value accepted by NewPartitionKey.
	// It is optional. If not set, the service extracts the key from the document.
	PartitionKey interface{} `json:"partitionKey,omitempty"`

	// Options specifies per-request options.
	// It is optional.
	Options *ItemOptions `json:"options,omitempty"`
}

func (r *CreateDocumentRequest) validate() (err error) {
	if err = validateContainer(r.DatabaseID, r.ContainerID); err != nil {
		return
	}

	return validateDocument(r.Document)
}

// ReplaceDocumentRequest represents a request for replacing an existing document.
//
// It is used as the input to a Client.ReplaceDocument() operation.
type ReplaceDocumentRequest struct {
	// DatabaseID specifies the database that holds the container.
	// It is required and must be non-empty.
	DatabaseID string `json:"databaseId"`

	// ContainerID specifies the container that holds the document.
	// It is required and must be non-empty.
	ContainerID string `json:"containerId"`

	// DocumentID specifies the id of the document to replace.
	// It is required and must be non-empty.
	DocumentID string `json:"documentId"`

	// Document specifies the new content of the document.
	// It is required and must be non-nil.
	Document interface{} `json:"document"`

	// PartitionKey specifies the partition key value of the document.
	// It is optional.
	PartitionKey interface{} `json:"partitionKey,omitempty"`

	// Options specifies per-request options. Set Options.IfMatchETag to
	// replace the document only if it has not changed since it was read.
	// It is optional.
	Options *ItemOptions `json:"options,omitempty"`
}

func (r *ReplaceDocumentRequest) validate() (err error) {
	if err = validateContainer(r.DatabaseID, r.ContainerID); err != nil {
		return
	}

	if err = validateID("DocumentID", r.DocumentID); err != nil {
		return
	}

	return validateDocument(r.Document)
}

// ReadDocumentRequest represents a request for reading a document.
//
// It is used as the input to a Client.ReadDocument() operation and the
// GetDocument() function.
type ReadDocumentRequest struct {
	// DatabaseID specifies the database that holds the container.
	// It is required and must be non-empty.
	DatabaseID string `json:"databaseId"`

	// ContainerID specifies the container that holds the document.
	// It is required and must be non-empty.
	ContainerID string `json:"containerId"`

	// DocumentID specifies the id of the document to read.
	// It is required and must be non-empty.
	DocumentID string `json:"documentId"`

	// PartitionKey specifies the partition key value of the document.
	// It is optional.
	PartitionKey interface{} `json:"partitionKey,omitempty"`

	// Options specifies per-request options.
	// It is optional.
	Options *ItemOptions `json:"options,omitempty"`
}

func (r *ReadDocumentRequest) validate() (err error) {
	if err = validateContainer(r.DatabaseID, r.ContainerID); err != nil {
		return
	}

	return validateID("DocumentID", r.DocumentID)
}

// DeleteDocumentRequest represents a request for deleting a document.
//
// It is used as the input to a Client.DeleteDocument() operation.
type DeleteDocumentRequest struct {
	// DatabaseID specifies the database that holds the container.
	// It is required and must be non-empty.
	DatabaseID string `json:"databaseId"`

	// ContainerID specifies the container that holds the document.
	// It is required and must be non-empty.
	ContainerID string `json:"containerId"`

	// DocumentID specifies the id of the document to delete.
	// It is required and must be non-empty.
	DocumentID string `json:"documentId"`

	// PartitionKey specifies the partition key value of the document.
	// It is optional.
	PartitionKey interface{} `json:"partitionKey,omitempty"`

	// Options specifies per-request options.
	// It is optional.
	Options *ItemOptions `json:"options,omitempty"`
}

func (r *DeleteDocumentRequest) validate() (err error) {
	if err = validateContainer(r.DatabaseID, r.ContainerID); err != nil {
		return
	}

	return validateID("DocumentID", r.DocumentID)
}

// QueryParameter represents a named parameter of a query, such as
//
//	{Name: "@city", Value: "Seattle"}
type QueryParameter struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// QueryDocumentsRequest represents a request for querying documents.
//
// It is used as the input to the QueryDocuments() function.
type QueryDocumentsRequest struct {
	// DatabaseID specifies the database that holds the container.
	// It is required and must be non-empty.
	DatabaseID string `json:"databaseId"`

	// ContainerID specifies the container to query.
	// It is required and must be non-empty.
	ContainerID string `json:"containerId"`

	// Query specifies the SQL query text, for example
	//
	//	SELECT * FROM c WHERE c.city = @city
	//
	// It is required and must be non-empty.
	Query string `json:"query"`

	// Parameters specifies the values of named parameters used in Query.
	// It is optional.
	Parameters []QueryParameter `json:"parameters,omitempty"`

	// Options specifies query options. A query without Options.PartitionKey
	// runs across all partitions.
	// It is optional.
	Options *QueryOptions `json:"options,omitempty"`
}

func (r *QueryDocumentsRequest) validate() (err error) {
	if err = validateContainer(r.DatabaseID, r.ContainerID); err != nil {
		return
	}

	if strings.TrimSpace(r.Query) == "" {
		return cosmoserr.NewConfiguration("Query must be non-empty")
	}

	for i, p := range r.Parameters {
		if !strings.HasPrefix(p.Name, "@") {
			return cosmoserr.NewConfiguration("the name of the %s query parameter must begin with '@', got %q",
				ordinal(i), p.Name)
		}
	}

	return nil
}

// ListDocumentsRequest represents a request for reading all documents of a
// container, or of one logical partition.
//
// It is used as the input to the ListDocuments() function.
type ListDocumentsRequest struct {
	// DatabaseID specifies the database that holds the container.
	// It is required and must be non-empty.
	DatabaseID string `json:"databaseId"`

	// ContainerID specifies the container to read.
	// It is required and must be non-empty.
	ContainerID string `json:"containerId"`

	// PartitionKey restricts the listing to one logical partition. It takes
	// precedence over Options.PartitionKey.
	// It is optional.
	PartitionKey interface{} `json:"partitionKey,omitempty"`

	// Options specifies feed options.
	// It is optional.
	Options *QueryOptions `json:"options,omitempty"`
}

func (r *ListDocumentsRequest) validate() error {
	return validateContainer(r.DatabaseID, r.ContainerID)
}

// CreateStoredProcedureRequest represents a request for registering a stored procedure.
//
// It is used as the input to a Client.CreateStoredProcedure() operation.
type CreateStoredProcedureRequest struct {
	// DatabaseID specifies the database that holds the container.
	// It is required and must be non-empty.
	DatabaseID string `json:"databaseId"`

	// ContainerID specifies the container the stored procedure belongs to.
	// It is required and must be non-empty.
	ContainerID string `json:"containerId"`

	// StoredProcedureID specifies the id of the stored procedure.
	// It is required and must be non-empty.
	StoredProcedureID string `json:"storedProcedureId"`

	// Body specifies the JavaScript source of the stored procedure.
	// It is required and must be non-empty.
	Body string `json:"body"`

	// Options specifies per-request options.
	// It is optional.
	Options *StoredProcedureOptions `json:"options,omitempty"`
}

func (r *CreateStoredProcedureRequest) validate() (err error) {
	if err = validateContainer(r.DatabaseID, r.ContainerID); err != nil {
		return
	}

	if err = validateID("StoredProcedureID", r.StoredProcedureID); err != nil {
		return
	}

	if strings.TrimSpace(r.Body) == "" {
		return cosmoserr.NewConfiguration("Body must be non-empty")
	}

	return nil
}

// ListStoredProceduresRequest represents a request for listing the stored
// procedures of a container.
//
// It is used as the input to a Client.ListStoredProcedures() operation.
type ListStoredProceduresRequest struct {
	// DatabaseID specifies the database that holds the container.
	// It is required and must be non-empty.
	DatabaseID string `json:"databaseId"`

	// ContainerID specifies the container.
	// It is required and must be non-empty.
	ContainerID string `json:"containerId"`

	// MaxItemCount specifies how many stored procedures are fetched per page.
	// It is optional. If not set, the service default is used.
	MaxItemCount int `json:"maxItemCount,omitempty"`
}

func (r *ListStoredProceduresRequest) validate() error {
	if err := validateContainer(r.DatabaseID, r.ContainerID); err != nil {
		return err
	}

	if r.MaxItemCount < 0 {
		return cosmoserr.NewConfiguration("MaxItemCount must not be negative")
	}

	return nil
}

// DeleteStoredProcedureRequest represents a request for deleting a stored procedure.
//
// It is used as the input to a Client.DeleteStoredProcedure() operation.
type DeleteStoredProcedureRequest struct {
	// DatabaseID specifies the database that holds the container.
	// It is required and must be non-empty.
	DatabaseID string `json:"databaseId"`

	// ContainerID specifies the container.
	// It is required and must be non-empty.
	ContainerID string `json:"containerId"`

	// StoredProcedureID specifies the id of the stored procedure.
	// It is required and must be non-empty.
	StoredProcedureID string `json:"storedProcedureId"`

	// Options specifies per-request options.
	// It is optional.
	Options *StoredProcedureOptions `json:"options,omitempty"`
}

func (r *DeleteStoredProcedureRequest) validate() (err error) {
	if err = validateContainer(r.DatabaseID, r.ContainerID); err != nil {
		return
	}

	return validateID("StoredProcedureID", r.StoredProcedureID)
}

// ExecuteStoredProcedureRequest represents a request for executing a stored procedure.
//
// It is used as the input to a Client.ExecuteStoredProcedure() operation.
type ExecuteStoredProcedureRequest struct {
	// DatabaseID specifies the database that holds the container.
	// It is required and must be non-empty.
	DatabaseID string `json:"databaseId"`

	// ContainerID specifies the container.
	// It is required and must be non-empty.
	ContainerID string `json:"containerId"`

	// StoredProcedureID specifies the id of the stored procedure.
	// It is required and must be non-empty.
	StoredProcedureID string `json:"storedProcedureId"`

	// PartitionKey specifies the logical partition the procedure runs in.
	// It is required and must be a value accepted by NewPartitionKey.
	PartitionKey interface{} `json:"partitionKey"`

	// Options specifies the procedure arguments and per-request options.
	// It is optional.
	Options *StoredProcedureExecuteOptions `json:"options,omitempty"`
}

func (r *ExecuteStoredProcedureRequest) validate() (err error) {
	if err = validateContainer(r.DatabaseID, r.ContainerID); err != nil {
		return
	}

	if err = validateID("StoredProcedureID", r.StoredProcedureID); err != nil {
		return
	}

	if NewPartitionKey(r.PartitionKey).IsNone() {
		return cosmoserr.NewConfiguration("PartitionKey must be a string or a number, got %T", r.PartitionKey)
	}

	return nil
}

// validateContainer validates the database and container ids are non-empty.
func validateContainer(databaseID, containerID string) error {
	if err := validateID("DatabaseID", databaseID); err != nil {
		return err
	}

	return validateID("ContainerID", containerID)
}

// validateID validates a resource id is non-empty and does not contain
// characters that are not allowed in resource ids.
func validateID(name, id string) error {
	if strings.TrimSpace(id) == "" {
		return cosmoserr.NewConfiguration("%s must be non-empty", name)
	}

	if strings.ContainsAny(id, `/\?#`) {
		return cosmoserr.NewConfiguration("%s must not contain '/', '\\', '?' or '#', got %q", name, id)
	}

	return nil
}

// validateDocument validates the document is non-nil.
func validateDocument(doc interface{}) error {
	switch d := doc.(type) {
	case nil:
		return cosmoserr.NewConfiguration("Document must be non-nil")
	case []byte:
		if len(d) == 0 {
			return cosmoserr.NewConfiguration("Document must be non-empty")
		}
	case json.RawMessage:
		if len(d) == 0 {
			return cosmoserr.NewConfiguration("Document must be non-empty")
		}
	}

	return nil
}

func ordinal(i int) string {
	if i < 0 {
		return ""
	}

	var sfx string
	n := i + 1
	switch n % 100 {
	case 11, 12, 13:
		sfx = "th"
	default:
		switch n % 10 {
		case 1:
			sfx = "st"
		case 2:
			sfx = "nd"
		case 3:
			sfx = "rd"
		default:
			sfx = "th"
		}
	}

	return fmt.Sprintf("%d%s", n, sfx)
}
