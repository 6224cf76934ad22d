// Package catalog implements the DynamoDB-backed catalog store for upload
// sessions and finished media. The table uses a single-table layout:
//
//	pk=SESSION#{sessionID}  sk=META           upload session row
//	pk=SESSION#{sessionID}  sk=MEDIA#{id}     media row
//	pk=SESSION#{sessionID}  sk=VARIANT#{id}   encoded rendition row
//	pk=SESSION#{sessionID}  sk=THUMB#{id}     thumbnail row
//
// GSI1 maps gsi1pk=TOKEN#{uploadToken} back to the session row so sessions
// can be looked up by the client-visible token.
package catalog

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

const (
	skMeta          = "META"
	gsi1Name        = "GSI1"
	mediaSKPrefix   = "MEDIA#"
	variantSKPrefix = "VARIANT#"
	thumbSKPrefix   = "THUMB#"
)

func sessionPK(sessionID string) string { return "SESSION#" + sessionID }
func tokenGSI1PK(token string) string   { return "TOKEN#" + token }

// dynamoAPI is the subset of the DynamoDB client the store uses. Tests
// substitute a fake.
type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Store provides catalog access for both the API and the worker.
type Store struct {
	client    dynamoAPI
	tableName string
}

// NewStoreFromClient creates a Store from an existing DynamoDB client.
func NewStoreFromClient(client *dynamodb.Client, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
	}
}
