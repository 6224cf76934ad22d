package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/reelworks/vod-pipeline/pkg/models"
)

// DefaultLeaseDuration bounds how long a worker may hold a session lease
// before another delivery of the same job is allowed to take over.
const DefaultLeaseDuration = 30 * time.Minute

// CreateSession inserts a new session row at status initiated.
func (s *Store) CreateSession(ctx context.Context, session *models.UploadSession) error {
	now := time.Now().UTC().Format(time.RFC3339)

	session.PK = sessionPK(session.SessionID)
	session.SK = skMeta
	session.GSI1PK = tokenGSI1PK(session.UploadToken)
	session.GSI1SK = skMeta
	session.Status = models.StatusInitiated
	session.CreatedAt = now
	session.UpdatedAt = now

	item, err := attributevalue.MarshalMap(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: %s", models.ErrSessionAlreadyExists, session.SessionID)
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetSession retrieves a session row by internal id.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*models.UploadSession, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"sk": &types.AttributeValueMemberS{Value: skMeta},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if result.Item == nil {
		return nil, models.ErrSessionNotFound
	}

	var session models.UploadSession
	if err := attributevalue.UnmarshalMap(result.Item, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// GetSessionByToken retrieves a session row by its client-visible token.
func (s *Store) GetSessionByToken(ctx context.Context, token string) (*models.UploadSession, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(gsi1Name),
		KeyConditionExpression: aws.String("gsi1pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: tokenGSI1PK(token)},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query session by token: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, models.ErrSessionNotFound
	}

	var session models.UploadSession
	if err := attributevalue.UnmarshalMap(result.Items[0], &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// TransitionStatus moves a session from one status to another. The move is
// validated against the closed transition set and enforced with a condition
// expression, so concurrent writers cannot produce an illegal transition.
func (s *Store) TransitionStatus(ctx context.Context, sessionID string, from, to models.SessionStatus) error {
	if !models.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, to)
	}

	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"sk": &types.AttributeValueMemberS{Value: skMeta},
		},
		UpdateExpression: aws.String("SET #status = :to, updated_at = :updated_at"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":to":         &types.AttributeValueMemberS{Value: string(to)},
			":from":       &types.AttributeValueMemberS{Value: string(from)},
			":updated_at": &types.AttributeValueMemberS{Value: now},
		},
		ConditionExpression: aws.String("attribute_exists(pk) AND #status = :from"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, from, to)
		}
		return fmt.Errorf("failed to update session status: %w", err)
	}

	return nil
}

// MarkFailed moves a session to failed regardless of its current
// non-terminal status and records the error message.
func (s *Store) MarkFailed(ctx context.Context, sessionID, errorMessage string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"sk": &types.AttributeValueMemberS{Value: skMeta},
		},
		UpdateExpression: aws.String("SET #status = :failed, error_message = :error, updated_at = :updated_at REMOVE lease_owner, lease_token, lease_expires"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":failed":     &types.AttributeValueMemberS{Value: string(models.StatusFailed)},
			":done":       &types.AttributeValueMemberS{Value: string(models.StatusDone)},
			":error":      &types.AttributeValueMemberS{Value: errorMessage},
			":updated_at": &types.AttributeValueMemberS{Value: now},
		},
		ConditionExpression: aws.String("attribute_exists(pk) AND #status <> :done AND #status <> :failed"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("%w: session already terminal", models.ErrInvalidTransition)
		}
		return fmt.Errorf("failed to mark session failed: %w", err)
	}

	return nil
}

// AcquireLease claims exclusive processing ownership of a session and moves
// it to processing. The conditional write succeeds only when the session is
// at uploaded or processing and no live lease exists on it. A live lease
// blocks acquisition even for the worker that holds it, so a redelivered job
// cannot start a second transcode of the same session; takeover happens only
// after the previous lease expires. The returned fencing token must be
// presented when committing.
func (s *Store) AcquireLease(ctx context.Context, sessionID, owner string, duration time.Duration) (string, error) {
	now := time.Now().UTC()
	token := uuid.New().String()

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"sk": &types.AttributeValueMemberS{Value: skMeta},
		},
		UpdateExpression: aws.String("SET #status = :processing, lease_owner = :owner, lease_token = :token, lease_expires = :expires, updated_at = :updated_at"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":processing": &types.AttributeValueMemberS{Value: string(models.StatusProcessing)},
			":uploaded":   &types.AttributeValueMemberS{Value: string(models.StatusUploaded)},
			":owner":      &types.AttributeValueMemberS{Value: owner},
			":token":      &types.AttributeValueMemberS{Value: token},
			":expires":    &types.AttributeValueMemberS{Value: now.Add(duration).Format(time.RFC3339)},
			":now":        &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
			":updated_at": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339)},
		},
		ConditionExpression: aws.String(
			"attribute_exists(pk) AND (#status = :uploaded OR #status = :processing)" +
				" AND (attribute_not_exists(lease_owner) OR lease_expires < :now)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return "", models.ErrLeaseNotAcquired
		}
		return "", fmt.Errorf("failed to acquire session lease: %w", err)
	}

	return token, nil
}

// DeleteSession removes the session row itself. Media rows must already be
// gone; discard deletes in dependency order.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"sk": &types.AttributeValueMemberS{Value: skMeta},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
