package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/reelworks/vod-pipeline/pkg/models"
)

// CommitMedia writes the Media row, every variant and thumbnail row, and the
// processing -> done status flip as a single transaction. The status update
// is fenced on the caller's lease token, so a worker whose lease was taken
// over cannot commit. Readers therefore never observe a done session with a
// missing Media row or a Media row with missing variants.
func (s *Store) CommitMedia(ctx context.Context, sessionID, leaseToken string, media *models.Media, variants []models.MediaVariant, thumbs []models.Thumbnail) error {
	now := time.Now().UTC().Format(time.RFC3339)
	pk := sessionPK(sessionID)

	media.PK = pk
	media.SK = mediaSKPrefix + media.MediaID
	media.CreatedAt = now

	mediaItem, err := attributevalue.MarshalMap(media)
	if err != nil {
		return fmt.Errorf("failed to marshal media: %w", err)
	}

	items := []types.TransactWriteItem{
		{Put: &types.Put{TableName: aws.String(s.tableName), Item: mediaItem}},
	}

	for i := range variants {
		variants[i].PK = pk
		variants[i].SK = variantSKPrefix + variants[i].VariantID
		item, err := attributevalue.MarshalMap(variants[i])
		if err != nil {
			return fmt.Errorf("failed to marshal variant: %w", err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{TableName: aws.String(s.tableName), Item: item},
		})
	}

	for i := range thumbs {
		thumbs[i].PK = pk
		thumbs[i].SK = thumbSKPrefix + thumbs[i].ThumbnailID
		item, err := attributevalue.MarshalMap(thumbs[i])
		if err != nil {
			return fmt.Errorf("failed to marshal thumbnail: %w", err)
		}
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{TableName: aws.String(s.tableName), Item: item},
		})
	}

	// Status flip is the final statement of the transaction.
	items = append(items, types.TransactWriteItem{
		Update: &types.Update{
			TableName: aws.String(s.tableName),
			Key: map[string]types.AttributeValue{
				"pk": &types.AttributeValueMemberS{Value: pk},
				"sk": &types.AttributeValueMemberS{Value: skMeta},
			},
			UpdateExpression: aws.String("SET #status = :done, updated_at = :updated_at REMOVE lease_owner, lease_token, lease_expires"),
			ExpressionAttributeNames: map[string]string{
				"#status": "status",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":done":       &types.AttributeValueMemberS{Value: string(models.StatusDone)},
				":processing": &types.AttributeValueMemberS{Value: string(models.StatusProcessing)},
				":token":      &types.AttributeValueMemberS{Value: leaseToken},
				":updated_at": &types.AttributeValueMemberS{Value: now},
			},
			ConditionExpression: aws.String("#status = :processing AND lease_token = :token"),
		},
	})

	_, err = s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			return fmt.Errorf("%w: commit rejected", models.ErrLeaseNotAcquired)
		}
		return fmt.Errorf("failed to commit media: %w", err)
	}

	return nil
}

// GetMediaBundle returns the Media row for a session joined with its
// variants and thumbnails, or ErrMediaNotFound when no Media exists.
func (s *Store) GetMediaBundle(ctx context.Context, sessionID string) (*models.MediaBundle, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query session items: %w", err)
	}

	bundle := &models.MediaBundle{}
	found := false

	for _, item := range result.Items {
		skAttr, ok := item["sk"].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		switch {
		case strings.HasPrefix(skAttr.Value, mediaSKPrefix):
			if err := attributevalue.UnmarshalMap(item, &bundle.Media); err != nil {
				return nil, fmt.Errorf("failed to unmarshal media: %w", err)
			}
			found = true
		case strings.HasPrefix(skAttr.Value, variantSKPrefix):
			var v models.MediaVariant
			if err := attributevalue.UnmarshalMap(item, &v); err != nil {
				return nil, fmt.Errorf("failed to unmarshal variant: %w", err)
			}
			bundle.Variants = append(bundle.Variants, v)
		case strings.HasPrefix(skAttr.Value, thumbSKPrefix):
			var t models.Thumbnail
			if err := attributevalue.UnmarshalMap(item, &t); err != nil {
				return nil, fmt.Errorf("failed to unmarshal thumbnail: %w", err)
			}
			bundle.Thumbnails = append(bundle.Thumbnails, t)
		}
	}

	if !found {
		return nil, models.ErrMediaNotFound
	}
	return bundle, nil
}

// DeleteMediaRows removes every thumbnail, then every variant, then the
// Media row for a session. Rows are deleted in dependency order so a
// partial failure never leaves a child row without its parent's locators
// still recorded.
func (s *Store) DeleteMediaRows(ctx context.Context, sessionID string, bundle *models.MediaBundle) error {
	pk := sessionPK(sessionID)

	for _, t := range bundle.Thumbnails {
		if err := s.deleteItem(ctx, pk, thumbSKPrefix+t.ThumbnailID); err != nil {
			return fmt.Errorf("failed to delete thumbnail row: %w", err)
		}
	}
	for _, v := range bundle.Variants {
		if err := s.deleteItem(ctx, pk, variantSKPrefix+v.VariantID); err != nil {
			return fmt.Errorf("failed to delete variant row: %w", err)
		}
	}
	if err := s.deleteItem(ctx, pk, mediaSKPrefix+bundle.Media.MediaID); err != nil {
		return fmt.Errorf("failed to delete media row: %w", err)
	}

	return nil
}

func (s *Store) deleteItem(ctx context.Context, pk, sk string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
			"sk": &types.AttributeValueMemberS{Value: sk},
		},
	})
	return err
}
