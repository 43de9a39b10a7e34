package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"safety-chatbot/internal/domain"
)

const skPrefixTurn = "TURN#"

// skTimeLayout pads fractional seconds to nine digits so the keys stay
// fixed width. RFC3339Nano trims trailing zeros, which breaks the
// lexicographic-equals-chronological property within a second.
const skTimeLayout = "2006-01-02T15:04:05.000000000Z"

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// ReadWriter defines the history operations consumed by the session layer.
type ReadWriter interface {
	History(ctx context.Context, userID string, limit int) ([]domain.ChatTurn, error)
	SaveTurn(ctx context.Context, userID, userMessage, botResponse string) (domain.ChatTurn, error)
	Clear(ctx context.Context, userID string) error
}

// Client wraps a DynamoDB table holding per-user chat turns. The user id
// is the partition key; turns sort by timestamp within the partition.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// userPK returns the DynamoDB partition key for a user.
func userPK(userID string) string {
	return "USER#" + userID
}

// turnSK returns the sort key for a turn. Embedding the fixed-width UTC
// timestamp makes a descending key-order query a descending timestamp
// query.
func turnSK(ts time.Time) string {
	return skPrefixTurn + ts.UTC().Format(skTimeLayout)
}

// History queries the user's turns ordered by timestamp descending,
// truncated to the most recent limit. The order is NOT re-reversed.
func (c *Client) History(ctx context.Context, userID string, limit int) ([]domain.ChatTurn, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: userPK(userID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: History query: %w", err)
	}

	turns := make([]domain.ChatTurn, 0, len(out.Items))
	for _, item := range out.Items {
		turn, err := itemToTurn(item)
		if err != nil {
			return nil, fmt.Errorf("repository: History unmarshal: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// SaveTurn persists a new turn with a fresh id and the current UTC
// timestamp. A plain put keeps upsert semantics: an id collision would
// replace rather than fail, and random ids make collisions a non-issue.
func (c *Client) SaveTurn(ctx context.Context, userID, userMessage, botResponse string) (domain.ChatTurn, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.ChatTurn{}, errors.New("repository: SaveTurn: userID is required")
	}

	turn := NewTurn(userID, userMessage, botResponse)
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      turnItem(turn),
	})
	if err != nil {
		return domain.ChatTurn{}, fmt.Errorf("repository: SaveTurn: %w", err)
	}
	return turn, nil
}

// Clear deletes every turn owned by userID. Deletion is per item and not
// transactional: a failure partway leaves the earlier deletes in place.
func (c *Client) Clear(ctx context.Context, userID string) error {
	pk := userPK(userID)

	var startKey map[string]types.AttributeValue
	for {
		out, err := c.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(c.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: pk},
				":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
			},
			ProjectionExpression: aws.String("PK, SK"),
			ExclusiveStartKey:    startKey,
		})
		if err != nil {
			return fmt.Errorf("repository: Clear query: %w", err)
		}

		for _, item := range out.Items {
			sk, err := strAttr(item, "SK")
			if err != nil {
				return fmt.Errorf("repository: Clear: %w", err)
			}
			_, err = c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
				TableName: aws.String(c.tableName),
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: pk},
					"SK": &types.AttributeValueMemberS{Value: sk},
				},
			})
			if err != nil {
				return fmt.Errorf("repository: Clear delete: %w", err)
			}
		}

		if len(out.LastEvaluatedKey) == 0 {
			return nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// NewTurn constructs a ChatTurn with a fresh id and current UTC timestamp.
func NewTurn(userID, userMessage, botResponse string) domain.ChatTurn {
	return domain.ChatTurn{
		ID:          uuid.NewString(),
		UserID:      userID,
		UserMessage: userMessage,
		BotResponse: botResponse,
		Timestamp:   time.Now().UTC(),
	}
}

// itemToTurn converts a DynamoDB attribute map to a ChatTurn.
func itemToTurn(item map[string]types.AttributeValue) (domain.ChatTurn, error) {
	id, err := strAttr(item, "id")
	if err != nil {
		return domain.ChatTurn{}, err
	}
	userID, err := strAttr(item, "userId")
	if err != nil {
		return domain.ChatTurn{}, err
	}
	userMessage, err := strAttr(item, "userMessage")
	if err != nil {
		return domain.ChatTurn{}, err
	}
	botResponse, err := strAttr(item, "botResponse")
	if err != nil {
		return domain.ChatTurn{}, err
	}
	rawTS, err := strAttr(item, "timestamp")
	if err != nil {
		return domain.ChatTurn{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, rawTS)
	if err != nil {
		return domain.ChatTurn{}, fmt.Errorf("repository: parse timestamp: %w", err)
	}

	return domain.ChatTurn{
		ID:          id,
		UserID:      userID,
		UserMessage: userMessage,
		BotResponse: botResponse,
		Timestamp:   ts,
	}, nil
}

func turnItem(turn domain.ChatTurn) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":          &types.AttributeValueMemberS{Value: userPK(turn.UserID)},
		"SK":          &types.AttributeValueMemberS{Value: turnSK(turn.Timestamp)},
		"id":          &types.AttributeValueMemberS{Value: turn.ID},
		"userId":      &types.AttributeValueMemberS{Value: turn.UserID},
		"userMessage": &types.AttributeValueMemberS{Value: turn.UserMessage},
		"botResponse": &types.AttributeValueMemberS{Value: turn.BotResponse},
		"timestamp":   &types.AttributeValueMemberS{Value: turn.Timestamp.UTC().Format(time.RFC3339Nano)},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}
