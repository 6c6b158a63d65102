package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"mimic-assistant/internal/domain"
)

const (
	skPrefixTurn   = "TURN#"
	skMeta         = "META#"
	statusComplete = "complete"
	ttlDuration    = 30 * 24 * time.Hour // 30-day TTL
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client stores chat transcripts in a single DynamoDB table: one TURN# item
// per completed exchange and one META# item per conversation.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

// convPK returns the DynamoDB partition key for a conversation.
func convPK(conversationID string) string {
	return "CONV#" + conversationID
}

// turnSK orders turns by their position in the conversation.
func turnSK(turn int) string {
	return fmt.Sprintf("%s%06d", skPrefixTurn, turn)
}

func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

// LoadLog reads every turn of a conversation in chronological order and
// flattens it into a transcript. Unknown conversations yield an empty log.
func (c *Client) LoadLog(ctx context.Context, conversationID string) ([]domain.Message, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: convPK(conversationID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	}

	var log []domain.Message
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: LoadLog query: %w", err)
		}
		for _, item := range out.Items {
			msgs, err := itemToMessages(item)
			if err != nil {
				return nil, fmt.Errorf("repository: LoadLog unmarshal: %w", err)
			}
			log = append(log, msgs...)
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
	return log, nil
}

// SaveTurn writes the exchange and the updated metadata in one transaction.
// The turn item is conditional so a replayed write cannot overwrite history,
// and the META# item must still carry the previous turn count. A failed
// condition is reported as domain.ErrTurnConflict.
func (c *Client) SaveTurn(ctx context.Context, turn domain.CompletedTurn) error {
	if strings.TrimSpace(turn.ConversationID) == "" {
		return errors.New("repository: SaveTurn: conversation id is required")
	}
	if turn.Turns <= 0 {
		return errors.New("repository: SaveTurn: turn number must be positive")
	}

	ttl := c.ttlValue()
	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(c.tableName),
					Item:                turnItem(turn, ttl),
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Put: metaPut(c.tableName, turn, c.now(), ttl),
			},
		},
	})
	if err != nil {
		if isConditionFailure(err) {
			return fmt.Errorf("repository: SaveTurn %s turn %d: %w", turn.ConversationID, turn.Turns, domain.ErrTurnConflict)
		}
		return fmt.Errorf("repository: SaveTurn: %w", err)
	}
	return nil
}

func metaPut(table string, turn domain.CompletedTurn, now time.Time, ttl int64) *types.Put {
	put := &types.Put{
		TableName: aws.String(table),
		Item:      metaItem(turn, now, ttl),
	}
	if turn.Turns == 1 {
		put.ConditionExpression = aws.String("attribute_not_exists(PK)")
		return put
	}
	put.ConditionExpression = aws.String("turns = :prev")
	put.ExpressionAttributeValues = map[string]types.AttributeValue{
		":prev": &types.AttributeValueMemberN{Value: strconv.Itoa(turn.Turns - 1)},
	}
	return put
}

func isConditionFailure(err error) bool {
	var canceled *types.TransactionCanceledException
	if !errors.As(err, &canceled) {
		return false
	}
	for _, reason := range canceled.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}

func turnItem(turn domain.CompletedTurn, ttl int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: convPK(turn.ConversationID)},
		"SK":             &types.AttributeValueMemberS{Value: turnSK(turn.Turns)},
		"conversationId": &types.AttributeValueMemberS{Value: turn.ConversationID},
		"text":           &types.AttributeValueMemberS{Value: turn.User.Content},
		"textAt":         &types.AttributeValueMemberS{Value: formatTime(turn.User.SentAt)},
		"answer":         &types.AttributeValueMemberS{Value: turn.Reply.Content},
		"answerAt":       &types.AttributeValueMemberS{Value: formatTime(turn.Reply.SentAt)},
		"privileged":     &types.AttributeValueMemberBOOL{Value: turn.Privileged},
		"status":         &types.AttributeValueMemberS{Value: statusComplete},
		"ttl":            &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}
}

func metaItem(turn domain.CompletedTurn, now time.Time, ttl int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":             &types.AttributeValueMemberS{Value: convPK(turn.ConversationID)},
		"SK":             &types.AttributeValueMemberS{Value: skMeta},
		"conversationId": &types.AttributeValueMemberS{Value: turn.ConversationID},
		"lastActivity":   &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
		"turns":          &types.AttributeValueMemberN{Value: strconv.Itoa(turn.Turns)},
		"privileged":     &types.AttributeValueMemberBOOL{Value: turn.Privileged},
		"ttl":            &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}
}

// itemToMessages converts a TURN# item to its user message and reply.
// Items that never completed are skipped.
func itemToMessages(item map[string]types.AttributeValue) ([]domain.Message, error) {
	status, _ := strAttr(item, "status") // allow empty
	if status != statusComplete {
		return nil, nil
	}
	text, err := strAttr(item, "text")
	if err != nil {
		return nil, err
	}
	answer, err := strAttr(item, "answer")
	if err != nil {
		return nil, err
	}
	textAt, err := timeAttr(item, "textAt")
	if err != nil {
		return nil, err
	}
	answerAt, err := timeAttr(item, "answerAt")
	if err != nil {
		return nil, err
	}
	return []domain.Message{
		{Role: domain.RoleUser, Content: text, SentAt: textAt},
		{Role: domain.RoleAssistant, Content: answer, SentAt: answerAt},
	}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
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

func timeAttr(item map[string]types.AttributeValue, key string) (time.Time, error) {
	s, err := strAttr(item, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return t, nil
}
