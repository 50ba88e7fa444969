package records

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type DynamoClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

func NewDynamoClient(cfg DynamoClientConfig) (*dynamodb.Client, error) {
	opts := []func(*aws_config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, aws_config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, aws_config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := aws_config.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config: %w", err)
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return client, nil
}

// DynamoStore implements Store over two DynamoDB tables: the posts table
// keyed by {user, id} and the tasks table keyed by {id}.
type DynamoStore struct {
	client     DynamoAPI
	postsTable string
	tasksTable string
}

var _ Store = (*DynamoStore)(nil)

func NewDynamoStore(client DynamoAPI, postsTable, tasksTable string) *DynamoStore {
	return &DynamoStore{client: client, postsTable: postsTable, tasksTable: tasksTable}
}

func postKey(user, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user": &types.AttributeValueMemberS{Value: user},
		"id":   &types.AttributeValueMemberS{Value: id},
	}
}

func (s *DynamoStore) PutPost(ctx context.Context, post Post) error {
	item, err := attributevalue.MarshalMap(post)
	if err != nil {
		return fmt.Errorf("failed to marshal post %s: %w", post.Id, err)
	}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.postsTable),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("failed to put post %s: %w", post.Id, err)
	}

	return nil
}

func (s *DynamoStore) PostsByUser(ctx context.Context, user string) ([]Post, error) {
	var posts []Post

	// "user" is a DynamoDB reserved word, hence the expression attribute name.
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                aws.String(s.postsTable),
		KeyConditionExpression:   aws.String("#u = :user AND begins_with(id, :prefix)"),
		ExpressionAttributeNames: map[string]string{"#u": "user"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":user":   &types.AttributeValueMemberS{Value: user},
			":prefix": &types.AttributeValueMemberS{Value: PostKeyPrefix},
		},
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to query posts for user %s: %w", user, err)
		}

		var pagePosts []Post
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pagePosts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal posts for user %s: %w", user, err)
		}
		posts = append(posts, pagePosts...)
	}

	return posts, nil
}

func (s *DynamoStore) AllPosts(ctx context.Context) ([]Post, error) {
	var posts []Post

	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName: aws.String(s.postsTable),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan posts table: %w", err)
		}

		var pagePosts []Post
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &pagePosts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal posts: %w", err)
		}

		// The table may hold non-post items, keep only post records.
		for _, p := range pagePosts {
			if strings.HasPrefix(p.Id, PostKeyPrefix) {
				posts = append(posts, p)
			}
		}
	}

	return posts, nil
}

func (s *DynamoStore) FindPostById(ctx context.Context, id string) (*Post, error) {
	// The posts table is keyed by {user, id}, so a lookup by id alone is a
	// full-table scan with a filter. Acceptable at this table's size; an
	// id-keyed GSI would replace this if listing cost ever matters.
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:        aws.String(s.postsTable),
		FilterExpression: aws.String("id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: id},
		},
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan for post %s: %w", id, err)
		}

		if len(page.Items) > 0 {
			var post Post
			if err := attributevalue.UnmarshalMap(page.Items[0], &post); err != nil {
				return nil, fmt.Errorf("failed to unmarshal post %s: %w", id, err)
			}
			return &post, nil
		}
	}

	return nil, nil
}

func (s *DynamoStore) DeletePost(ctx context.Context, user, id string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.postsTable),
		Key:       postKey(user, id),
	}); err != nil {
		return fmt.Errorf("failed to delete post %s: %w", id, err)
	}

	return nil
}

func (s *DynamoStore) SetPostKey(ctx context.Context, user, id, key string) error {
	// "key" is a DynamoDB reserved word as well.
	if _, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.postsTable),
		Key:                      postKey(user, id),
		UpdateExpression:         aws.String("SET #k = :key"),
		ExpressionAttributeNames: map[string]string{"#k": "key"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":key": &types.AttributeValueMemberS{Value: key},
		},
	}); err != nil {
		return fmt.Errorf("failed to set object key on post %s: %w", id, err)
	}

	return nil
}

func (s *DynamoStore) UpdateTask(ctx context.Context, taskId, user string, labels []string) error {
	labelsAttr, err := attributevalue.Marshal(labels)
	if err != nil {
		return fmt.Errorf("failed to marshal labels for task %s: %w", taskId, err)
	}

	// Unconditional overwrite: no existence check, no merge with prior labels.
	// Concurrent events for the same task id are last write wins.
	if _, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(s.tasksTable),
		Key:                      map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: taskId}},
		UpdateExpression:         aws.String("SET labels = :labels, #u = :user"),
		ExpressionAttributeNames: map[string]string{"#u": "user"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":labels": labelsAttr,
			":user":   &types.AttributeValueMemberS{Value: user},
		},
	}); err != nil {
		return fmt.Errorf("failed to update task %s: %w", taskId, err)
	}

	return nil
}

func (s *DynamoStore) GetTask(ctx context.Context, taskId string) (*TaskRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tasksTable),
		Key:       map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: taskId}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", taskId, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var task TaskRecord
	if err := attributevalue.UnmarshalMap(out.Item, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task %s: %w", taskId, err)
	}
	return &task, nil
}
