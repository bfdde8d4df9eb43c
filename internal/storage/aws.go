package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/cgillinger/facebook-stats/internal/config"
	"github.com/cgillinger/facebook-stats/internal/pkg/logger"
)

// S3API is the subset of the S3 client used here.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// DynamoAPI is the subset of the DynamoDB client used for the index.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// AWSStorage keeps document bodies in S3 and an index of them in DynamoDB.
// Without a table name, listing falls back to S3 prefix listing.
type AWSStorage struct {
	s3Client  S3API
	dynamoDB  DynamoAPI
	bucket    string
	prefix    string
	tableName string
}

// IndexItem is one row of the DynamoDB document index.
type IndexItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	ObjectKey string `dynamodbav:"ObjectKey"`
	Size      int64  `dynamodbav:"Size"`
	Timestamp string `dynamodbav:"Timestamp"`
}

// LoadAWSConfig resolves credentials the way every AWS client in this repo
// does: static keys when configured, else a named profile, else the default
// chain.
func LoadAWSConfig(ctx context.Context, region, profile, accessKey, secretKey string) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	switch {
	case accessKey != "" && secretKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	case profile != "":
		opts = append(opts, awsconfig.WithSharedConfigProfile(profile))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS config: %w", err)
	}
	return cfg, nil
}

// NewAWSStorage creates S3 and DynamoDB clients from cfg.
func NewAWSStorage(ctx context.Context, cfg config.StorageConfig) (*AWSStorage, error) {
	if cfg.S3Bucket == "" {
		return nil, errors.New("storage.s3_bucket is required for aws storage")
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg.AWSRegion, cfg.GetAWSProfile(), cfg.AccessKeyID, cfg.SecretKey)
	if err != nil {
		return nil, err
	}
	var ddb DynamoAPI
	if cfg.DynamoDBTable != "" {
		ddb = dynamodb.NewFromConfig(awsCfg)
	}
	logger.Info("aws storage initialized", "bucket", cfg.S3Bucket, "table", cfg.DynamoDBTable, "region", cfg.AWSRegion)
	return NewAWSStorageWithClients(s3.NewFromConfig(awsCfg), ddb, cfg.S3Bucket, cfg.S3Prefix, cfg.DynamoDBTable), nil
}

// NewAWSStorageWithClients wires pre-built clients. ddb may be nil.
func NewAWSStorageWithClients(s3Client S3API, ddb DynamoAPI, bucket, prefix, tableName string) *AWSStorage {
	if ddb == nil {
		tableName = ""
	}
	return &AWSStorage{s3Client: s3Client, dynamoDB: ddb, bucket: bucket, prefix: prefix, tableName: tableName}
}

func (s *AWSStorage) objectKey(category, key string) string {
	return fmt.Sprintf("%s%s/%s.json", s.prefix, category, key)
}

func (s *AWSStorage) Save(ctx context.Context, category, key string, v interface{}) error {
	if err := CheckKey(category, key); err != nil {
		return err
	}
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling data: %w", err)
	}

	objectKey := s.objectKey(category, key)
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(jsonData),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("putting object to S3: %w", err)
	}

	if s.tableName == "" {
		return nil
	}
	item, err := attributevalue.MarshalMap(IndexItem{
		PK:        category,
		SK:        key,
		ObjectKey: objectKey,
		Size:      int64(len(jsonData)),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshaling index item: %w", err)
	}
	if _, err := s.dynamoDB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("putting index item to DynamoDB: %w", err)
	}
	return nil
}

func (s *AWSStorage) Load(ctx context.Context, category, key string, target interface{}) error {
	if err := CheckKey(category, key); err != nil {
		return err
	}
	result, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(category, key)),
	})
	if err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("getting object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return fmt.Errorf("reading S3 object body: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unmarshaling S3 data: %w", err)
	}
	return nil
}

// Delete removes the object and its index row. S3 deletes succeed for
// absent keys, so ErrNotFound is only reported when an index is configured.
func (s *AWSStorage) Delete(ctx context.Context, category, key string) error {
	if err := CheckKey(category, key); err != nil {
		return err
	}
	if _, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(category, key)),
	}); err != nil {
		return fmt.Errorf("deleting S3 object: %w", err)
	}
	if s.tableName == "" {
		return nil
	}
	out, err := s.dynamoDB.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]dynamotypes.AttributeValue{
			"PK": &dynamotypes.AttributeValueMemberS{Value: category},
			"SK": &dynamotypes.AttributeValueMemberS{Value: key},
		},
		ReturnValues: dynamotypes.ReturnValueAllOld,
	})
	if err != nil {
		return fmt.Errorf("deleting index item: %w", err)
	}
	if len(out.Attributes) == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *AWSStorage) List(ctx context.Context, category string) ([]DocumentInfo, error) {
	if err := CheckKey(category, "x"); err != nil {
		return nil, err
	}
	if s.tableName == "" {
		return s.listS3(ctx, category)
	}

	infos := []DocumentInfo{}
	paginator := dynamodb.NewQueryPaginator(s.dynamoDB, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]dynamotypes.AttributeValue{
			":pk": &dynamotypes.AttributeValueMemberS{Value: category},
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("querying DynamoDB: %w", err)
		}
		var items []IndexItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshaling index items: %w", err)
		}
		for _, item := range items {
			infos = append(infos, item.info())
		}
	}
	sortInfos(infos)
	return infos, nil
}

func (s *AWSStorage) listS3(ctx context.Context, category string) ([]DocumentInfo, error) {
	infos := []DocumentInfo{}
	prefix := s.prefix + category + "/"
	paginator := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing S3 objects: %w", err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if !strings.HasSuffix(name, ".json") || strings.Contains(name, "/") {
				continue
			}
			infos = append(infos, DocumentInfo{
				Category:  category,
				Key:       strings.TrimSuffix(name, ".json"),
				Size:      aws.ToInt64(obj.Size),
				UpdatedAt: aws.ToTime(obj.LastModified).UTC(),
			})
		}
	}
	sortInfos(infos)
	return infos, nil
}

// Stats scans the index. Without an index it reports nothing rather than
// walking the whole bucket.
func (s *AWSStorage) Stats(ctx context.Context) (*Stats, error) {
	stats := NewStats("aws")
	if s.tableName == "" {
		return stats, nil
	}
	paginator := dynamodb.NewScanPaginator(s.dynamoDB, &dynamodb.ScanInput{
		TableName: aws.String(s.tableName),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scanning DynamoDB: %w", err)
		}
		var items []IndexItem
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshaling index items: %w", err)
		}
		for _, item := range items {
			stats.Add(item.PK, item.Size)
		}
	}
	return stats, nil
}

func (i IndexItem) info() DocumentInfo {
	ts, _ := time.Parse(time.RFC3339, i.Timestamp)
	return DocumentInfo{Category: i.PK, Key: i.SK, Size: i.Size, UpdatedAt: ts}
}

func isNotFound(err error) bool {
	var noKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}
