package clientdata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const storedAtMetadataKey = "stored-at"

// ObjectAPI is the subset of the S3 client the object store needs.
type ObjectAPI interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ObjectStoreConfig configures an S3 or R2 bucket used as cache storage
type ObjectStoreConfig struct {
	Bucket          string
	Endpoint        string // Custom endpoint (Cloudflare R2); empty for AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

// ObjectStore keeps one JSON object per key in a bucket.
// Object PUTs replace the whole object, so readers never see a partial value.
type ObjectStore struct {
	client   ObjectAPI
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewObjectStore wraps an existing S3 client.
func NewObjectStore(client ObjectAPI, bucket, prefix string) *ObjectStore {
	return &ObjectStore{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   prefix,
	}
}

// NewObjectStoreFromConfig builds the S3 client from static credentials or the default chain.
func NewObjectStoreFromConfig(ctx context.Context, cfg ObjectStoreConfig) (*ObjectStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewObjectStore(client, cfg.Bucket, cfg.Prefix), nil
}

func (s *ObjectStore) objectKey(key string) string {
	return s.prefix + key + ".json"
}

func (s *ObjectStore) Load(ctx context.Context, key string) (Entry, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("failed to get cache object %s: %w", key, err)
	}
	defer out.Body.Close()

	value, err := io.ReadAll(out.Body)
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to read cache object %s: %w", key, err)
	}

	storedAt, ok := parseStoredAt(out.Metadata[storedAtMetadataKey])
	if !ok {
		if out.LastModified == nil {
			return Entry{}, false, fmt.Errorf("cache object %s has no timestamp", key)
		}
		storedAt = *out.LastModified
	}

	return Entry{Key: key, Value: value, StoredAt: storedAt}, true, nil
}

func (s *ObjectStore) Save(ctx context.Context, entry Entry) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.objectKey(entry.Key)),
		Body:        bytes.NewReader(entry.Value),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			storedAtMetadataKey: strconv.FormatInt(entry.StoredAt.UnixMilli(), 10),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to put cache object %s: %w", entry.Key, err)
	}
	return nil
}

func parseStoredAt(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
