// Package objectstore stores raw datasets and published reports in an S3
// compatible bucket.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nucleus/lakehouse/internal/errs"
)

// Store abstracts the object operations the lakehouse needs.
type Store interface {
	EnsureBucket(ctx context.Context, bucket string) error
	PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
	ListPrefix(ctx context.Context, bucket, prefix string) ([]string, error)
}

// Config describes how to reach the bucket.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// Client implements Store with the minio-go SDK.
type Client struct {
	client *minio.Client
	region string
}

// New creates a minio-backed Store. An empty endpoint targets AWS S3.
func New(cfg Config) (*Client, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
		useSSL = true
	} else if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	var creds *credentials.Credentials
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.IAM{},
		})
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.CodeObjectStore, false, fmt.Errorf("create client: %w", err))
	}
	return &Client{client: client, region: cfg.Region}, nil
}

func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	if bucket == "" {
		return errs.New(errs.CodeInvalidInput, false, "bucket name is required")
	}
	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return classify(err)
	}
	if exists {
		return nil
	}
	if err := c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.region}); err != nil {
		return classify(err)
	}
	return nil
}

func (c *Client) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if bucket == "" || key == "" {
		return errs.New(errs.CodeInvalidInput, false, "bucket and key are required")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := c.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

func (c *Client) GetObject(ctx context.Context, bucket, key string) ([]byte, error) {
	if bucket == "" || key == "" {
		return nil, errs.New(errs.CodeInvalidInput, false, "bucket and key are required")
	}
	obj, err := c.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classify(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classify(err)
	}
	return data, nil
}

func (c *Client) ListPrefix(ctx context.Context, bucket, prefix string) ([]string, error) {
	if bucket == "" {
		return nil, errs.New(errs.CodeInvalidInput, false, "bucket is required")
	}
	var keys []string
	for obj := range c.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, classify(obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// classify maps minio-go failures onto E_OBJECT_STORE, marking transient
// failures retryable.
func classify(err error) *errs.Error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchBucket", "NoSuchKey", "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return errs.Wrap(errs.CodeObjectStore, false, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "access denied"), strings.Contains(msg, "no such bucket"), strings.Contains(msg, "no such key"):
		return errs.Wrap(errs.CodeObjectStore, false, err)
	default:
		return errs.Wrap(errs.CodeObjectStore, true, err)
	}
}

// URI renders the s3:// address of an object.
func URI(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, strings.TrimPrefix(key, "/"))
}
