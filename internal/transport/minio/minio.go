// Package minio is a transport that keeps objects in an S3-compatible
// bucket through the MinIO client.
package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/roach88/objsync/internal/transport"
)

// Config describes the bucket connection.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	Secure    bool
}

// Transport stores each object as <prefix>/<id>.
type Transport struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ transport.Transport = (*Transport)(nil)

// New connects to the endpoint in cfg. The bucket is created when it does
// not exist yet.
func New(ctx context.Context, cfg Config) (*Transport, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("minio transport: %w", err)
	}
	return NewFromClient(ctx, client, cfg.Bucket, cfg.Prefix)
}

// NewFromClient wraps an existing client.
func NewFromClient(ctx context.Context, client *minio.Client, bucket, prefix string) (*Transport, error) {
	if bucket == "" {
		return nil, fmt.Errorf("minio transport: bucket is required")
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("minio transport: bucket %s: %w", bucket, translateError(err))
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio transport: create bucket %s: %w", bucket, translateError(err))
		}
	}
	return &Transport{client: client, bucket: bucket, prefix: prefix}, nil
}

// translateError maps missing-object responses to transport.ErrNotFound.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", resp.Message, transport.ErrNotFound)
	}
	return err
}

func (t *Transport) key(id string) string {
	if t.prefix == "" {
		return id
	}
	return path.Join(t.prefix, id)
}

func (t *Transport) Name() string {
	return "minio:" + t.client.EndpointURL().Host + "/" + t.bucket
}

func (t *Transport) Put(ctx context.Context, id string, data []byte) error {
	_, err := t.client.PutObject(ctx, t.bucket, t.key(id), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("minio transport: put %s: %w", id, translateError(err))
	}
	return nil
}

func (t *Transport) Get(ctx context.Context, id string) ([]byte, error) {
	obj, err := t.client.GetObject(ctx, t.bucket, t.key(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio transport: get %s: %w", id, translateError(err))
	}
	defer func() {
		_ = obj.Close()
	}()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("minio transport: get %s: %w", id, translateError(err))
	}
	return data, nil
}

func (t *Transport) Has(ctx context.Context, id string) (bool, error) {
	_, err := t.client.StatObject(ctx, t.bucket, t.key(id), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, fmt.Errorf("minio transport: has %s: %w", id, err)
}

func (t *Transport) Close() error { return nil }
