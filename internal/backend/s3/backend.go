// Package s3 provides an S3-backed object backend.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/gezibash/scs/internal/backend"
	"github.com/gezibash/scs/internal/storage"
)

const (
	KeyBucket          = "bucket"
	KeyRegion          = "region"
	KeyEndpoint        = "endpoint"
	KeyPrefix          = "prefix"
	KeyAccessKeyID     = "access_key_id"
	KeySecretAccessKey = "secret_access_key"
	KeyForcePathStyle  = "force_path_style"
)

func init() {
	backend.Register("s3", NewFactory, Defaults)
}

// Defaults returns the default configuration for the S3 backend.
func Defaults() map[string]string {
	return map[string]string{
		KeyRegion:          "us-east-1",
		KeyEndpoint:        "",
		KeyPrefix:          "scs/",
		KeyAccessKeyID:     "",
		KeySecretAccessKey: "",
		KeyForcePathStyle:  "false",
	}
}

// NewFactory creates a new S3 backend from a configuration map.
func NewFactory(ctx context.Context, config storage.Config) (backend.Backend, error) {
	bucket, err := config.Required("s3", KeyBucket)
	if err != nil {
		return nil, err
	}

	region := config.String(KeyRegion, "us-east-1")
	endpoint := config.String(KeyEndpoint, "")
	prefix := config.String(KeyPrefix, "")
	accessKeyID := config.String(KeyAccessKeyID, "")
	secretAccessKey := config.String(KeySecretAccessKey, "")

	forcePathStyle, err := config.Bool("s3", KeyForcePathStyle, false)
	if err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(region))

	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, storage.NewConfigErrorWithCause("s3", "", "failed to load AWS config", err)
	}

	var s3Opts []func(*s3.Options)
	if endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	if forcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(cfg, s3Opts...)

	// Fail fast: verify bucket access.
	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return nil, storage.NewConfigErrorWithCause("s3", KeyBucket, "bucket not accessible", err)
	}

	slog.DebugContext(ctx, "s3 backend initialized", "bucket", bucket, "region", region, "prefix", prefix)

	return &Backend{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// Backend is an S3 implementation of backend.Backend. Objects are keyed
// prefix+name in a single bucket.
type Backend struct {
	client *s3.Client
	bucket string
	prefix string
	closed atomic.Bool
}

func (b *Backend) key(name string) (string, error) {
	if b.closed.Load() {
		return "", backend.ErrClosed
	}
	if err := backend.CheckName(name); err != nil {
		return "", err
	}
	return b.prefix + name, nil
}

// walk visits every object under the prefix. Keys below a further "/" are
// not objects of this namespace and are skipped.
func (b *Backend) walk(ctx context.Context, fn func(name string, size int64)) error {
	p := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), b.prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			fn(name, aws.ToInt64(obj.Size))
		}
	}
	return nil
}

func (b *Backend) List(ctx context.Context) ([]string, error) {
	if b.closed.Load() {
		return nil, backend.ErrClosed
	}
	var names []string
	err := b.walk(ctx, func(name string, _ int64) {
		names = append(names, name)
	})
	if err != nil {
		return nil, fmt.Errorf("s3 list: %w", err)
	}
	return names, nil
}

func (b *Backend) Exists(ctx context.Context, name string) (bool, error) {
	key, err := b.key(name)
	if err != nil {
		return false, err
	}
	_, err = b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3 exists: %w", err)
	}
	return true, nil
}

func (b *Backend) Read(ctx context.Context, name string) ([]byte, error) {
	key, err := b.key(name)
	if err != nil {
		return nil, err
	}
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3 read %s: %w", name, backend.ErrNotFound)
		}
		return nil, fmt.Errorf("s3 read: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read: %w", err)
	}
	return data, nil
}

func (b *Backend) Write(ctx context.Context, name string, data []byte) error {
	key, err := b.key(name)
	if err != nil {
		return err
	}
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("s3 write: %w", err)
	}
	return nil
}

// Rename is a server-side copy followed by a delete of the source. Readers
// never observe a partial destination; for a short window both keys exist.
func (b *Backend) Rename(ctx context.Context, from, to string) error {
	src, err := b.key(from)
	if err != nil {
		return err
	}
	dst, err := b.key(to)
	if err != nil {
		return err
	}
	_, err = b.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.bucket),
		Key:        aws.String(dst),
		CopySource: aws.String(b.bucket + "/" + src),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("s3 rename %s: %w", from, backend.ErrNotFound)
		}
		return fmt.Errorf("s3 rename: %w", err)
	}
	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(src),
	})
	if err != nil {
		return fmt.Errorf("s3 rename: delete source: %w", err)
	}
	return nil
}

// Remove deletes name. S3 delete is already idempotent.
func (b *Backend) Remove(ctx context.Context, name string) error {
	key, err := b.key(name)
	if err != nil {
		return err
	}
	_, err = b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 remove: %w", err)
	}
	return nil
}

func (b *Backend) Size(ctx context.Context, name string) (int64, error) {
	key, err := b.key(name)
	if err != nil {
		return 0, err
	}
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, fmt.Errorf("s3 size %s: %w", name, backend.ErrNotFound)
		}
		return 0, fmt.Errorf("s3 size: %w", err)
	}
	return aws.ToInt64(out.ContentLength), nil
}

// Stats returns storage statistics.
func (b *Backend) Stats(ctx context.Context) (*backend.Stats, error) {
	if b.closed.Load() {
		return nil, backend.ErrClosed
	}
	var total int64
	err := b.walk(ctx, func(_ string, size int64) {
		total += size
	})
	if err != nil {
		return nil, fmt.Errorf("s3 stats: %w", err)
	}
	return &backend.Stats{
		SizeBytes:   total,
		BackendType: "s3",
	}, nil
}

// Teardown only checks emptiness; the bucket is not owned by the store.
func (b *Backend) Teardown(ctx context.Context) error {
	names, err := b.List(ctx)
	if err != nil {
		return err
	}
	if len(names) > 0 {
		return fmt.Errorf("s3 teardown: %d objects under %q: %w", len(names), b.prefix, backend.ErrNotEmpty)
	}
	return nil
}

// Close is a no-op; the S3 SDK client needs no cleanup.
func (b *Backend) Close() error {
	b.closed.Store(true)
	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	// HeadObject returns a generic error with status 404.
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return true
	}
	return false
}
