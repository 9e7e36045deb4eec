package storage

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"oceanworks.io/datapipe/internal/core"
	"oceanworks.io/datapipe/pkg/logx"
	"oceanworks.io/datapipe/pkg/retryx"
)

// s3RetryPolicy bounds every remote call: 3 attempts, 5s initial delay,
// doubling after each failure.
var s3RetryPolicy = retryx.Policy{Attempts: 3, Delay: 5 * time.Second, Backoff: 2}

// s3Client is the narrow slice of the MinIO client the backend uses. It
// exists so tests can substitute a fake.
type s3Client interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)

	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)

	FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error

	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error

	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)

	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// minioClientWrapper adapts *minio.Client to the s3Client interface.
type minioClientWrapper struct {
	client *minio.Client
}

func (m *minioClientWrapper) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return m.client.BucketExists(ctx, bucketName)
}

func (m *minioClientWrapper) FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return m.client.FPutObject(ctx, bucketName, objectName, filePath, opts)
}

func (m *minioClientWrapper) FGetObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.GetObjectOptions) error {
	return m.client.FGetObject(ctx, bucketName, objectName, filePath, opts)
}

func (m *minioClientWrapper) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return m.client.RemoveObject(ctx, bucketName, objectName, opts)
}

func (m *minioClientWrapper) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return m.client.StatObject(ctx, bucketName, objectName, opts)
}

func (m *minioClientWrapper) ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	return m.client.ListObjects(ctx, bucketName, opts)
}

// s3Backend stores files beneath a key prefix in an S3 bucket. Credentials
// come from the environment; multiple credential mechanisms are more
// appropriately handled by the client library than by this package.
type s3Backend struct {
	bucket string
	prefix string
	client s3Client
	retry  retryx.Policy
}

func newS3Backend(bucket string, prefix string) (*s3Backend, error) {
	endpoint := envOr("DATAPIPE_S3_ENDPOINT", "s3.amazonaws.com")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewEnvAWS(),
		Secure: true,
	})
	if err != nil {
		return nil, core.WrapError(core.ErrInvalidStoreURL, err, "failed to create S3 client for bucket '%s'", bucket)
	}

	return &s3Backend{
		bucket: bucket,
		prefix: prefix,
		client: &minioClientWrapper{client: client},
		retry:  s3RetryPolicy,
	}, nil
}

// preRunHook validates bucket accessibility. Only the transport call is
// retried; a missing bucket is definitive and fails without retrying.
func (s *s3Backend) preRunHook(ctx context.Context) error {
	var exists bool
	err := retryx.Do(ctx, s.retry, func() error {
		var err error
		exists, err = s.client.BucketExists(ctx, s.bucket)
		return err
	})
	if err != nil {
		return core.WrapError(core.ErrInvalidStoreURL, err, "unable to access S3 bucket '%s'", s.bucket)
	}
	if !exists {
		return core.NewError(core.ErrInvalidStoreURL, "bucket '%s' does not exist", s.bucket)
	}
	return nil
}

func (s *s3Backend) postRunHook(ctx context.Context) error { return nil }

func (s *s3Backend) uploadOne(ctx context.Context, srcPath string, absDestPath string, contentType string) error {
	return retryx.Do(ctx, s.retry, func() error {
		_, err := s.client.FPutObject(ctx, s.bucket, absDestPath, srcPath,
			minio.PutObjectOptions{ContentType: contentType})
		return err
	})
}

func (s *s3Backend) downloadOne(ctx context.Context, absDestPath string, localPath string) error {
	return retryx.Do(ctx, s.retry, func() error {
		return s.client.FGetObject(ctx, s.bucket, absDestPath, localPath, minio.GetObjectOptions{})
	})
}

func (s *s3Backend) deleteOne(ctx context.Context, absDestPath string) error {
	return retryx.Do(ctx, s.retry, func() error {
		return s.client.RemoveObject(ctx, s.bucket, absDestPath, minio.RemoveObjectOptions{})
	})
}

func (s *s3Backend) isOverwrite(ctx context.Context, absDestPath string) (bool, error) {
	var exists bool
	err := retryx.Do(ctx, s.retry, func() error {
		_, err := s.client.StatObject(ctx, s.bucket, absDestPath, minio.StatObjectOptions{})
		if err != nil {
			if minio.ToErrorResponse(err).Code == "NoSuchKey" {
				exists = false
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

func (s *s3Backend) runQuery(ctx context.Context, query string) (*core.RemotePipelineFileCollection, error) {
	fullQuery := joinKey(s.prefix, query)

	result := core.NewRemotePipelineFileCollection()
	err := retryx.Do(ctx, s.retry, func() error {
		listing := core.NewRemotePipelineFileCollection()
		for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
			Prefix:    fullQuery,
			Recursive: true,
		}) {
			if object.Err != nil {
				return object.Err
			}
			key := strings.TrimPrefix(strings.TrimPrefix(object.Key, s.prefix), "/")
			listing.Add(core.NewRemotePipelineFile(key, object.LastModified, object.Size))
		}
		result = listing
		return nil
	})
	if err != nil {
		return nil, err
	}

	logx.As().Debug().
		Str("bucket", s.bucket).
		Str("prefix", fullQuery).
		Int("objects", result.Len()).
		Msg("listed bucket objects")

	return result, nil
}

func envOr(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func joinKey(parts ...string) string {
	var cleaned []string
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return strings.Join(cleaned, "/")
}
