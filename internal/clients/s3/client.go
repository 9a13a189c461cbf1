package s3

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/yungbote/lifeos-backend/internal/platform/logger"
)

const (
	segmentPrefix     = "video_segments/"
	defaultPresignTTL = time.Hour
)

// BlobStore archives raw segment files. Upload failures are non-fatal for the
// pipeline; the caller records a nil link and continues.
type BlobStore interface {
	// UploadSegment stores the file under video_segments/<basename> and
	// returns the canonical object URL.
	UploadSegment(ctx context.Context, localPath string) (string, error)
	// PresignURL converts a stored canonical URL into a time-limited GET
	// link. Presigning an already presigned URL strips the old query first,
	// so the operation is a fixed point on the object identity.
	PresignURL(ctx context.Context, objectURL string, ttl time.Duration) (string, error)
	DeleteObject(ctx context.Context, objectURL string) error
}

type blobStore struct {
	log    *logger.Logger
	client *awss3.Client
	signer *awss3.PresignClient
	bucket string
	region string
}

func NewBlobStore(ctx context.Context, log *logger.Logger) (BlobStore, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	bucket := strings.TrimSpace(os.Getenv("S3_BUCKET_NAME"))
	if bucket == "" {
		return nil, fmt.Errorf("missing S3_BUCKET_NAME")
	}
	region := strings.TrimSpace(os.Getenv("AWS_REGION"))
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := awss3.NewFromConfig(cfg)
	return &blobStore{
		log:    log.With("service", "BlobStore", "bucket", bucket),
		client: client,
		signer: awss3.NewPresignClient(client),
		bucket: bucket,
		region: region,
	}, nil
}

func (b *blobStore) UploadSegment(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open segment file: %w", err)
	}
	defer f.Close()

	key := segmentPrefix + filepath.Base(localPath)
	_, err = b.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:               aws.String(b.bucket),
		Key:                  aws.String(key),
		Body:                 f,
		ContentType:          aws.String("video/mp4"),
		ServerSideEncryption: "AES256",
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object %s: %w", key, err)
	}

	objectURL := canonicalObjectURL(b.bucket, b.region, key)
	b.log.Debug("Segment uploaded", "key", key, "url", objectURL)
	return objectURL, nil
}

func (b *blobStore) PresignURL(ctx context.Context, objectURL string, ttl time.Duration) (string, error) {
	bucket, key, err := parseObjectURL(objectURL)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = defaultPresignTTL
	}

	out, err := b.signer.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, awss3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s/%s: %w", bucket, key, err)
	}
	return out.URL, nil
}

func (b *blobStore) DeleteObject(ctx context.Context, objectURL string) error {
	bucket, key, err := parseObjectURL(objectURL)
	if err != nil {
		return err
	}
	if _, err := b.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("s3 delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func canonicalObjectURL(bucket, region, key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, key)
}

// parseObjectURL extracts bucket and key from a virtual-hosted-style S3 URL.
// Any query string (e.g. stale presign parameters) is discarded.
func parseObjectURL(objectURL string) (bucket string, key string, err error) {
	u, err := url.Parse(strings.TrimSpace(objectURL))
	if err != nil {
		return "", "", fmt.Errorf("parse object url: %w", err)
	}
	host := u.Hostname()
	idx := strings.Index(host, ".s3.")
	if idx <= 0 || !strings.HasSuffix(host, ".amazonaws.com") {
		return "", "", fmt.Errorf("not an s3 object url: %s", objectURL)
	}
	bucket = host[:idx]
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("s3 object url missing key: %s", objectURL)
	}
	return bucket, key, nil
}
