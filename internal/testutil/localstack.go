package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	localstackImage  = "localstack/localstack:latest"
	localstackPort   = "4566"
	localstackRegion = "us-east-1"
)

// LocalStack is a containerized S3-compatible endpoint for integration
// tests.
type LocalStack struct {
	container *localstack.LocalStackContainer
	endpoint  string
}

// StartLocalStack launches a LocalStack container and blocks until its
// health endpoint answers.
func StartLocalStack(ctx context.Context, t *testing.T) (*LocalStack, error) {
	t.Helper()

	container, err := localstack.Run(ctx, localstackImage,
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/_localstack/health").
				WithPort(localstackPort).
				WithStartupTimeout(2*time.Minute),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start localstack: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("localstack host: %w", err)
	}
	port, err := container.MappedPort(ctx, localstackPort)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("localstack port: %w", err)
	}

	return &LocalStack{
		container: container,
		endpoint:  fmt.Sprintf("http://%s:%s", host, port.Port()),
	}, nil
}

// S3Client returns an S3 client pointed at the container, with static test
// credentials and path-style addressing.
func (l *LocalStack) S3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(localstackRegion),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("test", "test", ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("localstack aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(l.endpoint)
	}), nil
}

// Endpoint returns the mapped endpoint URL.
func (l *LocalStack) Endpoint() string {
	return l.endpoint
}

// Stop terminates the container.
func (l *LocalStack) Stop(ctx context.Context) error {
	if l.container == nil {
		return nil
	}
	if err := l.container.Terminate(ctx); err != nil {
		return fmt.Errorf("terminate localstack: %w", err)
	}
	return nil
}

// NewLocalStackS3 starts LocalStack for one test and returns a ready S3
// client plus a cleanup function to defer.
func NewLocalStackS3(t *testing.T) (*s3.Client, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	ls, err := StartLocalStack(ctx, t)
	if err != nil {
		t.Fatalf("start localstack: %v", err)
	}

	client, err := ls.S3Client(ctx)
	if err != nil {
		_ = ls.Stop(ctx)
		t.Fatalf("localstack s3 client: %v", err)
	}

	return client, func() {
		if err := ls.Stop(ctx); err != nil {
			t.Logf("stop localstack: %v", err)
		}
	}
}

// MakeBucket creates a bucket for a test.
func MakeBucket(ctx context.Context, client *s3.Client, name string) error {
	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(name),
	}); err != nil {
		return fmt.Errorf("create bucket %s: %w", name, err)
	}
	return nil
}

// DropBucket empties and deletes a test bucket. Interrupted-upload tests
// leave multipart sessions behind; those must be aborted first or the
// bucket delete fails.
func DropBucket(ctx context.Context, client *s3.Client, name string) error {
	mpIn := &s3.ListMultipartUploadsInput{Bucket: aws.String(name)}
	for {
		out, err := client.ListMultipartUploads(ctx, mpIn)
		if err != nil {
			return fmt.Errorf("list sessions in %s: %w", name, err)
		}
		for _, up := range out.Uploads {
			_, _ = client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
				Bucket:   aws.String(name),
				Key:      up.Key,
				UploadId: up.UploadId,
			})
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		mpIn.KeyMarker = out.NextKeyMarker
		mpIn.UploadIdMarker = out.NextUploadIdMarker
	}

	listIn := &s3.ListObjectsV2Input{Bucket: aws.String(name)}
	for {
		out, err := client.ListObjectsV2(ctx, listIn)
		if err != nil {
			return fmt.Errorf("list objects in %s: %w", name, err)
		}

		if len(out.Contents) > 0 {
			ids := make([]types.ObjectIdentifier, 0, len(out.Contents))
			for _, obj := range out.Contents {
				ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
			}
			if _, err := client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(name),
				Delete: &types.Delete{Objects: ids},
			}); err != nil {
				return fmt.Errorf("delete objects in %s: %w", name, err)
			}
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		listIn.ContinuationToken = out.NextContinuationToken
	}

	if _, err := client.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(name),
	}); err != nil {
		return fmt.Errorf("delete bucket %s: %w", name, err)
	}
	return nil
}
