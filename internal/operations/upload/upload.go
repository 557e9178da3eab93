// Package upload handles S3 object upload operations.
// This includes simple uploads and dispatch into the resumable multipart path.
//
// The package picks the transfer strategy from the file size: small files
// go up in one PutObject call, files above the multipart threshold go
// through the resumable multipart engine.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/blobkit/s3up/errors"
	"github.com/blobkit/s3up/internal/resume"
	"github.com/blobkit/s3up/internal/s3api"
	"github.com/blobkit/s3up/internal/transfer/multipart"
	"github.com/blobkit/s3up/s3types"
)

// Uploader handles S3 upload operations with automatic strategy selection.
type Uploader struct {
	s3Client  s3api.S3API
	multipart *multipart.Uploader
}

// New creates a new Uploader instance backed by the given resume store.
func New(s3Client s3api.S3API, store *resume.Store) *Uploader {
	return &Uploader{
		s3Client:  s3Client,
		multipart: multipart.NewUploader(s3Client, store),
	}
}

// Multipart exposes the multipart engine for retry tuning.
func (u *Uploader) Multipart() *multipart.Uploader {
	return u.multipart
}

// UploadFile uploads a local file to S3, choosing the strategy by size.
// Files strictly larger than the multipart threshold take the resumable
// multipart path; everything else is a single PutObject call.
func (u *Uploader) UploadFile(
	ctx context.Context,
	bucket, key string,
	reader io.ReaderAt,
	localPath string,
	size int64,
	config *s3types.UploadConfig,
	startTime time.Time,
) (*s3types.UploadResult, error) {
	threshold := config.MultipartThreshold
	if threshold <= 0 {
		threshold = s3types.DefaultMultipartThreshold
	}

	if size > threshold {
		return u.multipart.Upload(ctx, bucket, key, reader, localPath, size, config, startTime)
	}

	// Small enough for one request; read it whole
	data := make([]byte, size)
	if size > 0 {
		if _, err := io.ReadFull(io.NewSectionReader(reader, 0, size), data); err != nil {
			return nil, errors.NewObjectError("uploadFile", bucket, key, err).
				WithMessage(fmt.Sprintf("read %s", localPath))
		}
	}

	return u.uploadSimple(ctx, bucket, key, data, config, startTime)
}

// UploadSimple performs a simple (non-multipart) S3 upload.
func (u *Uploader) UploadSimple(
	ctx context.Context,
	bucket, key string,
	data []byte,
	config *s3types.UploadConfig,
	startTime time.Time,
) (*s3types.UploadResult, error) {
	return u.uploadSimple(ctx, bucket, key, data, config, startTime)
}

// uploadSimple performs a simple (non-multipart) S3 upload.
func (u *Uploader) uploadSimple(
	ctx context.Context,
	bucket, key string,
	data []byte,
	config *s3types.UploadConfig,
	startTime time.Time,
) (*s3types.UploadResult, error) {
	size := int64(len(data))

	// Prepare the PutObject input
	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(size),
	}

	if config.ContentType != "" {
		input.ContentType = aws.String(config.ContentType)
	}

	// Set storage class if specified
	if config.StorageClass != "" {
		input.StorageClass = awstypes.StorageClass(config.StorageClass)
	}

	// Set metadata if provided
	if len(config.Metadata) > 0 {
		input.Metadata = config.Metadata
	}

	// Perform the upload
	output, err := u.s3Client.PutObject(ctx, input)
	if err != nil {
		return nil, errors.NewObjectError("uploadSimple", bucket, key, err)
	}

	scheme := config.URIScheme
	if scheme == "" {
		scheme = s3types.DefaultURIScheme
	}

	result := &s3types.UploadResult{
		Key:      key,
		Location: fmt.Sprintf("%s://%s/%s", scheme, bucket, key),
		Size:     size,
		ETag:     aws.ToString(output.ETag),
		Duration: time.Since(startTime),
	}

	// Call progress tracker if provided
	if config.ProgressTracker != nil {
		config.ProgressTracker.Update(size, size)
		config.ProgressTracker.Complete()
	}

	return result, nil
}
