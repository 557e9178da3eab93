// Package multipart handles resumable multipart upload operations.
//
// Parts are uploaded sequentially in ascending order. Every acknowledged
// part is recorded locally before the next one starts, so an interrupted
// upload can continue from where it stopped instead of starting over. The
// remote session is the source of truth; the local record only tells us
// which parts we do not need to send again.
package multipart

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/blobkit/s3up/errors"
	"github.com/blobkit/s3up/internal/plan"
	"github.com/blobkit/s3up/internal/pool"
	"github.com/blobkit/s3up/internal/resume"
	"github.com/blobkit/s3up/internal/s3api"
	"github.com/blobkit/s3up/s3types"
)

// Uploader handles resumable multipart upload operations
type Uploader struct {
	s3Client s3api.S3API
	store    *resume.Store

	maxAttempts int

	// backoff and sleep control the per-part retry delay. Injectable so
	// tests can observe delays without waiting for them.
	backoff func(attempt int) time.Duration
	sleep   func(time.Duration)
}

// NewUploader creates a new resumable multipart uploader
func NewUploader(s3Client s3api.S3API, store *resume.Store) *Uploader {
	return &Uploader{
		s3Client:    s3Client,
		store:       store,
		maxAttempts: s3types.DefaultMaxAttempts,
		backoff: func(attempt int) time.Duration {
			// 1s after the first failure, 2s after the second, doubling on
			return time.Duration(1<<attempt) * time.Second
		},
		sleep: time.Sleep,
	}
}

// SetRetry overrides the retry budget and timing hooks. Zero or nil values
// keep the current setting.
func (u *Uploader) SetRetry(maxAttempts int, backoff func(int) time.Duration, sleep func(time.Duration)) {
	if maxAttempts > 0 {
		u.maxAttempts = maxAttempts
	}
	if backoff != nil {
		u.backoff = backoff
	}
	if sleep != nil {
		u.sleep = sleep
	}
}

// Upload performs a resumable multipart upload of the file behind reader.
// localPath identifies the resume record; size is the total file size.
//
// A prior record for localPath resumes the session it names: parts the
// record holds are skipped, everything else is uploaded. The record is
// removed only after the session completes successfully.
func (u *Uploader) Upload(
	ctx context.Context,
	bucket, key string,
	reader io.ReaderAt,
	localPath string,
	size int64,
	config *s3types.UploadConfig,
	startTime time.Time,
) (*s3types.UploadResult, error) {
	partSize := u.getPartSize(config.PartSize)
	maxAttempts := u.getMaxAttempts(config.MaxAttempts)

	layout, err := plan.New(size, partSize)
	if err != nil {
		return nil, err
	}

	state, resumed, err := u.openSession(ctx, bucket, key, localPath, partSize, config)
	if err != nil {
		return nil, err
	}

	tracker := config.ProgressTracker
	bufs := pool.NewPartBufferPool(partSize)

	var transferred int64
	var uploaded, skipped int32

	for n := int32(1); n <= layout.PartCount; n++ {
		offset, length := layout.Part(n)

		if state.Has(n) {
			// Acknowledged by a previous run; counts toward progress
			transferred += length
			skipped++
			if tracker != nil {
				tracker.Update(transferred, size)
			}
			continue
		}

		if err := u.uploadPart(ctx, bucket, key, state, reader, localPath, offset, length, n, maxAttempts, bufs); err != nil {
			// The record keeps every part that succeeded; only the remote
			// session is discarded
			u.abortMultipartUpload(ctx, bucket, key, state.UploadID)
			if tracker != nil {
				tracker.Error(err)
			}
			return nil, err
		}

		transferred += length
		uploaded++
		if tracker != nil {
			tracker.Update(transferred, size)
		}
	}

	result, err := u.completeMultipartUpload(ctx, bucket, key, localPath, state, size, config, startTime)
	if err != nil {
		if tracker != nil {
			tracker.Error(err)
		}
		return nil, err
	}

	result.Resumed = resumed
	result.PartsUploaded = uploaded
	result.PartsSkipped = skipped
	if tracker != nil {
		tracker.Complete()
	}
	return result, nil
}

// getPartSize returns the configured part size or default
func (u *Uploader) getPartSize(configuredSize int64) int64 {
	if configuredSize > 0 {
		return configuredSize
	}
	return s3types.DefaultPartSize
}

// getMaxAttempts returns the configured retry budget or the uploader default
func (u *Uploader) getMaxAttempts(configured int) int {
	if configured > 0 {
		return configured
	}
	return u.maxAttempts
}

// openSession loads the resume record for localPath and either resumes the
// session it names or starts a fresh one. Both paths end with the same
// check: the session must be listed by the remote side before any part
// moves. The returned bool reports whether an existing session is resumed.
func (u *Uploader) openSession(
	ctx context.Context,
	bucket, key, localPath string,
	partSize int64,
	config *s3types.UploadConfig,
) (*resume.State, bool, error) {
	state, err := u.store.Load(localPath)
	if err != nil {
		return nil, false, err
	}

	resumed := state != nil
	if resumed {
		// Recorded byte ranges only hold under the part size the record
		// was written with. Zero means a record predating the field.
		if state.PartSize != 0 && state.PartSize != partSize {
			return nil, false, errors.NewObjectError("resumeUpload", bucket, key, errors.ErrResumeMismatch).
				WithMessage(fmt.Sprintf("record part size %d, configured %d", state.PartSize, partSize))
		}
	} else {
		uploadID, err := u.createMultipartUpload(ctx, bucket, key, config)
		if err != nil {
			return nil, false, err
		}
		state, err = u.store.Create(localPath, uploadID, partSize)
		if err != nil {
			// The session exists remotely but we cannot track it; discard
			// it rather than leak an orphan
			u.abortMultipartUpload(ctx, bucket, key, uploadID)
			return nil, false, err
		}
	}

	ok, err := u.sessionExists(ctx, bucket, key, state.UploadID)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		// The record outlived the session. Restarting silently would hide
		// the data loss, so fail and leave the record in place.
		return nil, false, errors.NewObjectError("resumeUpload", bucket, key, errors.ErrSessionNotFound).
			WithMessage("upload ID " + state.UploadID)
	}
	return state, resumed, nil
}

// sessionExists reports whether the remote side still knows the multipart
// session for exactly this key and upload ID. The listing is paginated, so
// a session beyond the first page still counts.
func (u *Uploader) sessionExists(ctx context.Context, bucket, key, uploadID string) (bool, error) {
	input := &s3.ListMultipartUploadsInput{
		Bucket: aws.String(bucket),
		Prefix: aws.String(key),
	}

	for {
		output, err := u.s3Client.ListMultipartUploads(ctx, input)
		if err != nil {
			return false, errors.NewObjectError("listMultipartUploads", bucket, key, err)
		}

		for _, upload := range output.Uploads {
			if aws.ToString(upload.Key) == key && aws.ToString(upload.UploadId) == uploadID {
				return true, nil
			}
		}

		if !aws.ToBool(output.IsTruncated) {
			return false, nil
		}
		input.KeyMarker = output.NextKeyMarker
		input.UploadIdMarker = output.NextUploadIdMarker
	}
}

// createMultipartUpload creates a new multipart upload session
func (u *Uploader) createMultipartUpload(
	ctx context.Context,
	bucket, key string,
	config *s3types.UploadConfig,
) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
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

	output, err := u.s3Client.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", errors.NewObjectError("createMultipartUpload", bucket, key, err)
	}

	return aws.ToString(output.UploadId), nil
}

// uploadPart uploads a single part and records the acknowledgment before
// returning. Transient failures are retried within the attempt budget, with
// a growing delay between attempts.
func (u *Uploader) uploadPart(
	ctx context.Context,
	bucket, key string,
	state *resume.State,
	reader io.ReaderAt,
	localPath string,
	offset, length int64,
	partNumber int32,
	maxAttempts int,
	bufs *pool.PartBufferPool,
) error {
	buf := bufs.Get()
	defer bufs.Put(buf)
	data := buf[:length]

	// A full read of the last part may come back with io.EOF
	n, err := reader.ReadAt(data, offset)
	if err != nil && (err != io.EOF || int64(n) < length) {
		return errors.NewObjectError("uploadPart", bucket, key, err).
			WithMessage(fmt.Sprintf("read part %d", partNumber))
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			u.sleep(u.backoff(attempt - 1))
		}
		if err := ctx.Err(); err != nil {
			return errors.NewObjectError("uploadPart", bucket, key, err)
		}

		input := &s3.UploadPartInput{
			Bucket:     aws.String(bucket),
			Key:        aws.String(key),
			UploadId:   aws.String(state.UploadID),
			PartNumber: aws.Int32(partNumber),
			Body:       bytes.NewReader(data),
		}

		output, err := u.s3Client.UploadPart(ctx, input)
		if err != nil {
			lastErr = err
			continue
		}

		// Remote acknowledged; persist before moving on so a crash here
		// never re-uploads this part
		rec := s3types.PartRecord{
			PartNumber: partNumber,
			ETag:       aws.ToString(output.ETag),
			Size:       length,
		}
		return u.store.Append(localPath, state, rec)
	}

	return errors.NewObjectError("uploadPart", bucket, key, errors.ErrPartUpload).
		WithMessage(fmt.Sprintf("part %d failed after %d attempts: %v", partNumber, maxAttempts, lastErr))
}

// completeMultipartUpload assembles the uploaded parts into the final object
// and removes the resume record. A completion failure keeps both the session
// and the record, so a later run can retry the completion alone.
func (u *Uploader) completeMultipartUpload(
	ctx context.Context,
	bucket, key, localPath string,
	state *resume.State,
	size int64,
	config *s3types.UploadConfig,
	startTime time.Time,
) (*s3types.UploadResult, error) {
	parts := make([]awstypes.CompletedPart, 0, len(state.Parts))
	for _, rec := range state.Parts {
		parts = append(parts, awstypes.CompletedPart{
			ETag:       aws.String(rec.ETag),
			PartNumber: aws.Int32(rec.PartNumber),
		})
	}
	// Completion requires ascending part numbers; the record may hold a
	// resumed run's parts out of order
	sort.Slice(parts, func(i, j int) bool {
		return aws.ToInt32(parts[i].PartNumber) < aws.ToInt32(parts[j].PartNumber)
	})

	input := &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(state.UploadID),
		MultipartUpload: &awstypes.CompletedMultipartUpload{
			Parts: parts,
		},
	}

	output, err := u.s3Client.CompleteMultipartUpload(ctx, input)
	if err != nil {
		return nil, errors.NewObjectError("completeMultipartUpload", bucket, key, errors.ErrCompleteFailed).
			WithMessage(err.Error())
	}

	if err := u.store.Delete(localPath); err != nil {
		return nil, err
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
	return result, nil
}

// abortMultipartUpload cleans up a failed multipart upload
func (u *Uploader) abortMultipartUpload(ctx context.Context, bucket, key, uploadID string) {
	input := &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	}
	// Ignore errors during cleanup
	_, _ = u.s3Client.AbortMultipartUpload(ctx, input)
}
