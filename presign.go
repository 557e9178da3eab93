package s3up

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	uperrors "github.com/blobkit/s3up/errors"
	"github.com/blobkit/s3up/internal/validation"
)

// DefaultPresignExpiry is how long presigned download URLs stay valid when
// no explicit expiry is given.
const DefaultPresignExpiry = time.Hour

// PresignDownload generates a presigned URL for downloading an object.
// Anyone holding the URL can fetch the object until expiry, without AWS
// credentials. An expiry of zero uses DefaultPresignExpiry.
//
// Example:
//
//	url, err := client.PresignDownload(ctx, "my-bucket", "backups/db.tar.gz", time.Hour)
//	if err != nil {
//	    return err
//	}
//	fmt.Println("download:", url)
func (c *Client) PresignDownload(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	if err := validation.ValidateBucketName(bucket); err != nil {
		return "", uperrors.NewObjectError("presignDownload", bucket, key, uperrors.ErrInvalidInput).
			WithMessage(err.Error())
	}
	if err := validation.ValidateObjectKey(key); err != nil {
		return "", uperrors.NewObjectError("presignDownload", bucket, key, uperrors.ErrInvalidInput).
			WithMessage(err.Error())
	}
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}

	c.mu.RLock()
	presigner := c.presigner
	c.mu.RUnlock()

	if presigner == nil {
		return "", uperrors.NewObjectError("presignDownload", bucket, key, uperrors.ErrInvalidInput).
			WithMessage("client has no presigner configured")
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}

	req, err := presigner.PresignGetObject(ctx, input, func(o *s3.PresignOptions) {
		o.Expires = expiry
	})
	if err != nil {
		return "", uperrors.NewObjectError("presignDownload", bucket, key, err)
	}

	return req.URL, nil
}

// Exists reports whether an object is present in the bucket.
// A missing object is not an error; only transport or permission failures
// return a non-nil error.
func (c *Client) Exists(ctx context.Context, bucket, key string) (bool, error) {
	if err := validation.ValidateBucketName(bucket); err != nil {
		return false, uperrors.NewObjectError("exists", bucket, key, uperrors.ErrInvalidInput).
			WithMessage(err.Error())
	}
	if err := validation.ValidateObjectKey(key); err != nil {
		return false, uperrors.NewObjectError("exists", bucket, key, uperrors.ErrInvalidInput).
			WithMessage(err.Error())
	}

	input := &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}

	if _, err := c.s3Client.HeadObject(ctx, input); err != nil {
		if isNotFoundErr(err) {
			return false, nil
		}
		return false, uperrors.NewObjectError("exists", bucket, key, err)
	}
	return true, nil
}

// isNotFoundErr reports whether an AWS SDK error means the object is absent.
func isNotFoundErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "NotFound") ||
		strings.Contains(msg, "NoSuchKey") ||
		strings.Contains(msg, "404")
}
