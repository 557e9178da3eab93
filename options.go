// Package s3up provides functional options for configuring client behavior.
// These options follow the functional options pattern for clean, composable configuration.
package s3up

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/blobkit/s3up/s3types"
)

// WithRegion sets the AWS region for S3 operations.
// If not specified, uses the default AWS region from the credential chain.
func WithRegion(region string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Region = region
	}
}

// WithEndpoint sets a custom S3 endpoint URL.
// This is useful for S3-compatible services or local testing with LocalStack.
func WithEndpoint(endpoint string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithForcePathStyle forces the use of path-style URLs instead of virtual-hosted style.
// This is required for S3-compatible services that don't support virtual hosting.
// Default is false (uses virtual-hosted style).
func WithForcePathStyle(forcePathStyle bool) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.ForcePathStyle = forcePathStyle
	}
}

// WithTimeout sets the timeout for individual S3 operations.
// Default is no timeout (0). Values should be positive durations.
func WithTimeout(timeout time.Duration) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Timeout = timeout
	}
}

// WithAWSConfig allows providing a custom AWS configuration.
// This overrides the default configuration loading behavior.
// Use this when you need fine-grained control over AWS SDK configuration.
func WithAWSConfig(config *aws.Config) s3types.Option {
	return func(c *s3types.ClientConfig) {
		// Store the custom config for later use
		c.CustomAWSConfig = config
	}
}

// WithFilesystem sets a custom filesystem implementation for file operations.
// This allows using in-memory filesystems for testing or virtual filesystems.
// If not specified, defaults to the OS filesystem.
func WithFilesystem(filesystem fs.Filesystem) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.Filesystem = filesystem
	}
}

// WithPartSize sets the client-level part size for multipart uploads.
// Default is 50MB. Must be at least 5MB for S3 multipart uploads.
func WithPartSize(partSize int64) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if partSize > 0 {
			c.PartSize = partSize
		}
	}
}

// WithMultipartThreshold sets the file size above which uploads switch to
// the resumable multipart strategy. Default is 100MB.
func WithMultipartThreshold(threshold int64) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if threshold > 0 {
			c.MultipartThreshold = threshold
		}
	}
}

// WithMaxAttempts sets the total number of attempts for each part upload.
// Default is 3 attempts.
func WithMaxAttempts(maxAttempts int) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if maxAttempts > 0 {
			c.MaxAttempts = maxAttempts
		}
	}
}

// WithURIScheme sets the scheme used when formatting object locations in
// upload results. Default is "s3".
func WithURIScheme(scheme string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		if scheme != "" {
			c.URIScheme = scheme
		}
	}
}

// WithResumeDir sets the directory where resume records are kept.
// Default is the process working directory.
func WithResumeDir(dir string) s3types.Option {
	return func(c *s3types.ClientConfig) {
		c.ResumeDir = dir
	}
}

// WithContentType sets the content type for upload operations.
func WithContentType(contentType string) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.ContentType = contentType
	}
}

// WithMetadata sets metadata for upload operations.
func WithMetadata(metadata map[string]string) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		if c.Metadata == nil {
			c.Metadata = make(map[string]string)
		}
		for k, v := range metadata {
			c.Metadata[k] = v
		}
	}
}

// WithStorageClass sets the storage class for upload operations.
func WithStorageClass(storageClass s3types.StorageClass) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.StorageClass = storageClass
	}
}

// WithProgress sets a progress tracker for upload operations.
func WithProgress(tracker s3types.ProgressTracker) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		c.ProgressTracker = tracker
	}
}

// WithUploadPartSize sets the part size for multipart uploads in upload operations.
// This overrides the client-level default for this specific upload.
func WithUploadPartSize(partSize int64) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		if partSize > 0 {
			c.PartSize = partSize
		}
	}
}

// WithUploadMultipartThreshold sets the multipart threshold for this upload.
// This overrides the client-level default for this specific upload.
func WithUploadMultipartThreshold(threshold int64) s3types.UploadOption {
	return func(c *s3types.UploadOptionConfig) {
		if threshold > 0 {
			c.MultipartThreshold = threshold
		}
	}
}
