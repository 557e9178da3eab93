// Package s3up provides the main upload client and core operations.
package s3up

import (
	"context"
	"errors"
	iofs "io/fs"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/input-output-hk/catalyst-forge-libs/fs"

	uperrors "github.com/blobkit/s3up/errors"
	"github.com/blobkit/s3up/internal/operations/upload"
	"github.com/blobkit/s3up/internal/resume"
	"github.com/blobkit/s3up/internal/validation"
	"github.com/blobkit/s3up/s3types"
)

const (
	// DefaultContentType is the default content type used when content type detection fails
	DefaultContentType = "application/octet-stream"
)

// UploadFile uploads a file from the local filesystem to S3.
// Files larger than the multipart threshold use the resumable multipart
// path: interrupted uploads leave a resume record next to the invocation,
// and a second call with the same file continues where the first stopped.
//
// Returns:
//   - *UploadResult: The uploaded object's metadata, including whether the
//     upload resumed a prior session and how many parts were skipped
//   - error: Returns an error if the upload fails
//
// Errors:
//   - ErrInvalidInput: If bucket is empty, key is invalid, or filepath is empty/directory
//   - ErrFileNotFound: If the local file does not exist (detected before any remote call)
//   - ErrSessionNotFound: If a resume record names a session the remote side no longer has
//   - ErrPartUpload: If a part exhausts its retry budget
//   - ErrCompleteFailed: If assembling the parts fails after all were uploaded
//   - Network errors or AWS SDK errors wrapped in Error type
//
// Example:
//
//	result, err := client.UploadFile(ctx, "my-bucket", "backups/db.tar.gz", "/data/db.tar.gz",
//	    s3up.WithProgress(progressTracker),
//	)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("Uploaded %d bytes to %s in %v\n", result.Size, result.Location, result.Duration)
func (c *Client) UploadFile(
	ctx context.Context,
	bucket, key, path string,
	opts ...s3types.UploadOption,
) (*s3types.UploadResult, error) {
	if err := validation.ValidateBucketName(bucket); err != nil {
		return nil, uperrors.NewObjectError("uploadFile", bucket, key, uperrors.ErrInvalidInput).
			WithMessage(err.Error())
	}
	if err := validation.ValidateObjectKey(key); err != nil {
		return nil, uperrors.NewObjectError("uploadFile", bucket, key, uperrors.ErrInvalidInput).
			WithMessage(err.Error())
	}
	if path == "" {
		return nil, uperrors.NewObjectError("uploadFile", bucket, key, uperrors.ErrInvalidInput).
			WithMessage("filepath cannot be empty")
	}

	fsys := c.filesystem()

	// Check the source before any remote side effect. The filesystem
	// abstraction wraps the stat error, so walk the chain for not-exist.
	info, err := fsys.Stat(path)
	if err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return nil, uperrors.NewObjectError("uploadFile", bucket, key, uperrors.ErrFileNotFound).
				WithMessage(path)
		}
		return nil, uperrors.NewObjectError("uploadFile", bucket, key, err)
	}
	if info.IsDir() {
		return nil, uperrors.NewObjectError("uploadFile", bucket, key, uperrors.ErrInvalidInput).
			WithMessage("filepath points to a directory, not a file")
	}

	// Apply upload options on top of the client-level transfer policy
	clientCfg := c.getClientConfig()
	config := &s3types.UploadOptionConfig{
		ContentType:        DefaultContentType,
		StorageClass:       s3types.StorageClassStandard,
		Metadata:           make(map[string]string),
		PartSize:           clientCfg.PartSize,
		MultipartThreshold: clientCfg.MultipartThreshold,
	}
	for _, opt := range opts {
		opt(config)
	}

	if err := validation.ValidateMetadata(config.Metadata); err != nil {
		return nil, uperrors.NewObjectError("uploadFile", bucket, key, uperrors.ErrInvalidInput).
			WithMessage(err.Error())
	}

	// Determine content type if not explicitly set
	if config.ContentType == DefaultContentType {
		config.ContentType = c.detectContentType(path)
	}

	// Open the file
	file, err := fsys.Open(path)
	if err != nil {
		return nil, uperrors.NewObjectError("uploadFile", bucket, key, err)
	}
	defer file.Close()

	size := info.Size()
	startTime := time.Now()

	store := resume.NewStore(fsys, clientCfg.ResumeDir)
	uploader := upload.New(c.s3Client, store)
	uploader.Multipart().SetRetry(clientCfg.MaxAttempts, nil, nil)

	internalConfig := &s3types.UploadConfig{
		ContentType:        config.ContentType,
		Metadata:           config.Metadata,
		StorageClass:       config.StorageClass,
		ProgressTracker:    config.ProgressTracker,
		PartSize:           config.PartSize,
		MultipartThreshold: config.MultipartThreshold,
		MaxAttempts:        clientCfg.MaxAttempts,
		URIScheme:          clientCfg.URIScheme,
	}

	result, err := uploader.UploadFile(ctx, bucket, key, file, path, size, internalConfig, startTime)
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Put uploads byte data to S3.
// This is a convenience method for small amounts of data that fit in memory.
//
// Ideal for uploading configuration files, JSON data, or other small objects
// directly from memory without needing to create intermediate files. Put
// never uses the multipart path and leaves no resume record.
//
// Example:
//
//	data := []byte(`{"config": "value"}`)
//	err := client.Put(ctx, "my-bucket", "config.json", data,
//	    s3up.WithContentType("application/json"),
//	)
func (c *Client) Put(ctx context.Context, bucket, key string, data []byte, opts ...s3types.UploadOption) error {
	if err := validation.ValidateBucketName(bucket); err != nil {
		return uperrors.NewObjectError("put", bucket, key, uperrors.ErrInvalidInput).
			WithMessage(err.Error())
	}
	if err := validation.ValidateObjectKey(key); err != nil {
		return uperrors.NewObjectError("put", bucket, key, uperrors.ErrInvalidInput).
			WithMessage(err.Error())
	}

	clientCfg := c.getClientConfig()
	config := &s3types.UploadOptionConfig{
		ContentType:  DefaultContentType,
		StorageClass: s3types.StorageClassStandard,
		Metadata:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(config)
	}

	// Determine content type if not explicitly set
	if config.ContentType == DefaultContentType {
		config.ContentType = c.detectContentType(key)
	}

	startTime := time.Now()

	store := resume.NewStore(c.filesystem(), clientCfg.ResumeDir)
	uploader := upload.New(c.s3Client, store)

	internalConfig := &s3types.UploadConfig{
		ContentType:     config.ContentType,
		Metadata:        config.Metadata,
		StorageClass:    config.StorageClass,
		ProgressTracker: config.ProgressTracker,
		URIScheme:       clientCfg.URIScheme,
	}

	if _, err := uploader.UploadSimple(ctx, bucket, key, data, internalConfig, startTime); err != nil {
		return err
	}
	return nil
}

// filesystem returns the current filesystem abstraction.
func (c *Client) filesystem() fs.Filesystem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fs
}

// getClientConfig returns a copy of the client-level configuration.
func (c *Client) getClientConfig() s3types.ClientConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientCfg
}

// detectContentType determines the content type using mimetype where possible,
// falling back to extension-based lookup when the path is not a local file.
func (c *Client) detectContentType(path string) string {
	// If the path points to an existing local file, prefer sniffing its content.
	info, err := c.fs.Stat(path)
	if err != nil || info.IsDir() {
		// Fall back to extension-based detection
		return c.detectContentTypeFromExtension(path)
	}

	// Try to read first few bytes to detect content type
	file, err := c.fs.Open(path)
	if err != nil {
		// Fall back to extension-based detection
		return c.detectContentTypeFromExtension(path)
	}
	defer file.Close()

	// Read first 512 bytes for content detection
	buf := make([]byte, 512)
	n, _ := file.Read(buf)
	if n > 0 {
		if mt := mimetype.Detect(buf[:n]); mt != nil {
			return mt.String()
		}
	}

	// Fall back to extension-based detection
	return c.detectContentTypeFromExtension(path)
}

// detectContentTypeFromExtension detects content type from file extension
func (c *Client) detectContentTypeFromExtension(path string) string {
	// Fallback to extension-based detection for S3 keys or unknown files
	ext := strings.ToLower(filepath.Ext(path))
	if ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}

	return DefaultContentType
}
