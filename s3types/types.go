// Package s3types provides shared type definitions for the s3up module.
package s3types

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/input-output-hk/catalyst-forge-libs/fs"
)

// Transfer policy defaults. Files at or below DefaultMultipartThreshold are
// uploaded with a single PutObject call; larger files go through the
// resumable multipart path in DefaultPartSize slices.
const (
	// DefaultPartSize is the default size of one multipart slice (50 MiB)
	DefaultPartSize int64 = 50 * 1024 * 1024

	// DefaultMultipartThreshold is the size above which uploads switch to
	// the resumable multipart strategy (100 MiB)
	DefaultMultipartThreshold int64 = 100 * 1024 * 1024

	// DefaultMaxAttempts is the total number of attempts per part upload
	DefaultMaxAttempts = 3

	// DefaultURIScheme is the scheme used when formatting object locations
	DefaultURIScheme = "s3"
)

// StorageClass represents the storage class for uploaded objects.
type StorageClass string

// Predefined storage classes
const (
	// StorageClassStandard is the default storage class
	StorageClassStandard StorageClass = "STANDARD"

	// StorageClassStandardIA provides infrequent access storage
	StorageClassStandardIA StorageClass = "STANDARD_IA"

	// StorageClassGlacier provides archival storage
	StorageClassGlacier StorageClass = "GLACIER"
)

// PartRecord describes one part the remote service has acknowledged.
// Records are immutable once created and uniquely identified by PartNumber
// within an upload. The JSON tags are the resume record wire format.
type PartRecord struct {
	// PartNumber is the 1-indexed part number
	PartNumber int32 `json:"part_num"`

	// ETag is the integrity tag the remote service issued for the part
	ETag string `json:"etag"`

	// Size is the part length in bytes
	Size int64 `json:"size"`
}

// ProgressTracker defines the interface for tracking transfer progress.
// Implementations can provide real-time progress updates during uploads.
type ProgressTracker interface {
	// Update is called with a monotonically increasing count of bytes
	// accounted for, including parts skipped because a resumed upload
	// already had them acknowledged
	Update(bytesTransferred, totalBytes int64)

	// Complete is called when the transfer completes successfully
	Complete()

	// Error is called when the transfer fails
	Error(err error)
}

// UploadConfig holds configuration for upload operations.
type UploadConfig struct {
	ContentType        string
	Metadata           map[string]string
	StorageClass       StorageClass
	ProgressTracker    ProgressTracker
	PartSize           int64
	MultipartThreshold int64
	MaxAttempts        int
	URIScheme          string
}

// UploadResult contains the result of an upload operation.
type UploadResult struct {
	// Key is the object key that was uploaded
	Key string

	// Location is the object address in scheme://bucket/key form
	Location string

	// Size is the size of the uploaded object in bytes
	Size int64

	// ETag is the entity tag for the uploaded object
	ETag string

	// Duration is how long the upload took
	Duration time.Duration

	// Resumed reports whether the upload continued a prior multipart session
	Resumed bool

	// PartsUploaded is the number of parts transmitted during this run
	PartsUploaded int32

	// PartsSkipped is the number of parts already acknowledged by a prior run
	PartsSkipped int32
}

// Configuration types for functional options

// ClientConfig holds configuration for the client.
type ClientConfig struct {
	Region             string
	Endpoint           string
	ForcePathStyle     bool
	Timeout            time.Duration
	PartSize           int64
	MultipartThreshold int64
	MaxAttempts        int
	URIScheme          string
	ResumeDir          string
	CustomAWSConfig    *aws.Config
	Filesystem         fs.Filesystem // Filesystem abstraction for file operations
}

// UploadOptionConfig holds configuration for upload operations via functional options.
type UploadOptionConfig struct {
	ContentType        string
	Metadata           map[string]string
	StorageClass       StorageClass
	ProgressTracker    ProgressTracker
	PartSize           int64
	MultipartThreshold int64
}

// Option is a functional option for configuring the client.
type (
	Option func(*ClientConfig)
	// UploadOption is a functional option for configuring upload operations.
	UploadOption func(*UploadOptionConfig)
)
