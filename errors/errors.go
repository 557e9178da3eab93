// Package errors provides error types and handling for upload operations.
package errors

import (
	"errors"
	"fmt"
)

// Error represents a failed operation with context about what was being
// transferred. It wraps the underlying AWS SDK or filesystem error.
type Error struct {
	// Op is the operation that failed (e.g., "uploadFile", "uploadPart")
	Op string

	// Bucket is the bucket name (if applicable)
	Bucket string

	// Key is the object key (if applicable)
	Key string

	// Err is the underlying error
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Bucket != "" && e.Key != "" {
		return fmt.Sprintf("s3up.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("s3up.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("s3up.%s object %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("s3up.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewObjectError creates a new Error with bucket and key context.
func NewObjectError(op, bucket, key string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}

// Sentinel errors for the upload failure taxonomy.
// These can be used with errors.Is() for error checking.
var (
	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("s3up: invalid input")

	// ErrInvalidBucketName indicates that the bucket name is invalid
	ErrInvalidBucketName = errors.New("s3up: invalid bucket name")

	// ErrInvalidObjectKey indicates that the object key is invalid
	ErrInvalidObjectKey = errors.New("s3up: invalid object key")

	// ErrFileNotFound indicates that the local source file does not exist.
	// Surfaced before any remote side effect.
	ErrFileNotFound = errors.New("s3up: local file not found")

	// ErrObjectNotFound indicates that the requested remote object does not exist
	ErrObjectNotFound = errors.New("s3up: object not found")

	// ErrSessionNotFound indicates that the resume record references a
	// multipart session the remote side no longer knows about. Resumption is
	// impossible; the record is preserved for operator inspection.
	ErrSessionNotFound = errors.New("s3up: multipart session not found")

	// ErrResumeCorrupt indicates that a resume record exists but cannot be
	// parsed. The record is never discarded automatically.
	ErrResumeCorrupt = errors.New("s3up: resume record corrupt")

	// ErrResumeExists indicates an attempt to create a resume record where
	// one is already present
	ErrResumeExists = errors.New("s3up: resume record already exists")

	// ErrResumeMismatch indicates that a resume record was written under
	// different upload parameters than the current run. Resuming would
	// assemble a corrupt object, so the upload stops with the record intact.
	ErrResumeMismatch = errors.New("s3up: resume record does not match upload parameters")

	// ErrPartUpload indicates that a part could not be uploaded within the
	// retry budget. The multipart session is aborted but the resume record
	// keeps every part that did succeed.
	ErrPartUpload = errors.New("s3up: part upload failed")

	// ErrCompleteFailed indicates that completing the multipart session
	// failed after all parts were uploaded. Both the session and the resume
	// record stay intact, so a later attempt can finish without re-uploading.
	ErrCompleteFailed = errors.New("s3up: complete multipart upload failed")
)

// IsFileNotFound checks if an error indicates a missing local source file.
func IsFileNotFound(err error) bool {
	return errors.Is(err, ErrFileNotFound)
}

// IsSessionNotFound checks if an error indicates a lost multipart session.
func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

// IsResumeCorrupt checks if an error indicates an unparseable resume record.
func IsResumeCorrupt(err error) bool {
	return errors.Is(err, ErrResumeCorrupt)
}

// IsResumeMismatch checks if an error indicates a resume record written
// under different upload parameters than the current run.
func IsResumeMismatch(err error) bool {
	return errors.Is(err, ErrResumeMismatch)
}

// IsPartUpload checks if an error indicates a part upload that exhausted its
// retry budget.
func IsPartUpload(err error) bool {
	return errors.Is(err, ErrPartUpload)
}

// IsCompleteFailed checks if an error indicates a retryable completion
// failure. All parts are uploaded; re-running the upload will only redo the
// completion call.
func IsCompleteFailed(err error) bool {
	return errors.Is(err, ErrCompleteFailed)
}

// IsInvalidInput checks if an error indicates invalid input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
