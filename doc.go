// Package s3up provides a high-level Go module for uploading files to
// Amazon S3 and S3-compatible object stores. It wraps AWS SDK v2 to provide
// an intuitive interface for uploads while maintaining flexibility for
// advanced use cases.
//
// The module's distinguishing feature is resumable multipart transfer:
// large uploads persist their progress locally, and an interrupted upload
// picks up from the last acknowledged part instead of starting over.
//
// Key features:
//   - Simple, zero-configuration usage with AWS credential chain
//   - Progressive enhancement through functional options
//   - Automatic multipart upload for large files with resume support
//   - Presigned download URLs for sharing uploaded objects
//   - Comprehensive error handling with context
//
// Example usage:
//
//	client, err := s3up.New()
//	if err != nil {
//	    return err
//	}
//
//	// Upload a file; re-run after an interruption to resume
//	result, err := client.UploadFile(ctx, "my-bucket", "path/file.txt", "/local/file.txt")
//	if err != nil {
//	    return err
//	}
package s3up
