// Package internal contains private implementation details for the upload module.
// These packages are not intended for external use and may change without notice.
//
// The internal packages are organized as follows:
//   - operations: Core S3 operation implementations
//   - transfer: Resumable multipart transfer management
//   - plan: Part layout computation
//   - resume: Resume record persistence
//   - validation: Input validation logic
//   - pool: Memory management optimizations
package internal
