// Package plan computes the fixed-size part layout for a multipart upload.
// Planning is pure: no I/O, no dependency on the storage service.
package plan

import (
	"github.com/blobkit/s3up/errors"
)

// Plan is the derived part layout for one file. It is never persisted; the
// same file size and part size always produce the same plan.
type Plan struct {
	// FileSize is the total size of the source file in bytes
	FileSize int64

	// PartSize is the fixed size of every part except possibly the last
	PartSize int64

	// PartCount is the number of parts, ceil(FileSize / PartSize)
	PartCount int32
}

// New computes the part layout for a file. Both sizes must be positive;
// violating that is a caller precondition error, not a runtime condition.
func New(fileSize, partSize int64) (Plan, error) {
	if fileSize <= 0 {
		return Plan{}, errors.NewError("plan", errors.ErrInvalidInput).
			WithMessage("file size must be positive")
	}
	if partSize <= 0 {
		return Plan{}, errors.NewError("plan", errors.ErrInvalidInput).
			WithMessage("part size must be positive")
	}

	count := (fileSize + partSize - 1) / partSize // ceiling division
	return Plan{
		FileSize:  fileSize,
		PartSize:  partSize,
		PartCount: int32(count),
	}, nil
}

// Part returns the byte range of the 1-indexed part n. Every part has length
// PartSize except the last, which covers the remainder.
func (p Plan) Part(n int32) (offset, length int64) {
	offset = int64(n-1) * p.PartSize
	length = p.PartSize
	if offset+length > p.FileSize {
		length = p.FileSize - offset
	}
	return offset, length
}
