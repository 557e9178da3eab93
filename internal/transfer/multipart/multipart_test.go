package multipart

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blobkit/s3up/errors"
	"github.com/blobkit/s3up/internal/resume"
	"github.com/blobkit/s3up/internal/s3api"
	"github.com/blobkit/s3up/internal/testutil"
	"github.com/blobkit/s3up/s3types"
)

const (
	testBucket = "test-bucket"
	testKey    = "data/file.bin"
	testPath   = "/data/file.bin"
)

// newTestUploader builds an uploader over an in-memory resume store with
// instant, recorded sleeps.
func newTestUploader(client s3api.S3API) (*Uploader, *resume.Store, *[]time.Duration) {
	store := resume.NewStore(billy.NewInMemoryFS(), "/records")
	u := NewUploader(client, store)

	var slept []time.Duration
	u.SetRetry(0, nil, func(d time.Duration) {
		slept = append(slept, d)
	})
	return u, store, &slept
}

func testFileData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

// listSessionFunc answers the session listing with a single live session,
// as the remote side does right after CreateMultipartUpload.
func listSessionFunc(uploadID string) func(context.Context, *s3.ListMultipartUploadsInput, ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error) {
	return func(_ context.Context, _ *s3.ListMultipartUploadsInput, _ ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error) {
		return &s3.ListMultipartUploadsOutput{
			Uploads: []types.MultipartUpload{
				{Key: aws.String(testKey), UploadId: aws.String(uploadID)},
			},
		}, nil
	}
}

func TestUpload_FreshSequentialAscending(t *testing.T) {
	data := testFileData(130)

	var uploadedParts []int32
	var completedParts []int32

	mock := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(_ context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			assert.Equal(t, testBucket, aws.ToString(params.Bucket))
			assert.Equal(t, testKey, aws.ToString(params.Key))
			return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
		},
		ListMultipartUploadsFunc: listSessionFunc("upload-1"),
		UploadPartFunc: func(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			n := aws.ToInt32(params.PartNumber)
			uploadedParts = append(uploadedParts, n)

			// Body carries exactly the slice for this part
			buf := new(bytes.Buffer)
			_, err := buf.ReadFrom(params.Body)
			require.NoError(t, err)
			wantLen := 50
			if n == 3 {
				wantLen = 30
			}
			assert.Len(t, buf.Bytes(), wantLen)

			return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("etag-%d", n))}, nil
		},
		CompleteMultipartUploadFunc: func(_ context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
			for _, p := range params.MultipartUpload.Parts {
				completedParts = append(completedParts, aws.ToInt32(p.PartNumber))
			}
			return &s3.CompleteMultipartUploadOutput{ETag: aws.String("final-etag")}, nil
		},
	}

	u, store, _ := newTestUploader(mock)

	config := &s3types.UploadConfig{PartSize: 50}
	result, err := u.Upload(context.Background(), testBucket, testKey, bytes.NewReader(data), testPath, 130, config, time.Now())
	require.NoError(t, err)

	assert.Equal(t, []int32{1, 2, 3}, uploadedParts)
	assert.Equal(t, []int32{1, 2, 3}, completedParts)

	assert.Equal(t, testKey, result.Key)
	assert.Equal(t, "s3://test-bucket/data/file.bin", result.Location)
	assert.Equal(t, int64(130), result.Size)
	assert.Equal(t, "final-etag", result.ETag)
	assert.False(t, result.Resumed)
	assert.Equal(t, int32(3), result.PartsUploaded)
	assert.Equal(t, int32(0), result.PartsSkipped)

	// Record removed after successful completion
	st, err := store.Load(testPath)
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestUpload_ResumeSkipsAcknowledgedParts(t *testing.T) {
	data := testFileData(200)

	var uploadedParts []int32
	var completed []types.CompletedPart

	mock := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(_ context.Context, _ *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			t.Fatal("resuming must not create a new session")
			return nil, nil
		},
		ListMultipartUploadsFunc: func(_ context.Context, params *s3.ListMultipartUploadsInput, _ ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error) {
			assert.Equal(t, testKey, aws.ToString(params.Prefix))
			return &s3.ListMultipartUploadsOutput{
				Uploads: []types.MultipartUpload{
					{Key: aws.String(testKey), UploadId: aws.String("upload-1")},
				},
			}, nil
		},
		UploadPartFunc: func(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			n := aws.ToInt32(params.PartNumber)
			uploadedParts = append(uploadedParts, n)
			return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("new-etag-%d", n))}, nil
		},
		CompleteMultipartUploadFunc: func(_ context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
			completed = params.MultipartUpload.Parts
			return &s3.CompleteMultipartUploadOutput{ETag: aws.String("final-etag")}, nil
		},
	}

	u, store, _ := newTestUploader(mock)

	// Parts 1 and 2 were acknowledged by a previous run
	st, err := store.Create(testPath, "upload-1", 50)
	require.NoError(t, err)
	require.NoError(t, store.Append(testPath, st, s3types.PartRecord{PartNumber: 1, ETag: "old-etag-1", Size: 50}))
	require.NoError(t, store.Append(testPath, st, s3types.PartRecord{PartNumber: 2, ETag: "old-etag-2", Size: 50}))

	config := &s3types.UploadConfig{PartSize: 50}
	result, err := u.Upload(context.Background(), testBucket, testKey, bytes.NewReader(data), testPath, 200, config, time.Now())
	require.NoError(t, err)

	// Only the missing parts went over the wire
	assert.Equal(t, []int32{3, 4}, uploadedParts)

	// Completion sees all four parts ascending, with the recorded etags for
	// the skipped ones
	require.Len(t, completed, 4)
	assert.Equal(t, "old-etag-1", aws.ToString(completed[0].ETag))
	assert.Equal(t, "old-etag-2", aws.ToString(completed[1].ETag))
	assert.Equal(t, "new-etag-3", aws.ToString(completed[2].ETag))
	assert.Equal(t, "new-etag-4", aws.ToString(completed[3].ETag))
	for i, p := range completed {
		assert.Equal(t, int32(i+1), aws.ToInt32(p.PartNumber))
	}

	assert.True(t, result.Resumed)
	assert.Equal(t, int32(2), result.PartsUploaded)
	assert.Equal(t, int32(2), result.PartsSkipped)
}

func TestUpload_RetryBackoffDelays(t *testing.T) {
	data := testFileData(60)

	attempts := 0
	mock := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(_ context.Context, _ *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
		},
		ListMultipartUploadsFunc: listSessionFunc("upload-1"),
		UploadPartFunc: func(_ context.Context, _ *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			attempts++
			if attempts < 3 {
				return nil, fmt.Errorf("transient network error")
			}
			return &s3.UploadPartOutput{ETag: aws.String("etag-1")}, nil
		},
		CompleteMultipartUploadFunc: func(_ context.Context, _ *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
			return &s3.CompleteMultipartUploadOutput{ETag: aws.String("final-etag")}, nil
		},
	}

	u, _, slept := newTestUploader(mock)

	config := &s3types.UploadConfig{PartSize: 100}
	_, err := u.Upload(context.Background(), testBucket, testKey, bytes.NewReader(data), testPath, 60, config, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 3, attempts)
	// Delay doubles between attempts
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, *slept)
}

func TestUpload_PartExhaustionAbortsSessionKeepsRecord(t *testing.T) {
	data := testFileData(100)

	var aborted bool
	attempts := 0
	mock := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(_ context.Context, _ *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
		},
		ListMultipartUploadsFunc: listSessionFunc("upload-1"),
		UploadPartFunc: func(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			if aws.ToInt32(params.PartNumber) == 1 {
				return &s3.UploadPartOutput{ETag: aws.String("etag-1")}, nil
			}
			attempts++
			return nil, fmt.Errorf("persistent failure")
		},
		AbortMultipartUploadFunc: func(_ context.Context, params *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
			aborted = true
			assert.Equal(t, "upload-1", aws.ToString(params.UploadId))
			return &s3.AbortMultipartUploadOutput{}, nil
		},
	}

	u, store, slept := newTestUploader(mock)
	tracker := &testutil.MockProgressTracker{}

	config := &s3types.UploadConfig{PartSize: 50, ProgressTracker: tracker}
	_, err := u.Upload(context.Background(), testBucket, testKey, bytes.NewReader(data), testPath, 100, config, time.Now())
	require.Error(t, err)
	assert.True(t, errors.IsPartUpload(err))

	assert.Equal(t, 3, attempts)
	// No sleep after the final attempt
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, *slept)
	assert.True(t, aborted)
	assert.True(t, tracker.ErrorCalled)

	// The record survives with the part that did succeed
	st, loadErr := store.Load(testPath)
	require.NoError(t, loadErr)
	require.NotNil(t, st)
	require.Len(t, st.Parts, 1)
	assert.Equal(t, int32(1), st.Parts[0].PartNumber)
}

func TestUpload_SessionNotFound(t *testing.T) {
	data := testFileData(100)

	mock := &testutil.MockS3Client{
		ListMultipartUploadsFunc: func(_ context.Context, _ *s3.ListMultipartUploadsInput, _ ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error) {
			// Remote side expired or aborted the session
			return &s3.ListMultipartUploadsOutput{}, nil
		},
		UploadPartFunc: func(_ context.Context, _ *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			t.Fatal("no parts must be uploaded when the session is gone")
			return nil, nil
		},
	}

	u, store, _ := newTestUploader(mock)

	_, err := store.Create(testPath, "upload-gone", 50)
	require.NoError(t, err)

	config := &s3types.UploadConfig{PartSize: 50}
	_, err = u.Upload(context.Background(), testBucket, testKey, bytes.NewReader(data), testPath, 100, config, time.Now())
	require.Error(t, err)
	assert.True(t, errors.IsSessionNotFound(err))

	// The stale record is preserved for inspection
	st, loadErr := store.Load(testPath)
	require.NoError(t, loadErr)
	assert.NotNil(t, st)
}

func TestUpload_SessionMatchIsExact(t *testing.T) {
	data := testFileData(100)

	mock := &testutil.MockS3Client{
		ListMultipartUploadsFunc: func(_ context.Context, _ *s3.ListMultipartUploadsInput, _ ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error) {
			// A session for a longer key shares the prefix but is not ours
			return &s3.ListMultipartUploadsOutput{
				Uploads: []types.MultipartUpload{
					{Key: aws.String(testKey + ".backup"), UploadId: aws.String("upload-1")},
					{Key: aws.String(testKey), UploadId: aws.String("some-other-upload")},
				},
			}, nil
		},
	}

	u, store, _ := newTestUploader(mock)

	_, err := store.Create(testPath, "upload-1", 50)
	require.NoError(t, err)

	config := &s3types.UploadConfig{PartSize: 50}
	_, err = u.Upload(context.Background(), testBucket, testKey, bytes.NewReader(data), testPath, 100, config, time.Now())
	require.Error(t, err)
	assert.True(t, errors.IsSessionNotFound(err))
}

func TestUpload_CompleteFailureKeepsSessionAndRecord(t *testing.T) {
	data := testFileData(100)

	var aborted bool
	mock := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(_ context.Context, _ *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
		},
		ListMultipartUploadsFunc: listSessionFunc("upload-1"),
		UploadPartFunc: func(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("etag-%d", aws.ToInt32(params.PartNumber)))}, nil
		},
		CompleteMultipartUploadFunc: func(_ context.Context, _ *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
			return nil, fmt.Errorf("internal error")
		},
		AbortMultipartUploadFunc: func(_ context.Context, _ *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
			aborted = true
			return &s3.AbortMultipartUploadOutput{}, nil
		},
	}

	u, store, _ := newTestUploader(mock)

	config := &s3types.UploadConfig{PartSize: 50}
	_, err := u.Upload(context.Background(), testBucket, testKey, bytes.NewReader(data), testPath, 100, config, time.Now())
	require.Error(t, err)
	assert.True(t, errors.IsCompleteFailed(err))

	// All parts are uploaded; the session must stay so a later run can
	// retry just the completion
	assert.False(t, aborted)

	st, loadErr := store.Load(testPath)
	require.NoError(t, loadErr)
	require.NotNil(t, st)
	assert.Len(t, st.Parts, 2)
}

func TestUpload_ProgressMonotonicIncludesSkipped(t *testing.T) {
	data := testFileData(200)

	mock := &testutil.MockS3Client{
		ListMultipartUploadsFunc: func(_ context.Context, _ *s3.ListMultipartUploadsInput, _ ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error) {
			return &s3.ListMultipartUploadsOutput{
				Uploads: []types.MultipartUpload{
					{Key: aws.String(testKey), UploadId: aws.String("upload-1")},
				},
			}, nil
		},
		UploadPartFunc: func(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("etag-%d", aws.ToInt32(params.PartNumber)))}, nil
		},
		CompleteMultipartUploadFunc: func(_ context.Context, _ *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
			return &s3.CompleteMultipartUploadOutput{ETag: aws.String("final-etag")}, nil
		},
	}

	u, store, _ := newTestUploader(mock)

	st, err := store.Create(testPath, "upload-1", 50)
	require.NoError(t, err)
	require.NoError(t, store.Append(testPath, st, s3types.PartRecord{PartNumber: 1, ETag: "old-1", Size: 50}))
	require.NoError(t, store.Append(testPath, st, s3types.PartRecord{PartNumber: 2, ETag: "old-2", Size: 50}))

	tracker := &testutil.MockProgressTracker{}
	config := &s3types.UploadConfig{PartSize: 50, ProgressTracker: tracker}

	_, err = u.Upload(context.Background(), testBucket, testKey, bytes.NewReader(data), testPath, 200, config, time.Now())
	require.NoError(t, err)

	// Skipped parts count toward progress, so the final update reaches the
	// total and never moves backwards
	require.Len(t, tracker.Updates, 4)
	assert.True(t, tracker.IsMonotonic())
	assert.Equal(t, int64(50), tracker.Updates[0].Transferred)
	assert.Equal(t, int64(100), tracker.Updates[1].Transferred)
	assert.Equal(t, int64(200), tracker.Updates[3].Transferred)
	assert.True(t, tracker.CompleteCalled)
}

func TestUpload_CorruptRecordIsFatal(t *testing.T) {
	memFS := billy.NewInMemoryFS()
	store := resume.NewStore(memFS, "/records")
	require.NoError(t, memFS.WriteFile(store.Path(testPath), []byte("{broken"), 0o644))

	mock := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(_ context.Context, _ *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			t.Fatal("a corrupt record must not start a new session")
			return nil, nil
		},
	}

	u := NewUploader(mock, store)
	config := &s3types.UploadConfig{PartSize: 50}

	_, err := u.Upload(context.Background(), testBucket, testKey, bytes.NewReader(testFileData(100)), testPath, 100, config, time.Now())
	require.Error(t, err)
	assert.True(t, errors.IsResumeCorrupt(err))
}

func TestUpload_FreshSessionIsValidatedBeforeParts(t *testing.T) {
	data := testFileData(100)

	mock := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(_ context.Context, _ *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
		},
		ListMultipartUploadsFunc: func(_ context.Context, _ *s3.ListMultipartUploadsInput, _ ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error) {
			// The remote side does not list the session it just created
			return &s3.ListMultipartUploadsOutput{}, nil
		},
		UploadPartFunc: func(_ context.Context, _ *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			t.Fatal("an unverified session must not receive parts")
			return nil, nil
		},
	}

	u, store, _ := newTestUploader(mock)

	config := &s3types.UploadConfig{PartSize: 50}
	_, err := u.Upload(context.Background(), testBucket, testKey, bytes.NewReader(data), testPath, 100, config, time.Now())
	require.Error(t, err)
	assert.True(t, errors.IsSessionNotFound(err))

	// The record points at the session for later inspection
	st, loadErr := store.Load(testPath)
	require.NoError(t, loadErr)
	require.NotNil(t, st)
	assert.Equal(t, "upload-1", st.UploadID)
}

func TestUpload_PartSizeMismatchIsFatal(t *testing.T) {
	data := testFileData(200)

	mock := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(_ context.Context, _ *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			t.Fatal("a mismatched record must not start a new session")
			return nil, nil
		},
		UploadPartFunc: func(_ context.Context, _ *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			t.Fatal("a mismatched record must not upload parts")
			return nil, nil
		},
	}

	u, store, _ := newTestUploader(mock)

	// The record was written with 50-unit parts; this run configures 64
	st, err := store.Create(testPath, "upload-1", 50)
	require.NoError(t, err)
	require.NoError(t, store.Append(testPath, st, s3types.PartRecord{PartNumber: 1, ETag: "a", Size: 50}))

	config := &s3types.UploadConfig{PartSize: 64}
	_, err = u.Upload(context.Background(), testBucket, testKey, bytes.NewReader(data), testPath, 200, config, time.Now())
	require.Error(t, err)
	assert.True(t, errors.IsResumeMismatch(err))

	// The record is preserved; rerunning with the original part size works
	loaded, loadErr := store.Load(testPath)
	require.NoError(t, loadErr)
	require.NotNil(t, loaded)
	assert.Equal(t, int64(50), loaded.PartSize)
}

func TestSessionExists_FollowsPagination(t *testing.T) {
	var calls int
	mock := &testutil.MockS3Client{
		ListMultipartUploadsFunc: func(_ context.Context, params *s3.ListMultipartUploadsInput, _ ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error) {
			calls++
			if calls == 1 {
				// First page holds only an unrelated session
				return &s3.ListMultipartUploadsOutput{
					Uploads: []types.MultipartUpload{
						{Key: aws.String(testKey), UploadId: aws.String("some-other-upload")},
					},
					IsTruncated:        aws.Bool(true),
					NextKeyMarker:      aws.String(testKey),
					NextUploadIdMarker: aws.String("some-other-upload"),
				}, nil
			}
			// The follow-up request carries the markers from page one
			assert.Equal(t, testKey, aws.ToString(params.KeyMarker))
			assert.Equal(t, "some-other-upload", aws.ToString(params.UploadIdMarker))
			return &s3.ListMultipartUploadsOutput{
				Uploads: []types.MultipartUpload{
					{Key: aws.String(testKey), UploadId: aws.String("upload-2")},
				},
			}, nil
		},
	}

	u, _, _ := newTestUploader(mock)

	ok, err := u.sessionExists(context.Background(), testBucket, testKey, "upload-2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2, calls)

	calls = 0
	ok, err = u.sessionExists(context.Background(), testBucket, testKey, "upload-absent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, calls)
}
