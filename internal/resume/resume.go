// Package resume persists the local record that lets an interrupted
// multipart upload continue from the last acknowledged part.
//
// The record is a cache of remote truth: the storage service knows which
// parts the session holds, and the record only exists to avoid re-uploading
// them. Every mutation is written through to the filesystem before the
// caller proceeds, so a crash between two part uploads never loses the
// association between an acknowledged part and the local state.
package resume

import (
	"encoding/json"
	stderrors "errors"
	iofs "io/fs"
	"path/filepath"

	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/blobkit/s3up/errors"
	"github.com/blobkit/s3up/s3types"
)

// recordPerm is the file mode for newly written resume records.
const recordPerm = 0o644

// State is the persisted resume record for one file. Parts appear in the
// order the remote service acknowledged them; part numbers never repeat.
type State struct {
	// UploadID identifies the remote multipart session
	UploadID string `json:"upload_id"`

	// PartSize is the slice size the session was planned with. A resumed
	// run must use the same value or the recorded byte ranges are wrong.
	// Zero in records written before the field existed.
	PartSize int64 `json:"part_size,omitempty"`

	// Parts holds one record per acknowledged part
	Parts []s3types.PartRecord `json:"parts"`
}

// Has reports whether the state already holds a record for partNumber.
func (s *State) Has(partNumber int32) bool {
	for _, p := range s.Parts {
		if p.PartNumber == partNumber {
			return true
		}
	}
	return false
}

// Store reads and writes resume records keyed by the local file name.
type Store struct {
	fs  fs.Filesystem
	dir string
}

// NewStore creates a Store that keeps records in dir on the given filesystem.
func NewStore(fsys fs.Filesystem, dir string) *Store {
	return &Store{
		fs:  fsys,
		dir: dir,
	}
}

// Path returns the record path for a local file. The name depends only on
// the file's base name, so a second invocation against the same path finds
// the same record.
func (s *Store) Path(localPath string) string {
	return filepath.Join(s.dir, ".resume_"+filepath.Base(localPath)+".json")
}

// Load reads the persisted record for localPath. It returns (nil, nil) when
// no record exists. A record that exists but cannot be parsed is fatal for
// the current attempt and is left on disk for the operator to inspect.
func (s *Store) Load(localPath string) (*State, error) {
	path := s.Path(localPath)

	data, err := s.fs.ReadFile(path)
	if err != nil {
		// The filesystem abstraction wraps the underlying error, so the
		// not-exist check has to walk the chain
		if stderrors.Is(err, iofs.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.NewError("loadResume", err).WithMessage("read " + path)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, errors.NewError("loadResume", errors.ErrResumeCorrupt).
			WithMessage(path + ": " + err.Error())
	}
	return &st, nil
}

// Create initializes an empty record for localPath bound to uploadID and
// persists it immediately. Callers must Load first and branch; creating over
// an existing record is an error.
func (s *Store) Create(localPath, uploadID string, partSize int64) (*State, error) {
	existing, err := s.Load(localPath)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.NewError("createResume", errors.ErrResumeExists).
			WithMessage(s.Path(localPath))
	}

	st := &State{
		UploadID: uploadID,
		PartSize: partSize,
		Parts:    []s3types.PartRecord{},
	}
	if err := s.write(localPath, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Append adds a part record to the state and persists the updated record
// before returning. The remote service acknowledged the part already; this
// write is what makes the acknowledgment survive a restart.
func (s *Store) Append(localPath string, st *State, rec s3types.PartRecord) error {
	st.Parts = append(st.Parts, rec)
	return s.write(localPath, st)
}

// Delete removes the record for localPath. Called only after the remote
// session is finalized. Deleting an absent record is not an error.
func (s *Store) Delete(localPath string) error {
	path := s.Path(localPath)

	exists, err := s.fs.Exists(path)
	if err != nil {
		return errors.NewError("deleteResume", err).WithMessage("stat " + path)
	}
	if !exists {
		return nil
	}
	if err := s.fs.Remove(path); err != nil {
		return errors.NewError("deleteResume", err).WithMessage("remove " + path)
	}
	return nil
}

// write serializes the state and flushes it to the record path.
func (s *Store) write(localPath string, st *State) error {
	path := s.Path(localPath)

	data, err := json.Marshal(st)
	if err != nil {
		return errors.NewError("writeResume", err).WithMessage("marshal " + path)
	}
	if err := s.fs.WriteFile(path, data, recordPerm); err != nil {
		return errors.NewError("writeResume", err).WithMessage("write " + path)
	}
	return nil
}
