package shadow

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dailyyoga/regstats/logger"
	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// File stores the document as JSON on local disk. Writes go to a temp file
// in the same directory that is renamed over the canonical path, so readers
// and crashes never observe a partial document.
type File struct {
	path        string
	lockPath    string
	lockTimeout time.Duration
	log         logger.Logger
}

var _ Shadow = (*File)(nil)

// NewFile creates a file shadow.
func NewFile(cfg *FileConfig, log logger.Logger) (*File, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig("file config is required")
	}
	cfg = cfg.MergeDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &File{
		path:        cfg.Path,
		lockPath:    cfg.Path + ".lock",
		lockTimeout: cfg.LockTimeout,
		log:         log,
	}, nil
}

// Path returns the canonical document path.
func (f *File) Path() string {
	return f.path
}

// lock takes the cross-process lock. It fails open: when the lock is not
// acquired within lockTimeout the returned release is a no-op.
func (f *File) lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return nil, err
	}
	fl := flock.New(f.lockPath)

	lctx, cancel := context.WithTimeout(ctx, f.lockTimeout)
	defer cancel()
	locked, err := fl.TryLockContext(lctx, 10*time.Millisecond)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	if !locked {
		f.log.Warn("shadow lock not acquired, continuing unlocked", zap.String("path", f.lockPath))
		return func() {}, nil
	}
	return func() { _ = fl.Unlock() }, nil
}

// Save implements Shadow.
func (f *File) Save(ctx context.Context, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return ErrEncode(err)
	}

	release, err := f.lock(ctx)
	if err != nil {
		return ErrWrite(err)
	}
	defer release()

	if err := writeAtomic(f.path, data, 0o644); err != nil {
		return ErrWrite(err)
	}
	return nil
}

func writeAtomic(path string, data []byte, perm os.FileMode) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	ok := false
	defer func() {
		if !ok {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	ok = true
	return nil
}

// Load implements Shadow.
func (f *File) Load(ctx context.Context) (*Document, error) {
	release, err := f.lock(ctx)
	if err != nil {
		return nil, ErrRead(err)
	}
	defer release()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, ErrRead(err)
	}
	return decode(data, f.log, zap.String("path", f.path)), nil
}

// decode parses a stored document, returning nil for corrupt payloads.
func decode(data []byte, log logger.Logger, where zap.Field) *Document {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn("shadow document is corrupt, ignoring", where, zap.Error(err))
		return nil
	}
	if doc.Snapshot == nil {
		log.Warn("shadow document has no snapshot, ignoring", where)
		return nil
	}
	return &doc
}
