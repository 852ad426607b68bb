package gateway

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/AnyUserName/bulkimg/internal/hasher"
)

const lockFile = ".bulkimg.lock"

// Directory stores assets as files under Dir. Writes are atomic and
// serialized through a lock file, so several processes may share one tree.
type Directory struct {
	Dir       string
	Prefix    string
	PublicURL string
	MaxBytes  int
	Logger    *slog.Logger
}

// NewDirectory returns a Directory gateway with defaults applied.
func NewDirectory(dir, publicURL string) *Directory {
	return &Directory{Dir: dir, Prefix: DefaultPrefix, PublicURL: publicURL, MaxBytes: DefaultMaxBytes}
}

func (d *Directory) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

// Path returns the file an entry's image is stored in.
func (d *Directory) Path(entryID string) (string, error) {
	key, err := Key(d.Prefix, entryID)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.Dir, filepath.FromSlash(key)), nil
}

// Exists reports whether an image is stored for the entry.
func (d *Directory) Exists(entryID string) bool {
	p, err := d.Path(entryID)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Upload validates data and stores it for entryID, replacing any previous
// image. A replacement gets a content version in its URL.
func (d *Directory) Upload(ctx context.Context, entryID string, data []byte) (string, error) {
	if err := Validate(data, d.MaxBytes); err != nil {
		return "", err
	}
	key, err := Key(d.Prefix, entryID)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(d.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create storage dir: %w", err)
	}

	lock := flock.New(filepath.Join(d.Dir, lockFile))
	ok, err := lock.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return "", fmt.Errorf("acquire storage lock: %w", err)
	}
	if !ok {
		return "", errors.New("acquire storage lock: not acquired")
	}
	defer func() { _ = lock.Unlock() }()

	_, statErr := os.Stat(dest)
	replacement := statErr == nil
	if statErr != nil && !errors.Is(statErr, fs.ErrNotExist) {
		return "", fmt.Errorf("stat %s: %w", key, statErr)
	}

	if err := writeAtomic(dest, data); err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}

	version := ""
	if replacement {
		version = hasher.Version(data)
	}
	url := PublicURL(d.PublicURL, key, version)
	d.logger().Debug("asset stored", "key", key, "bytes", len(data), "replacement", replacement)
	return url, nil
}

// writeAtomic writes data to a temporary file beside dest and renames it.
func writeAtomic(dest string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, 0o644); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, dest); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}
