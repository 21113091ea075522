// Package media persists uploaded binary files under derived names,
// decoupled from the record lifecycle. Filenames are generated fresh for
// every write, so the locker is append-only by construction.
package media

import (
	"crypto/md5"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Locker writes and removes files in a single upload directory.
type Locker struct {
	dir string
}

// New creates the upload directory if needed and returns a Locker over it.
func New(dir string) (*Locker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Locker{dir: dir}, nil
}

// Dir returns the upload directory path, for static file serving.
func (l *Locker) Dir() string {
	return l.dir
}

// Store writes data under a derived filename
// <md5(ip)>-<unix millis>-<random>.<ext> and returns that name. The
// extension is taken from the client-supplied original name.
func (l *Locker) Store(ip, originalName string, data []byte) (string, error) {
	ext := filepath.Ext(originalName)
	name := fmt.Sprintf("%x-%d-%s%s",
		md5.Sum([]byte(ip)),
		time.Now().UnixMilli(),
		strings.ReplaceAll(uuid.NewString(), "-", "")[:9],
		ext,
	)
	if err := os.WriteFile(filepath.Join(l.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload %s: %w", name, err)
	}
	return name, nil
}

// Remove deletes a stored file. A missing file is not an error; a name
// containing a path separator is refused outright.
func (l *Locker) Remove(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("refusing to remove %q", name)
	}
	err := os.Remove(filepath.Join(l.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
