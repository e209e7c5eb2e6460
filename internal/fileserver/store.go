package fileserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/smsgate/internal/logger"
)

// ErrInvalidArgument is returned for an unusable target name or directory.
var ErrInvalidArgument = errors.New("fileserver: invalid argument")

// Store persists an uploaded file under its client-supplied name.
// A file saved under an existing name replaces it.
type Store interface {
	Save(ctx context.Context, name string, src io.Reader, size int64) (location string, err error)
}

// DiskStore writes into an existing directory.
type DiskStore struct {
	Dir string
}

var _ Store = (*DiskStore)(nil)

func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{Dir: dir}
}

// Save streams src into a temporary file next to the target and renames it into place,
// so readers never see a partially written file.
func (s *DiskStore) Save(ctx context.Context, name string, src io.Reader, size int64) (string, error) {
	defer logger.DeferLogDuration("fileserver.DiskStore.Save", time.Now())()
	if s.Dir == "" {
		return "", fmt.Errorf("%w: empty upload directory", ErrInvalidArgument)
	}
	if err := validateName(name); err != nil {
		return "", err
	}
	dst := filepath.Join(s.Dir, name)

	tmp, err := os.CreateTemp(s.Dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	// CreateTemp opens 0600; stored files get the usual 0644.
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("chmod temp: %w", err)
	}
	if err := copyWithContext(ctx, tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("move into place: %w", err)
	}
	return dst, nil
}

// validateName accepts the client name as is, as long as it names a plain file in the directory.
func validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: file name %q", ErrInvalidArgument, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: file name %q contains a path separator", ErrInvalidArgument, name)
	}
	return nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) error {
	buf := make([]byte, 32*1024)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("upload cancelled: %w", ctx.Err())
		default:
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("read: %w", readErr)
		}
	}
}
