package temp

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store holds uploaded files on disk while they are parsed. Each upload gets
// its own directory so Remove can drop everything it left behind.
type Store struct {
	basePath string
}

// Staged describes a file that was fully written to the store.
type Staged struct {
	Path     string
	Size     int64
	Checksum string
}

// Open opens the staged file for reading.
func (s Staged) Open() (*os.File, error) {
	return os.Open(s.Path)
}

// NewStore creates a Store rooted at basePath.
func NewStore(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

// BasePath returns the directory the store writes under.
func (s *Store) BasePath() string {
	return s.basePath
}

func (s *Store) uploadDir(uploadID uuid.UUID) string {
	return filepath.Join(s.basePath, uploadID.String())
}

// UploadPath returns the final location of an upload with the given extension.
func (s *Store) UploadPath(uploadID uuid.UUID, ext string) string {
	name := "upload"
	if ext = strings.ToLower(strings.TrimPrefix(ext, ".")); ext != "" {
		name += "." + ext
	}
	return filepath.Join(s.uploadDir(uploadID), name)
}

// Stage copies data into the upload's directory, hashing it on the way. The
// copy is written to a scratch file and only renamed to UploadPath once it
// is complete; on any error the scratch file is gone when Stage returns.
func (s *Store) Stage(uploadID uuid.UUID, ext string, data io.Reader) (staged Staged, err error) {
	dir := s.uploadDir(uploadID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Staged{}, fmt.Errorf("failed to create upload directory: %w", err)
	}

	scratch, err := os.CreateTemp(dir, "upload-*.partial")
	if err != nil {
		return Staged{}, fmt.Errorf("failed to create scratch file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = scratch.Close()
			_ = os.Remove(scratch.Name())
		}
	}()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(scratch, hasher), data)
	if err != nil {
		return Staged{}, fmt.Errorf("failed to copy upload: %w", err)
	}
	if err = scratch.Sync(); err != nil {
		return Staged{}, fmt.Errorf("failed to flush upload: %w", err)
	}
	if err = scratch.Close(); err != nil {
		return Staged{}, fmt.Errorf("failed to close upload: %w", err)
	}

	path := s.UploadPath(uploadID, ext)
	if err = os.Rename(scratch.Name(), path); err != nil {
		return Staged{}, fmt.Errorf("failed to finalise upload: %w", err)
	}
	return Staged{Path: path, Size: size, Checksum: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// Remove deletes the upload's directory and everything in it. Removing an
// upload that was never staged is not an error.
func (s *Store) Remove(uploadID uuid.UUID) error {
	return os.RemoveAll(s.uploadDir(uploadID))
}
