package blobfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/SscSPs/invoice_processing_app/internal/apperrors"
	portsrepo "github.com/SscSPs/invoice_processing_app/internal/core/ports/repositories"
)

// Store keeps uploaded document bytes on the local filesystem, one file per
// storage reference, under a fixed root directory.
type Store struct {
	root string
}

var _ portsrepo.BlobStore = (*Store)(nil)

// NewStore creates the store and its root directory.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

// Put writes the content under ref, creating parent directories as needed.
func (s *Store) Put(_ context.Context, ref string, content []byte) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create blob parent directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write blob %s: %w", ref, err)
	}
	return nil
}

// Get reads the content stored under ref.
func (s *Store) Get(_ context.Context, ref string) ([]byte, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: blob %s", apperrors.ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to read blob %s: %w", ref, err)
	}
	return content, nil
}

// resolve maps a reference onto a path strictly inside the root.
func (s *Store) resolve(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("%w: empty blob reference", apperrors.ErrValidation)
	}
	cleaned := filepath.Clean(filepath.FromSlash(ref))
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%w: blob reference escapes the store root", apperrors.ErrValidation)
	}
	return filepath.Join(s.root, cleaned), nil
}
