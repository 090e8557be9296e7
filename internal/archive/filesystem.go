package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"doiver/internal/doiver"
)

// FileSystemArchive is a filesystem-based implementation of the Archive
// interface. Bodies are stored as files named by checksum:
//
//	<root>/
//	  content/
//	    <checksum>
type FileSystemArchive struct {
	name       string
	root       string
	contentDir string
}

// NewFileSystemArchive creates a new filesystem archive rooted at the given path.
func NewFileSystemArchive(name, root string) (*FileSystemArchive, error) {
	contentDir := filepath.Join(root, "content")

	if err := os.MkdirAll(contentDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}

	return &FileSystemArchive{
		name:       name,
		root:       root,
		contentDir: contentDir,
	}, nil
}

// Put stores content identified by its checksum.
// The operation is idempotent: storing the same checksum multiple times is safe.
func (a *FileSystemArchive) Put(checksum string, r io.Reader, size int64) error {
	destPath := filepath.Join(a.contentDir, checksum)

	// If content already exists, skip (idempotent)
	if _, err := os.Stat(destPath); err == nil {
		// Consume the reader to maintain expected behavior
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		if written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}

	return a.writeFile(destPath, r, size)
}

// Get retrieves content by checksum and writes it to w.
func (a *FileSystemArchive) Get(checksum string, w io.Writer) error {
	srcPath := filepath.Join(a.contentDir, checksum)

	f, err := os.Open(srcPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("content not found: %s", checksum)
		}
		return fmt.Errorf("failed to open content: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	return nil
}

// Has reports whether content with the given checksum is archived.
func (a *FileSystemArchive) Has(checksum string) (bool, error) {
	_, err := os.Stat(filepath.Join(a.contentDir, checksum))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking content: %w", err)
	}
	return true, nil
}

// ValidateSetup verifies that the archive directories are accessible.
func (a *FileSystemArchive) ValidateSetup() error {
	info, err := os.Stat(a.root)
	if err != nil {
		return fmt.Errorf("archive root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("archive root is not a directory: %s", a.root)
	}

	info, err = os.Stat(a.contentDir)
	if err != nil {
		return fmt.Errorf("content directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("content path is not a directory: %s", a.contentDir)
	}

	return nil
}

// writeFile writes reader content to destPath, verifying the byte count.
// Writes go to a temp file first and are renamed into place so a partial
// write never looks like archived content.
func (a *FileSystemArchive) writeFile(destPath string, r io.Reader, size int64) error {
	tmp, err := os.CreateTemp(a.contentDir, ".put-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	written, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write content: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to finalize content: %w", err)
	}
	return nil
}

// Compile-time check that FileSystemArchive implements doiver.Archive
var _ doiver.Archive = (*FileSystemArchive)(nil)
