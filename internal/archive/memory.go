package archive

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"doiver/internal/doiver"
)

// MemoryArchive is an in-memory implementation of the Archive interface.
// It stores all content in memory, making it useful for testing.
// Safe for concurrent use.
type MemoryArchive struct {
	name    string
	content map[string][]byte // checksum -> body
	mu      sync.RWMutex
}

// NewMemoryArchive creates a new in-memory archive with the given name.
func NewMemoryArchive(name string) *MemoryArchive {
	return &MemoryArchive{
		name:    name,
		content: make(map[string][]byte),
	}
}

// Put stores content identified by its checksum.
func (m *MemoryArchive) Put(checksum string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}

	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Idempotent: storing the same checksum multiple times is safe
	m.content[checksum] = data
	return nil
}

// Get retrieves content by checksum.
func (m *MemoryArchive) Get(checksum string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.content[checksum]
	if !ok {
		return fmt.Errorf("content not found: %s", checksum)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}

	return nil
}

// Has reports whether content with the given checksum is archived.
func (m *MemoryArchive) Has(checksum string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.content[checksum]
	return ok, nil
}

// ValidateSetup always succeeds for an in-memory archive.
func (m *MemoryArchive) ValidateSetup() error {
	return nil
}

// Compile-time check that MemoryArchive implements doiver.Archive
var _ doiver.Archive = (*MemoryArchive)(nil)
