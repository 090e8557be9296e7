package doiver

import "io"

// Archive provides an interface for preservation storage backends.
// Snapshot bodies are stored content-addressed by their SHA-256 checksum,
// so storing the same body twice is naturally deduplicated.
type Archive interface {
	// Put stores content identified by its checksum.
	// The operation is idempotent: storing the same checksum multiple times is safe.
	// size is the number of bytes that will be read from r.
	Put(checksum string, r io.Reader, size int64) error

	// Get retrieves content by checksum and writes it to w.
	Get(checksum string, w io.Writer) error

	// Has reports whether content with the given checksum is already archived.
	Has(checksum string) (bool, error)

	// ValidateSetup verifies that the archive is accessible and properly configured.
	ValidateSetup() error
}
