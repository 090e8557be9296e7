package archive

import (
	"fmt"

	"doiver/internal/config"
	"doiver/internal/doiver"
)

// NewArchiveFromConfig creates an Archive implementation based on the archive
// config type. Returns (nil, nil) for type "none": running without a
// preservation archive is a supported configuration.
func NewArchiveFromConfig(cfg config.ArchiveConfig) (doiver.Archive, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "memory":
		return NewMemoryArchive(cfg.Name), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem archive requires fs_root to be set")
		}
		return NewFileSystemArchive(cfg.Name, cfg.FSRoot)
	case "s3":
		return NewS3Archive(cfg)
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}
