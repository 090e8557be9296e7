package doiver

import "doiver/internal/model"

// Store provides an interface for registrar metadata storage.
// All multi-step mutations must be implemented with appropriate transaction
// handling; snapshot history is append-only and implementations must refuse
// to overwrite an existing version (returning ErrCorruptHistory).
type Store interface {
	// Article operations

	// FindArticleByID returns an article by its ID, or nil when absent.
	FindArticleByID(id string) (*model.Article, error)

	// FindArticleBySlug returns an article by its slug, or nil when absent.
	FindArticleBySlug(slug string) (*model.Article, error)

	// CreateArticle inserts a new article record.
	CreateArticle(article *model.Article) error

	// AssignDOI performs the first-publish transition in one transaction:
	// sets the DOI, sets current_version to the seed snapshot's version,
	// and inserts the seed snapshot. Fails if the article already has a DOI.
	AssignDOI(articleID string, doi string, seed *model.Snapshot) error

	// Snapshot operations

	// FindSnapshot returns the snapshot at a specific version, or nil when absent.
	FindSnapshot(articleID string, version int64) (*model.Snapshot, error)

	// FindSnapshotsForArticle returns all snapshots for an article,
	// ordered by version ascending.
	FindSnapshotsForArticle(articleID string) ([]*model.Snapshot, error)

	// LatestSnapshot returns the snapshot at the article's current version,
	// or nil when the article has no history.
	LatestSnapshot(articleID string) (*model.Snapshot, error)

	// AppendSnapshot appends a new snapshot and advances the article's
	// current-version pointer in one transaction. The snapshot's version
	// must be exactly current_version+1; anything else is ErrCorruptHistory.
	AppendSnapshot(snapshot *model.Snapshot) error

	// AllSnapshots returns every snapshot in the store, ordered by article
	// and version. Used by the archive sync pass.
	AllSnapshots() ([]*model.Snapshot, error)

	// Operation audit records

	// CreateOperation records the start of a mutating operation.
	CreateOperation(operation string, parameters string) (*model.RegistrarOperation, error)

	// FinishOperation marks an operation finished with the given status.
	FinishOperation(id int64, status string) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(limit int) ([]*model.RegistrarOperation, error)

	// CheckMigrations verifies the backing schema is up-to-date.
	CheckMigrations() error

	// Close closes the store.
	Close() error
}
