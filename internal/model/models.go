package model

import (
	"database/sql"
	"time"
)

// Article represents a tracked research article. The DOI is minted exactly
// once, on first publish; an article without one has never been published
// under this registrar.
type Article struct {
	ID             string         // UUID
	Slug           string         // URL path segment, unique
	Title          string
	Status         string         // "draft", "publish", ...
	DOI            sql.NullString // Persistent identifier, immutable once set
	CurrentVersion int64          // 0 until first publish, then max snapshot version
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Published reports whether the article has been through first publish.
func (a *Article) Published() bool { return a.DOI.Valid }

// Snapshot is one immutable content version of an article.
// Versions are 1-based and contiguous; rows are never updated or deleted.
type Snapshot struct {
	ID        string // UUID
	ArticleID string // Foreign key to Article
	Version   int64  // 1, 2, 3, ... with no gaps
	Content   string // Full body captured at version time
	Checksum  string // SHA-256 hex of Content
	CreatedAt time.Time
}

// RegistrarOperation is an audit record of a mutating operation.
type RegistrarOperation struct {
	ID         int64
	Operation  string // "Publish", "RecordUpdate", "ArchiveSync", ...
	Parameters string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string // "success" or "error"
}
