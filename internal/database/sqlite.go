package database

import (
	"database/sql"
	"errors"
	"fmt"

	"doiver/internal/database/migrations"
	"doiver/internal/doiver"
	"doiver/internal/model"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// SQLiteStore implements the doiver.Store interface using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore creates a new SQLite store.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// NewSQLiteStoreFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, path: ""}
}

// OpenConnection opens and configures a SQLite connection with appropriate PRAGMAs.
// Exported for tools and tests that need a properly configured connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Article operations

const articleColumns = "id, slug, title, status, doi, current_version, created_at, updated_at"

func scanArticle(row *sql.Row) (*model.Article, error) {
	var a model.Article
	err := row.Scan(&a.ID, &a.Slug, &a.Title, &a.Status, &a.DOI, &a.CurrentVersion, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return &a, nil
}

func (s *SQLiteStore) FindArticleByID(id string) (*model.Article, error) {
	row := s.db.QueryRow("SELECT "+articleColumns+" FROM articles WHERE id = ?", id)
	a, err := scanArticle(row)
	if err != nil {
		return nil, fmt.Errorf("finding article by id: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) FindArticleBySlug(slug string) (*model.Article, error) {
	row := s.db.QueryRow("SELECT "+articleColumns+" FROM articles WHERE slug = ?", slug)
	a, err := scanArticle(row)
	if err != nil {
		return nil, fmt.Errorf("finding article by slug: %w", err)
	}
	return a, nil
}

func (s *SQLiteStore) CreateArticle(article *model.Article) error {
	_, err := s.db.Exec(
		"INSERT INTO articles (id, slug, title, status, doi, current_version, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		article.ID, article.Slug, article.Title, article.Status, article.DOI, article.CurrentVersion, article.CreatedAt, article.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating article: %w", err)
	}
	return nil
}

// AssignDOI performs the first-publish transition atomically:
// 1. Verifies the article exists and has no DOI yet.
// 2. Sets the DOI and the current-version pointer.
// 3. Inserts the seed snapshot.
// A duplicate DOI surfaces as a fatal error, not a retry: with random
// suffixes a collision means the deployment is misconfigured.
func (s *SQLiteStore) AssignDOI(articleID string, doi string, seed *model.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. The DOI is immutable once assigned.
	var existing sql.NullString
	err = tx.QueryRow("SELECT doi FROM articles WHERE id = ?", articleID).Scan(&existing)
	if errors.Is(err, sql.ErrNoRows) {
		return doiver.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("checking existing doi: %w", err)
	}
	if existing.Valid {
		return fmt.Errorf("article %s already has doi %s", articleID, existing.String)
	}

	// 2. Assign the DOI and point at the seed version.
	_, err = tx.Exec(
		"UPDATE articles SET doi = ?, current_version = ?, status = 'publish', updated_at = ? WHERE id = ?",
		doi, seed.Version, seed.CreatedAt, articleID,
	)
	if err != nil {
		return fmt.Errorf("assigning doi: %w", err)
	}

	// 3. Seed the version history.
	if err := insertSnapshot(tx, seed); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Snapshot operations

const snapshotColumns = "id, article_id, version, content, checksum, created_at"

func (s *SQLiteStore) FindSnapshot(articleID string, version int64) (*model.Snapshot, error) {
	row := s.db.QueryRow(
		"SELECT "+snapshotColumns+" FROM snapshots WHERE article_id = ? AND version = ?",
		articleID, version,
	)
	var snap model.Snapshot
	err := row.Scan(&snap.ID, &snap.ArticleID, &snap.Version, &snap.Content, &snap.Checksum, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding snapshot: %w", err)
	}
	return &snap, nil
}

func (s *SQLiteStore) FindSnapshotsForArticle(articleID string) ([]*model.Snapshot, error) {
	rows, err := s.db.Query(
		"SELECT "+snapshotColumns+" FROM snapshots WHERE article_id = ? ORDER BY version ASC",
		articleID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

func (s *SQLiteStore) LatestSnapshot(articleID string) (*model.Snapshot, error) {
	row := s.db.QueryRow(
		"SELECT "+snapshotColumns+" FROM snapshots WHERE article_id = ? ORDER BY version DESC LIMIT 1",
		articleID,
	)
	var snap model.Snapshot
	err := row.Scan(&snap.ID, &snap.ArticleID, &snap.Version, &snap.Content, &snap.Checksum, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No history yet
		}
		return nil, fmt.Errorf("loading latest snapshot: %w", err)
	}
	return &snap, nil
}

// AppendSnapshot appends one snapshot and advances the current-version
// pointer in a single transaction:
// 1. Loads the article's current version.
// 2. Verifies the history invariant: stored max(version) equals the pointer,
//    and the new snapshot is exactly pointer+1.
// 3. Inserts the snapshot and bumps the pointer.
// Any violation in step 2 is ErrCorruptHistory — never repaired silently.
func (s *SQLiteStore) AppendSnapshot(snapshot *model.Snapshot) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	// 1. Current pointer.
	var current int64
	err = tx.QueryRow("SELECT current_version FROM articles WHERE id = ?", snapshot.ArticleID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return doiver.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("loading current version: %w", err)
	}

	// 2. Invariant checks.
	var maxVersion sql.NullInt64
	err = tx.QueryRow("SELECT MAX(version) FROM snapshots WHERE article_id = ?", snapshot.ArticleID).Scan(&maxVersion)
	if err != nil {
		return fmt.Errorf("loading max version: %w", err)
	}
	if !maxVersion.Valid || maxVersion.Int64 != current {
		return fmt.Errorf("article %s: pointer %d does not match stored history: %w",
			snapshot.ArticleID, current, doiver.ErrCorruptHistory)
	}
	if snapshot.Version != current+1 {
		return fmt.Errorf("article %s: appending version %d over current %d: %w",
			snapshot.ArticleID, snapshot.Version, current, doiver.ErrCorruptHistory)
	}

	// 3. Append and bump.
	if err := insertSnapshot(tx, snapshot); err != nil {
		return err
	}
	_, err = tx.Exec(
		"UPDATE articles SET current_version = ?, updated_at = ? WHERE id = ?",
		snapshot.Version, snapshot.CreatedAt, snapshot.ArticleID,
	)
	if err != nil {
		return fmt.Errorf("updating current version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// insertSnapshot inserts a snapshot row, mapping a unique-constraint
// violation on (article_id, version) to ErrCorruptHistory: history rows are
// append-only and must never be overwritten.
func insertSnapshot(tx *sql.Tx, snapshot *model.Snapshot) error {
	_, err := tx.Exec(
		"INSERT INTO snapshots (id, article_id, version, content, checksum, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		snapshot.ID, snapshot.ArticleID, snapshot.Version, snapshot.Content, snapshot.Checksum, snapshot.CreatedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("snapshot %s/%d already exists: %w",
				snapshot.ArticleID, snapshot.Version, doiver.ErrCorruptHistory)
		}
		return fmt.Errorf("inserting snapshot: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AllSnapshots() ([]*model.Snapshot, error) {
	rows, err := s.db.Query("SELECT " + snapshotColumns + " FROM snapshots ORDER BY article_id, version ASC")
	if err != nil {
		return nil, fmt.Errorf("listing all snapshots: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

func scanSnapshots(rows *sql.Rows) ([]*model.Snapshot, error) {
	var result []*model.Snapshot
	for rows.Next() {
		var snap model.Snapshot
		if err := rows.Scan(&snap.ID, &snap.ArticleID, &snap.Version, &snap.Content, &snap.Checksum, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		result = append(result, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return result, nil
}

// Operation audit records

func (s *SQLiteStore) CreateOperation(operation string, parameters string) (*model.RegistrarOperation, error) {
	op := &model.RegistrarOperation{
		Operation:  operation,
		Parameters: parameters,
		Status:     "success",
	}

	res, err := s.db.Exec(
		"INSERT INTO registrar_operations (operation, parameters, started_at, status) VALUES (?, ?, CURRENT_TIMESTAMP, ?)",
		op.Operation, op.Parameters, op.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}

	op.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}
	return op, nil
}

func (s *SQLiteStore) FinishOperation(id int64, status string) error {
	_, err := s.db.Exec(
		"UPDATE registrar_operations SET finished_at = CURRENT_TIMESTAMP, status = ? WHERE id = ?",
		status, id,
	)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListOperations(limit int) ([]*model.RegistrarOperation, error) {
	rows, err := s.db.Query(
		"SELECT id, operation, parameters, started_at, finished_at, status FROM registrar_operations ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var result []*model.RegistrarOperation
	for rows.Next() {
		var op model.RegistrarOperation
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.StartedAt, &op.FinishedAt, &op.Status); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		result = append(result, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operations: %w", err)
	}
	return result, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteStore) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrateUp runs all pending migrations.
func (s *SQLiteStore) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteStore implements doiver.Store
var _ doiver.Store = (*SQLiteStore)(nil)
