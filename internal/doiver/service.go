package doiver

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"doiver/internal/model"
)

// Service is the orchestration layer that coordinates the registrar
// components: DOI minting on first publish, version sequencing on updates,
// and the preservation archive.
type Service struct {
	store     Store
	debouncer Debouncer
	archive   Archive
	encryptor Encryptor
	doigen    *DOIGenerator
	logger    Logger
	clock     Clock
	idgen     IDGenerator
}

// NewService creates a new Service with the provided dependencies.
// archive and encryptor may be nil when no preservation archive is configured.
func NewService(store Store, debouncer Debouncer, archive Archive, encryptor Encryptor, doigen *DOIGenerator, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		store:     store,
		debouncer: debouncer,
		archive:   archive,
		encryptor: encryptor,
		doigen:    doigen,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
	}
}

// Checksum returns the SHA-256 checksum of content as a lowercase hex string.
// This is the content key used by the archive.
func Checksum(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

// Publish handles the first-publish event for an article.
// Unknown slugs get a new article record. An article that already carries a
// DOI is left untouched and returned as-is — minting is idempotent, and the
// wrong-type/already-assigned case is a silent skip, not an error.
// Otherwise a DOI is minted and the version history is seeded with
// snapshot 1 holding the content at publish time.
func (s *Service) Publish(slug string, title string, content string) (*model.Article, error) {
	article, err := s.store.FindArticleBySlug(slug)
	if err != nil {
		return nil, fmt.Errorf("finding article: %w", err)
	}

	if article == nil {
		article = &model.Article{
			ID:        s.idgen.New(),
			Slug:      slug,
			Title:     title,
			Status:    "publish",
			CreatedAt: s.clock.Now(),
			UpdatedAt: s.clock.Now(),
		}
		if err := s.store.CreateArticle(article); err != nil {
			return nil, fmt.Errorf("creating article: %w", err)
		}
	}

	if article.Published() {
		s.logger.Debug("doi already assigned", "slug", slug, "doi", article.DOI.String)
		return article, nil
	}

	doi := s.doigen.Mint()
	seed := &model.Snapshot{
		ID:        s.idgen.New(),
		ArticleID: article.ID,
		Version:   1,
		Content:   content,
		Checksum:  Checksum(content),
		CreatedAt: s.clock.Now(),
	}

	if err := s.store.AssignDOI(article.ID, doi, seed); err != nil {
		return nil, fmt.Errorf("assigning doi: %w", err)
	}

	article, err = s.store.FindArticleByID(article.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading article: %w", err)
	}

	s.logger.Info("article published", "slug", slug, "doi", doi)
	return article, nil
}

// RecordUpdate handles an update notification for an article.
// It returns the new version number when a snapshot was appended, or 0 for
// the (common) silent skip: unpublished article, byte-identical content,
// pre-publish previous status, or a duplicate notification inside the
// debounce window.
func (s *Service) RecordUpdate(slug string, newContent string, previousStatus string) (int64, error) {
	article, err := s.store.FindArticleBySlug(slug)
	if err != nil {
		return 0, fmt.Errorf("finding article: %w", err)
	}
	if article == nil || !article.Published() {
		s.logger.Debug("update ignored: article not published", "slug", slug)
		return 0, nil
	}

	// Autosaves and draft edits before publish must not count as versions.
	switch strings.ToLower(previousStatus) {
	case "draft", "auto-draft", "inherit":
		s.logger.Debug("update ignored: pre-publish status", "slug", slug, "status", previousStatus)
		return 0, nil
	}

	latest, err := s.store.LatestSnapshot(article.ID)
	if err != nil {
		return 0, fmt.Errorf("loading latest snapshot: %w", err)
	}
	if latest == nil {
		return 0, fmt.Errorf("article %s: %w", slug, ErrCorruptHistory)
	}
	if latest.Content == newContent {
		s.logger.Debug("update ignored: content unchanged", "slug", slug)
		return 0, nil
	}

	// Acquired last so a save rejected above doesn't burn the window.
	if !s.debouncer.TryAcquire(article.ID) {
		s.logger.Debug("update suppressed by debounce window", "slug", slug)
		return 0, nil
	}

	snap := &model.Snapshot{
		ID:        s.idgen.New(),
		ArticleID: article.ID,
		Version:   article.CurrentVersion + 1,
		Content:   newContent,
		Checksum:  Checksum(newContent),
		CreatedAt: s.clock.Now(),
	}

	if err := s.store.AppendSnapshot(snap); err != nil {
		return 0, fmt.Errorf("appending snapshot: %w", err)
	}

	s.logger.Info("version recorded", "slug", slug, "version", snap.Version)
	return snap.Version, nil
}

// ListVersions returns an article's snapshots ordered by version ascending.
func (s *Service) ListVersions(slug string) (*model.Article, []*model.Snapshot, error) {
	article, err := s.store.FindArticleBySlug(slug)
	if err != nil {
		return nil, nil, fmt.Errorf("finding article: %w", err)
	}
	if article == nil {
		return nil, nil, ErrNotFound
	}

	snapshots, err := s.store.FindSnapshotsForArticle(article.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing snapshots: %w", err)
	}
	return article, snapshots, nil
}

// GetHistory returns the most recent registrar operations, newest first.
func (s *Service) GetHistory(limit int) ([]*model.RegistrarOperation, error) {
	ops, err := s.store.ListOperations(limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// ArchiveSync uploads every snapshot body not yet present in the archive.
// Bodies are stored content-addressed by checksum, encrypted at rest when an
// encryptor is configured. Returns the number of bodies uploaded.
func (s *Service) ArchiveSync() (int, error) {
	if s.archive == nil {
		return 0, fmt.Errorf("no archive configured")
	}

	snapshots, err := s.store.AllSnapshots()
	if err != nil {
		return 0, fmt.Errorf("listing snapshots: %w", err)
	}

	count := 0
	for _, snap := range snapshots {
		exists, err := s.archive.Has(snap.Checksum)
		if err != nil {
			return count, fmt.Errorf("checking archive for %s: %w", snap.Checksum, err)
		}
		if exists {
			continue
		}

		body := []byte(snap.Content)
		if s.encryptor != nil && s.encryptor.IsConfigured() {
			var buf bytes.Buffer
			if err := s.encryptor.Encrypt(bytes.NewReader(body), &buf); err != nil {
				return count, fmt.Errorf("encrypting snapshot %s: %w", snap.ID, err)
			}
			body = buf.Bytes()
		}

		if err := s.archive.Put(snap.Checksum, bytes.NewReader(body), int64(len(body))); err != nil {
			return count, fmt.Errorf("archiving snapshot %s: %w", snap.ID, err)
		}
		count++
		s.logger.Debug("snapshot archived", "checksum", snap.Checksum, "version", snap.Version)
	}

	s.logger.Info("archive sync complete", "uploaded", count)
	return count, nil
}
