package doiver

import (
	"strconv"
	"strings"

	"doiver/internal/model"
)

// NormalizeVersion parses a requested version label into its canonical
// integer form. Legacy display labels carry a "v" prefix ("v3") and URLs a
// trailing slash; both are accepted here so normalization happens once, at
// the resolver boundary. Returns 0 when the label does not contain a
// positive integer.
func NormalizeVersion(label string) int64 {
	s := strings.TrimSpace(label)
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimPrefix(s, "v")
	s = strings.TrimPrefix(s, "V")
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 1 {
		return 0
	}
	return n
}

// Resolve maps an article slug and an optional requested version label to the
// snapshot to display. An empty label resolves to the current version. An
// unknown or malformed label falls back to the current version rather than
// erroring — the render path never 404s on a bad version.
//
// Read-only; safe for concurrent use.
func (s *Service) Resolve(slug string, requested string) (*model.Article, *model.Snapshot, error) {
	article, err := s.store.FindArticleBySlug(slug)
	if err != nil {
		return nil, nil, err
	}
	if article == nil || !article.Published() {
		return nil, nil, ErrNotFound
	}

	if v := NormalizeVersion(requested); v > 0 {
		snap, err := s.store.FindSnapshot(article.ID, v)
		if err != nil {
			return nil, nil, err
		}
		if snap != nil {
			return article, snap, nil
		}
		s.logger.Debug("requested version absent, falling back to current",
			"slug", slug, "requested", requested)
	}

	snap, err := s.store.LatestSnapshot(article.ID)
	if err != nil {
		return nil, nil, err
	}
	if snap == nil {
		return nil, nil, ErrCorruptHistory
	}
	return article, snap, nil
}

// FetchVersion is the strict lookup behind the asynchronous fetch endpoint.
// Unlike Resolve it does not fall back: an unknown label is ErrVersionNotFound
// and a missing article is ErrNotFound, both surfaced as structured errors by
// the HTTP layer.
func (s *Service) FetchVersion(articleID string, requested string) (*model.Snapshot, error) {
	article, err := s.store.FindArticleByID(articleID)
	if err != nil {
		return nil, err
	}
	if article == nil || !article.Published() {
		return nil, ErrNotFound
	}

	v := NormalizeVersion(requested)
	if v == 0 {
		return nil, ErrVersionNotFound
	}

	snap, err := s.store.FindSnapshot(article.ID, v)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, ErrVersionNotFound
	}
	return snap, nil
}
