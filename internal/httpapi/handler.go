package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"doiver/internal/doiver"
	"doiver/internal/model"
)

// Handler is the HTTP surface of the registrar. It exposes the content
// lifecycle events consumed from the publishing system, the version render
// path with its release-URL convention, and the nonce-guarded asynchronous
// fetch endpoint.
type Handler struct {
	service *doiver.Service
	tokens  *TokenSource
	logger  doiver.Logger
}

// NewHandler creates the registrar HTTP handler.
func NewHandler(service *doiver.Service, tokens *TokenSource, logger doiver.Logger) *Handler {
	return &Handler{service: service, tokens: tokens, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/healthz":
		h.handleHealth(w, r)
	case path == "/events/published":
		h.handlePublished(w, r)
	case path == "/events/updated":
		h.handleUpdated(w, r)
	case path == "/fetch-version":
		h.handleFetchVersion(w, r)
	case strings.HasPrefix(path, "/articles/"):
		h.handleArticle(w, r, strings.TrimPrefix(path, "/articles/"))
	default:
		http.NotFound(w, r)
	}
}

// Envelope shape shared by all JSON responses: success flag plus either the
// payload or an error object with a message.
type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorData struct {
	Message string `json:"message"`
}

func respondSuccess(w http.ResponseWriter, payload any) {
	respondWithJSON(w, http.StatusOK, envelope{Success: true, Data: payload})
}

func respondError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, envelope{Success: false, Data: errorData{Message: message}})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	respondSuccess(w, map[string]string{"status": "ok"})
}

type publishedRequest struct {
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// handlePublished consumes the first-publish lifecycle event. Re-delivery
// for an already-published article is a no-op success: the DOI is immutable.
func (h *Handler) handlePublished(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req publishedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Slug == "" {
		respondError(w, http.StatusBadRequest, "slug is required")
		return
	}

	article, err := h.service.Publish(req.Slug, req.Title, req.Content)
	if err != nil {
		h.logger.Error("publish failed", "slug", req.Slug, "error", err)
		respondError(w, http.StatusInternalServerError, "publish failed")
		return
	}

	respondSuccess(w, map[string]any{
		"article_id": article.ID,
		"doi":        article.DOI.String,
		"version":    article.CurrentVersion,
	})
}

type updatedRequest struct {
	Slug           string `json:"slug"`
	Content        string `json:"content"`
	PreviousStatus string `json:"previous_status"`
}

// handleUpdated consumes an update notification. Suppressed and no-op saves
// respond accepted:false — the caller fired a redundant notification, which
// is expected, not an error.
func (h *Handler) handleUpdated(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req updatedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Slug == "" {
		respondError(w, http.StatusBadRequest, "slug is required")
		return
	}

	version, err := h.service.RecordUpdate(req.Slug, req.Content, req.PreviousStatus)
	if err != nil {
		h.logger.Error("update failed", "slug", req.Slug, "error", err)
		respondError(w, http.StatusInternalServerError, "update failed")
		return
	}

	respondSuccess(w, map[string]any{
		"accepted": version > 0,
		"version":  version,
	})
}

type fetchVersionRequest struct {
	ArticleID string `json:"article_id"`
	Version   string `json:"version"`
	Token     string `json:"token"`
}

// handleFetchVersion serves the asynchronous content swap. The anti-forgery
// token is checked before any store access; failures leak no data.
func (h *Handler) handleFetchVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, err := decodeFetchVersionRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.tokens.Validate(req.Token) {
		h.logger.Debug("token validation failed", "article_id", req.ArticleID)
		respondError(w, http.StatusForbidden, "Invalid security token.")
		return
	}

	snap, err := h.service.FetchVersion(req.ArticleID, req.Version)
	switch {
	case errors.Is(err, doiver.ErrNotFound):
		respondError(w, http.StatusOK, "Version history not found.")
	case errors.Is(err, doiver.ErrVersionNotFound):
		respondError(w, http.StatusOK, "Version not found.")
	case err != nil:
		h.logger.Error("fetch version failed", "article_id", req.ArticleID, "error", err)
		respondError(w, http.StatusInternalServerError, "fetch failed")
	default:
		respondSuccess(w, map[string]any{
			"version": snap.Version,
			"content": snap.Content,
		})
	}
}

// decodeFetchVersionRequest accepts both JSON and form encoding; the swap
// script on the legacy pages posts url-encoded forms.
func decodeFetchVersionRequest(r *http.Request) (*fetchVersionRequest, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req fetchVersionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return &fetchVersionRequest{
		ArticleID: r.PostFormValue("article_id"),
		Version:   r.PostFormValue("version"),
		Token:     r.PostFormValue("token"),
	}, nil
}

// handleArticle serves the render path:
//
//	GET /articles/<slug>              -> 302 to the current release URL
//	GET /articles/<slug>/release/<n>/ -> render payload at version n
//
// The redirect fires only when the release segment is wholly absent, so a
// present-but-invalid version never redirects (and cannot loop); it falls
// back to the current version's content instead.
func (h *Handler) handleArticle(w http.ResponseWriter, r *http.Request, rest string) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	slug, tail, hasTail := strings.Cut(strings.TrimSuffix(rest, "/"), "/")
	if slug == "" {
		http.NotFound(w, r)
		return
	}

	if !hasTail {
		h.redirectToCurrent(w, r, slug)
		return
	}

	requested, ok := strings.CutPrefix(tail, "release/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	h.renderVersion(w, r, slug, requested)
}

func (h *Handler) redirectToCurrent(w http.ResponseWriter, r *http.Request, slug string) {
	article, snap, err := h.service.Resolve(slug, "")
	if errors.Is(err, doiver.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Article not found.")
		return
	}
	if err != nil {
		h.logger.Error("resolve failed", "slug", slug, "error", err)
		respondError(w, http.StatusInternalServerError, "resolve failed")
		return
	}

	location := fmt.Sprintf("/articles/%s/release/%d/", article.Slug, snap.Version)
	http.Redirect(w, r, location, http.StatusFound)
}

func (h *Handler) renderVersion(w http.ResponseWriter, r *http.Request, slug string, requested string) {
	article, snap, err := h.service.Resolve(slug, requested)
	if errors.Is(err, doiver.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Article not found.")
		return
	}
	if err != nil {
		h.logger.Error("resolve failed", "slug", slug, "error", err)
		respondError(w, http.StatusInternalServerError, "resolve failed")
		return
	}

	_, snapshots, err := h.service.ListVersions(slug)
	if err != nil {
		h.logger.Error("listing versions failed", "slug", slug, "error", err)
		respondError(w, http.StatusInternalServerError, "resolve failed")
		return
	}

	respondSuccess(w, renderPayload(article, snap, snapshots, h.tokens.Issue()))
}

func renderPayload(article *model.Article, snap *model.Snapshot, snapshots []*model.Snapshot, token string) map[string]any {
	versions := make([]int64, len(snapshots))
	for i, s := range snapshots {
		versions[i] = s.Version
	}
	return map[string]any{
		"article_id":  article.ID,
		"slug":        article.Slug,
		"title":       article.Title,
		"doi":         article.DOI.String,
		"version":     snap.Version,
		"content":     snap.Content,
		"versions":    versions,
		"fetch_token": token,
	}
}
