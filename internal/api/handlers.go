package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/orgsync/internal/models"
	"github.com/starford/orgsync/internal/orgservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *orgservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *orgservice.Service) *Handler {
	return &Handler{svc: svc}
}

// urlParam returns a decoded route parameter. Document paths arrive
// percent-encoded (e.g. %2Fnotes%2Fwork.org).
func urlParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List documents with optional pagination and tag filter
//	@Tags			documents
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Success		200		{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListDocuments(r.Context(), limit, offset, q.Get("tag"))
	if err != nil {
		writeError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: items, Total: total})
}

// GetDocument handles GET /api/documents/{id}.
//
//	@Summary		Get a document by id or encoded path
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document id or path"
//	@Success		200	{object}	DocumentDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.GetDocument(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeError(w, "get document", err)
		return
	}
	w.Header().Set("ETag", `"`+doc.ETag+`"`)
	writeJSON(w, http.StatusOK, doc)
}

// GetHeadline handles GET /api/documents/{id}/headlines/{headline}.
//
//	@Summary		Get one headline of a document
//	@Tags			documents
//	@Produce		json
//	@Param			id			path		string	true	"Document id"
//	@Param			headline	path		string	true	"Dotted headline id"
//	@Success		200			{object}	HeadlineDetail
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id}/headlines/{headline} [get]
func (h *Handler) GetHeadline(w http.ResponseWriter, r *http.Request) {
	ref := models.HeadlineRef{DocumentID: urlParam(r, "id"), HeadlineID: urlParam(r, "headline")}
	hl, err := h.svc.GetHeadline(r.Context(), ref)
	if err != nil {
		writeError(w, "get headline", err)
		return
	}
	w.Header().Set("ETag", `"`+hl.ETag+`"`)
	writeJSON(w, http.StatusOK, hl)
}

// DocumentForHeadline handles GET /api/headlines/{headline}/document.
//
//	@Summary		Find the first document containing a headline id
//	@Tags			documents
//	@Produce		json
//	@Param			headline	path		string	true	"Dotted headline id"
//	@Success		200			{object}	DocumentListItem
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/headlines/{headline}/document [get]
func (h *Handler) DocumentForHeadline(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "headline")
	if _, err := models.ParseHeadlineID(id); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	doc, err := h.svc.DocumentForHeadline(r.Context(), id)
	if err != nil {
		writeError(w, "document for headline", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// ListTags handles GET /api/tags.
//
//	@Summary		List tags with usage counts
//	@Tags			metadata
//	@Produce		json
//	@Success		200	{object}	TagListResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TagListResponse{Tags: h.svc.Tags(r.Context())})
}

// HeadlinesWithTag handles GET /api/tags/{name}/headlines.
//
//	@Summary		List headlines declaring a tag
//	@Tags			metadata
//	@Produce		json
//	@Param			name	path		string	true	"Tag"
//	@Success		200		{object}	HeadlineListResponse
//	@Security		BearerAuth
//	@Router			/tags/{name}/headlines [get]
func (h *Handler) HeadlinesWithTag(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HeadlineListResponse{Headlines: h.svc.HeadlinesWithTag(r.Context(), urlParam(r, "name"))})
}

// ListCategories handles GET /api/categories.
//
//	@Summary		List categories with usage counts
//	@Tags			metadata
//	@Produce		json
//	@Success		200	{object}	CategoryListResponse
//	@Security		BearerAuth
//	@Router			/categories [get]
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, CategoryListResponse{Categories: h.svc.Categories(r.Context())})
}

// HeadlinesWithCategory handles GET /api/categories/{name}/headlines.
//
//	@Summary		List headlines in a category
//	@Tags			metadata
//	@Produce		json
//	@Param			name	path		string	true	"Category"
//	@Success		200		{object}	HeadlineListResponse
//	@Security		BearerAuth
//	@Router			/categories/{name}/headlines [get]
func (h *Handler) HeadlinesWithCategory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HeadlineListResponse{Headlines: h.svc.HeadlinesWithCategory(r.Context(), urlParam(r, "name"))})
}

// TodoKeywords handles GET /api/todo-keywords.
//
//	@Summary		Get the TODO configuration, globally or for one document
//	@Tags			metadata
//	@Produce		json
//	@Param			document	query		string	false	"Document id"
//	@Success		200			{object}	models.TodoConfiguration
//	@Failure		404			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/todo-keywords [get]
func (h *Handler) TodoKeywords(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.TodoKeywords(r.Context(), r.URL.Query().Get("document"))
	if err != nil {
		writeError(w, "todo keywords", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// Updates handles GET /api/updates.
//
//	@Summary		Change records after a sequence number
//	@Tags			feed
//	@Produce		json
//	@Param			since		query		int		false	"Return records after this sequence number"
//	@Param			document	query		string	false	"Restrict to one document"
//	@Success		200			{object}	UpdateListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/updates [get]
func (h *Handler) Updates(w http.ResponseWriter, r *http.Request) {
	var since uint64
	if s := r.URL.Query().Get("since"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("since must be a non-negative integer"))
			return
		}
		since = n
	}
	updates := h.svc.Updates(r.Context(), since, r.URL.Query().Get("document"))
	writeJSON(w, http.StatusOK, UpdateListResponse{Updates: updates, LastSeq: h.svc.Stats(r.Context()).LastSeq})
}

// Failures handles GET /api/failures.
//
//	@Summary		Paths that currently fail to load
//	@Tags			feed
//	@Produce		json
//	@Success		200	{object}	FailureListResponse
//	@Security		BearerAuth
//	@Router			/failures [get]
func (h *Handler) Failures(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FailureListResponse{Failures: h.svc.Failures(r.Context())})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across headlines
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// GetPaths handles GET /api/paths.
//
//	@Summary		List monitored paths
//	@Tags			coverage
//	@Produce		json
//	@Success		200	{object}	PathsResponse
//	@Security		BearerAuth
//	@Router			/paths [get]
func (h *Handler) GetPaths(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PathsResponse{Paths: h.svc.Paths(r.Context())})
}

// PutPaths handles PUT /api/paths.
//
//	@Summary		Replace the monitored paths
//	@Tags			coverage
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PathsRequest	true	"New monitored paths"
//	@Success		200		{object}	PathsResponse
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/paths [put]
func (h *Handler) PutPaths(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req PathsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.svc.SetPaths(r.Context(), req.Paths); err != nil {
		writeError(w, "set paths", err)
		return
	}
	writeJSON(w, http.StatusOK, PathsResponse{Paths: h.svc.Paths(r.Context())})
}
