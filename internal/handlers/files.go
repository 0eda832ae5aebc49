// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"scholarly/internal/files"
	"scholarly/internal/store"
)

// Files serves the file storage endpoints: upload, download, associations,
// visibility, and maintenance.
type Files struct {
	engine    *files.Engine
	maxUpload int64
}

// NewFiles creates the file handler group. maxUpload caps the multipart
// request body size.
func NewFiles(engine *files.Engine, maxUpload int64) *Files {
	return &Files{engine: engine, maxUpload: maxUpload}
}

// Upload handles POST /files: a multipart upload with optional metadata
// fields. Ingestion is idempotent by content, so re-uploading known bytes
// returns the existing record.
func (h *Files) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1024)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
			"error": fmt.Sprintf("upload exceeds limit of %d bytes", h.maxUpload),
		})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no file provided"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read file"})
		return
	}

	isPublic := true
	if v := r.FormValue("is_public"); v != "" {
		isPublic, _ = strconv.ParseBool(v)
	}

	in := files.IngestInput{
		Data:             data,
		OriginalFilename: header.Filename,
		ContentType:      header.Header.Get("Content-Type"),
		IsPublic:         isPublic,
		ArticleID:        formUUID(r, "article_id"),
		PaperID:          formUUID(r, "paper_id"),
		Description:      formStrPtr(r, "description"),
		AltText:          formStrPtr(r, "alt_text"),
	}

	record, err := h.engine.Ingest(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	// Upload is idempotent by content: a re-upload of known bytes returns
	// the existing record, so the response is 200 either way.
	slog.Info("file ingested", "id", record.ID, "hash", record.FileHash, "type", record.FileType)
	writeJSON(w, http.StatusOK, record)
}

// List handles GET /files with optional filters.
func (h *Files) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	filters := store.FileFilters{
		FileType:     queryStrPtr(r, "file_type"),
		IsPublic:     queryBool(r, "is_public"),
		ArticleID:    queryUUIDPtr(r, "article_id"),
		PaperID:      queryUUIDPtr(r, "paper_id"),
		MimeType:     queryStrPtr(r, "mime_type"),
		Extension:    queryStrPtr(r, "extension"),
		HasThumbnail: queryBool(r, "has_thumbnail"),
	}
	if v := queryIntPtr(r, "min_size"); v != nil {
		size := int64(*v)
		filters.MinSize = &size
	}
	if v := queryIntPtr(r, "max_size"); v != nil {
		size := int64(*v)
		filters.MaxSize = &size
	}

	items, err := h.engine.List(filters, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Search handles GET /files/search?q=.
func (h *Files) Search(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	items, err := h.engine.Search(r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Popular handles GET /files/popular.
func (h *Files) Popular(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	minDownloads := queryInt(r, "min_downloads", 1)
	items, err := h.engine.Popular(minDownloads, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Orphaned handles GET /files/orphaned.
func (h *Files) Orphaned(w http.ResponseWriter, r *http.Request) {
	items, err := h.engine.Orphaned()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// CleanupOrphaned handles POST /files/cleanup-orphaned.
func (h *Files) CleanupOrphaned(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.engine.CleanupOrphaned(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	slog.Info("orphaned files cleaned up", "deleted", deleted)
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// Stats handles GET /files/stats.
func (h *Files) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Get handles GET /files/{id}.
func (h *Files) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	f, err := h.engine.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// Download handles GET /files/{id}/download, streaming the blob with its
// original filename and bumping the download counter.
func (h *Files) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	data, record, err := h.engine.Download(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", record.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.OriginalFilename))
	w.Write(data)
}

// Thumbnail handles GET /files/{id}/thumbnail.
func (h *Files) Thumbnail(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	data, err := h.engine.Thumbnail(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// Update handles PUT /files/{id} for metadata edits.
func (h *Files) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var in files.UpdateInput
	if !decodeBody(w, r, &in) {
		return
	}

	updated, err := h.engine.Update(id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// associateRequest is the body for PUT /files/{id}/associate.
type associateRequest struct {
	Kind     string    `json:"kind"`
	TargetID uuid.UUID `json:"target_id"`
}

// Associate handles PUT /files/{id}/associate.
func (h *Files) Associate(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req associateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	f, err := h.engine.Associate(id, req.Kind, req.TargetID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// RemoveAssociations handles DELETE /files/{id}/associations.
func (h *Files) RemoveAssociations(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	f, err := h.engine.RemoveAssociations(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// visibilityRequest is the body for PUT /files/visibility.
type visibilityRequest struct {
	IDs      []uuid.UUID `json:"ids"`
	IsPublic bool        `json:"is_public"`
}

// SetVisibility handles PUT /files/visibility, a bulk flip.
func (h *Files) SetVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	updated, err := h.engine.SetVisibility(req.IDs, req.IsPublic)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// ByArticle handles GET /files/article/{id}.
func (h *Files) ByArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	items, err := h.engine.ByArticle(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// ByPaper handles GET /files/paper/{id}.
func (h *Files) ByPaper(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	items, err := h.engine.ByPaper(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Delete handles DELETE /files/{id}.
func (h *Files) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.engine.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// formUUID reads an optional UUID form field.
func formUUID(r *http.Request, key string) *uuid.UUID {
	v := r.FormValue(key)
	if v == "" {
		return nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil
	}
	return &id
}

// formStrPtr reads an optional string form field.
func formStrPtr(r *http.Request, key string) *string {
	v := r.FormValue(key)
	if v == "" {
		return nil
	}
	return &v
}
