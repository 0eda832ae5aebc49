// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"scholarly/internal/cache"
	"scholarly/internal/category"
	"scholarly/internal/store"
)

// Categories serves the category tree endpoints. The nested tree is cached
// in Valkey; every structural mutation invalidates it.
type Categories struct {
	engine *category.Engine
	tree   *cache.TreeCache
}

// NewCategories creates the category handler group.
func NewCategories(engine *category.Engine, tree *cache.TreeCache) *Categories {
	return &Categories{engine: engine, tree: tree}
}

// Create handles POST /categories.
func (h *Categories) Create(w http.ResponseWriter, r *http.Request) {
	var in category.CreateInput
	if !decodeBody(w, r, &in) {
		return
	}

	created, err := h.engine.Create(in)
	if err != nil {
		writeError(w, err)
		return
	}

	h.tree.Invalidate(r.Context())
	writeJSON(w, http.StatusCreated, created)
}

// List handles GET /categories with optional filters.
func (h *Categories) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	filters := store.CategoryFilters{
		IsActive:   queryBool(r, "is_active"),
		IsSystem:   queryBool(r, "is_system"),
		ParentID:   queryUUIDPtr(r, "parent_id"),
		Level:      queryIntPtr(r, "level"),
		MinContent: queryIntPtr(r, "min_content"),
		Color:      queryStrPtr(r, "color"),
	}

	items, err := h.engine.List(filters, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Tree handles GET /categories/tree, serving the cached nested tree when
// available.
func (h *Categories) Tree(w http.ResponseWriter, r *http.Request) {
	if data, ok := h.tree.Get(r.Context()); ok {
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
		return
	}

	tree, err := h.engine.Tree()
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := json.Marshal(tree)
	if err != nil {
		writeError(w, err)
		return
	}
	h.tree.Set(r.Context(), data)

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// Roots handles GET /categories/roots.
func (h *Categories) Roots(w http.ResponseWriter, r *http.Request) {
	items, err := h.engine.Roots()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Search handles GET /categories/search?q=.
func (h *Categories) Search(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	items, err := h.engine.Search(r.URL.Query().Get("q"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Popular handles GET /categories/popular.
func (h *Categories) Popular(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	minContent := queryInt(r, "min_content", 1)
	items, err := h.engine.Popular(limit, minContent)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Empty handles GET /categories/empty.
func (h *Categories) Empty(w http.ResponseWriter, r *http.Request) {
	items, err := h.engine.Empty()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Stats handles GET /categories/stats.
func (h *Categories) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Get handles GET /categories/{id}.
func (h *Categories) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	c, err := h.engine.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GetBySlug handles GET /categories/slug/{slug}.
func (h *Categories) GetBySlug(w http.ResponseWriter, r *http.Request) {
	c, err := h.engine.GetBySlug(chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GetByPath handles GET /categories/path/*, where the wildcard is the
// materialized path without its leading slash.
func (h *Categories) GetByPath(w http.ResponseWriter, r *http.Request) {
	c, err := h.engine.GetByPath("/" + chi.URLParam(r, "*"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Children handles GET /categories/{id}/children.
func (h *Categories) Children(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	items, err := h.engine.Children(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Descendants handles GET /categories/{id}/descendants.
func (h *Categories) Descendants(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	includeSelf := false
	if b := queryBool(r, "include_self"); b != nil {
		includeSelf = *b
	}
	items, err := h.engine.Descendants(id, includeSelf)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Ancestors handles GET /categories/{id}/ancestors, returning the chain
// root-first for breadcrumbs.
func (h *Categories) Ancestors(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	items, err := h.engine.Ancestors(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Update handles PUT /categories/{id}.
func (h *Categories) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var in category.UpdateInput
	if !decodeBody(w, r, &in) {
		return
	}

	updated, err := h.engine.Update(id, in)
	if err != nil {
		writeError(w, err)
		return
	}

	h.tree.Invalidate(r.Context())
	writeJSON(w, http.StatusOK, updated)
}

// moveRequest is the body for PUT /categories/{id}/move. A null parent_id
// moves the category to the root.
type moveRequest struct {
	ParentID *uuid.UUID `json:"parent_id"`
}

// Move handles PUT /categories/{id}/move.
func (h *Categories) Move(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req moveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	moved, err := h.engine.Move(id, req.ParentID)
	if err != nil {
		writeError(w, err)
		return
	}

	h.tree.Invalidate(r.Context())
	slog.Info("category moved", "id", id, "parent_id", req.ParentID, "path", moved.Path)
	writeJSON(w, http.StatusOK, moved)
}

// Activate handles POST /categories/{id}/activate.
func (h *Categories) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	c, err := h.engine.Activate(id)
	if err != nil {
		writeError(w, err)
		return
	}

	h.tree.Invalidate(r.Context())
	writeJSON(w, http.StatusOK, c)
}

// Deactivate handles POST /categories/{id}/deactivate.
func (h *Categories) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	c, err := h.engine.Deactivate(id)
	if err != nil {
		writeError(w, err)
		return
	}

	h.tree.Invalidate(r.Context())
	writeJSON(w, http.StatusOK, c)
}

// Delete handles DELETE /categories/{id}.
func (h *Categories) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.engine.Delete(id); err != nil {
		writeError(w, err)
		return
	}

	h.tree.Invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Reorder handles PUT /categories/reorder with a list of id/sort_order
// pairs.
func (h *Categories) Reorder(w http.ResponseWriter, r *http.Request) {
	var items []store.SortOrderItem
	if !decodeBody(w, r, &items) {
		return
	}
	if err := h.engine.Reorder(items); err != nil {
		writeError(w, err)
		return
	}

	h.tree.Invalidate(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"updated": len(items)})
}

// RefreshCounts handles POST /categories/{id}/refresh-counts.
func (h *Categories) RefreshCounts(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	c, err := h.engine.RefreshCounts(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// RefreshAllCounts handles POST /categories/refresh-counts, the
// drift-correction sweep over every category.
func (h *Categories) RefreshAllCounts(w http.ResponseWriter, r *http.Request) {
	updated, err := h.engine.RefreshAllCounts()
	if err != nil {
		writeError(w, err)
		return
	}
	slog.Info("category counts refreshed", "updated", updated)
	writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}
