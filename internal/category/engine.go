// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package category implements the tree engine on top of the category store.
// The store persists rows; the engine enforces the tree invariants: global
// slug uniqueness, path/level consistency, cycle prevention on reparent,
// cascading deactivation, and count propagation up the ancestor chain.
package category

import (
	"errors"
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"scholarly/internal/domain"
	"scholarly/internal/models"
	"scholarly/internal/slug"
	"scholarly/internal/store"
)

// slugFallback is used when a category name yields an empty slug.
const slugFallback = "category"

// createAttempts bounds the retry loop for slug races between concurrent
// creates of the same name.
const createAttempts = 3

var colorFormat = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Store is the persistence surface the engine needs. *store.CategoryStore
// satisfies it; tests substitute an in-memory fake.
type Store interface {
	FindByID(id uuid.UUID) (*models.Category, error)
	FindBySlug(slug string) (*models.Category, error)
	FindByPath(path string) (*models.Category, error)
	Roots() ([]models.Category, error)
	Children(parentID uuid.UUID) ([]models.Category, error)
	Descendants(id uuid.UUID, includeSelf bool) ([]models.Category, error)
	Ancestors(id uuid.UUID) ([]models.Category, error)
	ListActive() ([]models.Category, error)
	List(f store.CategoryFilters, limit, offset int) ([]models.Category, error)
	Search(q string, limit, offset int) ([]models.Category, error)
	Popular(limit, minContent int) ([]models.Category, error)
	Empty() ([]models.Category, error)
	Create(c *models.Category) (*models.Category, error)
	Update(c *models.Category) error
	UpdateTreePositions(items []store.TreePosition) error
	SetActive(ids []uuid.UUID, active bool) error
	UpdateSortOrders(items []store.SortOrderItem) error
	RefreshCounts(id uuid.UUID) (*models.Category, error)
	RefreshAllCounts() (int, error)
	HasChildren(id uuid.UUID) (bool, error)
	Delete(id uuid.UUID) error
	Stats() (*models.CategoryStats, error)
}

// Engine orchestrates category tree operations.
type Engine struct {
	store Store
}

// New creates a category tree engine.
func New(s Store) *Engine {
	return &Engine{store: s}
}

// ComposePath derives a node's materialized path from its parent. Roots
// get "/" + slug; children get the parent's path + "/" + slug.
func ComposePath(parent *models.Category, s string) string {
	if parent == nil {
		return "/" + s
	}
	return parent.Path + "/" + s
}

// ChildLevel derives a node's depth from its parent.
func ChildLevel(parent *models.Category) int {
	if parent == nil {
		return 0
	}
	return parent.Level + 1
}

// CreateInput carries the fields for a new category.
type CreateInput struct {
	Name            string     `json:"name"`
	Slug            string     `json:"slug"`
	Description     *string    `json:"description"`
	ParentID        *uuid.UUID `json:"parent_id"`
	Color           *string    `json:"color"`
	Icon            *string    `json:"icon"`
	SortOrder       int        `json:"sort_order"`
	MetaTitle       *string    `json:"meta_title"`
	MetaDescription *string    `json:"meta_description"`
}

// Validate checks field-level constraints before any store access.
func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Slug, validation.Length(0, 120)),
		validation.Field(&in.Color, validation.Match(colorFormat).Error("must be a hex color like #1A2B3C")),
		validation.Field(&in.MetaTitle, validation.Length(0, 200)),
		validation.Field(&in.MetaDescription, validation.Length(0, 300)),
	)
}

// Create adds a category to the tree. The slug is derived from the name
// when absent and de-duplicated globally by numeric suffix. Parent lookup
// failures map to NotFound; an inactive parent is InvalidState.
func (e *Engine) Create(in CreateInput) (*models.Category, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", err, domain.ErrInvalidInput)
	}

	var parent *models.Category
	if in.ParentID != nil {
		var err error
		parent, err = e.store.FindByID(*in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("parent category %s: %w", in.ParentID, domain.ErrNotFound)
		}
		if !parent.IsActive {
			return nil, fmt.Errorf("parent category %s is inactive: %w", parent.Slug, domain.ErrInvalidState)
		}
	}

	seed := in.Slug
	if seed == "" {
		seed = in.Name
	}
	base := slug.Derive(seed, slugFallback)

	// The unique-slug check and the insert race against concurrent creates
	// of the same name. The database's unique constraint is the arbiter:
	// on conflict, re-run the dedup loop.
	var created *models.Category
	for attempt := 0; attempt < createAttempts; attempt++ {
		unique, err := e.uniqueSlug(base)
		if err != nil {
			return nil, err
		}

		created, err = e.store.Create(&models.Category{
			Name:            in.Name,
			Slug:            unique,
			Description:     in.Description,
			ParentID:        in.ParentID,
			Level:           ChildLevel(parent),
			Path:            ComposePath(parent, unique),
			Color:           in.Color,
			Icon:            in.Icon,
			IsActive:        true,
			SortOrder:       in.SortOrder,
			MetaTitle:       in.MetaTitle,
			MetaDescription: in.MetaDescription,
		})
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}
	if created == nil {
		return nil, fmt.Errorf("create category %q: %w", in.Name, domain.ErrConflict)
	}

	if parent != nil {
		if err := e.refreshUp(parent.ID); err != nil {
			return nil, err
		}
	}
	return created, nil
}

// uniqueSlug appends -1, -2, ... to base until no category holds the slug.
func (e *Engine) uniqueSlug(base string) (string, error) {
	candidate := base
	for i := 1; ; i++ {
		existing, err := e.store.FindBySlug(candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// UpdateInput carries partial field edits. Nil fields are left unchanged.
type UpdateInput struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	Color           *string `json:"color"`
	Icon            *string `json:"icon"`
	SortOrder       *int    `json:"sort_order"`
	MetaTitle       *string `json:"meta_title"`
	MetaDescription *string `json:"meta_description"`
}

// Validate checks the fields that carry format constraints.
func (in UpdateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Length(1, 100)),
		validation.Field(&in.Color, validation.Match(colorFormat).Error("must be a hex color like #1A2B3C")),
		validation.Field(&in.MetaTitle, validation.Length(0, 200)),
		validation.Field(&in.MetaDescription, validation.Length(0, 300)),
	)
}

// Update edits a category's cosmetic fields. Hierarchy is deliberately out
// of reach here: a rename does not touch slug or path, only Move recomputes
// them, so stored paths stay valid across cosmetic edits.
func (e *Engine) Update(id uuid.UUID, in UpdateInput) (*models.Category, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", err, domain.ErrInvalidInput)
	}

	c, err := e.store.FindByID(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
	}

	if in.Name != nil {
		c.Name = *in.Name
	}
	if in.Description != nil {
		c.Description = in.Description
	}
	if in.Color != nil {
		c.Color = in.Color
	}
	if in.Icon != nil {
		c.Icon = in.Icon
	}
	if in.SortOrder != nil {
		c.SortOrder = *in.SortOrder
	}
	if in.MetaTitle != nil {
		c.MetaTitle = in.MetaTitle
	}
	if in.MetaDescription != nil {
		c.MetaDescription = in.MetaDescription
	}

	if err := e.store.Update(c); err != nil {
		return nil, err
	}
	return e.store.FindByID(id)
}

// Move reparents a category. The new parent must exist, be active, and not
// be the node itself or any of its descendants. Paths and levels are
// recomputed for the node and the whole subtree in ancestor-before-descendant
// order, then written in one transaction. Counts are refreshed on the old
// and new parent chains.
func (e *Engine) Move(id uuid.UUID, newParentID *uuid.UUID) (*models.Category, error) {
	c, err := e.store.FindByID(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
	}

	// Descendant set computed before the move, both for the cycle check and
	// for subtree recomputation. The store returns it level-ascending.
	descendants, err := e.store.Descendants(id, false)
	if err != nil {
		return nil, err
	}

	var parent *models.Category
	if newParentID != nil {
		if *newParentID == id {
			return nil, fmt.Errorf("category cannot be its own parent: %w", domain.ErrInvalidState)
		}
		for _, d := range descendants {
			if d.ID == *newParentID {
				return nil, fmt.Errorf("cannot move under own descendant: %w", domain.ErrInvalidState)
			}
		}

		parent, err = e.store.FindByID(*newParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, fmt.Errorf("target parent %s: %w", newParentID, domain.ErrNotFound)
		}
		if !parent.IsActive {
			return nil, fmt.Errorf("target parent %s is inactive: %w", parent.Slug, domain.ErrInvalidState)
		}
	}

	type position struct {
		path  string
		level int
	}
	updated := map[uuid.UUID]position{
		id: {path: ComposePath(parent, c.Slug), level: ChildLevel(parent)},
	}

	positions := []store.TreePosition{{
		ID:       id,
		ParentID: newParentID,
		Path:     updated[id].path,
		Level:    updated[id].level,
	}}

	// Level-ascending order guarantees each descendant's parent is already
	// in the map when its own path is derived.
	for _, d := range descendants {
		pp, ok := updated[*d.ParentID]
		if !ok {
			return nil, fmt.Errorf("descendant %s has parent outside subtree", d.Slug)
		}
		updated[d.ID] = position{path: pp.path + "/" + d.Slug, level: pp.level + 1}
		positions = append(positions, store.TreePosition{
			ID:       d.ID,
			ParentID: d.ParentID,
			Path:     updated[d.ID].path,
			Level:    updated[d.ID].level,
		})
	}

	if err := e.store.UpdateTreePositions(positions); err != nil {
		return nil, err
	}

	if c.ParentID != nil {
		if err := e.refreshUp(*c.ParentID); err != nil {
			return nil, err
		}
	}
	if newParentID != nil {
		if err := e.refreshUp(*newParentID); err != nil {
			return nil, err
		}
	}

	return e.store.FindByID(id)
}

// Activate enables a single category. It does not cascade to descendants,
// and it refuses to activate a node whose parent is inactive: activation is
// top-down, one node at a time.
func (e *Engine) Activate(id uuid.UUID) (*models.Category, error) {
	c, err := e.store.FindByID(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
	}

	if c.ParentID != nil {
		parent, err := e.store.FindByID(*c.ParentID)
		if err != nil {
			return nil, err
		}
		if parent != nil && !parent.IsActive {
			return nil, fmt.Errorf("parent %s is inactive: %w", parent.Slug, domain.ErrInvalidState)
		}
	}

	if err := e.store.SetActive([]uuid.UUID{id}, true); err != nil {
		return nil, err
	}
	return e.store.FindByID(id)
}

// Deactivate disables a category and every descendant. An inactive subtree
// never contains active nodes.
func (e *Engine) Deactivate(id uuid.UUID) (*models.Category, error) {
	c, err := e.store.FindByID(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
	}

	descendants, err := e.store.Descendants(id, false)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(descendants)+1)
	ids = append(ids, id)
	for _, d := range descendants {
		ids = append(ids, d.ID)
	}

	if err := e.store.SetActive(ids, false); err != nil {
		return nil, err
	}
	return e.store.FindByID(id)
}

// Delete removes a category. Only a non-system leaf with zero linked
// content is removable.
func (e *Engine) Delete(id uuid.UUID) error {
	c, err := e.store.FindByID(id)
	if err != nil {
		return err
	}
	if c == nil {
		return fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
	}
	if c.IsSystem {
		return fmt.Errorf("cannot delete system category %s: %w", c.Slug, domain.ErrInvalidState)
	}

	hasChildren, err := e.store.HasChildren(id)
	if err != nil {
		return err
	}
	if hasChildren {
		return fmt.Errorf("category %s has children: %w", c.Slug, domain.ErrInvalidState)
	}
	if c.TotalContentCount() > 0 {
		return fmt.Errorf("category %s has %d linked items: %w", c.Slug, c.TotalContentCount(), domain.ErrInvalidState)
	}

	return e.store.Delete(id)
}

// Get returns a category by ID.
func (e *Engine) Get(id uuid.UUID) (*models.Category, error) {
	c, err := e.store.FindByID(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

// GetBySlug returns a category by its globally unique slug.
func (e *Engine) GetBySlug(s string) (*models.Category, error) {
	c, err := e.store.FindBySlug(s)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("category %q: %w", s, domain.ErrNotFound)
	}
	return c, nil
}

// GetByPath returns a category by its materialized path.
func (e *Engine) GetByPath(path string) (*models.Category, error) {
	c, err := e.store.FindByPath(path)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("category path %q: %w", path, domain.ErrNotFound)
	}
	return c, nil
}

// Children returns the direct children of a category.
func (e *Engine) Children(id uuid.UUID) ([]models.Category, error) {
	if _, err := e.Get(id); err != nil {
		return nil, err
	}
	return e.store.Children(id)
}

// Descendants returns the whole subtree below a category, flattened in
// hierarchical order.
func (e *Engine) Descendants(id uuid.UUID, includeSelf bool) ([]models.Category, error) {
	if _, err := e.Get(id); err != nil {
		return nil, err
	}
	return e.store.Descendants(id, includeSelf)
}

// Ancestors returns the chain from the root down to (excluding) the node.
func (e *Engine) Ancestors(id uuid.UUID) ([]models.Category, error) {
	if _, err := e.Get(id); err != nil {
		return nil, err
	}
	return e.store.Ancestors(id)
}

// Tree returns active root categories with Children populated recursively.
func (e *Engine) Tree() ([]models.Category, error) {
	items, err := e.store.ListActive()
	if err != nil {
		return nil, err
	}
	return buildTree(items), nil
}

// buildTree nests a flat, hierarchically ordered category list. Children
// of inactive parents are unreachable and drop out of the result.
func buildTree(items []models.Category) []models.Category {
	children := make(map[uuid.UUID][]models.Category)
	roots := []models.Category{}
	for _, c := range items {
		if c.ParentID == nil {
			roots = append(roots, c)
		} else {
			children[*c.ParentID] = append(children[*c.ParentID], c)
		}
	}

	var attach func(c *models.Category)
	attach = func(c *models.Category) {
		kids := children[c.ID]
		for i := range kids {
			attach(&kids[i])
		}
		c.Children = kids
	}
	for i := range roots {
		attach(&roots[i])
	}
	return roots
}

// List returns categories matching the filters.
func (e *Engine) List(f store.CategoryFilters, limit, offset int) ([]models.Category, error) {
	return e.store.List(f, limit, offset)
}

// Roots returns active top-level categories.
func (e *Engine) Roots() ([]models.Category, error) {
	return e.store.Roots()
}

// Search matches active categories by name, description, or path.
func (e *Engine) Search(q string, limit, offset int) ([]models.Category, error) {
	if q == "" {
		return nil, fmt.Errorf("empty search query: %w", domain.ErrInvalidInput)
	}
	return e.store.Search(q, limit, offset)
}

// Popular returns active categories ranked by content count.
func (e *Engine) Popular(limit, minContent int) ([]models.Category, error) {
	return e.store.Popular(limit, minContent)
}

// Empty returns active categories with no linked content.
func (e *Engine) Empty() ([]models.Category, error) {
	return e.store.Empty()
}

// Stats returns tree-wide aggregate numbers.
func (e *Engine) Stats() (*models.CategoryStats, error) {
	return e.store.Stats()
}

// Reorder applies new sibling sort orders in bulk.
func (e *Engine) Reorder(items []store.SortOrderItem) error {
	if len(items) == 0 {
		return fmt.Errorf("no sort order items: %w", domain.ErrInvalidInput)
	}
	return e.store.UpdateSortOrders(items)
}

// RefreshCounts recomputes per-node content counts for a category and
// walks the refresh up its ancestor chain. Counts are per-node, never
// rolled up: a parent's count reflects only its own direct content.
func (e *Engine) RefreshCounts(id uuid.UUID) (*models.Category, error) {
	c, err := e.store.RefreshCounts(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("category %s: %w", id, domain.ErrNotFound)
	}

	ancestors, err := e.store.Ancestors(id)
	if err != nil {
		return nil, err
	}
	for _, a := range ancestors {
		if _, err := e.store.RefreshCounts(a.ID); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// RefreshAllCounts recomputes counts for every category, returning how
// many rows drifted. Intended for scheduled drift correction.
func (e *Engine) RefreshAllCounts() (int, error) {
	return e.store.RefreshAllCounts()
}

// refreshUp recomputes counts for a node and each of its ancestors.
func (e *Engine) refreshUp(id uuid.UUID) error {
	if _, err := e.store.RefreshCounts(id); err != nil {
		return err
	}
	ancestors, err := e.store.Ancestors(id)
	if err != nil {
		return err
	}
	for _, a := range ancestors {
		if _, err := e.store.RefreshCounts(a.ID); err != nil {
			return err
		}
	}
	return nil
}
