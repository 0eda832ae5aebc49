// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"scholarly/internal/domain"
	"scholarly/internal/models"
)

// CategoryStore owns persisted category rows. It provides tree-aware
// queries and mutation primitives; tree invariants (cycle prevention,
// path recomputation, cascades) are enforced by the category engine.
type CategoryStore struct {
	db *sql.DB
}

// NewCategoryStore returns a new CategoryStore.
func NewCategoryStore(db *sql.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

const categoryColumns = `id, name, slug, description, parent_id, level, path,
	color, icon, is_active, is_system, sort_order, article_count, paper_count,
	meta_title, meta_description, created_at, updated_at`

// scanCategory scans a row into a Category struct.
func scanCategory(scanner interface{ Scan(...any) error }) (*models.Category, error) {
	var c models.Category
	err := scanner.Scan(
		&c.ID, &c.Name, &c.Slug, &c.Description, &c.ParentID, &c.Level, &c.Path,
		&c.Color, &c.Icon, &c.IsActive, &c.IsSystem, &c.SortOrder,
		&c.ArticleCount, &c.PaperCount,
		&c.MetaTitle, &c.MetaDescription, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// queryCategories runs a query expected to return category rows.
func (s *CategoryStore) queryCategories(query string, args ...any) ([]models.Category, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var items []models.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

// FindByID retrieves a category by ID. Returns nil if not found.
func (s *CategoryStore) FindByID(id uuid.UUID) (*models.Category, error) {
	row := s.db.QueryRow(`SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category by id: %w", err)
	}
	return c, nil
}

// FindBySlug retrieves a category by its globally unique slug.
func (s *CategoryStore) FindBySlug(slug string) (*models.Category, error) {
	row := s.db.QueryRow(`SELECT `+categoryColumns+` FROM categories WHERE slug = $1`, slug)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category by slug: %w", err)
	}
	return c, nil
}

// FindByPath retrieves a category by its materialized path.
func (s *CategoryStore) FindByPath(path string) (*models.Category, error) {
	row := s.db.QueryRow(`SELECT `+categoryColumns+` FROM categories WHERE path = $1`, path)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category by path: %w", err)
	}
	return c, nil
}

// Roots returns active root categories ordered by (sort_order, name).
func (s *CategoryStore) Roots() ([]models.Category, error) {
	return s.queryCategories(`
		SELECT ` + categoryColumns + ` FROM categories
		WHERE parent_id IS NULL AND is_active
		ORDER BY sort_order, name`)
}

// Children returns the direct children of a category ordered by
// (sort_order, name).
func (s *CategoryStore) Children(parentID uuid.UUID) ([]models.Category, error) {
	return s.queryCategories(`
		SELECT `+categoryColumns+` FROM categories
		WHERE parent_id = $1
		ORDER BY sort_order, name`, parentID)
}

// Descendants returns every category under the given node, ordered by
// (level, sort_order, name) so a flattened listing renders in hierarchical
// sequence. Lookup uses the materialized path as a prefix — correctness
// depends on path being kept exactly in sync on every structural mutation.
func (s *CategoryStore) Descendants(id uuid.UUID, includeSelf bool) ([]models.Category, error) {
	c, err := s.FindByID(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}

	if includeSelf {
		return s.queryCategories(`
			SELECT `+categoryColumns+` FROM categories
			WHERE id = $1 OR path LIKE $2
			ORDER BY level, sort_order, name`, id, c.Path+"/%")
	}
	return s.queryCategories(`
		SELECT `+categoryColumns+` FROM categories
		WHERE path LIKE $1
		ORDER BY level, sort_order, name`, c.Path+"/%")
}

// Ancestors walks parent references from the node up to the root and
// returns them root-first (breadcrumb order). The node itself is excluded.
func (s *CategoryStore) Ancestors(id uuid.UUID) ([]models.Category, error) {
	c, err := s.FindByID(id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}

	var ancestors []models.Category
	current := c.ParentID
	for current != nil {
		parent, err := s.FindByID(*current)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			break
		}
		ancestors = append([]models.Category{*parent}, ancestors...)
		current = parent.ParentID
	}
	return ancestors, nil
}

// ListActive returns all active categories in (level, sort_order, name)
// order. Used to build the nested tree.
func (s *CategoryStore) ListActive() ([]models.Category, error) {
	return s.queryCategories(`
		SELECT ` + categoryColumns + ` FROM categories
		WHERE is_active
		ORDER BY level, sort_order, name`)
}

// CategoryFilters narrows List results. Nil fields are ignored.
type CategoryFilters struct {
	IsActive   *bool
	IsSystem   *bool
	ParentID   *uuid.UUID
	Level      *int
	MinContent *int
	Color      *string
}

// List returns categories matching the filters with pagination, ordered by
// (level, sort_order, name).
func (s *CategoryStore) List(f CategoryFilters, limit, offset int) ([]models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE 1=1`
	var args []any

	add := func(clause string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(clause, len(args))
	}

	if f.IsActive != nil {
		add(` AND is_active = $%d`, *f.IsActive)
	}
	if f.IsSystem != nil {
		add(` AND is_system = $%d`, *f.IsSystem)
	}
	if f.ParentID != nil {
		add(` AND parent_id = $%d`, *f.ParentID)
	}
	if f.Level != nil {
		add(` AND level = $%d`, *f.Level)
	}
	if f.MinContent != nil {
		add(` AND article_count + paper_count >= $%d`, *f.MinContent)
	}
	if f.Color != nil {
		add(` AND color = $%d`, *f.Color)
	}

	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY level, sort_order, name LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return s.queryCategories(query, args...)
}

// Search matches active categories by name, description, or path
// (case-insensitive substring).
func (s *CategoryStore) Search(q string, limit, offset int) ([]models.Category, error) {
	pattern := "%" + q + "%"
	return s.queryCategories(`
		SELECT `+categoryColumns+` FROM categories
		WHERE is_active
		  AND (name ILIKE $1 OR description ILIKE $1 OR path ILIKE $1)
		ORDER BY level, sort_order, name
		LIMIT $2 OFFSET $3`, pattern, limit, offset)
}

// Popular returns active categories with at least minContent linked items,
// ordered by total content count descending.
func (s *CategoryStore) Popular(limit, minContent int) ([]models.Category, error) {
	return s.queryCategories(`
		SELECT `+categoryColumns+` FROM categories
		WHERE is_active AND article_count + paper_count >= $1
		ORDER BY article_count + paper_count DESC, name
		LIMIT $2`, minContent, limit)
}

// Empty returns active categories with no linked content.
func (s *CategoryStore) Empty() ([]models.Category, error) {
	return s.queryCategories(`
		SELECT ` + categoryColumns + ` FROM categories
		WHERE is_active AND article_count = 0 AND paper_count = 0
		ORDER BY level, name`)
}

// Create inserts a new category and returns it. A concurrent create that
// lost the slug race surfaces as domain.ErrConflict; the caller retries
// the unique-name loop.
func (s *CategoryStore) Create(c *models.Category) (*models.Category, error) {
	row := s.db.QueryRow(`
		INSERT INTO categories (name, slug, description, parent_id, level, path,
			color, icon, is_active, is_system, sort_order, meta_title, meta_description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+categoryColumns,
		c.Name, c.Slug, c.Description, c.ParentID, c.Level, c.Path,
		c.Color, c.Icon, c.IsActive, c.IsSystem, c.SortOrder,
		c.MetaTitle, c.MetaDescription,
	)
	result, err := scanCategory(row)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("create category: %w", domain.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return result, nil
}

// Update modifies an existing category's editable fields. Hierarchy fields
// (parent_id, path, level) are only written through UpdateTreePositions.
func (s *CategoryStore) Update(c *models.Category) error {
	_, err := s.db.Exec(`
		UPDATE categories SET
			name = $1, description = $2, color = $3, icon = $4,
			sort_order = $5, meta_title = $6, meta_description = $7,
			updated_at = NOW()
		WHERE id = $8
	`, c.Name, c.Description, c.Color, c.Icon, c.SortOrder,
		c.MetaTitle, c.MetaDescription, c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return nil
}

// TreePosition carries the recomputed hierarchy fields for one node
// during a move.
type TreePosition struct {
	ID       uuid.UUID
	ParentID *uuid.UUID
	Path     string
	Level    int
}

// UpdateTreePositions writes new parent/path/level values for multiple
// categories in a single transaction. The engine orders items
// ancestor-before-descendant; the transaction guarantees a move either
// completes fully or leaves the tree untouched.
func (s *CategoryStore) UpdateTreePositions(items []TreePosition) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		UPDATE categories SET parent_id = $1, path = $2, level = $3, updated_at = NOW()
		WHERE id = $4`)
	if err != nil {
		return fmt.Errorf("prepare tree update: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.Exec(item.ParentID, item.Path, item.Level, item.ID); err != nil {
			return fmt.Errorf("update tree position %s: %w", item.ID, err)
		}
	}

	return tx.Commit()
}

// SetActive flips is_active for multiple categories in one transaction.
// Used by the deactivation cascade.
func (s *CategoryStore) SetActive(ids []uuid.UUID, active bool) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE categories SET is_active = $1, updated_at = NOW() WHERE id = $2`)
	if err != nil {
		return fmt.Errorf("prepare set active: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.Exec(active, id); err != nil {
			return fmt.Errorf("set active %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// SortOrderItem represents a single entry in a bulk sort-order update.
type SortOrderItem struct {
	ID        uuid.UUID `json:"id"`
	SortOrder int       `json:"sort_order"`
}

// UpdateSortOrders updates sibling ordering for multiple categories in a
// transaction.
func (s *CategoryStore) UpdateSortOrders(items []SortOrderItem) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`UPDATE categories SET sort_order = $1, updated_at = NOW() WHERE id = $2`)
	if err != nil {
		return fmt.Errorf("prepare sort order: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.Exec(item.SortOrder, item.ID); err != nil {
			return fmt.Errorf("update sort order %s: %w", item.ID, err)
		}
	}

	return tx.Commit()
}

// RefreshCounts recomputes the per-node article and paper counts for one
// category from currently linked content and returns the updated row.
// Only published articles count; counts are not rolled up into ancestors.
func (s *CategoryStore) RefreshCounts(id uuid.UUID) (*models.Category, error) {
	row := s.db.QueryRow(`
		UPDATE categories SET
			article_count = (SELECT COUNT(*) FROM articles a WHERE a.category_id = categories.id AND a.is_published),
			paper_count   = (SELECT COUNT(*) FROM papers p WHERE p.category_id = categories.id),
			updated_at = NOW()
		WHERE id = $1
		RETURNING `+categoryColumns, id)
	c, err := scanCategory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("refresh counts: %w", err)
	}
	return c, nil
}

// RefreshAllCounts recomputes counts for every category and returns how
// many rows actually changed. Used for drift correction.
func (s *CategoryStore) RefreshAllCounts() (int, error) {
	result, err := s.db.Exec(`
		WITH fresh AS (
			SELECT c.id,
				(SELECT COUNT(*) FROM articles a WHERE a.category_id = c.id AND a.is_published) AS ac,
				(SELECT COUNT(*) FROM papers p WHERE p.category_id = c.id) AS pc
			FROM categories c
		)
		UPDATE categories c SET article_count = f.ac, paper_count = f.pc, updated_at = NOW()
		FROM fresh f
		WHERE f.id = c.id AND (c.article_count <> f.ac OR c.paper_count <> f.pc)`)
	if err != nil {
		return 0, fmt.Errorf("refresh all counts: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("refresh all counts affected: %w", err)
	}
	return int(n), nil
}

// HasChildren reports whether a category has any direct children.
func (s *CategoryStore) HasChildren(id uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM categories WHERE parent_id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has children: %w", err)
	}
	return exists, nil
}

// Delete removes a category by ID. The engine guards against deleting
// system categories, categories with children, or categories with content.
func (s *CategoryStore) Delete(id uuid.UUID) error {
	_, err := s.db.Exec(`DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// Stats returns tree-wide aggregate numbers.
func (s *CategoryStore) Stats() (*models.CategoryStats, error) {
	stats := &models.CategoryStats{ByLevel: make(map[int]int)}

	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE is_active),
		       COUNT(*) FILTER (WHERE parent_id IS NULL AND is_active),
		       COALESCE(MAX(level), 0)
		FROM categories`).Scan(
		&stats.TotalCategories, &stats.ActiveCategories,
		&stats.RootCategories, &stats.MaxDepth,
	)
	if err != nil {
		return nil, fmt.Errorf("category stats: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT level, COUNT(*) FROM categories
		WHERE is_active GROUP BY level`)
	if err != nil {
		return nil, fmt.Errorf("category stats by level: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var level, count int
		if err := rows.Scan(&level, &count); err != nil {
			return nil, fmt.Errorf("scan level count: %w", err)
		}
		stats.ByLevel[level] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	top, err := s.Popular(5, 1)
	if err != nil {
		return nil, err
	}
	for _, c := range top {
		stats.TopCategories = append(stats.TopCategories, models.CategoryRank{
			ID:           c.ID,
			Name:         c.Name,
			Path:         c.Path,
			ContentCount: c.TotalContentCount(),
		})
	}

	return stats, nil
}
