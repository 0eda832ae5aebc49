// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// Category represents a node in the hierarchical category tree.
// Path and Level are denormalized: they are recomputed on every structural
// change (create, move) and never edited directly. Path is a true prefix
// encoding of the tree, so descendant lookups reduce to prefix queries.
type Category struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug"`
	Description *string    `json:"description,omitempty"`
	ParentID    *uuid.UUID `json:"parent_id"`
	Level       int        `json:"level"`
	Path        string     `json:"path"`
	Color       *string    `json:"color,omitempty"`
	Icon        *string    `json:"icon,omitempty"`
	IsActive    bool       `json:"is_active"`
	IsSystem    bool       `json:"is_system"`
	SortOrder   int        `json:"sort_order"`

	// Denormalized per-node content counts, refreshed on demand.
	// A node's counts cover only its directly linked content, not its subtree.
	ArticleCount int `json:"article_count"`
	PaperCount   int `json:"paper_count"`

	MetaTitle       *string `json:"meta_title,omitempty"`
	MetaDescription *string `json:"meta_description,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Children is a virtual field populated when building nested trees.
	Children []Category `json:"children,omitempty"`
}

// TotalContentCount returns the combined article and paper count.
func (c *Category) TotalContentCount() int {
	return c.ArticleCount + c.PaperCount
}

// IsRoot returns true if the category has no parent.
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}

// CategoryStats aggregates tree-wide numbers for the admin dashboard.
type CategoryStats struct {
	TotalCategories  int            `json:"total_categories"`
	ActiveCategories int            `json:"active_categories"`
	RootCategories   int            `json:"root_categories"`
	MaxDepth         int            `json:"max_depth"`
	ByLevel          map[int]int    `json:"categories_by_level"`
	TopCategories    []CategoryRank `json:"top_categories"`
}

// CategoryRank is a single entry in the popular-categories listing.
type CategoryRank struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	ContentCount int       `json:"content_count"`
}
