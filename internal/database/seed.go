// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package database

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// Seed populates the database with the initial system categories. System
// categories cannot be deleted through the API, so they are created here
// once and skipped on every subsequent start.
func Seed(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM categories WHERE is_system = TRUE").Scan(&count); err != nil {
		return fmt.Errorf("seed check categories: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	roots := []struct {
		name, slug, description string
		sortOrder               int
	}{
		{"General", "general", "Uncategorized content", 0},
		{"Announcements", "announcements", "Site and editorial announcements", 1},
	}

	for _, r := range roots {
		_, err := db.Exec(`
			INSERT INTO categories (name, slug, description, level, path, is_system, sort_order)
			VALUES ($1, $2, $3, 0, $4, TRUE, $5)
		`, r.name, r.slug, r.description, "/"+r.slug, r.sortOrder)
		if err != nil {
			return fmt.Errorf("seed insert category %s: %w", r.slug, err)
		}
	}

	slog.Info("database seeded with system categories", "count", len(roots))
	return nil
}
