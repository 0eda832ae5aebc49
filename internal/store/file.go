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

// FileStore owns file metadata rows. The bytes themselves live in the blob
// store; dedup is enforced here by the unique constraint on file_hash.
type FileStore struct {
	db *sql.DB
}

// NewFileStore returns a new FileStore.
func NewFileStore(db *sql.DB) *FileStore {
	return &FileStore{db: db}
}

const fileColumns = `id, filename, original_filename, file_path, file_size,
	mime_type, file_extension, file_hash, file_type, description, alt_text,
	article_id, paper_id, is_public, width, height, download_count,
	has_thumbnail, thumbnail_path, created_at, updated_at`

// scanFile scans a file row from the result set.
func scanFile(scanner interface{ Scan(...any) error }) (*models.File, error) {
	var f models.File
	err := scanner.Scan(
		&f.ID, &f.Filename, &f.OriginalFilename, &f.FilePath, &f.FileSize,
		&f.MimeType, &f.FileExtension, &f.FileHash, &f.FileType,
		&f.Description, &f.AltText, &f.ArticleID, &f.PaperID, &f.IsPublic,
		&f.Width, &f.Height, &f.DownloadCount,
		&f.HasThumbnail, &f.ThumbnailPath, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// queryFiles runs a query expected to return file rows.
func (s *FileStore) queryFiles(query string, args ...any) ([]models.File, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var items []models.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		items = append(items, *f)
	}
	return items, rows.Err()
}

// Create inserts a new file record and returns it. A concurrent upload of
// identical content that lost the hash race surfaces as domain.ErrConflict;
// the engine re-fetches by hash and treats it as a dedup hit.
func (s *FileStore) Create(f *models.File) (*models.File, error) {
	row := s.db.QueryRow(`
		INSERT INTO files (filename, original_filename, file_path, file_size,
			mime_type, file_extension, file_hash, file_type, description, alt_text,
			article_id, paper_id, is_public, width, height, has_thumbnail, thumbnail_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING `+fileColumns,
		f.Filename, f.OriginalFilename, f.FilePath, f.FileSize,
		f.MimeType, f.FileExtension, f.FileHash, f.FileType, f.Description, f.AltText,
		f.ArticleID, f.PaperID, f.IsPublic, f.Width, f.Height,
		f.HasThumbnail, f.ThumbnailPath,
	)
	result, err := scanFile(row)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("create file: %w", domain.ErrConflict)
	}
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("create file association: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}
	return result, nil
}

// FindByID retrieves a file record by ID. Returns nil if not found.
func (s *FileStore) FindByID(id uuid.UUID) (*models.File, error) {
	row := s.db.QueryRow(`SELECT `+fileColumns+` FROM files WHERE id = $1`, id)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find file by id: %w", err)
	}
	return f, nil
}

// FindByHash retrieves a file record by its content digest. This is the
// dedup lookup: a hit means the content is already stored.
func (s *FileStore) FindByHash(hash string) (*models.File, error) {
	row := s.db.QueryRow(`SELECT `+fileColumns+` FROM files WHERE file_hash = $1`, hash)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find file by hash: %w", err)
	}
	return f, nil
}

// FileFilters narrows List results. Nil fields are ignored.
type FileFilters struct {
	FileType     *string
	IsPublic     *bool
	ArticleID    *uuid.UUID
	PaperID      *uuid.UUID
	MimeType     *string
	Extension    *string
	MinSize      *int64
	MaxSize      *int64
	HasThumbnail *bool
}

// List returns file records matching the filters, newest first.
func (s *FileStore) List(f FileFilters, limit, offset int) ([]models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE 1=1`
	var args []any

	add := func(clause string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(clause, len(args))
	}

	if f.FileType != nil {
		add(` AND file_type = $%d`, *f.FileType)
	}
	if f.IsPublic != nil {
		add(` AND is_public = $%d`, *f.IsPublic)
	}
	if f.ArticleID != nil {
		add(` AND article_id = $%d`, *f.ArticleID)
	}
	if f.PaperID != nil {
		add(` AND paper_id = $%d`, *f.PaperID)
	}
	if f.MimeType != nil {
		add(` AND mime_type = $%d`, *f.MimeType)
	}
	if f.Extension != nil {
		add(` AND file_extension = $%d`, *f.Extension)
	}
	if f.MinSize != nil {
		add(` AND file_size >= $%d`, *f.MinSize)
	}
	if f.MaxSize != nil {
		add(` AND file_size <= $%d`, *f.MaxSize)
	}
	if f.HasThumbnail != nil {
		add(` AND has_thumbnail = $%d`, *f.HasThumbnail)
	}

	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return s.queryFiles(query, args...)
}

// Search matches files by filename, original filename, description, or
// MIME type (case-insensitive substring), newest first.
func (s *FileStore) Search(q string, limit, offset int) ([]models.File, error) {
	pattern := "%" + q + "%"
	return s.queryFiles(`
		SELECT `+fileColumns+` FROM files
		WHERE filename ILIKE $1 OR original_filename ILIKE $1
		   OR description ILIKE $1 OR mime_type ILIKE $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, pattern, limit, offset)
}

// ByArticle returns files associated with an article, newest first.
func (s *FileStore) ByArticle(articleID uuid.UUID) ([]models.File, error) {
	return s.queryFiles(`
		SELECT `+fileColumns+` FROM files
		WHERE article_id = $1 ORDER BY created_at DESC`, articleID)
}

// ByPaper returns files associated with a paper, newest first.
func (s *FileStore) ByPaper(paperID uuid.UUID) ([]models.File, error) {
	return s.queryFiles(`
		SELECT `+fileColumns+` FROM files
		WHERE paper_id = $1 ORDER BY created_at DESC`, paperID)
}

// Orphaned returns files with neither an article nor a paper association.
func (s *FileStore) Orphaned() ([]models.File, error) {
	return s.queryFiles(`
		SELECT ` + fileColumns + ` FROM files
		WHERE article_id IS NULL AND paper_id IS NULL
		ORDER BY created_at DESC`)
}

// Popular returns files with at least minDownloads downloads, ordered by
// download count descending.
func (s *FileStore) Popular(minDownloads, limit, offset int) ([]models.File, error) {
	return s.queryFiles(`
		SELECT `+fileColumns+` FROM files
		WHERE download_count >= $1
		ORDER BY download_count DESC, created_at DESC
		LIMIT $2 OFFSET $3`, minDownloads, limit, offset)
}

// SetAssociation writes both association fields at once and returns the
// updated record. The engine enforces mutual exclusivity by always passing
// at most one non-nil target.
func (s *FileStore) SetAssociation(id uuid.UUID, articleID, paperID *uuid.UUID) (*models.File, error) {
	row := s.db.QueryRow(`
		UPDATE files SET article_id = $1, paper_id = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING `+fileColumns, articleID, paperID, id)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if isForeignKeyViolation(err) {
		return nil, fmt.Errorf("set association: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("set association: %w", err)
	}
	return f, nil
}

// Update modifies a file's mutable metadata.
func (s *FileStore) Update(f *models.File) error {
	_, err := s.db.Exec(`
		UPDATE files SET description = $1, alt_text = $2, is_public = $3,
			updated_at = NOW()
		WHERE id = $4`,
		f.Description, f.AltText, f.IsPublic, f.ID)
	if err != nil {
		return fmt.Errorf("update file: %w", err)
	}
	return nil
}

// SetVisibility flips is_public for multiple files in one transaction and
// returns the updated records.
func (s *FileStore) SetVisibility(ids []uuid.UUID, public bool) ([]models.File, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		UPDATE files SET is_public = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + fileColumns)
	if err != nil {
		return nil, fmt.Errorf("prepare visibility: %w", err)
	}
	defer stmt.Close()

	var updated []models.File
	for _, id := range ids {
		f, err := scanFile(stmt.QueryRow(public, id))
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("set visibility %s: %w", id, err)
		}
		updated = append(updated, *f)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit visibility: %w", err)
	}
	return updated, nil
}

// IncrementDownloads bumps the download counter and returns the updated
// record. Returns nil if the file does not exist.
func (s *FileStore) IncrementDownloads(id uuid.UUID) (*models.File, error) {
	row := s.db.QueryRow(`
		UPDATE files SET download_count = download_count + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING `+fileColumns, id)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("increment downloads: %w", err)
	}
	return f, nil
}

// Delete removes a file record and returns it so the caller can clean up
// the corresponding blobs. Returns nil if the record was already gone.
func (s *FileStore) Delete(id uuid.UUID) (*models.File, error) {
	row := s.db.QueryRow(`
		DELETE FROM files WHERE id = $1
		RETURNING `+fileColumns, id)
	f, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("delete file: %w", err)
	}
	return f, nil
}

// Stats returns library-wide aggregate numbers.
func (s *FileStore) Stats() (*models.FileStats, error) {
	stats := &models.FileStats{
		ByType:      make(map[string]int),
		ByExtension: make(map[string]int),
	}

	err := s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(file_size), 0) FROM files`).
		Scan(&stats.TotalFiles, &stats.TotalSize)
	if err != nil {
		return nil, fmt.Errorf("file stats: %w", err)
	}

	rows, err := s.db.Query(`SELECT file_type, COUNT(*) FROM files GROUP BY file_type`)
	if err != nil {
		return nil, fmt.Errorf("file stats by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("scan type count: %w", err)
		}
		stats.ByType[t] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	extRows, err := s.db.Query(`SELECT file_extension, COUNT(*) FROM files GROUP BY file_extension`)
	if err != nil {
		return nil, fmt.Errorf("file stats by extension: %w", err)
	}
	defer extRows.Close()
	for extRows.Next() {
		var ext string
		var n int
		if err := extRows.Scan(&ext, &n); err != nil {
			return nil, fmt.Errorf("scan extension count: %w", err)
		}
		stats.ByExtension[ext] = n
	}
	if err := extRows.Err(); err != nil {
		return nil, err
	}

	if stats.TotalFiles > 0 {
		avgBytes := float64(stats.TotalSize) / float64(stats.TotalFiles)
		stats.AverageSizeMB = avgBytes / (1024 * 1024)
	}

	row := s.db.QueryRow(`SELECT ` + fileColumns + ` FROM files ORDER BY file_size DESC LIMIT 1`)
	largest, err := scanFile(row)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("file stats largest: %w", err)
	}
	if err == nil {
		stats.LargestFile = largest
	}

	return stats, nil
}
