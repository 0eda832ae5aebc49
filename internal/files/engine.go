// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package files implements content-addressed file ingestion. Uploads are
// deduplicated by SHA-256 digest: identical bytes resolve to one metadata
// record and one blob, regardless of original filename. Blob writes are
// idempotent, blob deletes best-effort.
package files

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"scholarly/internal/domain"
	"scholarly/internal/imaging"
	"scholarly/internal/models"
	"scholarly/internal/storage"
	"scholarly/internal/store"
)

// Association target kinds.
const (
	KindArticle = "article"
	KindPaper   = "paper"
)

// RecordStore is the metadata persistence surface the engine needs.
// *store.FileStore satisfies it; tests substitute an in-memory fake.
type RecordStore interface {
	Create(f *models.File) (*models.File, error)
	FindByID(id uuid.UUID) (*models.File, error)
	FindByHash(hash string) (*models.File, error)
	List(f store.FileFilters, limit, offset int) ([]models.File, error)
	Search(q string, limit, offset int) ([]models.File, error)
	ByArticle(articleID uuid.UUID) ([]models.File, error)
	ByPaper(paperID uuid.UUID) ([]models.File, error)
	Orphaned() ([]models.File, error)
	Popular(minDownloads, limit, offset int) ([]models.File, error)
	SetAssociation(id uuid.UUID, articleID, paperID *uuid.UUID) (*models.File, error)
	Update(f *models.File) error
	SetVisibility(ids []uuid.UUID, public bool) ([]models.File, error)
	IncrementDownloads(id uuid.UUID) (*models.File, error)
	Delete(id uuid.UUID) (*models.File, error)
	Stats() (*models.FileStats, error)
}

// Engine orchestrates validation, hashing, blob storage, and metadata for
// uploaded files.
type Engine struct {
	records RecordStore
	blobs   storage.Store

	maxSize    int64
	allowOther bool
}

// New creates a file ingestion engine. maxSize caps accepted upload sizes
// in bytes; allowOther admits extensions outside the allow-list into the
// "other" bucket.
func New(records RecordStore, blobs storage.Store, maxSize int64, allowOther bool) *Engine {
	return &Engine{records: records, blobs: blobs, maxSize: maxSize, allowOther: allowOther}
}

// IngestInput carries an upload into the engine. ArticleID and PaperID are
// mutually exclusive; Validate/Ingest reject neither, the association rules
// are applied as in Associate.
type IngestInput struct {
	Data             []byte
	OriginalFilename string
	ContentType      string
	IsPublic         bool
	ArticleID        *uuid.UUID
	PaperID          *uuid.UUID
	Description      *string
	AltText          *string
}

// Ingest stores an upload. Upload is idempotent by content: if a record
// with the same digest already exists it is returned unchanged, with no new
// blob write and no new metadata row. On a miss the bytes are written under
// a content-derived key, image dimensions and a thumbnail are captured
// best-effort, and a metadata row is created.
func (e *Engine) Ingest(ctx context.Context, in IngestInput) (*models.File, error) {
	bucket, extension, err := e.Validate(in.OriginalFilename, int64(len(in.Data)))
	if err != nil {
		return nil, err
	}
	if in.ArticleID != nil && in.PaperID != nil {
		return nil, fmt.Errorf("file can belong to an article or a paper, not both: %w", domain.ErrInvalidInput)
	}

	digest := HashBytes(in.Data)

	existing, err := e.records.FindByHash(digest)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	fileType := bucket
	if extension == "pdf" {
		fileType = models.FileTypePDF
	}
	if fileType == models.FileTypeOther {
		// Fall back to the declared MIME type for files whose extension
		// says nothing useful.
		if t := models.FileTypeFromMime(contentType); t != models.FileTypeOther {
			fileType = t
		}
	}

	key := storage.DeriveKey(fileType, digest, extension)
	if err := e.blobs.WriteIfAbsent(ctx, key, contentType, in.Data); err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}

	record := &models.File{
		Filename:         storedFilename(digest, extension),
		OriginalFilename: in.OriginalFilename,
		FilePath:         key,
		FileSize:         int64(len(in.Data)),
		MimeType:         contentType,
		FileExtension:    extension,
		FileHash:         digest,
		FileType:         fileType,
		Description:      in.Description,
		AltText:          in.AltText,
		ArticleID:        in.ArticleID,
		PaperID:          in.PaperID,
		IsPublic:         in.IsPublic,
	}

	if bucket == models.FileTypeImage {
		e.captureImageData(ctx, record, in.Data, digest)
	}

	created, err := e.records.Create(record)
	if errors.Is(err, domain.ErrConflict) {
		// Lost a race against an identical concurrent upload. The winner's
		// record is the canonical one; the blob is shared content anyway.
		return e.findRaceWinner(digest)
	}
	if err != nil {
		return nil, err
	}
	return created, nil
}

// captureImageData decodes dimensions and writes a thumbnail blob. Both
// steps are best-effort: an undecodable image is stored as-is.
func (e *Engine) captureImageData(ctx context.Context, record *models.File, data []byte, digest string) {
	width, height, err := imaging.Dimensions(data)
	if err != nil {
		slog.Warn("image dimensions unavailable", "filename", record.OriginalFilename, "error", err)
		return
	}
	record.Width = &width
	record.Height = &height

	thumb, err := imaging.Thumbnail(data, imaging.ThumbMaxWidth)
	if err != nil {
		slog.Warn("thumbnail generation failed", "filename", record.OriginalFilename, "error", err)
		return
	}
	if thumb == nil {
		// Image narrower than the thumbnail width; nothing to shrink.
		return
	}

	thumbKey := storage.DeriveThumbKey(digest)
	if err := e.blobs.WriteIfAbsent(ctx, thumbKey, "image/jpeg", thumb); err != nil {
		slog.Warn("thumbnail store failed", "key", thumbKey, "error", err)
		return
	}
	record.HasThumbnail = true
	record.ThumbnailPath = &thumbKey
}

// findRaceWinner resolves the record created by a concurrent identical
// upload after our insert hit the hash constraint.
func (e *Engine) findRaceWinner(digest string) (*models.File, error) {
	winner, err := e.records.FindByHash(digest)
	if err != nil {
		return nil, err
	}
	if winner == nil {
		return nil, fmt.Errorf("duplicate upload race lost but no record for digest %s: %w", digest, domain.ErrConflict)
	}
	return winner, nil
}

// storedFilename is the hash-derived name the file is stored under.
func storedFilename(digest, extension string) string {
	if extension == "" {
		return digest
	}
	return digest + "." + extension
}

// Get returns a file record by ID.
func (e *Engine) Get(id uuid.UUID) (*models.File, error) {
	f, err := e.records.FindByID(id)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
	}
	return f, nil
}

// Download returns the file bytes along with the record, and bumps the
// download counter.
func (e *Engine) Download(ctx context.Context, id uuid.UUID) ([]byte, *models.File, error) {
	f, err := e.Get(id)
	if err != nil {
		return nil, nil, err
	}

	data, err := e.blobs.Read(ctx, f.FilePath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, fmt.Errorf("blob for file %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read blob: %w", err)
	}

	updated, err := e.records.IncrementDownloads(id)
	if err != nil {
		return nil, nil, err
	}
	if updated != nil {
		f = updated
	}
	return data, f, nil
}

// Thumbnail returns the thumbnail bytes for an image file.
func (e *Engine) Thumbnail(ctx context.Context, id uuid.UUID) ([]byte, error) {
	f, err := e.Get(id)
	if err != nil {
		return nil, err
	}
	if !f.HasThumbnail || f.ThumbnailPath == nil {
		return nil, fmt.Errorf("file %s has no thumbnail: %w", id, domain.ErrNotFound)
	}

	data, err := e.blobs.Read(ctx, *f.ThumbnailPath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("thumbnail blob for file %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read thumbnail: %w", err)
	}
	return data, nil
}

// Associate links a file to an article or a paper. The two association
// fields are mutually exclusive: setting one clears the other. Exclusivity
// lives here, not in the storage layer.
func (e *Engine) Associate(id uuid.UUID, kind string, targetID uuid.UUID) (*models.File, error) {
	var articleID, paperID *uuid.UUID
	switch kind {
	case KindArticle:
		articleID = &targetID
	case KindPaper:
		paperID = &targetID
	default:
		return nil, fmt.Errorf("unknown association kind %q: %w", kind, domain.ErrInvalidInput)
	}

	f, err := e.records.SetAssociation(id, articleID, paperID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
	}
	return f, nil
}

// RemoveAssociations clears both association fields, orphaning the file.
func (e *Engine) RemoveAssociations(id uuid.UUID) (*models.File, error) {
	f, err := e.records.SetAssociation(id, nil, nil)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
	}
	return f, nil
}

// UpdateInput carries partial metadata edits. Nil fields are left unchanged.
type UpdateInput struct {
	Description *string `json:"description"`
	AltText     *string `json:"alt_text"`
	IsPublic    *bool   `json:"is_public"`
}

// Update edits a file's mutable metadata.
func (e *Engine) Update(id uuid.UUID, in UpdateInput) (*models.File, error) {
	f, err := e.Get(id)
	if err != nil {
		return nil, err
	}

	if in.Description != nil {
		f.Description = in.Description
	}
	if in.AltText != nil {
		f.AltText = in.AltText
	}
	if in.IsPublic != nil {
		f.IsPublic = *in.IsPublic
	}

	if err := e.records.Update(f); err != nil {
		return nil, err
	}
	return e.Get(id)
}

// SetVisibility flips is_public for multiple files, returning the updated
// records. Missing IDs are skipped, not errors.
func (e *Engine) SetVisibility(ids []uuid.UUID, public bool) ([]models.File, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("no file ids: %w", domain.ErrInvalidInput)
	}
	return e.records.SetVisibility(ids, public)
}

// List returns file records matching the filters.
func (e *Engine) List(f store.FileFilters, limit, offset int) ([]models.File, error) {
	return e.records.List(f, limit, offset)
}

// Search matches files by filename, description, or MIME type.
func (e *Engine) Search(q string, limit, offset int) ([]models.File, error) {
	if q == "" {
		return nil, fmt.Errorf("empty search query: %w", domain.ErrInvalidInput)
	}
	return e.records.Search(q, limit, offset)
}

// ByArticle returns files associated with an article.
func (e *Engine) ByArticle(articleID uuid.UUID) ([]models.File, error) {
	return e.records.ByArticle(articleID)
}

// ByPaper returns files associated with a paper.
func (e *Engine) ByPaper(paperID uuid.UUID) ([]models.File, error) {
	return e.records.ByPaper(paperID)
}

// Popular returns files ranked by download count.
func (e *Engine) Popular(minDownloads, limit, offset int) ([]models.File, error) {
	return e.records.Popular(minDownloads, limit, offset)
}

// Orphaned returns files with neither association set.
func (e *Engine) Orphaned() ([]models.File, error) {
	return e.records.Orphaned()
}

// CleanupOrphaned deletes every orphaned record and returns how many were
// removed. Blob deletion is best-effort and never fails the cleanup: a
// missing blob is already the desired end state.
func (e *Engine) CleanupOrphaned(ctx context.Context) (int, error) {
	orphans, err := e.records.Orphaned()
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, orphan := range orphans {
		record, err := e.records.Delete(orphan.ID)
		if err != nil {
			return deleted, err
		}
		if record == nil {
			continue
		}
		deleted++
		e.deleteBlobs(ctx, record)
	}
	return deleted, nil
}

// Delete removes a file record and best-effort deletes its blobs.
func (e *Engine) Delete(ctx context.Context, id uuid.UUID) error {
	record, err := e.records.Delete(id)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("file %s: %w", id, domain.ErrNotFound)
	}
	e.deleteBlobs(ctx, record)
	return nil
}

// deleteBlobs removes the content blob and thumbnail for a deleted record.
// Failures are logged, never propagated: the metadata row is already gone
// and a stranded blob is recoverable garbage, not an error.
func (e *Engine) deleteBlobs(ctx context.Context, record *models.File) {
	if err := e.blobs.Delete(ctx, record.FilePath); err != nil {
		slog.Warn("blob delete failed", "key", record.FilePath, "error", err)
	}
	if record.ThumbnailPath != nil {
		if err := e.blobs.Delete(ctx, *record.ThumbnailPath); err != nil {
			slog.Warn("thumbnail delete failed", "key", *record.ThumbnailPath, "error", err)
		}
	}
}

// Stats returns library-wide aggregate numbers.
func (e *Engine) Stats() (*models.FileStats, error) {
	return e.records.Stats()
}
