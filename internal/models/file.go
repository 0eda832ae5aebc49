// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// File type buckets. Every file record carries exactly one of these.
const (
	FileTypeImage    = "image"
	FileTypeDocument = "document"
	FileTypePDF      = "pdf"
	FileTypeVideo    = "video"
	FileTypeAudio    = "audio"
	FileTypeOther    = "other"
)

// File represents an uploaded file. The bytes live in the blob store under
// a content-derived key; this record holds the metadata. FileHash is the
// SHA-256 digest of the content and is unique: two uploads with identical
// bytes resolve to the same record regardless of their original filenames.
type File struct {
	ID               uuid.UUID `json:"id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	FilePath         string    `json:"file_path"`
	FileSize         int64     `json:"file_size"`
	MimeType         string    `json:"mime_type"`
	FileExtension    string    `json:"file_extension"`
	FileHash         string    `json:"file_hash"`
	FileType         string    `json:"file_type"`
	Description      *string   `json:"description,omitempty"`
	AltText          *string   `json:"alt_text,omitempty"`

	// At most one of ArticleID / PaperID is set at a time; setting one
	// clears the other. A record with neither is orphaned.
	ArticleID *uuid.UUID `json:"article_id"`
	PaperID   *uuid.UUID `json:"paper_id"`

	IsPublic bool `json:"is_public"`

	// Image-only attributes, populated best-effort on ingest.
	Width  *int `json:"width,omitempty"`
	Height *int `json:"height,omitempty"`

	DownloadCount int     `json:"download_count"`
	HasThumbnail  bool    `json:"has_thumbnail"`
	ThumbnailPath *string `json:"thumbnail_path,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsImage returns true for image files.
func (f *File) IsImage() bool {
	return f.FileType == FileTypeImage || strings.HasPrefix(f.MimeType, "image/")
}

// IsOrphaned returns true when the file references neither an article nor
// a paper, making it a candidate for cleanup.
func (f *File) IsOrphaned() bool {
	return f.ArticleID == nil && f.PaperID == nil
}

// HumanSize returns a human-readable file size string.
func (f *File) HumanSize() string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case f.FileSize >= gb:
		return fmt.Sprintf("%.1f GB", float64(f.FileSize)/float64(gb))
	case f.FileSize >= mb:
		return fmt.Sprintf("%.1f MB", float64(f.FileSize)/float64(mb))
	case f.FileSize >= kb:
		return fmt.Sprintf("%.1f KB", float64(f.FileSize)/float64(kb))
	default:
		return fmt.Sprintf("%d B", f.FileSize)
	}
}

// FileTypeFromMime maps a MIME type to one of the file type buckets.
func FileTypeFromMime(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return FileTypeImage
	case mimeType == "application/pdf":
		return FileTypePDF
	case strings.HasPrefix(mimeType, "video/"):
		return FileTypeVideo
	case strings.HasPrefix(mimeType, "audio/"):
		return FileTypeAudio
	}
	switch mimeType {
	case "application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"text/plain",
		"text/markdown",
		"text/csv":
		return FileTypeDocument
	}
	return FileTypeOther
}

// ExtensionFromFilename returns the lowercase extension without the dot.
func ExtensionFromFilename(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// FileStats aggregates library-wide numbers for the admin dashboard.
type FileStats struct {
	TotalFiles    int            `json:"total_files"`
	TotalSize     int64          `json:"total_size"`
	ByType        map[string]int `json:"by_type"`
	ByExtension   map[string]int `json:"by_extension"`
	AverageSizeMB float64        `json:"average_size"`
	LargestFile   *File          `json:"largest_file,omitempty"`
}
