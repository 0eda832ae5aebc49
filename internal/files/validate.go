// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package files

import (
	"fmt"
	"sort"
	"strings"

	"scholarly/internal/domain"
	"scholarly/internal/models"
)

// allowedExtensions partitions the upload allow-list into type buckets.
// The bucket decides the blob key prefix and the record's file_type.
var allowedExtensions = map[string][]string{
	models.FileTypeImage:    {"jpg", "jpeg", "png", "gif", "bmp", "webp", "svg"},
	models.FileTypeDocument: {"pdf", "doc", "docx", "txt", "md", "csv", "xls", "xlsx"},
	models.FileTypeVideo:    {"mp4", "avi", "mov", "wmv", "flv", "webm"},
	models.FileTypeAudio:    {"mp3", "wav", "flac", "aac", "ogg"},
}

// Validate checks an upload before any bytes are stored and returns the
// type bucket and normalized extension. An extension outside the allow-list
// is rejected unless the engine is configured to accept it into the "other"
// bucket.
func (e *Engine) Validate(filename string, size int64) (bucket, extension string, err error) {
	if strings.TrimSpace(filename) == "" {
		return "", "", fmt.Errorf("filename is required: %w", domain.ErrInvalidInput)
	}

	if size > e.maxSize {
		return "", "", fmt.Errorf("file size %d exceeds limit of %d bytes: %w",
			size, e.maxSize, domain.ErrPayloadTooLarge)
	}

	extension = models.ExtensionFromFilename(filename)

	for ftype, extensions := range allowedExtensions {
		for _, ext := range extensions {
			if extension == ext {
				return ftype, extension, nil
			}
		}
	}

	if e.allowOther {
		return models.FileTypeOther, extension, nil
	}
	return "", "", fmt.Errorf("file extension %q is not allowed (allowed: %s): %w",
		extension, strings.Join(allExtensions(), ", "), domain.ErrUnsupportedMedia)
}

// allExtensions flattens the allow-list for error messages, sorted for
// stable output.
func allExtensions() []string {
	var all []string
	for _, extensions := range allowedExtensions {
		all = append(all, extensions...)
	}
	sort.Strings(all)
	return all
}
