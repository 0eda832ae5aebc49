// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package storage provides content-addressed blob storage. Keys are derived
// from the content digest, so identical uploads always land on the same key
// and writes are idempotent. Two backends are provided: a local filesystem
// store and an S3-compatible object store.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Read when no blob exists at the given key.
var ErrNotFound = errors.New("storage: blob not found")

// Store is the blob storage contract used by the file ingestion engine.
//
// WriteIfAbsent must be safe under concurrent identical writes: because
// keys are content-derived, two racing writers carry the same bytes, and
// last-writer-wins is acceptable.
type Store interface {
	// WriteIfAbsent stores data at key unless a blob already exists there,
	// in which case it is a no-op.
	WriteIfAbsent(ctx context.Context, key, contentType string, data []byte) error

	// Read returns the blob at key, or ErrNotFound.
	Read(ctx context.Context, key string) ([]byte, error)

	// Delete removes the blob at key. Missing keys are not an error:
	// delete is idempotent and never fails a caller's larger operation
	// on an already-gone blob.
	Delete(ctx context.Context, key string) error
}

// keyPrefix is the root of the blob namespace in both backends.
const keyPrefix = "uploads"

// DeriveKey composes the storage key for a blob from its type bucket,
// content digest, and extension. It is a pure function: the same inputs
// always yield the same key.
func DeriveKey(fileType, digest, ext string) string {
	if ext == "" {
		return fmt.Sprintf("%s/%s/%s", keyPrefix, fileType, digest)
	}
	return fmt.Sprintf("%s/%s/%s.%s", keyPrefix, fileType, digest, ext)
}

// DeriveThumbKey composes the storage key for a file's JPEG thumbnail.
func DeriveThumbKey(digest string) string {
	return fmt.Sprintf("%s/thumbnails/%s_thumb.jpg", keyPrefix, digest)
}
