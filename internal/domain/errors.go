// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package domain defines the error taxonomy shared by the category and
// file engines. Handlers map these sentinels to HTTP status codes; engines
// wrap them with context via fmt.Errorf("%w: ...").
package domain

import "errors"

var (
	// ErrNotFound indicates a referenced category, file, or parent does
	// not exist. Always recoverable at the caller.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState indicates a structurally disallowed operation:
	// moving a category into its own descendant, activating under an
	// inactive parent, deleting a non-empty or system category.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidInput indicates malformed input rejected before any
	// mutation occurs (empty filename, disallowed extension, bad color
	// code). No partial state is ever created for these.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict indicates a unique-constraint violation under a race
	// (slug or file hash). Callers retry the unique-name loop for slugs,
	// or re-fetch by hash for files.
	ErrConflict = errors.New("conflict")

	// ErrPayloadTooLarge indicates an upload exceeding the configured
	// size ceiling.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrUnsupportedMedia indicates a file extension outside the
	// configured allow-list.
	ErrUnsupportedMedia = errors.New("unsupported media type")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err wraps ErrConflict.
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
