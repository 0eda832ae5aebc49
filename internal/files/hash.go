// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package files

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashBytes computes the hex SHA-256 digest of the content. The digest is
// the dedup key: it depends on nothing but the byte sequence, so identical
// uploads under different filenames collapse to one record.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
