//go:build !sqlite_cgo

package storage

// Default build: the embedding memo and index sidecar use the pure Go
// SQLite port, so whycontext cross-compiles without a C toolchain.

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver registered by modernc.org/sqlite
	DriverName = "sqlite"

	// BuildMode is reported by `whycontext version`
	BuildMode = "purego"
)
