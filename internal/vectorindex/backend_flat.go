//go:build !novecindex
// +build !novecindex

package vectorindex

// This file is compiled by default and enables the in-process flat index.
//
// Build with -tags novecindex to compile the backend out; every index then
// runs in degraded mode.

// VectorIndexAvailable reports whether the vector search backend is compiled in
const VectorIndexAvailable = true
