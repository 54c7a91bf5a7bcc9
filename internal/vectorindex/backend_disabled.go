//go:build novecindex
// +build novecindex

package vectorindex

// This file is compiled with the novecindex tag:
//
//   go build -tags novecindex ./...
//
// AddDocuments only tracks sizes and Search always returns no results.

// VectorIndexAvailable reports whether the vector search backend is compiled in
const VectorIndexAvailable = false
