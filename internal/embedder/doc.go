// Package embedder maps text to fixed-dimension vectors for semantic search
// over commit history.
//
// Backends (Jina AI, OpenAI, Gemini, and an in-process hashed bag-of-words
// model) implement the Embedder interface. Generator wraps one backend and
// adds the behavior callers rely on:
//
//   - Deterministic output for identical text, L2-normalized when configured
//   - In-memory LRU memo keyed by SHA-256 content hash
//   - Optional SQLite memo under Config.CacheDir that survives restarts
//   - Degraded mode: if the backend cannot be constructed, ModelLoaded
//     reports false and every vector is all zeros
//
// # Basic Usage
//
//	gen := embedder.NewGenerator(ctx, embedder.DefaultConfig())
//	defer gen.Close()
//
//	vec := gen.EmbedQuery(ctx, "File: auth.py Question: why JWT?")
//	if !gen.ModelLoaded() {
//	    // zero vector; skip semantic narrowing
//	}
//
// # Provider Selection
//
// Config.Provider picks the backend. When empty, WHYCONTEXT_EMBEDDING_PROVIDER
// is consulted, then the presence of JINA_API_KEY, OPENAI_API_KEY or
// GEMINI_API_KEY, falling back to the local model.
//
// # Error Handling
//
// Remote providers retry transient failures with exponential backoff. Errors
// that survive retries are logged by Generator and replaced with zero vectors;
// they are not memoized.
package embedder
