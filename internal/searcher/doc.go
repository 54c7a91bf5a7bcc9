// Package searcher narrows commit history to semantic candidates.
//
// A question about a file is embedded as "File: <path> Question: <question>"
// and matched against the commit vector index. The matching commit SHAs are
// handed to the synthesizer as preferred candidates.
//
// # Basic Usage
//
//	s := searcher.NewSearcher(generator, index)
//
//	resp, err := s.Search(ctx, searcher.SearchRequest{
//	    FilePath: "src/auth.py",
//	    Question: "why JWT?",
//	})
//	if err != nil {
//	    return err
//	}
//	for _, sha := range resp.Candidates {
//	    fmt.Println(sha)
//	}
//
// # Degradation
//
// Narrowing is best-effort. An unavailable or empty index, or a query that
// embeds to the zero vector, yields an empty response rather than an error;
// callers then synthesize from the full history.
//
// # Caching
//
// Non-empty responses are kept in an LRU keyed by the SHA-256 of the request.
// ClearCache must be called after the index is rebuilt.
package searcher
