// Package types provides shared type definitions for the whycontext MCP server.
//
// This package defines the domain types exchanged between the archaeology
// provider, its history and synthesis collaborators, and the rendering layer.
//
// # Core Types
//
// Commit and History describe mined version-control history:
//
//	history := &types.History{
//	    TotalCommits: 3,
//	    Commits:      commits, // newest first
//	}
//
// Answer and Citation are produced by a synthesizer:
//
//	answer := &types.Answer{
//	    Answer:     "JWT replaced basic auth to support stateless sessions",
//	    Confidence: 0.82,
//	    Citations:  citations,
//	}
//
// ArchaeologicalContext is what callers receive. It always carries an answer,
// even when the engine is unavailable (confidence 0, no sources):
//
//	ctx := provider.GetContextSync("auth.py", "Why was JWT chosen?")
//	if ctx.HasHighConfidence() {
//	    // trust the answer
//	}
//
// # Validation
//
// Types that cross package boundaries implement Validate:
//
//	if err := ctx.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Errors
//
// Error carries a Kind (configuration, initialization, timeout, argument) so
// callers can distinguish deployment mistakes from runtime conditions:
//
//	var terr *types.Error
//	if errors.As(err, &terr) && terr.Kind == types.KindConfiguration {
//	    // fix the repository path
//	}
package types
