// Package indexer builds the commit vector index used for semantic narrowing.
//
// The indexer embeds mined commits in batches and appends them to a
// vectorindex.Index:
//
//	idx := indexer.New(generator, vectors, &indexer.Config{Workers: 4})
//	stats, err := idx.LoadOrBuild(ctx, history)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("indexed %d commits, %d already present\n", stats.CommitsIndexed, stats.CommitsSkipped)
//
// # Incremental Indexing
//
// LoadOrBuild restores the persisted index first and only embeds commits
// whose document id is not already present. A missing, stale or corrupt
// index is rebuilt from scratch and saved.
//
// # Concurrent Processing
//
// Batches are embedded on an errgroup bounded by Config.Workers. Results are
// collected per batch and appended in history order, so the index position of
// a commit does not depend on scheduling. Commits whose embedding fell back to
// the zero vector are left out and counted as failed.
//
// Only one build runs at a time; a concurrent call returns
// ErrIndexingInProgress.
package indexer
