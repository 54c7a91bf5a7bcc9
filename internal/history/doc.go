// Package history mines version-control history for the archaeology provider.
//
// Miner is the collaborator interface; GitMiner implements it by running
// git log in the repository root with a timeout:
//
//	miner := history.NewGitMiner(repoRoot, history.WithLimit(5000))
//	h, err := miner.AnalyzeRepo(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(h.TotalCommits)
//
// Commits are returned newest first with their changed files. Mining is
// expensive on large repositories, so callers invoke AnalyzeRepo once and
// keep the result.
package history
