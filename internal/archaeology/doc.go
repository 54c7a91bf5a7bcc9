// Package archaeology answers "why" questions about files from repository history.
//
// Provider is the orchestrator. It owns the answer cache and the
// initialization state machine, and it never returns an operational failure
// to its caller: mining errors, synthesis errors and timeouts all become a
// degraded context with zero confidence and an answer naming the failure.
//
//	p, err := archaeology.New("/path/to/repo", archaeology.WithQueryTimeout(5*time.Second))
//	if err != nil {
//	    return err // invalid repository root
//	}
//	defer p.Close()
//
//	answer := p.GetContext(ctx, "src/auth.py", "Why was JWT chosen?")
//	fmt.Println(answer.Answer, answer.Confidence)
//
// # Initialization
//
// History is mined lazily by the first cache miss. Concurrent first queries
// share a single attempt. A failed attempt is sticky: later queries return the
// degraded answer immediately until Reset is called.
//
// # Semantic narrowing
//
// When an embedder and a vector index are supplied, initialization also
// builds or loads the commit index, and each query passes the nearest
// commits to the synthesizer as candidates. Any failure on this path only
// disables narrowing.
package archaeology
