// Package preflight checks that the environment can host a history
// database before fttf starts writing to it.
//
// The checks cover free disk space and write access in the data directory,
// the open file limit, the writer lock and the configured embedding
// provider. Run them with a Checker:
//
//	checker := preflight.New(preflight.WithEmbedder(cfg))
//	results := checker.RunAll(ctx, dataDir, dbPath)
//	if checker.HasCriticalFailures(results) {
//	    // refuse to start
//	}
package preflight
