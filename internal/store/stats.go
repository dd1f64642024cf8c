package store

import (
	"context"
	"fmt"
)

// CollectStats reads row counts and the on-disk size of the database.
func CollectStats(ctx context.Context, db DBTX) (Stats, error) {
	var st Stats
	err := db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM document),
			(SELECT COUNT(*) FROM document_fragment),
			(SELECT COUNT(*) FROM document_fragment WHERE content_vector IS NOT NULL),
			(SELECT COUNT(*) FROM task WHERE failed_at IS NULL),
			(SELECT COUNT(*) FROM task WHERE failed_at IS NOT NULL)`).
		Scan(&st.Documents, &st.Fragments, &st.FragmentsWithVectors, &st.PendingTasks, &st.FailedTasks)
	if err != nil {
		return st, fmt.Errorf("failed to collect stats: %w", err)
	}

	st.DBBytes, err = SizeBytes(ctx, db)
	if err != nil {
		return st, err
	}
	return st, nil
}
