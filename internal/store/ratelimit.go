package store

import (
	"context"
	"time"
)

// AtomicUpsertCounter is the Persistence Store's second strong primitive
// (spec.md §4.1): an upsert that either creates the per-minute bucket row
// at count=1 or increments it, returning the post-increment value in one
// round trip. The campaign runner uses this to enforce MAX_CALLS_PER_MINUTE
// without a separate read-then-write race window.
func (s *Store) AtomicUpsertCounter(ctx context.Context, bucketMinute time.Time) (int, error) {
	const q = `
INSERT INTO rate_limit_buckets (bucket_minute, call_count)
VALUES ($1, 1)
ON CONFLICT (bucket_minute) DO UPDATE SET call_count = rate_limit_buckets.call_count + 1
RETURNING call_count
`
	var count int
	if err := s.db.QueryRowContext(ctx, q, bucketMinute.Truncate(time.Minute)).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// PruneRateLimitBuckets deletes buckets older than olderThan, called
// periodically so the table doesn't grow unbounded.
func (s *Store) PruneRateLimitBuckets(ctx context.Context, olderThan time.Time) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit_buckets WHERE bucket_minute < $1`, olderThan)
	return err
}
