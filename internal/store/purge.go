package store

import (
	"context"
	"fmt"
)

// DefaultPurgeBatchSize keeps each batched delete well under Firestore's
// 500-operation write limit.
const DefaultPurgeBatchSize = 100

// PurgeableCollection is the minimal surface the purge loop needs. NextBatch
// returns up to limit document IDs ordered by document identity; DeleteBatch
// deletes the given documents as one atomic batched write.
type PurgeableCollection interface {
	NextBatch(ctx context.Context, limit int) ([]string, error)
	DeleteBatch(ctx context.Context, ids []string) error
}

// Purge deletes every document in col in batches of batchSize and returns the
// number of batches committed. The limited query is re-issued after each
// commit rather than paged with a cursor, so each iteration sees the next
// surviving documents; an empty page means the collection is drained. Any
// error aborts the purge; a retry restarts from scratch, which is safe
// because later runs simply see fewer documents.
func Purge(ctx context.Context, col PurgeableCollection, batchSize int) (int, error) {
	if batchSize < 1 {
		return 0, fmt.Errorf("purge: batch size must be >= 1, got %d", batchSize)
	}

	batches := 0
	for {
		ids, err := col.NextBatch(ctx, batchSize)
		if err != nil {
			return batches, fmt.Errorf("purge: listing batch: %w", err)
		}
		if len(ids) == 0 {
			return batches, nil
		}

		if err := col.DeleteBatch(ctx, ids); err != nil {
			return batches, fmt.Errorf("purge: deleting batch of %d: %w", len(ids), err)
		}
		batches++
	}
}
