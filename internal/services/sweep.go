package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/poof/backend/internal/store"
)

// SweepService deletes groups whose self-destruct instant has passed. Clients
// already stop rendering expired groups on read; the sweep makes the data
// deletion real instead of leaving it purely reactive.
type SweepService struct {
	store     store.DocStore
	blobs     store.BlobStore
	batchSize int
}

func NewSweepService(docs store.DocStore, blobs store.BlobStore, purgeBatchSize int) *SweepService {
	if purgeBatchSize < 1 {
		purgeBatchSize = store.DefaultPurgeBatchSize
	}
	return &SweepService{store: docs, blobs: blobs, batchSize: purgeBatchSize}
}

// SweepExpired purges and deletes every group with selfDestructAt <= now.
// Groups are processed independently; one group's failure does not stop the
// sweep, and the next scheduled run retries whatever is left.
func (s *SweepService) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.store.ExpiredGroups(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweep: listing expired groups: %w", err)
	}

	deleted := 0
	var lastErr error
	for _, g := range expired {
		if _, err := s.store.PurgeGroupMessages(ctx, g.ID, s.batchSize); err != nil {
			log.Printf("[sweep] group=%s message purge failed: %v", g.ID, err)
			lastErr = err
			continue
		}

		if err := s.blobs.DeleteGroupAvatar(ctx, g.OwnerID, g.ID); err != nil && !errors.Is(err, store.ErrBlobNotFound) {
			log.Printf("[sweep] group=%s avatar delete failed: %v", g.ID, err)
		}

		batch := s.store.Batch()
		batch.DeleteGroup(g.ID)
		if err := batch.Commit(ctx); err != nil {
			log.Printf("[sweep] group=%s delete failed: %v", g.ID, err)
			lastErr = err
			continue
		}
		deleted++
	}

	log.Printf("[sweep] complete expired=%d deleted=%d", len(expired), deleted)
	return deleted, lastErr
}
