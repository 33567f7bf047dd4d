package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/poof/backend/internal/models"
	"github.com/poof/backend/internal/store"
)

// TeardownService removes every record that belongs to, or references, a
// deleted user identity: profile document, username reservation, avatar blob,
// owned groups (messages purged, avatar and document deleted) and memberships
// in other users' groups. All document mutations commit as one batch at the
// end; blob deletes and message purges run first so the final document state
// never references cleanup that was not at least attempted.
//
// Every step is idempotent, so an at-least-once event delivery can safely
// re-run the whole routine.
type TeardownService struct {
	store     store.DocStore
	blobs     store.BlobStore
	batchSize int
}

func NewTeardownService(docs store.DocStore, blobs store.BlobStore, purgeBatchSize int) *TeardownService {
	if purgeBatchSize < 1 {
		purgeBatchSize = store.DefaultPurgeBatchSize
	}
	return &TeardownService{store: docs, blobs: blobs, batchSize: purgeBatchSize}
}

// TeardownUser runs the full cascade for uid. Any error other than a
// swallowed blob not-found aborts the routine; the caller's delivery
// mechanism is expected to retry.
func (s *TeardownService) TeardownUser(ctx context.Context, uid string) error {
	batch := s.store.Batch()

	// Profile and username reservation. The profile read doubles as an
	// existence guard: a retried teardown that already removed the profile
	// schedules nothing here instead of failing.
	prof, err := s.store.GetUserProfile(ctx, uid)
	switch {
	case errors.Is(err, store.ErrDocNotFound):
		log.Printf("[teardown] uid=%s profile already absent", uid)
	case err != nil:
		return fmt.Errorf("teardown uid=%s: %w", uid, err)
	default:
		if prof.Username != "" {
			batch.DeleteUsernameReservation(models.ReservationKey(prof.Username))
		}
		batch.DeleteUserProfile(uid)
	}

	// User avatar blob. Already-absent is not an error; anything else is
	// logged but does not abort; the blob is unreachable once the profile
	// document is gone.
	if err := s.blobs.DeleteUserAvatar(ctx, uid); err != nil && !errors.Is(err, store.ErrBlobNotFound) {
		log.Printf("[teardown] uid=%s user avatar delete failed: %v", uid, err)
	}

	// Owned groups: full cascade. Message purges must succeed; group avatar
	// deletes are best-effort like the user avatar.
	owned, err := s.store.GroupsOwnedBy(ctx, uid)
	if err != nil {
		return fmt.Errorf("teardown uid=%s: listing owned groups: %w", uid, err)
	}
	for _, g := range owned {
		batches, err := s.store.PurgeGroupMessages(ctx, g.ID, s.batchSize)
		if err != nil {
			return fmt.Errorf("teardown uid=%s group=%s: purging messages: %w", uid, g.ID, err)
		}
		log.Printf("[teardown] uid=%s group=%s messages purged batches=%d", uid, g.ID, batches)

		if err := s.blobs.DeleteGroupAvatar(ctx, uid, g.ID); err != nil && !errors.Is(err, store.ErrBlobNotFound) {
			log.Printf("[teardown] uid=%s group=%s avatar delete failed: %v", uid, g.ID, err)
		}

		batch.DeleteGroup(g.ID)
	}

	// Member-only groups: prune the membership list. ArrayRemove of an
	// absent element is a no-op, so concurrent or repeated runs converge.
	member, err := s.store.GroupsWithMember(ctx, uid)
	if err != nil {
		return fmt.Errorf("teardown uid=%s: listing member groups: %w", uid, err)
	}
	pruned := 0
	for _, g := range member {
		if g.OwnerID == uid {
			continue // already scheduled for deletion above
		}
		batch.RemoveGroupMember(g.ID, uid)
		pruned++
	}

	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("teardown uid=%s: %w", uid, err)
	}

	log.Printf("[teardown] uid=%s complete ownedGroups=%d memberGroups=%d", uid, len(owned), pruned)
	return nil
}
