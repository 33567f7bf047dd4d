package store

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/poof/backend/internal/models"
)

// GroupUpdate is one element of a group snapshot stream. Deleted is set when
// the document disappears (teardown or sweep removed the group).
type GroupUpdate struct {
	Group   *models.Group
	Deleted bool
	Err     error
}

// GroupSubscription is a lazy, restartable stream of group document snapshots
// backed by Firestore's change notification mechanism. Cancelling the context
// passed to WatchGroup stops delivery and closes Updates.
type GroupSubscription struct {
	updates chan GroupUpdate
	stop    context.CancelFunc
}

func (s *GroupSubscription) Updates() <-chan GroupUpdate {
	return s.updates
}

// Stop unsubscribes. Safe to call more than once.
func (s *GroupSubscription) Stop() {
	s.stop()
}

// send delivers one update unless the subscription is cancelled first. Every
// delivery, including terminal errors, goes through here so the pump goroutine
// can never block on an abandoned buffer.
func (s *GroupSubscription) send(ctx context.Context, u GroupUpdate) bool {
	select {
	case s.updates <- u:
		return true
	case <-ctx.Done():
		return false
	}
}

// WatchGroup subscribes to groups/{groupID}. Each document change produces one
// GroupUpdate; a terminal error produces a final update with Err set, then the
// channel closes.
func (s *FirestoreStore) WatchGroup(ctx context.Context, groupID string) *GroupSubscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &GroupSubscription{
		updates: make(chan GroupUpdate, 1),
		stop:    cancel,
	}

	iter := s.client.Collection(GroupsCollection).Doc(groupID).Snapshots(ctx)

	go func() {
		defer close(sub.updates)
		defer iter.Stop()

		for {
			snap, err := iter.Next()
			if status.Code(err) == codes.Canceled || ctx.Err() != nil {
				return
			}
			if err != nil {
				sub.send(ctx, GroupUpdate{Err: err})
				return
			}

			if !snap.Exists() {
				if !sub.send(ctx, GroupUpdate{Deleted: true}) {
					return
				}
				continue
			}

			var g models.Group
			if err := snap.DataTo(&g); err != nil {
				sub.send(ctx, GroupUpdate{Err: err})
				return
			}
			g.ID = snap.Ref.ID

			if !sub.send(ctx, GroupUpdate{Group: &g}) {
				return
			}
		}
	}()

	return sub
}
