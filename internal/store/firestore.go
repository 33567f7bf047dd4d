package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/poof/backend/internal/models"
)

// Firestore collection names.
const (
	UsersCollection     = "users"
	UsernamesCollection = "usernames"
	GroupsCollection    = "groups"
	MessagesCollection  = "messages"
)

// FirestoreStore implements DocStore on top of Cloud Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

var _ DocStore = (*FirestoreStore)(nil)

func NewFirestoreStore(client *firestore.Client) (*FirestoreStore, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}
	return &FirestoreStore{client: client}, nil
}

// Client exposes the underlying Firestore client for services that operate on
// collections directly (groups, messages, profiles).
func (s *FirestoreStore) Client() *firestore.Client {
	return s.client
}

func (s *FirestoreStore) GetUserProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	snap, err := s.client.Collection(UsersCollection).Doc(uid).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrDocNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading users/%s: %w", uid, err)
	}

	var prof models.UserProfile
	if err := snap.DataTo(&prof); err != nil {
		return nil, fmt.Errorf("decoding users/%s: %w", uid, err)
	}
	prof.UID = snap.Ref.ID
	return &prof, nil
}

func (s *FirestoreStore) GroupsOwnedBy(ctx context.Context, uid string) ([]models.Group, error) {
	iter := s.client.Collection(GroupsCollection).Where("ownerId", "==", uid).Documents(ctx)
	return collectGroups(iter)
}

func (s *FirestoreStore) GroupsWithMember(ctx context.Context, uid string) ([]models.Group, error) {
	iter := s.client.Collection(GroupsCollection).
		Where("memberUserIds", "array-contains", uid).
		Documents(ctx)
	return collectGroups(iter)
}

func (s *FirestoreStore) ExpiredGroups(ctx context.Context, now time.Time) ([]models.Group, error) {
	iter := s.client.Collection(GroupsCollection).
		Where("selfDestructAt", "<=", now).
		Documents(ctx)
	return collectGroups(iter)
}

func collectGroups(iter *firestore.DocumentIterator) ([]models.Group, error) {
	defer iter.Stop()

	var groups []models.Group
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating groups: %w", err)
		}

		var g models.Group
		if err := doc.DataTo(&g); err != nil {
			return nil, fmt.Errorf("decoding groups/%s: %w", doc.Ref.ID, err)
		}
		g.ID = doc.Ref.ID
		groups = append(groups, g)
	}
	return groups, nil
}

func (s *FirestoreStore) PurgeGroupMessages(ctx context.Context, groupID string, batchSize int) (int, error) {
	col := s.client.Collection(GroupsCollection).Doc(groupID).Collection(MessagesCollection)
	return Purge(ctx, &firestoreCollection{client: s.client, col: col}, batchSize)
}

// firestoreCollection adapts a Firestore collection to PurgeableCollection.
type firestoreCollection struct {
	client *firestore.Client
	col    *firestore.CollectionRef
}

func (c *firestoreCollection) NextBatch(ctx context.Context, limit int) ([]string, error) {
	iter := c.col.Limit(limit).Documents(ctx)
	defer iter.Stop()

	var ids []string
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, doc.Ref.ID)
	}
	return ids, nil
}

func (c *firestoreCollection) DeleteBatch(ctx context.Context, ids []string) error {
	batch := c.client.Batch()
	for _, id := range ids {
		batch.Delete(c.col.Doc(id))
	}
	_, err := batch.Commit(ctx)
	return err
}

func (s *FirestoreStore) Batch() WriteBatch {
	return &firestoreBatch{client: s.client, batch: s.client.Batch()}
}

type firestoreBatch struct {
	client *firestore.Client
	batch  *firestore.WriteBatch
	ops    int
}

func (b *firestoreBatch) DeleteUserProfile(uid string) {
	b.batch.Delete(b.client.Collection(UsersCollection).Doc(uid))
	b.ops++
}

func (b *firestoreBatch) DeleteUsernameReservation(key string) {
	b.batch.Delete(b.client.Collection(UsernamesCollection).Doc(key))
	b.ops++
}

func (b *firestoreBatch) DeleteGroup(groupID string) {
	b.batch.Delete(b.client.Collection(GroupsCollection).Doc(groupID))
	b.ops++
}

func (b *firestoreBatch) RemoveGroupMember(groupID, uid string) {
	// ArrayRemove commutes with concurrent array-union writes from other
	// clients, so no lock is needed around membership pruning.
	b.batch.Update(b.client.Collection(GroupsCollection).Doc(groupID), []firestore.Update{
		{Path: "memberUserIds", Value: firestore.ArrayRemove(uid)},
	})
	b.ops++
}

func (b *firestoreBatch) Commit(ctx context.Context) error {
	if b.ops == 0 {
		return nil
	}
	if _, err := b.batch.Commit(ctx); err != nil {
		return fmt.Errorf("committing batch of %d writes: %w", b.ops, err)
	}
	return nil
}
