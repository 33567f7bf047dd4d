package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/poof/backend/internal/models"
	"github.com/poof/backend/internal/store"
)

// fakeStore is an in-memory store.DocStore for exercising the teardown and
// sweep orchestrators without a Firestore backend.
type fakeStore struct {
	users     map[string]*models.UserProfile
	usernames map[string]string // reservation key -> uid
	groups    map[string]*models.Group
	messages  map[string][]string // groupID -> message IDs

	purgeBatchSizes []int
	committedOps    int
	failOwnedQuery  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[string]*models.UserProfile),
		usernames: make(map[string]string),
		groups:    make(map[string]*models.Group),
		messages:  make(map[string][]string),
	}
}

func (s *fakeStore) addUser(uid, username string) {
	s.users[uid] = &models.UserProfile{UID: uid, Username: username}
	if username != "" {
		s.usernames[models.ReservationKey(username)] = uid
	}
}

func (s *fakeStore) addGroup(id, ownerID string, members []string, messageCount int) {
	s.groups[id] = &models.Group{
		ID:            id,
		OwnerID:       ownerID,
		MemberUserIDs: append([]string(nil), members...),
	}
	for i := 0; i < messageCount; i++ {
		s.messages[id] = append(s.messages[id], fmt.Sprintf("msg-%d", i))
	}
}

func (s *fakeStore) GetUserProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	prof, ok := s.users[uid]
	if !ok {
		return nil, store.ErrDocNotFound
	}
	return prof, nil
}

func (s *fakeStore) GroupsOwnedBy(ctx context.Context, uid string) ([]models.Group, error) {
	if s.failOwnedQuery {
		return nil, errors.New("simulated query failure")
	}
	var out []models.Group
	for _, id := range s.sortedGroupIDs() {
		if s.groups[id].OwnerID == uid {
			out = append(out, *s.groups[id])
		}
	}
	return out, nil
}

func (s *fakeStore) GroupsWithMember(ctx context.Context, uid string) ([]models.Group, error) {
	var out []models.Group
	for _, id := range s.sortedGroupIDs() {
		if s.groups[id].HasMember(uid) {
			out = append(out, *s.groups[id])
		}
	}
	return out, nil
}

func (s *fakeStore) ExpiredGroups(ctx context.Context, now time.Time) ([]models.Group, error) {
	var out []models.Group
	for _, id := range s.sortedGroupIDs() {
		if s.groups[id].Expired(now) {
			out = append(out, *s.groups[id])
		}
	}
	return out, nil
}

func (s *fakeStore) sortedGroupIDs() []string {
	ids := make([]string, 0, len(s.groups))
	for id := range s.groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *fakeStore) PurgeGroupMessages(ctx context.Context, groupID string, batchSize int) (int, error) {
	s.purgeBatchSizes = append(s.purgeBatchSizes, batchSize)
	n := len(s.messages[groupID])
	delete(s.messages, groupID)
	if n == 0 {
		return 0, nil
	}
	return (n + batchSize - 1) / batchSize, nil
}

func (s *fakeStore) Batch() store.WriteBatch {
	return &fakeBatch{store: s}
}

type batchOp struct {
	kind    string
	id      string
	groupID string
}

type fakeBatch struct {
	store *fakeStore
	ops   []batchOp
}

func (b *fakeBatch) DeleteUserProfile(uid string) {
	b.ops = append(b.ops, batchOp{kind: "deleteUser", id: uid})
}

func (b *fakeBatch) DeleteUsernameReservation(key string) {
	b.ops = append(b.ops, batchOp{kind: "deleteUsername", id: key})
}

func (b *fakeBatch) DeleteGroup(groupID string) {
	b.ops = append(b.ops, batchOp{kind: "deleteGroup", groupID: groupID})
}

func (b *fakeBatch) RemoveGroupMember(groupID, uid string) {
	b.ops = append(b.ops, batchOp{kind: "removeMember", id: uid, groupID: groupID})
}

func (b *fakeBatch) Commit(ctx context.Context) error {
	for _, op := range b.ops {
		switch op.kind {
		case "deleteUser":
			delete(b.store.users, op.id)
		case "deleteUsername":
			delete(b.store.usernames, op.id)
		case "deleteGroup":
			delete(b.store.groups, op.groupID)
		case "removeMember":
			g, ok := b.store.groups[op.groupID]
			if !ok {
				continue
			}
			kept := g.MemberUserIDs[:0]
			for _, m := range g.MemberUserIDs {
				if m != op.id {
					kept = append(kept, m)
				}
			}
			g.MemberUserIDs = kept
		}
	}
	b.store.committedOps += len(b.ops)
	return nil
}

// fakeBlobStore records deletes and can simulate absent blobs or failures.
type fakeBlobStore struct {
	userAvatars  map[string]bool // uid -> exists
	groupAvatars map[string]bool // ownerID/groupID -> exists

	userDeletes  []string
	groupDeletes []string
	failAll      bool
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{
		userAvatars:  make(map[string]bool),
		groupAvatars: make(map[string]bool),
	}
}

func (b *fakeBlobStore) DeleteUserAvatar(ctx context.Context, uid string) error {
	b.userDeletes = append(b.userDeletes, uid)
	if b.failAll {
		return errors.New("simulated blob failure")
	}
	if !b.userAvatars[uid] {
		return store.ErrBlobNotFound
	}
	delete(b.userAvatars, uid)
	return nil
}

func (b *fakeBlobStore) DeleteGroupAvatar(ctx context.Context, ownerID, groupID string) error {
	key := ownerID + "/" + groupID
	b.groupDeletes = append(b.groupDeletes, key)
	if b.failAll {
		return errors.New("simulated blob failure")
	}
	if !b.groupAvatars[key] {
		return store.ErrBlobNotFound
	}
	delete(b.groupAvatars, key)
	return nil
}

func (b *fakeBlobStore) UploadUserAvatar(ctx context.Context, uid string, data []byte, contentType string) (string, error) {
	b.userAvatars[uid] = true
	return "fake://user/" + uid, nil
}

func (b *fakeBlobStore) UploadGroupAvatar(ctx context.Context, ownerID, groupID string, data []byte, contentType string) (string, error) {
	b.groupAvatars[ownerID+"/"+groupID] = true
	return "fake://group/" + ownerID + "/" + groupID, nil
}
