package store

import (
	"context"
	"errors"
	"time"

	"github.com/poof/backend/internal/models"
)

var (
	// ErrDocNotFound is returned when a requested document does not exist.
	ErrDocNotFound = errors.New("document not found")
	// ErrBlobNotFound is returned when a blob delete targets an object that
	// is already absent. Callers treat it as "nothing to do".
	ErrBlobNotFound = errors.New("blob not found")
)

// DocStore is the document-store surface the teardown orchestrator and the
// expired-group sweep need. It is deliberately narrow so tests can run
// against an in-memory fake instead of a live Firestore project.
type DocStore interface {
	// GetUserProfile reads users/{uid}. Returns ErrDocNotFound if absent.
	GetUserProfile(ctx context.Context, uid string) (*models.UserProfile, error)

	// GroupsOwnedBy returns every group whose ownerId equals uid.
	GroupsOwnedBy(ctx context.Context, uid string) ([]models.Group, error)

	// GroupsWithMember returns every group whose memberUserIds contains uid,
	// including groups the user owns.
	GroupsWithMember(ctx context.Context, uid string) ([]models.Group, error)

	// ExpiredGroups returns every group whose selfDestructAt is at or before now.
	ExpiredGroups(ctx context.Context, now time.Time) ([]models.Group, error)

	// PurgeGroupMessages deletes the full messages subcollection of a group in
	// batches of batchSize. Returns the number of batches committed.
	PurgeGroupMessages(ctx context.Context, groupID string, batchSize int) (int, error)

	// Batch starts a write batch. All scheduled mutations commit atomically.
	Batch() WriteBatch
}

// WriteBatch schedules document mutations for a single atomic commit.
// Deleting an absent document and removing an absent member are both no-ops,
// which keeps a full teardown retry safe.
type WriteBatch interface {
	DeleteUserProfile(uid string)
	DeleteUsernameReservation(key string)
	DeleteGroup(groupID string)
	RemoveGroupMember(groupID, uid string)
	Commit(ctx context.Context) error
}

// BlobStore is the avatar blob surface. Delete of an absent object returns
// ErrBlobNotFound; callers swallow that case.
type BlobStore interface {
	DeleteUserAvatar(ctx context.Context, uid string) error
	DeleteGroupAvatar(ctx context.Context, ownerID, groupID string) error
	UploadUserAvatar(ctx context.Context, uid string, data []byte, contentType string) (string, error)
	UploadGroupAvatar(ctx context.Context, ownerID, groupID string, data []byte, contentType string) (string, error)
}
