package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/poof/backend/internal/models"
	"github.com/poof/backend/internal/store"
)

var (
	ErrGroupNotFound     = errors.New("group not found")
	ErrGroupExpired      = errors.New("group has expired")
	ErrInvalidInviteCode = errors.New("invalid invite code")
	ErrNotGroupMember    = errors.New("not a group member")
	ErrOwnerCannotLeave  = errors.New("owner cannot leave their own group")
)

const inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// GroupService owns the group document lifecycle: creation, membership and
// the self-destruct timer. Expiry is never stored as a status field; every
// reader derives it from selfDestructAt at read time.
type GroupService struct {
	client *firestore.Client
}

func NewGroupService(client *firestore.Client) *GroupService {
	return &GroupService{client: client}
}

func (s *GroupService) groups() *firestore.CollectionRef {
	return s.client.Collection(store.GroupsCollection)
}

// newInviteCode samples 8 random alphanumeric characters. Codes are not
// checked against existing groups, so collisions are possible; join-by-code
// resolves a collision by matching the first group returned.
func newInviteCode() (string, error) {
	return inviteCodeFrom(rand.Reader)
}

func inviteCodeFrom(r io.Reader) (string, error) {
	// Largest multiple of the alphabet size that fits in a byte. Bytes at or
	// above it are rejected so every character is equally likely.
	const reject = byte(248)

	code := make([]byte, 0, 8)
	buf := make([]byte, 16)
	for len(code) < 8 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= reject || len(code) == 8 {
				continue
			}
			code = append(code, inviteCodeAlphabet[int(b)%len(inviteCodeAlphabet)])
		}
	}
	return string(code), nil
}

func (s *GroupService) Create(ctx context.Context, ownerID string, req *models.CreateGroupRequest) (*models.Group, error) {
	code, err := newInviteCode()
	if err != nil {
		return nil, fmt.Errorf("generating invite code: %w", err)
	}

	now := time.Now().UTC()
	group := models.Group{
		Name:           req.Name,
		Description:    req.Description,
		OwnerID:        ownerID,
		MemberUserIDs:  []string{ownerID},
		InviteCode:     code,
		SelfDestructAt: models.NextSelfDestructAt(now, req.SelfDestructTimerDays),
		ImageURL:       req.ImageURL,
		LastActivity:   now,
	}

	doc := s.groups().NewDoc()
	if _, err := doc.Set(ctx, group); err != nil {
		return nil, fmt.Errorf("creating group: %w", err)
	}

	group.ID = doc.ID
	group.CreatedAt = now
	return &group, nil
}

func (s *GroupService) GetByID(ctx context.Context, groupID string) (*models.Group, error) {
	snap, err := s.groups().Doc(groupID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading group %s: %w", groupID, err)
	}

	var g models.Group
	if err := snap.DataTo(&g); err != nil {
		return nil, fmt.Errorf("decoding group %s: %w", groupID, err)
	}
	g.ID = snap.Ref.ID
	return &g, nil
}

// JoinByCode adds uid to the first group matching the invite code. Expired
// groups refuse new members.
func (s *GroupService) JoinByCode(ctx context.Context, uid, code string) (*models.Group, error) {
	iter := s.groups().Where("inviteCode", "==", code).Limit(1).Documents(ctx)
	defer iter.Stop()

	snaps, err := iter.GetAll()
	if err != nil {
		return nil, fmt.Errorf("looking up invite code: %w", err)
	}
	if len(snaps) == 0 {
		return nil, ErrInvalidInviteCode
	}

	var g models.Group
	if err := snaps[0].DataTo(&g); err != nil {
		return nil, fmt.Errorf("decoding group %s: %w", snaps[0].Ref.ID, err)
	}
	g.ID = snaps[0].Ref.ID

	if g.Expired(time.Now().UTC()) {
		return nil, ErrGroupExpired
	}
	if g.HasMember(uid) {
		return &g, nil
	}

	if _, err := snaps[0].Ref.Update(ctx, []firestore.Update{
		{Path: "memberUserIds", Value: firestore.ArrayUnion(uid)},
	}); err != nil {
		return nil, fmt.Errorf("joining group %s: %w", g.ID, err)
	}

	g.MemberUserIDs = append(g.MemberUserIDs, uid)
	return &g, nil
}

// Leave removes uid from a group's member set. The owner cannot leave; their
// group's lifetime is tied to their account.
func (s *GroupService) Leave(ctx context.Context, uid, groupID string) error {
	g, err := s.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if g.OwnerID == uid {
		return ErrOwnerCannotLeave
	}
	if !g.HasMember(uid) {
		return ErrNotGroupMember
	}

	if _, err := s.groups().Doc(groupID).Update(ctx, []firestore.Update{
		{Path: "memberUserIds", Value: firestore.ArrayRemove(uid)},
	}); err != nil {
		return fmt.Errorf("leaving group %s: %w", groupID, err)
	}
	return nil
}

// SetTimer overwrites selfDestructAt with now + days. The window is anchored
// to the invocation time, not createdAt, so an owner can both extend and
// shorten the timer. Owner-only enforcement happens at the handler boundary.
func (s *GroupService) SetTimer(ctx context.Context, groupID string, days int) (time.Time, error) {
	newExpiry := models.NextSelfDestructAt(time.Now().UTC(), days)
	if err := s.updateSelfDestructAt(ctx, groupID, newExpiry); err != nil {
		return time.Time{}, err
	}
	return newExpiry, nil
}

// PoofNow flips the group to expired immediately by setting selfDestructAt to
// the current instant.
func (s *GroupService) PoofNow(ctx context.Context, groupID string) (time.Time, error) {
	now := time.Now().UTC()
	if err := s.updateSelfDestructAt(ctx, groupID, now); err != nil {
		return time.Time{}, err
	}
	return now, nil
}

func (s *GroupService) updateSelfDestructAt(ctx context.Context, groupID string, at time.Time) error {
	_, err := s.groups().Doc(groupID).Update(ctx, []firestore.Update{
		{Path: "selfDestructAt", Value: at},
	})
	if status.Code(err) == codes.NotFound {
		return ErrGroupNotFound
	}
	if err != nil {
		return fmt.Errorf("updating timer for group %s: %w", groupID, err)
	}
	return nil
}

// ListActive returns the caller's groups that have not yet expired.
func (s *GroupService) ListActive(ctx context.Context, uid string) ([]models.Group, error) {
	return s.listMember(ctx, uid, false)
}

// ListArchived returns the caller's groups whose self-destruct instant has
// passed. This backs the archive view expired groups redirect to.
func (s *GroupService) ListArchived(ctx context.Context, uid string) ([]models.Group, error) {
	return s.listMember(ctx, uid, true)
}

func (s *GroupService) listMember(ctx context.Context, uid string, expired bool) ([]models.Group, error) {
	now := time.Now().UTC()
	q := s.groups().Where("memberUserIds", "array-contains", uid)
	if expired {
		q = q.Where("selfDestructAt", "<=", now).OrderBy("selfDestructAt", firestore.Desc)
	} else {
		q = q.Where("selfDestructAt", ">", now).OrderBy("selfDestructAt", firestore.Asc)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var groups []models.Group
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing groups for uid=%s: %w", uid, err)
		}
		var g models.Group
		if err := doc.DataTo(&g); err != nil {
			return nil, fmt.Errorf("decoding group %s: %w", doc.Ref.ID, err)
		}
		g.ID = doc.Ref.ID
		groups = append(groups, g)
	}
	return groups, nil
}
