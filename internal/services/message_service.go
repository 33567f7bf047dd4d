package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/poof/backend/internal/models"
	"github.com/poof/backend/internal/store"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageService writes and reads the messages subcollection of a group.
// Messages are immutable after send except the reactions map.
type MessageService struct {
	client *firestore.Client
	groups *GroupService
}

func NewMessageService(client *firestore.Client, groups *GroupService) *MessageService {
	return &MessageService{client: client, groups: groups}
}

func (s *MessageService) messages(groupID string) *firestore.CollectionRef {
	return s.client.Collection(store.GroupsCollection).Doc(groupID).Collection(store.MessagesCollection)
}

// Send appends a message and bumps the group's lastActivity. Expired groups
// are write-gated: sends to them fail with ErrGroupExpired.
func (s *MessageService) Send(ctx context.Context, groupID, senderID string, req *models.SendMessageRequest) (*models.Message, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.HasMember(senderID) {
		return nil, ErrNotGroupMember
	}

	now := time.Now().UTC()
	if g.Expired(now) {
		return nil, ErrGroupExpired
	}

	msg := models.Message{
		SenderID:  senderID,
		Text:      req.Text,
		MediaURL:  req.MediaURL,
		MediaType: req.MediaType,
		FileName:  req.FileName,
		FileSize:  req.FileSize,
	}

	doc := s.messages(groupID).NewDoc()
	if _, err := doc.Set(ctx, msg); err != nil {
		return nil, fmt.Errorf("sending message to group %s: %w", groupID, err)
	}

	if _, err := s.client.Collection(store.GroupsCollection).Doc(groupID).Update(ctx, []firestore.Update{
		{Path: "lastActivity", Value: now},
	}); err != nil {
		return nil, fmt.Errorf("bumping lastActivity for group %s: %w", groupID, err)
	}

	msg.ID = doc.ID
	msg.CreatedAt = now
	return &msg, nil
}

// List returns a group's messages ordered oldest-first. Expired groups stay
// readable; the archive view renders them.
func (s *MessageService) List(ctx context.Context, groupID, uid string, limit int) ([]models.Message, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.HasMember(uid) {
		return nil, ErrNotGroupMember
	}

	// Limit-to-last queries cannot be streamed by the Firestore client, so a
	// bounded read takes the newest window in descending order and flips it
	// back to oldest-first afterwards.
	q := s.messages(groupID).OrderBy("createdAt", firestore.Asc)
	if limit > 0 {
		q = s.messages(groupID).OrderBy("createdAt", firestore.Desc).Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var msgs []models.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing messages for group %s: %w", groupID, err)
		}
		var m models.Message
		if err := doc.DataTo(&m); err != nil {
			return nil, fmt.Errorf("decoding message %s: %w", doc.Ref.ID, err)
		}
		m.ID = doc.Ref.ID
		msgs = append(msgs, m)
	}
	if limit > 0 {
		reverseMessages(msgs)
	}
	return msgs, nil
}

// reverseMessages flips a descending-ordered page back to oldest-first.
func reverseMessages(msgs []models.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

// ToggleReaction applies remove-then-add reaction semantics inside a
// transaction so concurrent toggles on the same message cannot leave a user
// under two emojis.
func (s *MessageService) ToggleReaction(ctx context.Context, groupID, messageID, uid, emoji string) (map[string][]string, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !g.HasMember(uid) {
		return nil, ErrNotGroupMember
	}

	ref := s.messages(groupID).Doc(messageID)

	var next map[string][]string
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return ErrMessageNotFound
		}
		if err != nil {
			return err
		}

		var m models.Message
		if err := snap.DataTo(&m); err != nil {
			return err
		}

		next = models.ToggleReaction(m.Reactions, emoji, uid)
		return tx.Update(ref, []firestore.Update{
			{Path: "reactions", Value: next},
		})
	})
	if err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("toggling reaction on %s/%s: %w", groupID, messageID, err)
	}
	return next, nil
}
