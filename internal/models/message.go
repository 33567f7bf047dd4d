package models

import (
	"time"
)

// Media types accepted on a message.
const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
	MediaTypeFile  = "file"
)

// Message is a groups/{groupId}/messages/{messageId} document. Messages are
// never edited after send; only the reactions map is mutated.
type Message struct {
	ID        string              `json:"id" firestore:"-"`
	SenderID  string              `json:"senderId" firestore:"senderId"`
	CreatedAt time.Time           `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	Text      string              `json:"text,omitempty" firestore:"text,omitempty"`
	MediaURL  string              `json:"mediaUrl,omitempty" firestore:"mediaUrl,omitempty"`
	MediaType string              `json:"mediaType,omitempty" firestore:"mediaType,omitempty"`
	FileName  string              `json:"fileName,omitempty" firestore:"fileName,omitempty"`
	FileSize  int64               `json:"fileSize,omitempty" firestore:"fileSize,omitempty"`
	Reactions map[string][]string `json:"reactions,omitempty" firestore:"reactions,omitempty"`
}

// ToggleReaction applies remove-then-add semantics: the user is first removed
// from every emoji's reactor set, then added under emoji. If they were already
// under that emoji the toggle clears their reaction entirely. A user therefore
// appears in at most one emoji's set per message.
func ToggleReaction(reactions map[string][]string, emoji, uid string) map[string][]string {
	next := make(map[string][]string, len(reactions))
	hadEmoji := false
	for e, users := range reactions {
		kept := make([]string, 0, len(users))
		for _, u := range users {
			if u == uid {
				if e == emoji {
					hadEmoji = true
				}
				continue
			}
			kept = append(kept, u)
		}
		if len(kept) > 0 {
			next[e] = kept
		}
	}
	if !hadEmoji {
		next[emoji] = append(next[emoji], uid)
	}
	return next
}

type SendMessageRequest struct {
	Text      string `json:"text"`
	MediaURL  string `json:"mediaUrl"`
	MediaType string `json:"mediaType"`
	FileName  string `json:"fileName"`
	FileSize  int64  `json:"fileSize"`
}

func (r *SendMessageRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Text == "" && r.MediaURL == "" {
		errors["text"] = "Message must have text or media"
	}
	if r.MediaURL != "" {
		switch r.MediaType {
		case MediaTypeImage, MediaTypeVideo, MediaTypeFile:
		default:
			errors["mediaType"] = "Media type must be image, video or file"
		}
	}

	return errors
}

type ToggleReactionRequest struct {
	Emoji string `json:"emoji"`
}

func (r *ToggleReactionRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Emoji == "" {
		errors["emoji"] = "Emoji is required"
	}

	return errors
}
