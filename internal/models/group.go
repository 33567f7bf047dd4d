package models

import (
	"time"
)

const (
	// MinTimerDays and MaxTimerDays bound the self-destruct slider.
	MinTimerDays = 1
	MaxTimerDays = 31
)

// Group is the groups/{groupId} document.
type Group struct {
	ID             string    `json:"id" firestore:"-"`
	Name           string    `json:"name" firestore:"name"`
	Description    string    `json:"description,omitempty" firestore:"description,omitempty"`
	OwnerID        string    `json:"ownerId" firestore:"ownerId"`
	MemberUserIDs  []string  `json:"memberUserIds" firestore:"memberUserIds"`
	InviteCode     string    `json:"inviteCode" firestore:"inviteCode"`
	CreatedAt      time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
	SelfDestructAt time.Time `json:"selfDestructAt" firestore:"selfDestructAt"`
	ImageURL       string    `json:"imageUrl,omitempty" firestore:"imageUrl,omitempty"`
	LastActivity   time.Time `json:"lastActivity" firestore:"lastActivity"`
}

// Expired reports whether the group has crossed its self-destruct instant.
// There is no persisted status field; every reader derives the state from
// the timestamp at read time.
func (g *Group) Expired(now time.Time) bool {
	return !now.Before(g.SelfDestructAt)
}

// HasMember reports whether uid is in the group's member set.
func (g *Group) HasMember(uid string) bool {
	for _, id := range g.MemberUserIDs {
		if id == uid {
			return true
		}
	}
	return false
}

// NextSelfDestructAt computes the expiry for a timer update. The window is
// always anchored to the invocation time, never to createdAt, so setting the
// same day count twice yields a later expiry the second time.
func NextSelfDestructAt(now time.Time, days int) time.Time {
	return now.Add(time.Duration(days) * 24 * time.Hour)
}

type CreateGroupRequest struct {
	Name                  string `json:"name"`
	Description           string `json:"description"`
	SelfDestructTimerDays int    `json:"selfDestructTimerDays"`
	ImageURL              string `json:"imageUrl"`
}

func (r *CreateGroupRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Name == "" {
		errors["name"] = "Name is required"
	} else if len(r.Name) > 100 {
		errors["name"] = "Name must be at most 100 characters"
	}
	if r.SelfDestructTimerDays < MinTimerDays || r.SelfDestructTimerDays > MaxTimerDays {
		errors["selfDestructTimerDays"] = "Timer must be between 1 and 31 days"
	}

	return errors
}

type UpdateTimerRequest struct {
	Days int `json:"days"`
}

func (r *UpdateTimerRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Days < MinTimerDays || r.Days > MaxTimerDays {
		errors["days"] = "Timer must be between 1 and 31 days"
	}

	return errors
}

type JoinGroupRequest struct {
	InviteCode string `json:"inviteCode"`
}

func (r *JoinGroupRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if len(r.InviteCode) != 8 {
		errors["inviteCode"] = "Invite code must be 8 characters"
	}

	return errors
}
