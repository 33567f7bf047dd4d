package models

import (
	"regexp"
	"strings"
	"time"
)

// UserProfile is the users/{uid} document. The uid itself comes from Firebase
// Auth and is the document ID, not a field.
type UserProfile struct {
	UID       string    `json:"uid" firestore:"-"`
	Username  string    `json:"username" firestore:"username"`
	Email     string    `json:"email" firestore:"email"`
	PhotoURL  string    `json:"photoURL,omitempty" firestore:"photoURL,omitempty"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt,serverTimestamp"`
}

// UsernameReservation is the usernames/{lowercasedName} document. It exists
// solely to claim a username case-insensitively; the document ID is the
// lowercased name.
type UsernameReservation struct {
	UID string `firestore:"uid"`
}

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,20}$`)

type CreateProfileRequest struct {
	Username string `json:"username"`
	PhotoURL string `json:"photoURL"`
}

func (r *CreateProfileRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Username == "" {
		errors["username"] = "Username is required"
	} else if !usernameRe.MatchString(r.Username) {
		errors["username"] = "Username must be 3-20 characters (letters, numbers, underscore)"
	}

	return errors
}

// ReservationKey returns the usernames/ document ID for a username.
// Reservations are case-insensitive.
func ReservationKey(username string) string {
	return strings.ToLower(username)
}

// StaleReservationKey returns the reservation key a username change leaves
// behind, or "" when the key is unchanged. A pure case change maps to the same
// key and leaves nothing stale.
func StaleReservationKey(oldUsername, newUsername string) string {
	old := ReservationKey(oldUsername)
	if old == "" || old == ReservationKey(newUsername) {
		return ""
	}
	return old
}
