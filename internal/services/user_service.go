package services

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/poof/backend/internal/models"
	"github.com/poof/backend/internal/store"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")
)

// UserService manages users/{uid} profiles and their usernames/{lower}
// reservation documents. Invariant: a reservation exists iff exactly one
// profile claims that username (case-insensitive), so both documents are
// always written in the same transaction.
type UserService struct {
	client *firestore.Client
}

func NewUserService(client *firestore.Client) *UserService {
	return &UserService{client: client}
}

// CreateProfile writes the profile and the username reservation atomically.
// Fails with ErrUsernameTaken if another uid already holds the reservation;
// re-running for the same uid is a no-op refresh of the same documents.
func (s *UserService) CreateProfile(ctx context.Context, uid, email string, req *models.CreateProfileRequest) (*models.UserProfile, error) {
	key := models.ReservationKey(req.Username)
	userRef := s.client.Collection(store.UsersCollection).Doc(uid)
	nameRef := s.client.Collection(store.UsernamesCollection).Doc(key)

	prof := models.UserProfile{
		Username: req.Username,
		Email:    email,
		PhotoURL: req.PhotoURL,
	}

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// All reads come first; Firestore transactions forbid reads after
		// the first write.
		prevUsername := ""
		prevSnap, err := tx.Get(userRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if prevSnap != nil && prevSnap.Exists() {
			var prev models.UserProfile
			if err := prevSnap.DataTo(&prev); err != nil {
				return err
			}
			prevUsername = prev.Username
		}

		snap, err := tx.Get(nameRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if snap != nil && snap.Exists() {
			var res models.UsernameReservation
			if err := snap.DataTo(&res); err != nil {
				return err
			}
			if res.UID != uid {
				return ErrUsernameTaken
			}
		}

		// Re-creating a profile under a new username frees the old
		// reservation; otherwise nothing claims it and the name is squatted.
		if stale := models.StaleReservationKey(prevUsername, req.Username); stale != "" {
			if err := tx.Delete(s.client.Collection(store.UsernamesCollection).Doc(stale)); err != nil {
				return err
			}
		}

		if err := tx.Set(nameRef, models.UsernameReservation{UID: uid}); err != nil {
			return err
		}
		return tx.Set(userRef, prof)
	})
	if err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("creating profile for uid=%s: %w", uid, err)
	}

	prof.UID = uid
	return &prof, nil
}

func (s *UserService) GetProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	snap, err := s.client.Collection(store.UsersCollection).Doc(uid).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading profile for uid=%s: %w", uid, err)
	}

	var prof models.UserProfile
	if err := snap.DataTo(&prof); err != nil {
		return nil, fmt.Errorf("decoding profile for uid=%s: %w", uid, err)
	}
	prof.UID = snap.Ref.ID
	return &prof, nil
}

// UsernameAvailable reports whether a username's reservation slot is free.
func (s *UserService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	key := models.ReservationKey(username)
	_, err := s.client.Collection(store.UsernamesCollection).Doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking username %s: %w", key, err)
	}
	return false, nil
}
