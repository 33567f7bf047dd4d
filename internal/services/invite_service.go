package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidInviteToken = errors.New("invalid or expired invite token")

// InviteService mints and verifies signed invite-link tokens. A token embeds
// the group ID and its invite code so a share link can be redeemed without
// typing the code; the signature stops links from being forged for arbitrary
// groups.
type InviteService struct {
	secret []byte
	ttl    time.Duration
}

func NewInviteService(secret string, ttl time.Duration) *InviteService {
	if ttl == 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &InviteService{secret: []byte(secret), ttl: ttl}
}

// Mint returns a signed token for a group invite.
func (s *InviteService) Mint(groupID, inviteCode string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"group_id":    groupID,
		"invite_code": inviteCode,
		"iat":         now.Unix(),
		"exp":         now.Add(s.ttl).Unix(),
	})
	return token.SignedString(s.secret)
}

// Verify checks the signature and expiry and returns the embedded group ID
// and invite code.
func (s *InviteService) Verify(tokenString string) (groupID, inviteCode string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", "", ErrInvalidInviteToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", ErrInvalidInviteToken
	}

	groupID, ok = claims["group_id"].(string)
	if !ok || groupID == "" {
		return "", "", ErrInvalidInviteToken
	}
	inviteCode, ok = claims["invite_code"].(string)
	if !ok || inviteCode == "" {
		return "", "", ErrInvalidInviteToken
	}
	return groupID, inviteCode, nil
}
