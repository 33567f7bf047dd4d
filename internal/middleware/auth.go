package middleware

import (
	"context"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/poof/backend/internal/models"
)

type contextKey string

const (
	UserIDKey    contextKey = "userID"
	UserEmailKey contextKey = "userEmail"
)

// FirebaseAuthConfig configures server-side verification of Firebase ID tokens.
type FirebaseAuthConfig struct {
	ProjectID       string
	CredentialsJSON string
	CredentialsFile string
}

// NewFirebaseAuthClient initializes the Firebase Admin SDK auth client used
// both for verifying ID tokens and for deleting accounts.
func NewFirebaseAuthClient(ctx context.Context, cfg FirebaseAuthConfig) (*fbauth.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	} else if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, err
	}
	return app.Auth(ctx)
}

// FirebaseAuth middleware verifies the Bearer ID token and stores the
// caller's uid and email in the request context.
func FirebaseAuth(authClient *fbauth.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authClient == nil {
				writeJSON(w, http.StatusServiceUnavailable, models.NewErrorResponse("Auth not configured"))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Authorization header required"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid authorization header format"))
				return
			}

			token, err := authClient.VerifyIDToken(r.Context(), parts[1])
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid or expired token"))
				return
			}

			email := ""
			if v, ok := token.Claims["email"].(string); ok {
				email = v
			}

			ctx := context.WithValue(r.Context(), UserIDKey, token.UID)
			ctx = context.WithValue(ctx, UserEmailKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(UserIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetUserEmail extracts the user's email from context
func GetUserEmail(ctx context.Context) string {
	email, ok := ctx.Value(UserEmailKey).(string)
	if !ok {
		return ""
	}
	return email
}
