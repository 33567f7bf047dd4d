package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	fbauth "firebase.google.com/go/v4/auth"

	"github.com/poof/backend/internal/middleware"
	"github.com/poof/backend/internal/models"
)

type AccountHandler struct {
	authClient *fbauth.Client
}

func NewAccountHandler(authClient *fbauth.Client) *AccountHandler {
	return &AccountHandler{authClient: authClient}
}

// DeleteAccount deletes the caller's Firebase Auth account. The resulting
// identity-deletion event drives the teardown worker, which cascades the
// deletion through Firestore and Storage. The client only ever sees a
// generic failure message.
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	if h.authClient == nil {
		writeJSON(w, http.StatusServiceUnavailable, models.NewErrorResponse("Account deletion unavailable, please try again"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	if err := h.authClient.DeleteUser(ctx, userID); err != nil {
		log.Printf("[DeleteAccount] uid=%s error=%v", userID, err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to delete account, please try again"))
		return
	}

	log.Printf("[DeleteAccount] uid=%s auth account deleted", userID)
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(nil))
}
