package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/poof/backend/internal/middleware"
	"github.com/poof/backend/internal/models"
	"github.com/poof/backend/internal/services"
	"github.com/poof/backend/internal/store"
)

type UserHandler struct {
	users           *services.UserService
	blobs           store.BlobStore
	maxUploadSizeMB int64
}

func NewUserHandler(users *services.UserService, blobs store.BlobStore, maxUploadSizeMB int64) *UserHandler {
	return &UserHandler{users: users, blobs: blobs, maxUploadSizeMB: maxUploadSizeMB}
}

// CreateProfile bootstraps users/{uid} plus its username reservation after
// sign-up. The two documents are written atomically by the service.
func (h *UserHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}
	email := middleware.GetUserEmail(r.Context())

	var req models.CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	prof, err := h.users.CreateProfile(ctx, userID, email, &req)
	if err != nil {
		if err == services.ErrUsernameTaken {
			writeJSON(w, http.StatusConflict, models.NewErrorResponse("Username already taken"))
			return
		}
		log.Printf("[CreateProfile] uid=%s error=%v", userID, err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to create profile"))
		return
	}
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(prof))
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	prof, err := h.users.GetProfile(ctx, userID)
	if err != nil {
		if err == services.ErrUserNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Profile not found"))
			return
		}
		log.Printf("[GetMe] uid=%s error=%v", userID, err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to load profile"))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(prof))
}

// UsernameAvailable checks whether a username's reservation slot is free.
func (h *UserHandler) UsernameAvailable(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	available, err := h.users.UsernameAvailable(ctx, username)
	if err != nil {
		log.Printf("[UsernameAvailable] username=%s error=%v", username, err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to check username"))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]bool{"available": available}))
}

// UploadAvatar stores the caller's avatar at the deterministic per-user path.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	data, contentType, ok := readAvatarUpload(w, r, h.maxUploadSizeMB)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	url, err := h.blobs.UploadUserAvatar(ctx, userID, data, contentType)
	if err != nil {
		log.Printf("[UploadAvatar] uid=%s error=%v", userID, err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to upload avatar"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(models.AvatarUploadResponse{
		URL:  url,
		Path: store.UserAvatarPath(userID),
	}))
}

// readAvatarUpload pulls the "avatar" file out of a multipart form, enforcing
// the upload size cap. Writes its own error response when it returns !ok.
func readAvatarUpload(w http.ResponseWriter, r *http.Request, maxMB int64) ([]byte, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxMB<<20)
	if err := r.ParseMultipartForm(maxMB << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid or too large upload"))
		return nil, "", false
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Missing avatar file"))
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Failed to read upload"))
		return nil, "", false
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, true
}
