package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/poof/backend/internal/middleware"
	"github.com/poof/backend/internal/models"
	"github.com/poof/backend/internal/services"
	"github.com/poof/backend/internal/store"
)

type GroupHandler struct {
	groups          *services.GroupService
	invites         *services.InviteService
	watcher         *store.FirestoreStore
	blobs           store.BlobStore
	maxUploadSizeMB int64
}

func NewGroupHandler(groups *services.GroupService, invites *services.InviteService, watcher *store.FirestoreStore, blobs store.BlobStore, maxUploadSizeMB int64) *GroupHandler {
	return &GroupHandler{
		groups:          groups,
		invites:         invites,
		watcher:         watcher,
		blobs:           blobs,
		maxUploadSizeMB: maxUploadSizeMB,
	}
}

// loadGroupForMember resolves the group and verifies the caller belongs to
// it, writing the error response itself when it returns nil.
func (h *GroupHandler) loadGroupForMember(w http.ResponseWriter, r *http.Request) (*models.Group, string) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return nil, ""
	}

	groupID := chi.URLParam(r, "groupId")
	g, err := h.groups.GetByID(r.Context(), groupID)
	if err != nil {
		if err == services.ErrGroupNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Group not found"))
			return nil, ""
		}
		log.Printf("[Group] id=%s error=%v", groupID, err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to load group"))
		return nil, ""
	}
	if !g.HasMember(userID) {
		writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Not a member of this group"))
		return nil, ""
	}
	return g, userID
}

func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	var req models.CreateGroupRequest
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

	group, err := h.groups.Create(ctx, userID, &req)
	if err != nil {
		log.Printf("[CreateGroup] uid=%s error=%v", userID, err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to create group"))
		return
	}

	log.Printf("[CreateGroup] uid=%s group=%s expires=%s", userID, group.ID, group.SelfDestructAt.Format(time.RFC3339))
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(group))
}

func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	g, _ := h.loadGroupForMember(w, r)
	if g == nil {
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(g))
}

func (h *GroupHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

// ListArchived backs the archive view expired groups redirect to.
func (h *GroupHandler) ListArchived(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *GroupHandler) list(w http.ResponseWriter, r *http.Request, archived bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var (
		groups []models.Group
		err    error
	)
	if archived {
		groups, err = h.groups.ListArchived(ctx, userID)
	} else {
		groups, err = h.groups.ListActive(ctx, userID)
	}
	if err != nil {
		log.Printf("[ListGroups] uid=%s archived=%v error=%v", userID, archived, err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to list groups"))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(groups))
}

func (h *GroupHandler) JoinGroup(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	var req models.JoinGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	h.join(w, r, userID, req.InviteCode)
}

// JoinByLink redeems a signed invite-link token minted by InviteLink.
func (h *GroupHandler) JoinByLink(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	_, code, err := h.invites.Verify(req.Token)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid or expired invite link"))
		return
	}

	h.join(w, r, userID, code)
}

func (h *GroupHandler) join(w http.ResponseWriter, r *http.Request, userID, code string) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	group, err := h.groups.JoinByCode(ctx, userID, code)
	if err != nil {
		switch err {
		case services.ErrInvalidInviteCode:
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Invalid invite code"))
		case services.ErrGroupExpired:
			writeJSON(w, http.StatusGone, models.NewErrorResponse("This group has already poofed"))
		default:
			log.Printf("[JoinGroup] uid=%s error=%v", userID, err)
			writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to join group"))
		}
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(group))
}

func (h *GroupHandler) LeaveGroup(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}
	groupID := chi.URLParam(r, "groupId")

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.groups.Leave(ctx, userID, groupID); err != nil {
		switch err {
		case services.ErrGroupNotFound:
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Group not found"))
		case services.ErrOwnerCannotLeave:
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Owner cannot leave their own group"))
		case services.ErrNotGroupMember:
			writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Not a member of this group"))
		default:
			log.Printf("[LeaveGroup] uid=%s group=%s error=%v", userID, groupID, err)
			writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to leave group"))
		}
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(nil))
}

// requireOwner resolves the group and verifies the caller owns it. Timer
// mutations are owner-only; this handler layer is the policy boundary, the
// service mutation itself is unconditional.
func (h *GroupHandler) requireOwner(w http.ResponseWriter, r *http.Request) *models.Group {
	g, userID := h.loadGroupForMember(w, r)
	if g == nil {
		return nil
	}
	if g.OwnerID != userID {
		writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Only the group owner can do this"))
		return nil
	}
	return g
}

func (h *GroupHandler) UpdateTimer(w http.ResponseWriter, r *http.Request) {
	g := h.requireOwner(w, r)
	if g == nil {
		return
	}

	var req models.UpdateTimerRequest
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

	newExpiry, err := h.groups.SetTimer(ctx, g.ID, req.Days)
	if err != nil {
		log.Printf("[UpdateTimer] group=%s error=%v", g.ID, err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Could not update timer"))
		return
	}

	log.Printf("[UpdateTimer] group=%s days=%d expires=%s", g.ID, req.Days, newExpiry.Format(time.RFC3339))
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]time.Time{"selfDestructAt": newExpiry}))
}

// PoofNow expires the group immediately. Clients observing the group redirect
// to the archive view on the next snapshot.
func (h *GroupHandler) PoofNow(w http.ResponseWriter, r *http.Request) {
	g := h.requireOwner(w, r)
	if g == nil {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	at, err := h.groups.PoofNow(ctx, g.ID)
	if err != nil {
		log.Printf("[PoofNow] group=%s error=%v", g.ID, err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Could not poof group"))
		return
	}

	log.Printf("[PoofNow] group=%s poofed at=%s", g.ID, at.Format(time.RFC3339))
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]time.Time{"selfDestructAt": at}))
}

// InviteLink mints a signed shareable invite token for the group.
func (h *GroupHandler) InviteLink(w http.ResponseWriter, r *http.Request) {
	g := h.requireOwner(w, r)
	if g == nil {
		return
	}

	token, err := h.invites.Mint(g.ID, g.InviteCode)
	if err != nil {
		log.Printf("[InviteLink] group=%s error=%v", g.ID, err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to create invite link"))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"token": token}))
}

func (h *GroupHandler) UploadGroupAvatar(w http.ResponseWriter, r *http.Request) {
	g := h.requireOwner(w, r)
	if g == nil {
		return
	}

	data, contentType, ok := readAvatarUpload(w, r, h.maxUploadSizeMB)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	url, err := h.blobs.UploadGroupAvatar(ctx, g.OwnerID, g.ID, data, contentType)
	if err != nil {
		log.Printf("[UploadGroupAvatar] group=%s error=%v", g.ID, err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to upload avatar"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(models.AvatarUploadResponse{
		URL:  url,
		Path: store.GroupAvatarPath(g.OwnerID, g.ID),
	}))
}

// watchEvent is one server-sent event on the group watch stream. Expired is
// derived from selfDestructAt at delivery time so viewers can redirect to the
// archive the moment the group poofs.
type watchEvent struct {
	Group   *models.Group `json:"group,omitempty"`
	Expired bool          `json:"expired"`
	Deleted bool          `json:"deleted,omitempty"`
}

// WatchGroup streams group snapshots as server-sent events. Delivery rides on
// Firestore's change notifications; closing the request cancels the
// subscription.
func (h *GroupHandler) WatchGroup(w http.ResponseWriter, r *http.Request) {
	g, _ := h.loadGroupForMember(w, r)
	if g == nil {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := h.watcher.WatchGroup(r.Context(), g.ID)
	defer sub.Stop()

	for update := range sub.Updates() {
		if update.Err != nil {
			log.Printf("[WatchGroup] group=%s stream error=%v", g.ID, update.Err)
			return
		}

		ev := watchEvent{Deleted: update.Deleted}
		if update.Group != nil {
			ev.Group = update.Group
			ev.Expired = update.Group.Expired(time.Now().UTC())
		} else {
			ev.Expired = true
		}

		payload, err := json.Marshal(ev)
		if err != nil {
			return
		}
		if _, err := w.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
			return
		}
		flusher.Flush()

		if update.Deleted {
			return
		}
	}
}
