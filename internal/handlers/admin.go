package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/paylode/paylode/internal/auth"
	"github.com/paylode/paylode/internal/models"
	"github.com/paylode/paylode/internal/repositories"
	"github.com/paylode/paylode/internal/services"
	pkghttp "github.com/paylode/paylode/pkg/http"
)

// UserServiceInterface defines the interface for administrative user operations
type UserServiceInterface interface {
	GetUser(ctx context.Context, id string) (*services.UserResponse, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*services.UserResponse, error)
	ChangeRole(ctx context.Context, actor *models.User, targetID string, newRole models.Role, meta services.RequestMeta) (*services.UserResponse, error)
	Suspend(ctx context.Context, actor *models.User, targetID string, meta services.RequestMeta) (*services.UserResponse, error)
	Reinstate(ctx context.Context, actor *models.User, targetID string, meta services.RequestMeta) (*services.UserResponse, error)
	RevokeSessions(ctx context.Context, actor *models.User, targetID string, meta services.RequestMeta) (int64, error)
}

// AuditServiceInterface defines the interface for audit trail reads
type AuditServiceInterface interface {
	List(ctx context.Context, filter repositories.AuditFilter) ([]*models.AuditEntry, error)
}

// AdminHandler handles administrative HTTP requests
type AdminHandler struct {
	users    UserServiceInterface
	audit    AuditServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(users UserServiceInterface, audit AuditServiceInterface, ipConfig *pkghttp.IPConfig) *AdminHandler {
	return &AdminHandler{
		users:    users,
		audit:    audit,
		ipConfig: ipConfig,
	}
}

// ChangeRoleRequest represents the request body for a role change
type ChangeRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=USER STAFF ADMIN SUPERADMIN"`
}

// actor reconstructs the acting administrator from verified claims. The role
// in the token is trusted because the session middleware already proved the
// chain is live.
func (h *AdminHandler) actor(r *http.Request) *models.User {
	claims := auth.GetClaims(r)
	if claims == nil {
		return nil
	}
	return &models.User{ID: claims.UserID(), Role: claims.Role}
}

func (h *AdminHandler) meta(r *http.Request) services.RequestMeta {
	return services.RequestMeta{
		IP:        pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	}
}

// ListUsers returns a paginated user listing.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	users, err := h.users.ListUsers(r.Context(), limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

// GetUser returns a single user record.
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// ChangeRole reassigns a user's role.
func (h *AdminHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)
	if actor == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	var req ChangeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	role, err := models.ParseRole(req.Role)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Unknown role")
		return
	}

	user, err := h.users.ChangeRole(r.Context(), actor, chi.URLParam(r, "id"), role, h.meta(r))
	if err != nil {
		h.writeAdminError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// Suspend disables an account and revokes its sessions.
func (h *AdminHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)
	if actor == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	user, err := h.users.Suspend(r.Context(), actor, chi.URLParam(r, "id"), h.meta(r))
	if err != nil {
		h.writeAdminError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// Reinstate re-enables a suspended account.
func (h *AdminHandler) Reinstate(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)
	if actor == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	user, err := h.users.Reinstate(r.Context(), actor, chi.URLParam(r, "id"), h.meta(r))
	if err != nil {
		h.writeAdminError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// RevokeSessions force-logs-out a user.
func (h *AdminHandler) RevokeSessions(w http.ResponseWriter, r *http.Request) {
	actor := h.actor(r)
	if actor == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	count, err := h.users.RevokeSessions(r.Context(), actor, chi.URLParam(r, "id"), h.meta(r))
	if err != nil {
		h.writeAdminError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"sessions_revoked": count})
}

// ListAudit returns audit trail entries, newest first. Supports actor_id,
// action, since (RFC3339), limit, and offset query parameters.
func (h *AdminHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := repositories.AuditFilter{
		ActorID: q.Get("actor_id"),
		Action:  q.Get("action"),
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	if since := q.Get("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			pkghttp.WriteBadRequest(w, "since must be RFC3339")
			return
		}
		filter.Since = ts
	}

	entries, err := h.audit.List(r.Context(), filter)
	if err != nil {
		pkghttp.WriteInternalError(w, "Internal server error")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (h *AdminHandler) writeAdminError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "User not found")
	case errors.Is(err, models.ErrInsufficientRole):
		pkghttp.WriteForbidden(w, "Insufficient role for this action")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, "This action is not permitted")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
