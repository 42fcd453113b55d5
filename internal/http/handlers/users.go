package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/http/middlewares"
	"github.com/geocoder89/userhub/internal/security"
	"github.com/geocoder89/userhub/internal/store"
)

type UsersStore interface {
	FindByID(ctx context.Context, id int64) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
	Create(ctx context.Context, params user.CreateUserParams) (user.User, error)
	Update(ctx context.Context, id int64, patch user.UpdateUserParams) (user.User, error)
	Delete(ctx context.Context, id int64) (bool, error)
}

type UsersHandler struct {
	users   UsersStore
	avatars *AvatarSaver
	log     *slog.Logger
}

func NewUsersHandler(users UsersStore, avatars *AvatarSaver, log *slog.Logger) *UsersHandler {
	return &UsersHandler{
		users:   users,
		avatars: avatars,
		log:     log,
	}
}

type CreateUserRequest struct {
	Name     string `json:"name" form:"name" binding:"required"`
	Email    string `json:"email" form:"email" binding:"required,email"`
	Role     string `json:"role" form:"role" binding:"required,oneof=user admin super_admin"`
	Password string `json:"password" form:"password" binding:"required,min=4"`
}

type UpdateUserRequest struct {
	Name     *string `json:"name" form:"name"`
	Email    *string `json:"email" form:"email" binding:"omitempty,email"`
	Role     *string `json:"role" form:"role" binding:"omitempty,oneof=user admin super_admin"`
	Password *string `json:"password" form:"password" binding:"omitempty,min=4"`
}

func (h *UsersHandler) ListUsers(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	all, err := h.users.List(cctx)

	if err != nil {
		RespondStoreUnavailable(ctx)
		return
	}

	out := make([]user.PublicUser, 0, len(all))

	for _, u := range all {
		out = append(out, u.Public())
	}

	ctx.JSON(http.StatusOK, out)
}

func (h *UsersHandler) GetUser(ctx *gin.Context) {
	id, ok := idParam(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.FindByID(cctx, id)

	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondStoreUnavailable(ctx)
		return
	}

	ctx.JSON(http.StatusOK, u.Public())
}

func (h *UsersHandler) CreateUser(ctx *gin.Context) {
	var req CreateUserRequest

	if !bindBody(ctx, &req) {
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	avatar, ok := h.saveAvatarIfPresent(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.users.Create(cctx, user.CreateUserParams{
		Name:       req.Name,
		Email:      req.Email,
		Role:       req.Role,
		Credential: hash,
		Avatar:     avatar,
	})

	if err != nil {
		// don't leave the file behind when the record was never written
		if avatar != "" {
			h.avatars.Remove(avatar)
		}

		if errors.Is(err, store.ErrDuplicateEmail) {
			RespondBadRequest(ctx, "email_taken", "Email is already registered.", nil)
			return
		}

		RespondStoreUnavailable(ctx)
		return
	}

	h.log.Info("user created", "user_id", u.ID)

	ctx.JSON(http.StatusCreated, u.Public())
}

func (h *UsersHandler) UpdateUser(ctx *gin.Context) {
	id, ok := idParam(ctx)

	if !ok {
		return
	}

	var req UpdateUserRequest

	if !bindBody(ctx, &req) {
		return
	}

	// Only admins may change a role.
	if req.Role != nil {
		p, _ := middlewares.PrincipalFromContext(ctx)

		if !p.IsAdmin() {
			RespondForbidden(ctx, "role_change_forbidden", "Only administrators can change roles.")
			return
		}
	}

	patch := user.UpdateUserParams{
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
	}

	if req.Password != nil {
		hash, err := security.HashPassword(*req.Password)

		if err != nil {
			RespondInternal(ctx, "Could not update user")
			return
		}

		patch.Credential = &hash
	}

	avatar, ok := h.saveAvatarIfPresent(ctx)

	if !ok {
		return
	}

	if avatar != "" {
		patch.Avatar = &avatar
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.users.Update(cctx, id, patch)

	if err != nil {
		if avatar != "" {
			h.avatars.Remove(avatar)
		}

		switch {
		case errors.Is(err, store.ErrNotFound):
			RespondNotFound(ctx, "User not found")
		case errors.Is(err, store.ErrDuplicateEmail):
			RespondBadRequest(ctx, "email_taken", "Email is already registered.", nil)
		default:
			RespondStoreUnavailable(ctx)
		}
		return
	}

	h.log.Info("user updated", "user_id", id)

	ctx.JSON(http.StatusOK, u.Public())
}

// DeleteUser removes a record. The protected super admin check lives here,
// not in the store, so it holds identically for both backends.
func (h *UsersHandler) DeleteUser(ctx *gin.Context) {
	id, ok := idParam(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	target, err := h.users.FindByID(cctx, id)

	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondStoreUnavailable(ctx)
		return
	}

	if target.Role == user.RoleSuperAdmin {
		h.log.Warn("refused deletion of super admin", "user_id", id)
		RespondForbidden(ctx, "super_admin_protected", "Super admin accounts cannot be deleted.")
		return
	}

	deleted, err := h.users.Delete(cctx, id)

	if err != nil {
		RespondStoreUnavailable(ctx)
		return
	}

	if !deleted {
		RespondNotFound(ctx, "User not found")
		return
	}

	h.log.Info("user deleted", "user_id", id)

	ctx.Status(http.StatusNoContent)
}

// helpers

func idParam(ctx *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)

	if err != nil || id <= 0 {
		RespondBadRequest(ctx, "invalid_request", "User id must be a positive integer", nil)
		return 0, false
	}

	return id, true
}

// bindBody binds JSON or, for avatar uploads, multipart form fields.
func bindBody(ctx *gin.Context, out interface{}) bool {
	ct := strings.ToLower(ctx.GetHeader("Content-Type"))

	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := ctx.ShouldBind(out); err != nil {
			RespondBadRequest(ctx, "invalid_request", "Invalid form data", parseBindError(err))
			return false
		}

		return true
	}

	return BindJSON(ctx, out)
}

// saveAvatarIfPresent stores an uploaded avatar and returns its public path.
// The second return is false when the handler already responded with an
// error.
func (h *UsersHandler) saveAvatarIfPresent(ctx *gin.Context) (string, bool) {
	path, err := h.avatars.Save(ctx)

	if err != nil {
		RespondBadRequest(ctx, "invalid_avatar", err.Error(), nil)
		return "", false
	}

	return path, true
}
