package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/geocoder89/userhub/internal/auth"
	"github.com/geocoder89/userhub/internal/config"
	"github.com/geocoder89/userhub/internal/domain/user"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/geocoder89/userhub/internal/security"
	"github.com/geocoder89/userhub/internal/store"
)

type UserReader interface {
	FindByEmail(ctx context.Context, email string) (user.User, error)
}

type AuthHandler struct {
	users UserReader
	jwt   *auth.Manager
	log   *slog.Logger
	prom  *observability.Prom
}

func NewAuthHandler(users UserReader, jwtManager *auth.Manager, log *slog.Logger, prom *observability.Prom) *AuthHandler {
	return &AuthHandler{
		users: users,
		jwt:   jwtManager,
		log:   log,
		prom:  prom,
	}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string          `json:"token"`
	User  user.PublicUser `json:"user"`
}

// Login verifies credentials and mints a token. Unknown-email and
// wrong-password failures are logged distinctly but answered identically, so
// the response cannot be used to enumerate accounts.
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	foundUser, err := h.users.FindByEmail(cctx, req.Email)

	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.log.Warn("login attempt for unknown email", "email", req.Email)
			h.prom.LoginAttempts.WithLabelValues("invalid").Inc()
			RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
			return
		}

		h.prom.LoginAttempts.WithLabelValues("error").Inc()
		RespondStoreUnavailable(ctx)
		return
	}

	if !security.Parse(foundUser.Credential).Verify(req.Password) {
		h.log.Warn("login attempt with wrong password", "user_id", foundUser.ID)
		h.prom.LoginAttempts.WithLabelValues("invalid").Inc()
		RespondUnauthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	token, err := h.jwt.GenerateToken(foundUser.ID, foundUser.Email, foundUser.Role)

	if err != nil {
		h.prom.LoginAttempts.WithLabelValues("error").Inc()
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	h.log.Info("login succeeded", "user_id", foundUser.ID)
	h.prom.LoginAttempts.WithLabelValues("ok").Inc()

	ctx.JSON(http.StatusOK, LoginResponse{
		Token: token,
		User:  foundUser.Public(),
	})
}
