package handlers

import (
	"net/http"
	"time"

	"github.com/cryptobank/backend/internal/config"
	"github.com/cryptobank/backend/internal/services"
	"github.com/cryptobank/backend/pkg/response"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *services.AuthService
	cookie      *config.RefreshTokenConfig
}

func NewAuthHandler(authService *services.AuthService, cookie *config.RefreshTokenConfig) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookie:      cookie,
	}
}

// Login handles user login
// POST /auth
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	pair, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken, pair.RefreshExpiresAt)
	response.Success(c, pair)
}

// GetNewTokens rotates the refresh token held in the cookie
// GET /auth/get-new-tokens
func (h *AuthHandler) GetNewTokens(c *gin.Context) {
	pair, err := h.authService.Refresh(c.Request.Context(), h.readRefreshCookie(c))
	if err != nil {
		respondError(c, err)
		return
	}

	h.setRefreshCookie(c, pair.RefreshToken, pair.RefreshExpiresAt)
	response.Success(c, pair)
}

// Logout revokes the refresh token held in the cookie and clears it
// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), h.readRefreshCookie(c)); err != nil {
		respondError(c, err)
		return
	}

	h.setRefreshCookie(c, "", time.Unix(0, 0))
	response.Success(c, gin.H{"message": "logged out successfully"})
}

// readRefreshCookie returns the raw cookie value. gin's c.Cookie unescapes the
// value, which would turn '+' in the base64 token into a space.
func (h *AuthHandler) readRefreshCookie(c *gin.Context) string {
	cookie, err := c.Request.Cookie(h.cookie.CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, value string, expires time.Time) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cookie.CookieName,
		Value:    value,
		Path:     h.cookie.CookiePath,
		Expires:  expires,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}
