package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/auroralabs/aurora-backend/internal/session"
)

const oauthStateCookie = "aurora_oauth_state"

// authSvc is the orchestrator surface consumed by AuthHandler.
type authSvc interface {
	Signup(ctx context.Context, email, password string) (*session.SignupResponse, error)
	Login(ctx context.Context, email, password string) (*session.AuthResponse, error)
	GoogleLogin(ctx context.Context, idToken string) (*session.AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*session.AuthResponse, error)
	Logout(ctx context.Context, accessToken string) error
	VerifyEmail(ctx context.Context, identityID uuid.UUID, code string) error
	ResendVerification(ctx context.Context, email string) error
	ChangePassword(ctx context.Context, sess *session.Session, oldPassword, newPassword string) error
	DeleteAccount(ctx context.Context, sess *session.Session, password string) error
	CurrentAccount(sess *session.Session) session.AccountInfo
}

// OAuthConfig holds the Google OAuth client credentials for the
// authorization-code flow. Empty ClientID disables the redirect routes.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// AuthHandler handles the /api/auth routes.
type AuthHandler struct {
	sessions authSvc
	oauthCfg *oauth2.Config
	logger   *zap.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(sessions authSvc, oauth OAuthConfig, logger *zap.Logger) *AuthHandler {
	var cfg *oauth2.Config
	if oauth.ClientID != "" && oauth.ClientSecret != "" {
		cfg = &oauth2.Config{
			ClientID:     oauth.ClientID,
			ClientSecret: oauth.ClientSecret,
			RedirectURL:  oauth.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		}
	}
	return &AuthHandler{sessions: sessions, oauthCfg: cfg, logger: logger}
}

// Register mounts the auth routes on rg.
func (h *AuthHandler) Register(rg *gin.RouterGroup, mw *Middleware) {
	auth := rg.Group("/auth")
	{
		auth.POST("/signup", h.Signup)
		auth.POST("/login", h.Login)
		auth.POST("/google", h.GoogleLogin)
		auth.GET("/google/redirect", h.GoogleRedirect)
		auth.GET("/google/callback", h.GoogleCallback)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/verify-email", h.VerifyEmail)
		auth.POST("/resend-verification", h.ResendVerification)

		protected := auth.Group("", mw.RequireAuth())
		protected.POST("/logout", h.Logout)
		protected.GET("/me", h.Me)
		protected.POST("/change-password", h.ChangePassword)
		protected.POST("/delete-account", h.DeleteAccount)
	}
}

type signupRequest struct {
	Email    string `json:"email"    binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

type googleLoginRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type verifyEmailRequest struct {
	AccountID uuid.UUID `json:"account_id" binding:"required"`
	Code      string    `json:"code"       binding:"required"`
}

type resendVerificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.sessions.Signup(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	RecordSignIn(resp.Account.AuthType)
	c.JSON(http.StatusOK, resp)
}

// GoogleLogin handles POST /api/auth/google with a client-obtained ID token.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req googleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.sessions.GoogleLogin(c.Request.Context(), req.IDToken)
	if err != nil {
		writeError(c, err)
		return
	}
	RecordSignIn(resp.Account.AuthType)
	c.JSON(http.StatusOK, resp)
}

// GoogleRedirect handles GET /api/auth/google/redirect, starting the
// authorization-code flow.
func (h *AuthHandler) GoogleRedirect(c *gin.Context) {
	if h.oauthCfg == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "google oauth not configured"})
		return
	}

	state, err := randomState()
	if err != nil {
		h.logger.Error("generate oauth state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate oauth state"})
		return
	}
	c.SetCookie(oauthStateCookie, state, 600, "/", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusFound, h.oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

// GoogleCallback handles GET /api/auth/google/callback: exchanges the code,
// extracts the ID token, and funnels it through the same login path as the
// direct ID-token endpoint.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if h.oauthCfg == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "google oauth not configured"})
		return
	}

	// State check against the cookie set at redirect time.
	wantState, err := c.Cookie(oauthStateCookie)
	if err != nil || wantState == "" || c.Query("state") != wantState {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, "/", "", c.Request.TLS != nil, true)

	code := c.Query("code")
	if code == "" {
		errMsg := c.Query("error_description")
		if errMsg == "" {
			errMsg = c.Query("error")
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "oauth authorization failed: " + errMsg})
		return
	}

	token, err := h.oauthCfg.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.Warn("oauth code exchange", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "oauth code exchange failed"})
		return
	}
	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		c.JSON(http.StatusBadGateway, gin.H{"error": "oauth response carried no id token"})
		return
	}

	resp, err := h.sessions.GoogleLogin(c.Request.Context(), idToken)
	if err != nil {
		writeError(c, err)
		return
	}
	RecordSignIn(resp.Account.AuthType)
	c.JSON(http.StatusOK, resp)
}

// Refresh handles POST /api/auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// VerifyEmail handles POST /api/auth/verify-email.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessions.VerifyEmail(c.Request.Context(), req.AccountID, req.Code); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "email verified"})
}

// ResendVerification handles POST /api/auth/resend-verification.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req resendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessions.ResendVerification(c.Request.Context(), req.Email); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "verification code sent"})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context(), bearerToken(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	sess := SessionFromCtx(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	c.JSON(http.StatusOK, h.sessions.CurrentAccount(sess))
}

// ChangePassword handles POST /api/auth/change-password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	sess := SessionFromCtx(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessions.ChangePassword(c.Request.Context(), sess, req.OldPassword, req.NewPassword); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

// DeleteAccount handles POST /api/auth/delete-account.
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	sess := SessionFromCtx(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	var req deleteAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessions.DeleteAccount(c.Request.Context(), sess, req.Password); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account deleted"})
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
