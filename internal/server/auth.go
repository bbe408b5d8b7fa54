package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/tryon/internal/auth/domain"
	"github.com/smallbiznis/tryon/internal/observability/logger"
	"go.uber.org/zap"
)

type RegisterRequest struct {
	Email    string `json:"email" form:"email"`
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type accountResponse struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	Role           string    `json:"role"`
	Credits        int64     `json:"credits"`
	InitialCredits int64     `json:"initialCredits"`
	CreatedAt      time.Time `json:"createdAt"`
}

func newAccountResponse(account *authdomain.Account) accountResponse {
	return accountResponse{
		ID:             account.ID.String(),
		Email:          account.Email,
		Username:       account.Username,
		Role:           account.Role,
		Credits:        account.Credits,
		InitialCredits: account.InitialCredits,
		CreatedAt:      account.CreatedAt,
	}
}

// Register creates the account and its widget with a fresh api key.
func (s *Server) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBind(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	account, err := s.authsvc.Register(ctx, authdomain.RegisterRequest{
		Email:    strings.TrimSpace(req.Email),
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	widget, err := s.widgetSvc.Ensure(ctx, account.ID)
	if err != nil {
		logger.WithContext(ctx, s.log).Error("widget provisioning failed",
			zap.String("account_id", account.ID.String()),
			zap.Error(err),
		)
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"msg":     "User registered successfully",
		"account": newAccountResponse(account),
		"api_key": widget.APIKey,
	})
}

// Login accepts JSON or the OAuth2 password form used by the dashboard.
func (s *Server) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	identifier := strings.TrimSpace(req.Username)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}
	if identifier == "" || req.Password == "" {
		AbortWithError(c, newValidationError("username", "required", "username or email and password are required"))
		return
	}

	result, err := s.authsvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Identifier: identifier,
		Password:   req.Password,
		UserAgent:  c.Request.UserAgent(),
		IPAddress:  c.ClientIP(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": result.RawToken,
		"token_type":   "bearer",
		"expires_at":   result.ExpiresAt,
		"account":      newAccountResponse(result.Account),
	})
}

func (s *Server) Logout(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.authsvc.Logout(c.Request.Context(), token); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) Me(c *gin.Context) {
	account, ok := currentAccount(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	c.JSON(http.StatusOK, newAccountResponse(account))
}
