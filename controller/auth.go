package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studyhub/model"
	"studyhub/service"
)

// AuthController 校验访问令牌，并把当前用户写入 gin.Context
type AuthController struct {
	tokens *service.TokenService
	users  *service.UserService
}

func NewAuthController(tokens *service.TokenService, users *service.UserService) *AuthController {
	return &AuthController{tokens: tokens, users: users}
}

// TokenValid ...
func (a *AuthController) TokenValid(c *gin.Context) {
	requestID := c.GetString("requestId")

	accessToken := a.tokens.ExtractToken(c.Request)
	if accessToken == "" {
		logger.Warnf("[%s] no token provided", requestID)
		fail(c, http.StatusUnauthorized, "Authentication failed: No token provided", nil)
		return
	}

	tokenAuth, err := a.tokens.ExtractTokenMetadata(accessToken)
	if err != nil {
		//Token either expired or not valid
		logger.Warnf("[%s] invalid token, %s", requestID, err)
		fail(c, http.StatusUnauthorized, "Authentication failed: Invalid token", nil)
		return
	}

	user, err := a.users.Get(c.Request.Context(), tokenAuth.UserID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			logger.Warnf("[%s] token user %s not found", requestID, tokenAuth.UserID)
			fail(c, http.StatusUnauthorized, "Authentication failed: User not found", nil)
			return
		}
		logger.Errorf("[%s] load token user error, %s", requestID, err)
		fail(c, http.StatusInternalServerError, "Server error during authentication", err.Error())
		return
	}

	c.Set("userId", user.ID)
	c.Set("user", user)
	c.Next()
}

// Refresh 用仍然有效的令牌换一个新令牌
func (a *AuthController) Refresh(c *gin.Context) {
	session, err := a.users.Refresh(c.Request.Context(), c.GetString("userId"))
	if err != nil {
		serviceError(c, err, "Failed to refresh token")
		return
	}
	success(c, http.StatusOK, "Token refreshed", gin.H{"token": session.Token})
}

func currentUser(c *gin.Context) *model.User {
	if v, ok := c.Get("user"); ok {
		if user, ok := v.(*model.User); ok {
			return user
		}
	}
	return nil
}
