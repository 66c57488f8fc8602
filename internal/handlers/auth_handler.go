package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/Rally/internal/middlewares"
	"github.com/Gopher0727/Rally/internal/services"
	logger "github.com/Gopher0727/Rally/middleware/log"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	authService *services.AuthService
	log         *logger.Logger
}

func NewAuthHandler(authService *services.AuthService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

// Signup 注册；需要邮箱确认时不返回 token
func (h *AuthHandler) Signup(c *gin.Context) {
	var req services.SignupRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.authService.Signup(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, "signup", err)
		return
	}
	status := http.StatusCreated
	if res.Status == services.StatusAwaitingConfirmation {
		status = http.StatusAccepted
	}
	ok(c, status, res)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.log, "login", err)
		return
	}
	ok(c, http.StatusOK, res)
}

// ConfirmEmail 支持 ?token= 与 JSON body 两种方式
func (h *AuthHandler) ConfirmEmail(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		var body struct {
			Token string `json:"token"`
		}
		_ = c.ShouldBindJSON(&body)
		token = body.Token
	}
	if err := h.authService.ConfirmEmail(c.Request.Context(), token); err != nil {
		respondError(c, h.log, "confirm email", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"confirmed": true})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	claims, exists := middlewares.Claims(c)
	if !exists {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		respondError(c, h.log, "logout", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Refresh 不经过 AuthMiddleware，过期不久的 token 也能换新
func (h *AuthHandler) Refresh(c *gin.Context) {
	token := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
	if token == "" {
		fail(c, http.StatusUnauthorized, "missing token")
		return
	}
	res, err := h.authService.Refresh(c.Request.Context(), token)
	if err != nil {
		respondError(c, h.log, "refresh", err)
		return
	}
	ok(c, http.StatusOK, res)
}

func (h *AuthHandler) Me(c *gin.Context) {
	uid, authed := currentUser(c)
	if !authed {
		return
	}
	me, err := h.authService.Me(c.Request.Context(), uid)
	if err != nil {
		respondError(c, h.log, "me", err)
		return
	}
	ok(c, http.StatusOK, me)
}
