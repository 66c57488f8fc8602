package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Gopher0727/Rally/internal/middlewares"
	"github.com/Gopher0727/Rally/internal/services"
	logger "github.com/Gopher0727/Rally/middleware/log"
	"github.com/Gopher0727/Rally/middleware/jwt"
)

func ok(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{
		"code":    0,
		"message": "success",
		"data":    data,
	})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// respondError 用户只看到固定的提示，完整错误写日志
func respondError(c *gin.Context, log *logger.Logger, op string, err error) {
	status, msg := classify(err)
	fields := []zap.Field{zap.String("op", op), zap.Int("status", status), zap.Error(err)}
	if status >= http.StatusInternalServerError {
		log.ErrorContext(c.Request.Context(), "request failed", fields...)
	} else {
		log.InfoContext(c.Request.Context(), "request rejected", fields...)
	}
	fail(c, status, msg)
}

func classify(err error) (int, string) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Error()
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, "you do not have permission to do that"
	case errors.Is(err, services.ErrAlreadyMember):
		return http.StatusConflict, "you are already a member of this group"
	case errors.Is(err, services.ErrUsernameTaken):
		return http.StatusConflict, "username is already taken"
	case errors.Is(err, services.ErrEmailTaken):
		return http.StatusConflict, "email is already registered"
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid email or password"
	case errors.Is(err, services.ErrEmailNotConfirmed):
		return http.StatusForbidden, "please confirm your email before signing in"
	case errors.Is(err, services.ErrInvalidConfirmToken):
		return http.StatusBadRequest, "invalid or used confirmation link"
	case errors.Is(err, jwt.ErrInvalidToken), errors.Is(err, jwt.ErrExpiredToken), errors.Is(err, jwt.ErrNotRefreshable):
		return http.StatusUnauthorized, "session expired, please sign in again"
	case services.IsRemote(err):
		return http.StatusServiceUnavailable, "service temporarily unavailable, please retry"
	}
	return http.StatusInternalServerError, "internal error"
}

// currentUser 路由都挂在 AuthMiddleware 之后，取不到视为未认证
func currentUser(c *gin.Context) (int64, bool) {
	uid, exists := middlewares.UserID(c)
	if !exists {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return 0, false
	}
	return uid, true
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

func init() {
	// binding 错误里的字段名与 JSON 保持一致
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// bindJSON binding 标签校验失败时返回与 ValidationError 相同格式的提示
func bindJSON(c *gin.Context, dst any) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var fields validator.ValidationErrors
	if errors.As(err, &fields) && len(fields) > 0 {
		fe := fields[0]
		reason := "failed " + fe.Tag()
		switch fe.Tag() {
		case "required":
			reason = "is required"
		case "email":
			reason = "must be a valid email"
		}
		fail(c, http.StatusBadRequest, fmt.Sprintf("invalid %s: %s", fe.Field(), reason))
		return false
	}
	fail(c, http.StatusBadRequest, "malformed request body")
	return false
}
