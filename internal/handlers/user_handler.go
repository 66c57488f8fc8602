package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/Rally/internal/services"
	logger "github.com/Gopher0727/Rally/middleware/log"
)

type UserHandler struct {
	users *services.UserService
	log   *logger.Logger
}

func NewUserHandler(users *services.UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{users: users, log: log}
}

func (h *UserHandler) GetUser(c *gin.Context) {
	if _, authed := currentUser(c); !authed {
		return
	}
	id, valid := pathID(c, "user_id")
	if !valid {
		return
	}
	user, err := h.users.GetUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, "get user", err)
		return
	}
	ok(c, http.StatusOK, user)
}

// GetUsers ?ids=1,2,3
func (h *UserHandler) GetUsers(c *gin.Context) {
	if _, authed := currentUser(c); !authed {
		return
	}
	raw := strings.TrimSpace(c.Query("ids"))
	if raw == "" {
		ok(c, http.StatusOK, []any{})
		return
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			fail(c, http.StatusBadRequest, "invalid ids")
			return
		}
		ids = append(ids, id)
	}
	users, err := h.users.GetUsersByIDs(c.Request.Context(), ids)
	if err != nil {
		respondError(c, h.log, "get users", err)
		return
	}
	ok(c, http.StatusOK, users)
}
