package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/Rally/internal/services"
	logger "github.com/Gopher0727/Rally/middleware/log"
)

// GroupHandler 群组处理器
type GroupHandler struct {
	groupService *services.GroupService
	itemService  *services.ItemService
	log          *logger.Logger
}

func NewGroupHandler(groupService *services.GroupService, itemService *services.ItemService, log *logger.Logger) *GroupHandler {
	return &GroupHandler{groupService: groupService, itemService: itemService, log: log}
}

func (h *GroupHandler) CreateGroup(c *gin.Context) {
	uid, authed := currentUser(c)
	if !authed {
		return
	}
	var req services.CreateGroupRequest
	if !bindJSON(c, &req) {
		return
	}
	group, err := h.groupService.CreateGroup(c.Request.Context(), uid, &req)
	if err != nil {
		respondError(c, h.log, "create group", err)
		return
	}
	ok(c, http.StatusCreated, group)
}

// JoinGroup 通过邀请码加入
func (h *GroupHandler) JoinGroup(c *gin.Context) {
	uid, authed := currentUser(c)
	if !authed {
		return
	}
	var req services.JoinGroupRequest
	if !bindJSON(c, &req) {
		return
	}
	group, err := h.groupService.JoinGroupByCode(c.Request.Context(), uid, req.Code)
	if err != nil {
		respondError(c, h.log, "join group", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"group_id": group.ID, "group": group})
}

func (h *GroupHandler) GetGroups(c *gin.Context) {
	uid, authed := currentUser(c)
	if !authed {
		return
	}
	groups, err := h.groupService.GetGroups(c.Request.Context(), uid)
	if err != nil {
		respondError(c, h.log, "list groups", err)
		return
	}
	ok(c, http.StatusOK, groups)
}

func (h *GroupHandler) GetOverview(c *gin.Context) {
	uid, authed := currentUser(c)
	if !authed {
		return
	}
	overview, err := h.groupService.GetGroupOverview(c.Request.Context(), uid)
	if err != nil {
		respondError(c, h.log, "group overview", err)
		return
	}
	ok(c, http.StatusOK, overview)
}

func (h *GroupHandler) GetGroup(c *gin.Context) {
	uid, authed := currentUser(c)
	if !authed {
		return
	}
	groupID, valid := pathID(c, "group_id")
	if !valid {
		return
	}
	group, err := h.groupService.GetGroup(c.Request.Context(), uid, groupID)
	if err != nil {
		respondError(c, h.log, "get group", err)
		return
	}
	ok(c, http.StatusOK, group)
}

// UpdateGroup body 是任意字段的 JSON 对象，白名单外的字段被忽略
func (h *GroupHandler) UpdateGroup(c *gin.Context) {
	uid, authed := currentUser(c)
	if !authed {
		return
	}
	groupID, valid := pathID(c, "group_id")
	if !valid {
		return
	}
	var fields map[string]any
	if !bindJSON(c, &fields) {
		return
	}
	group, err := h.groupService.UpdateGroup(c.Request.Context(), uid, groupID, fields)
	if err != nil {
		respondError(c, h.log, "update group", err)
		return
	}
	ok(c, http.StatusOK, group)
}

func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	uid, authed := currentUser(c)
	if !authed {
		return
	}
	groupID, valid := pathID(c, "group_id")
	if !valid {
		return
	}
	if err := h.groupService.DeleteGroup(c.Request.Context(), uid, groupID); err != nil {
		respondError(c, h.log, "delete group", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *GroupHandler) GetItems(c *gin.Context) {
	uid, authed := currentUser(c)
	if !authed {
		return
	}
	groupID, valid := pathID(c, "group_id")
	if !valid {
		return
	}
	items, err := h.itemService.GetBucketListItems(c.Request.Context(), uid, groupID)
	if err != nil {
		respondError(c, h.log, "list items", err)
		return
	}
	ok(c, http.StatusOK, items)
}

func (h *GroupHandler) CreateItem(c *gin.Context) {
	uid, authed := currentUser(c)
	if !authed {
		return
	}
	groupID, valid := pathID(c, "group_id")
	if !valid {
		return
	}
	var req services.CreateItemRequest
	if !bindJSON(c, &req) {
		return
	}
	item, err := h.itemService.CreateBucketListItem(c.Request.Context(), uid, groupID, &req)
	if err != nil {
		respondError(c, h.log, "create item", err)
		return
	}
	ok(c, http.StatusCreated, item)
}

func (h *GroupHandler) GetBoard(c *gin.Context) {
	uid, authed := currentUser(c)
	if !authed {
		return
	}
	groupID, valid := pathID(c, "group_id")
	if !valid {
		return
	}
	board, err := h.itemService.GetBucketListBoard(c.Request.Context(), uid, groupID)
	if err != nil {
		respondError(c, h.log, "get board", err)
		return
	}
	ok(c, http.StatusOK, board)
}
