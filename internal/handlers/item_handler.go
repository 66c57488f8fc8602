package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/Rally/internal/services"
	logger "github.com/Gopher0727/Rally/middleware/log"
)

// ItemHandler 活动、RSVP、评论与日期提议
type ItemHandler struct {
	items    *services.ItemService
	comments *services.CommentService
	dates    *services.DateService
	log      *logger.Logger
}

func NewItemHandler(items *services.ItemService, comments *services.CommentService, dates *services.DateService, log *logger.Logger) *ItemHandler {
	return &ItemHandler{items: items, comments: comments, dates: dates, log: log}
}

// caller 取当前用户与路径中的 ID，失败时已写响应
func caller(c *gin.Context, param string) (uid, id int64, valid bool) {
	uid, valid = currentUser(c)
	if !valid {
		return 0, 0, false
	}
	id, valid = pathID(c, param)
	return uid, id, valid
}

func (h *ItemHandler) UpdateItem(c *gin.Context) {
	uid, itemID, valid := caller(c, "item_id")
	if !valid {
		return
	}
	var fields map[string]any
	if !bindJSON(c, &fields) {
		return
	}
	item, err := h.items.UpdateBucketListItem(c.Request.Context(), uid, itemID, fields)
	if err != nil {
		respondError(c, h.log, "update item", err)
		return
	}
	ok(c, http.StatusOK, item)
}

func (h *ItemHandler) DeleteItem(c *gin.Context) {
	uid, itemID, valid := caller(c, "item_id")
	if !valid {
		return
	}
	if err := h.items.DeleteBucketListItem(c.Request.Context(), uid, itemID); err != nil {
		respondError(c, h.log, "delete item", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ItemHandler) Rsvp(c *gin.Context) {
	uid, itemID, valid := caller(c, "item_id")
	if !valid {
		return
	}
	if err := h.items.Rsvp(c.Request.Context(), uid, itemID); err != nil {
		respondError(c, h.log, "rsvp", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ItemHandler) RemoveRsvp(c *gin.Context) {
	uid, itemID, valid := caller(c, "item_id")
	if !valid {
		return
	}
	if err := h.items.RemoveRsvp(c.Request.Context(), uid, itemID); err != nil {
		respondError(c, h.log, "remove rsvp", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ItemHandler) GetComments(c *gin.Context) {
	uid, itemID, valid := caller(c, "item_id")
	if !valid {
		return
	}
	comments, err := h.comments.GetComments(c.Request.Context(), uid, itemID)
	if err != nil {
		respondError(c, h.log, "list comments", err)
		return
	}
	ok(c, http.StatusOK, comments)
}

func (h *ItemHandler) AddComment(c *gin.Context) {
	uid, itemID, valid := caller(c, "item_id")
	if !valid {
		return
	}
	var req services.AddCommentRequest
	if !bindJSON(c, &req) {
		return
	}
	comment, err := h.comments.AddComment(c.Request.Context(), uid, itemID, &req)
	if err != nil {
		respondError(c, h.log, "add comment", err)
		return
	}
	ok(c, http.StatusCreated, comment)
}

func (h *ItemHandler) GetCommentCount(c *gin.Context) {
	uid, itemID, valid := caller(c, "item_id")
	if !valid {
		return
	}
	n, err := h.comments.GetCommentCount(c.Request.Context(), uid, itemID)
	if err != nil {
		respondError(c, h.log, "count comments", err)
		return
	}
	ok(c, http.StatusOK, gin.H{"count": n})
}

func (h *ItemHandler) DeleteComment(c *gin.Context) {
	uid, commentID, valid := caller(c, "comment_id")
	if !valid {
		return
	}
	if err := h.comments.DeleteComment(c.Request.Context(), uid, commentID); err != nil {
		respondError(c, h.log, "delete comment", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ItemHandler) ListDates(c *gin.Context) {
	uid, itemID, valid := caller(c, "item_id")
	if !valid {
		return
	}
	list, err := h.dates.ListDateSuggestions(c.Request.Context(), uid, itemID)
	if err != nil {
		respondError(c, h.log, "list dates", err)
		return
	}
	ok(c, http.StatusOK, list)
}

func (h *ItemHandler) SuggestDate(c *gin.Context) {
	uid, itemID, valid := caller(c, "item_id")
	if !valid {
		return
	}
	var req services.DateRequest
	if !bindJSON(c, &req) {
		return
	}
	s, err := h.dates.SuggestDate(c.Request.Context(), uid, itemID, &req)
	if err != nil {
		respondError(c, h.log, "suggest date", err)
		return
	}
	ok(c, http.StatusCreated, s)
}

func (h *ItemHandler) EditDate(c *gin.Context) {
	uid, id, valid := caller(c, "suggestion_id")
	if !valid {
		return
	}
	var req services.DateRequest
	if !bindJSON(c, &req) {
		return
	}
	s, err := h.dates.EditDateSuggestion(c.Request.Context(), uid, id, &req)
	if err != nil {
		respondError(c, h.log, "edit date", err)
		return
	}
	ok(c, http.StatusOK, s)
}

func (h *ItemHandler) DeleteDate(c *gin.Context) {
	uid, id, valid := caller(c, "suggestion_id")
	if !valid {
		return
	}
	if err := h.dates.DeleteDateSuggestion(c.Request.Context(), uid, id); err != nil {
		respondError(c, h.log, "delete date", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ItemHandler) VoteDate(c *gin.Context) {
	uid, id, valid := caller(c, "suggestion_id")
	if !valid {
		return
	}
	res, err := h.dates.VoteForDate(c.Request.Context(), uid, id)
	if err != nil {
		respondError(c, h.log, "vote date", err)
		return
	}
	ok(c, http.StatusOK, res)
}
