// Package viewmodel keeps client-side lists in sync with the server using
// optimistic mutations: local state changes first and is rolled back
// exactly when the remote call fails.
//
// Each failed action sets a single user-facing message (LastError) and logs
// the full error.
package viewmodel

import (
	"errors"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Gopher0727/Rally/pkg/optimistic"
)

// Static messages shown to the user.
const (
	MsgLoadItems     = "Failed to load group and items"
	MsgCreateItem    = "Failed to create bucket list item"
	MsgUpdateItem    = "Failed to update bucket list item"
	MsgDeleteItem    = "Failed to delete bucket list item"
	MsgRsvp          = "Failed to update RSVP"
	MsgAddComment    = "Failed to add comment"
	MsgSuggestDate   = "Failed to add date suggestion"
	MsgVoteDate      = "Failed to vote for date"
	MsgLoadGroups    = "Failed to load groups"
	MsgCreateGroup   = "Failed to create group"
	MsgJoinGroup     = "Failed to join group"
	MsgAlreadyMember = "You are already a member of this group"
	MsgBadCode       = "No group found with that code"
	MsgRenameGroup   = "Failed to update group"
	MsgDeleteGroup   = "Failed to delete group"
)

// ErrUnknownID is returned for an id that is not in the local state.
var ErrUnknownID = errors.New("viewmodel: unknown id")

// placeholder ids are negative so they never collide with server ids.
var placeholderSeq atomic.Int64

func placeholderID() int64 {
	return -placeholderSeq.Add(1)
}

// status holds the last user-facing error.
type status struct {
	mu      sync.Mutex
	lastErr string
	log     *zap.Logger
}

func (s *status) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *status) clear() {
	s.mu.Lock()
	s.lastErr = ""
	s.mu.Unlock()
}

// report 记录完整错误，只对用户展示固定文案；并发冲突不算失败
func (s *status) report(action, msg string, err error) error {
	if err == nil || errors.Is(err, optimistic.ErrPending) {
		return err
	}
	s.log.Warn("action failed", zap.String("action", action), zap.Error(err))
	s.mu.Lock()
	s.lastErr = msg
	s.mu.Unlock()
	return err
}

func indexOf[T any](items []T, pred func(T) bool) int {
	for i, v := range items {
		if pred(v) {
			return i
		}
	}
	return -1
}

func withID(ids []int64, id int64) []int64 {
	if slices.Contains(ids, id) {
		return ids
	}
	out := make([]int64, 0, len(ids)+1)
	out = append(out, ids...)
	return append(out, id)
}

func withoutID(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func keyFor(kind string, id int64) string {
	return kind + ":" + strconv.FormatInt(id, 10)
}
