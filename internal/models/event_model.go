package models

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventGroupUpdated   EventType = "group.updated"
	EventGroupDeleted   EventType = "group.deleted"
	EventMemberJoined   EventType = "member.joined"
	EventItemCreated    EventType = "item.created"
	EventItemUpdated    EventType = "item.updated"
	EventItemDeleted    EventType = "item.deleted"
	EventRsvpAdded      EventType = "rsvp.added"
	EventRsvpRemoved    EventType = "rsvp.removed"
	EventCommentAdded   EventType = "comment.added"
	EventCommentDeleted EventType = "comment.deleted"
	EventDateSuggested  EventType = "date.suggested"
	EventDateUpdated    EventType = "date.updated"
)

// Event 群组内的变更通知，经 Kafka 或 Redis 分发给在线客户端
type Event struct {
	Type    EventType       `json:"type"`
	GroupID int64           `json:"group_id"`
	ItemID  int64           `json:"item_id,omitempty"`
	ActorID int64           `json:"actor_id"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}
