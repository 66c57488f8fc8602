package ws

import (
	"context"
	"encoding/json"
	"sync"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Gopher0727/Rally/internal/models"
)

const (
	redisChannelName = "rally:events"
)

// Membership 连接建立和动态订阅时校验群组成员身份
type Membership interface {
	GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error)
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)
}

// Hub 维护活跃的客户端连接，按群组广播事件
type Hub struct {
	// 注册的客户端
	clients map[*Client]bool

	// 群组对应的客户端集合 GroupID -> Client -> bool
	rooms map[int64]map[*Client]bool

	// 用户 ID 到其所有连接，一个用户可能同时开多个页面
	userClients map[int64]map[*Client]bool

	mu sync.RWMutex

	register   chan *Client
	unregister chan *Client
	subscribe  chan subscription
	broadcast  chan *models.Event
	done       chan struct{}

	// Redis 客户端，用于多实例广播；为 nil 时仅本地广播
	redis *redis.Client
	log   *zap.Logger
}

type subscription struct {
	client  *Client
	groupID int64
}

func NewHub(redisClient *redis.Client, log *zap.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		rooms:       make(map[int64]map[*Client]bool),
		userClients: make(map[int64]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		broadcast:   make(chan *models.Event, 256),
		done:        make(chan struct{}),
		redis:       redisClient,
		log:         log,
	}
}

// Start 先完成 Redis 订阅再启动事件循环，返回后 Publish 的事件不会丢失
func (h *Hub) Start(ctx context.Context) error {
	if h.redis != nil {
		pubsub := h.redis.Subscribe(ctx, redisChannelName)
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			return err
		}
		go h.consumeRedis(ctx, pubsub)
	}
	go h.run(ctx)
	return nil
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			close(h.done)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			if h.userClients[client.userID] == nil {
				h.userClients[client.userID] = make(map[*Client]bool)
			}
			h.userClients[client.userID][client] = true
			for _, groupID := range client.groupIDs {
				h.join(client, groupID)
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case sub := <-h.subscribe:
			h.mu.Lock()
			if h.clients[sub.client] {
				h.join(sub.client, sub.groupID)
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			h.dispatch(ev)
		}
	}
}

// join 调用方需持有写锁
func (h *Hub) join(client *Client, groupID int64) {
	if _, ok := h.rooms[groupID]; !ok {
		h.rooms[groupID] = make(map[*Client]bool)
	}
	h.rooms[groupID][client] = true
	client.groups[groupID] = true
}

// remove 调用方需持有写锁
func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	if conns, ok := h.userClients[client.userID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.userClients, client.userID)
		}
	}
	for groupID := range client.groups {
		if room, ok := h.rooms[groupID]; ok {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, groupID)
			}
		}
	}
	close(client.send)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.remove(client)
	}
}

func (h *Hub) dispatch(ev *models.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Warn("序列化事件失败", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// 新成员加入后，其在线连接立即订阅该群组
	if ev.Type == models.EventMemberJoined {
		for client := range h.userClients[ev.ActorID] {
			h.join(client, ev.GroupID)
		}
	}

	var slow []*Client
	for client := range h.rooms[ev.GroupID] {
		select {
		case client.send <- data:
		default:
			// 发送缓冲区满，断开慢客户端
			slow = append(slow, client)
		}
	}
	for _, client := range slow {
		h.remove(client)
	}

	if ev.Type == models.EventGroupDeleted {
		if room, ok := h.rooms[ev.GroupID]; ok {
			for client := range room {
				delete(client.groups, ev.GroupID)
			}
			delete(h.rooms, ev.GroupID)
		}
	}
}

func (h *Hub) consumeRedis(ctx context.Context, pubsub *redis.PubSub) {
	defer pubsub.Close()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev models.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				h.log.Warn("无法解析 Redis 事件", zap.Error(err))
				continue
			}
			// 直接送入本地广播，不再回写 Redis
			h.Deliver(&ev)
		}
	}
}

// Deliver 只向本实例的连接广播
func (h *Hub) Deliver(ev *models.Event) {
	select {
	case h.broadcast <- ev:
	case <-h.done:
	}
}

func (h *Hub) enqueueRegister(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) enqueueUnregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) enqueueSubscribe(c *Client, groupID int64) {
	select {
	case h.subscribe <- subscription{client: c, groupID: groupID}:
	case <-h.done:
	}
}

// Publish 有 Redis 时经 Redis 分发给所有实例（包括自己），否则仅本地广播
func (h *Hub) Publish(ctx context.Context, ev models.Event) error {
	if h.redis == nil {
		h.Deliver(&ev)
		return nil
	}
	payload, err := json.Marshal(&ev)
	if err != nil {
		return err
	}
	return h.redis.Publish(ctx, redisChannelName, payload).Err()
}

// Online 当前连接到本实例的用户数
func (h *Hub) Online() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userClients)
}
