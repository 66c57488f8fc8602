package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second    // 允许写入消息到对端的最大时间
	pongWait       = 60 * time.Second    // 允许读取下一个 pong 消息的最大时间
	pingPeriod     = (pongWait * 9) / 10 // 发送 ping 到对端的周期。必须小于 pongWait
	maxMessageSize = 512                 // 允许来自对端的最大消息大小
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client 代表一个 WebSocket 连接客户端
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte // 已序列化的事件
	userID   int64
	groupIDs []int64        // 连接建立时所属的群组
	groups   map[int64]bool // 当前订阅的群组，仅由 Hub 在持锁时读写
	members  Membership
}

// clientMessage 客户端可以在加入新群组后主动订阅
type clientMessage struct {
	Type    string `json:"type"`
	GroupID int64  `json:"group_id"`
}

// readPump 处理客户端发来的订阅请求，连接断开时注销
func (c *Client) readPump() {
	defer func() {
		c.hub.enqueueUnregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Info("websocket 连接异常关闭", zap.Int64("user_id", c.userID), zap.Error(err))
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.hub.log.Debug("忽略无法解析的客户端消息", zap.Int64("user_id", c.userID))
			continue
		}
		if msg.Type != "subscribe" || msg.GroupID == 0 {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		ok, err := c.members.IsMember(ctx, msg.GroupID, c.userID)
		cancel()
		if err != nil {
			c.hub.log.Warn("订阅校验失败", zap.Int64("user_id", c.userID), zap.Int64("group_id", msg.GroupID), zap.Error(err))
			continue
		}
		if ok {
			c.hub.enqueueSubscribe(c, msg.GroupID)
		}
	}
}

// writePump 泵送来自 Hub 的消息到 WebSocket 连接
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 关闭了通道
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

			// 队列中积压的事件逐条发送，每条一个 frame
			n := len(c.send)
			for range n {
				if err := c.conn.WriteMessage(websocket.TextMessage, <-c.send); err != nil {
					return
				}
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs 升级连接并订阅用户所在的全部群组，user_id 由认证中间件写入
func ServeWs(hub *Hub, members Membership, c *gin.Context) {
	value, exists := c.Get("user_id")
	userID, ok := value.(int64)
	if !exists || !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	groupIDs, err := members.GroupIDsForUser(c.Request.Context(), userID)
	if err != nil {
		hub.log.Error("获取用户群组失败", zap.Int64("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.Warn("升级 websocket 失败", zap.Error(err))
		return
	}

	client := &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		userID:   userID,
		groupIDs: groupIDs,
		groups:   make(map[int64]bool, len(groupIDs)),
		members:  members,
	}
	if !hub.enqueueRegister(client) {
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}
