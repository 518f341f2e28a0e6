package service

import (
	"ai_tutor_backend/internal/model"
	"ai_tutor_backend/internal/repository"
	"ai_tutor_backend/pkg/logger"
	"ai_tutor_backend/pkg/monitoring"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	shardCount     = 32
	onlineTTL      = 2 * time.Minute // 在线状态过期时间
)

var (
	// 内存复用 (sync.Pool)
	messagePool = sync.Pool{
		New: func() interface{} {
			return &WSMessage{}
		},
	}
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Client 一条连接绑定一个用户和一个课时房间
type Client struct {
	Hub      *ChatHub
	Conn     *websocket.Conn
	Send     chan []byte
	UserID   uint
	LessonID uint
	Limiter  *rate.Limiter // 限流器
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Log.Error("WebSocket unexpected close", zap.Error(err), zap.Uint("userId", c.UserID))
			}
			break
		}

		// 限流校验 (每秒最多 10 条消息，允许突发 20 条)
		if !c.Limiter.Allow() {
			continue
		}

		// 对象池解析消息
		wsMsg := messagePool.Get().(*WSMessage)
		if err := json.Unmarshal(message, wsMsg); err != nil {
			messagePool.Put(wsMsg)
			continue
		}

		monitoring.TutorMessageCounter.WithLabelValues(wsMsg.Type, "in").Inc() // 记录上行消息

		if wsMsg.Type == "CHAT" {
			c.Hub.handleChat(c, *wsMsg)
		}
		messagePool.Put(wsMsg)
	}
}

// handleChat 学生房间消息：先落库，再广播到课时房间。
// 发给离线客户端的消息不重试，补偿靠HTTP历史接口。
func (h *ChatHub) handleChat(c *Client, msg WSMessage) {
	data, ok := msg.Data.(map[string]interface{})
	if !ok {
		return
	}
	sessionID, _ := data["sessionId"].(string)
	content, _ := data["content"].(string)
	if sessionID == "" || content == "" {
		return
	}

	if h.ChatRepo == nil {
		return
	}
	session, err := h.ChatRepo.FindSession(sessionID)
	if err != nil || session.StudentID != c.UserID || session.LessonID != c.LessonID {
		return
	}

	chatMsg := &model.ChatMessage{
		SessionID: sessionID,
		Role:      model.RoleUser,
		Content:   content,
	}
	if err := h.ChatRepo.CreateMessage(chatMsg); err != nil {
		logger.Log.Error("chat message persist failed", zap.Error(err), zap.String("sessionId", sessionID))
		return
	}

	h.BroadcastToLesson(c.LessonID, WSMessage{
		Type: "CHAT",
		Data: chatMsg,
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if n := len(c.Send); n > 0 {
				for i := 0; i < n; i++ {
					w.Write(<-c.Send)
				}
			}

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// shard 按课时分片的房间表
type shard struct {
	rooms map[uint]map[*Client]bool
	mu    sync.RWMutex
}

type ChatHub struct {
	shards     [shardCount]*shard
	register   chan *Client
	unregister chan *Client
	Redis      *redis.Client
	ChatRepo   *repository.ChatRepository
	ctx        context.Context
}

func NewChatHub(rdb *redis.Client, chatRepo *repository.ChatRepository) *ChatHub {
	h := &ChatHub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		Redis:      rdb,
		ChatRepo:   chatRepo,
		ctx:        context.Background(),
	}
	for i := 0; i < shardCount; i++ {
		h.shards[i] = &shard{
			rooms: make(map[uint]map[*Client]bool),
		}
	}
	return h
}

func (h *ChatHub) getShard(lessonID uint) *shard {
	return h.shards[lessonID%shardCount]
}

type PubSubMessage struct {
	LessonID uint            `json:"lessonId"`
	Payload  json.RawMessage `json:"payload"`
}

func (h *ChatHub) Run() {
	pubsub := h.Redis.Subscribe(h.ctx, "tutor_channel")
	go func() {
		ch := pubsub.Channel()
		for msg := range ch {
			var psMsg PubSubMessage
			if err := json.Unmarshal([]byte(msg.Payload), &psMsg); err != nil {
				logger.Log.Error("PubSub unmarshal error", zap.Error(err))
				continue
			}
			h.pushToLocalRoom(psMsg.LessonID, psMsg.Payload)
		}
	}()

	// 批量处理状态更新
	ticker := time.NewTicker(500 * time.Millisecond)
	// 状态续期定时器 (Heartbeat)
	heartbeatTicker := time.NewTicker(1 * time.Minute)
	defer func() {
		ticker.Stop()
		heartbeatTicker.Stop()
	}()

	type statusUpdate struct {
		userID uint
		status string
	}
	var pendingUpdates []statusUpdate

	for {
		select {
		case client := <-h.register:
			s := h.getShard(client.LessonID)
			s.mu.Lock()
			room := s.rooms[client.LessonID]
			if room == nil {
				room = make(map[*Client]bool)
				s.rooms[client.LessonID] = room
			}
			room[client] = true
			s.mu.Unlock()
			pendingUpdates = append(pendingUpdates, statusUpdate{client.UserID, "online"})
			monitoring.TutorOnlineUsers.Inc() // 增加在线人数

		case client := <-h.unregister:
			s := h.getShard(client.LessonID)
			s.mu.Lock()
			if room, ok := s.rooms[client.LessonID]; ok {
				if _, ok := room[client]; ok {
					delete(room, client)
					close(client.Send)
					monitoring.TutorOnlineUsers.Dec() // 减少在线人数
					if len(room) == 0 {
						delete(s.rooms, client.LessonID)
					}
				}
			}
			s.mu.Unlock()
			pendingUpdates = append(pendingUpdates, statusUpdate{client.UserID, "offline"})

		case <-heartbeatTicker.C:
			// 为本地在线用户批量续期
			h.refreshOnlineStatus()

		case <-ticker.C:
			if len(pendingUpdates) == 0 {
				continue
			}

			pipe := h.Redis.Pipeline()
			for _, update := range pendingUpdates {
				key := fmt.Sprintf("user:online:%d", update.userID)
				if update.status == "online" {
					pipe.Set(h.ctx, key, "true", onlineTTL)
				} else {
					pipe.Del(h.ctx, key)
				}
			}
			_, err := pipe.Exec(h.ctx)
			if err != nil {
				logger.Log.Error("Redis pipeline error", zap.Error(err))
			}
			pendingUpdates = pendingUpdates[:0]
		}
	}
}

// refreshOnlineStatus 刷新当前服务器所有在线用户的过期时间
func (h *ChatHub) refreshOnlineStatus() {
	pipe := h.Redis.Pipeline()
	count := 0
	for i := 0; i < shardCount; i++ {
		s := h.shards[i]
		s.mu.RLock()
		for _, room := range s.rooms {
			for client := range room {
				pipe.Expire(h.ctx, fmt.Sprintf("user:online:%d", client.UserID), onlineTTL)
				count++
			}
		}
		s.mu.RUnlock()
	}
	if count > 0 {
		pipe.Exec(h.ctx)
		logger.Log.Debug("Refreshed online status", zap.Int("count", count))
	}
}

// Stop 关闭所有连接并清理在线状态
func (h *ChatHub) Stop() {
	logger.Log.Info("ChatHub stopping: clearing online status and closing connections...")

	var allUserIDs []uint
	for i := 0; i < shardCount; i++ {
		s := h.shards[i]
		s.mu.Lock()
		for lessonID, room := range s.rooms {
			for client := range room {
				allUserIDs = append(allUserIDs, client.UserID)
				close(client.Send)
			}
			delete(s.rooms, lessonID)
		}
		s.mu.Unlock()
	}

	if len(allUserIDs) > 0 {
		pipe := h.Redis.Pipeline()
		for _, userID := range allUserIDs {
			pipe.Del(h.ctx, fmt.Sprintf("user:online:%d", userID))
		}
		pipe.Exec(h.ctx)
	}

	monitoring.TutorOnlineUsers.Set(0) // 停机时清空指标
	logger.Log.Info("ChatHub stopped", zap.Int("closedConnections", len(allUserIDs)))
}

// BroadcastToLesson 经由Redis发布，支持多实例部署下的房间广播
func (h *ChatHub) BroadcastToLesson(lessonID uint, msg WSMessage) {
	msgBytes, _ := json.Marshal(msg)
	psMsg := PubSubMessage{
		LessonID: lessonID,
		Payload:  msgBytes,
	}
	payload, _ := json.Marshal(psMsg)
	h.Redis.Publish(h.ctx, "tutor_channel", payload)
	monitoring.TutorMessageCounter.WithLabelValues(msg.Type, "out").Inc() // 记录下行消息
}

func (h *ChatHub) pushToLocalRoom(lessonID uint, payload []byte) {
	s := h.getShard(lessonID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[lessonID]
	if !ok {
		return
	}
	for client := range room {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *ChatHub) IsUserOnline(userID uint) bool {
	// 查本地分片
	for i := 0; i < shardCount; i++ {
		s := h.shards[i]
		s.mu.RLock()
		for _, room := range s.rooms {
			for client := range room {
				if client.UserID == userID {
					s.mu.RUnlock()
					return true
				}
			}
		}
		s.mu.RUnlock()
	}

	// 查 Redis (多实例部署)
	val, err := h.Redis.Get(h.ctx, fmt.Sprintf("user:online:%d", userID)).Result()
	return err == nil && val == "true"
}

func ServeWs(hub *ChatHub, w http.ResponseWriter, r *http.Request, userID, lessonID uint) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err), zap.Uint("userId", userID))
		return
	}
	client := &Client{
		Hub:      hub,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		UserID:   userID,
		LessonID: lessonID,
		Limiter:  rate.NewLimiter(rate.Limit(10), 20), // 每秒10条，允许突发20条
	}
	client.Hub.register <- client

	go client.writePump()
	go client.readPump()
}
