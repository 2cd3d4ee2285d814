// internal/api/websocket_handlers.go
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Hoshino/ScriptTheater/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocketHandler 处理 WebSocket 相关的 HTTP 请求
type WebSocketHandler struct {
	playerService *services.PlayerService
}

// NewWebSocketHandler 创建 WebSocket 处理器
// 同时把暂停点推送钩子接到全局管理器上
func NewWebSocketHandler(playerService *services.PlayerService) *WebSocketHandler {
	wh := &WebSocketHandler{
		playerService: playerService,
	}

	playerService.SetNotifier(func(sessionID string, state *services.PlaythroughState) {
		wsManager.BroadcastToPlaythrough(sessionID, map[string]interface{}{
			"type":      "playthrough:state",
			"state":     state,
			"timestamp": time.Now().Format(time.RFC3339),
		})
	})

	return wh
}

// PlaythroughWebSocket 处理播放会话 WebSocket 连接
func (wh *WebSocketHandler) PlaythroughWebSocket(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		log.Printf("❌ WebSocket 连接失败：会话ID缺失")
		http.Error(c.Writer, "会话ID缺失", http.StatusBadRequest)
		return
	}

	// 会话必须已经存在
	state, err := wh.playerService.GetState(sessionID)
	if err != nil {
		log.Printf("❌ WebSocket 连接失败：会话 %s 不存在", sessionID)
		http.Error(c.Writer, "播放会话不存在", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ 播放会话 WebSocket 升级失败: %v", err)
		return
	}
	defer conn.Close()

	// 获取参数
	userID := c.DefaultQuery("user_id", "anonymous")

	// 创建客户端
	client := &WebSocketClient{
		conn:      &WebSocketConnWrapper{conn},
		sessionID: sessionID,
		userID:    userID,
		send:      make(chan []byte, 256),
		closed:    0,
		lastPing:  time.Now(),
		createdAt: time.Now(),
	}

	// 注册客户端
	select {
	case wsManager.register <- client:
		// Success
	default:
		log.Printf("❌ 无法注册 WebSocket 客户端，注册通道已满")
		return
	}

	defer func() {
		// 注销带超时，避免阻塞
		done := make(chan bool, 1)
		go func() {
			wsManager.unregister <- client
			done <- true
		}()

		select {
		case <-done:
			// Successfully unregistered
		case <-time.After(5 * time.Second):
			log.Printf("⚠️ WebSocket 客户端注销超时")
		}
	}()

	// 启动读写协程
	go wh.handleWebSocketWrites(client)
	go wh.handleWebSocketReads(client)

	// 发送连接确认消息和当前状态
	wh.sendWelcomeMessage(client, state)

	// 等待连接关闭
	<-c.Request.Context().Done()
	log.Printf("📱 会话 %s 的 WebSocket 连接已关闭 (用户: %s)", sessionID, userID)
}

// handleWebSocketReads 处理 WebSocket 读取
func (wh *WebSocketHandler) handleWebSocketReads(client *WebSocketClient) {
	defer func() {
		if !client.IsClosed() {
			select {
			case wsManager.unregister <- client:
			case <-time.After(1 * time.Second):
				log.Printf("⚠️ 读取协程关闭时注销超时")
			}
		}
	}()

	// 设置读取超时和ping处理
	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if client.IsClosed() {
			break
		}

		// 设置当前读取超时
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		_, messageBytes, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ WebSocket 读取错误: %v", err)
			}
			break
		}

		// 解析JSON消息
		var message map[string]interface{}
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			log.Printf("⚠️ JSON解析失败: %v", err)
			continue
		}

		// 更新活跃时间
		client.UpdatePing()

		// 处理收到的消息
		wh.handleMessage(client, message)
	}
}

// handleWebSocketWrites 处理 WebSocket 写入
func (wh *WebSocketHandler) handleWebSocketWrites(client *WebSocketClient) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		// 标记关闭后安全关闭发送通道和连接
		atomic.CompareAndSwapInt32(&client.closed, 0, 1)
		func() {
			defer func() {
				if recover() != nil {
					// 通道已被关闭，忽略
				}
			}()
			close(client.send)
		}()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			if client.IsClosed() {
				return
			}

			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// 通道已关闭，发送关闭消息
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("❌ WebSocket 写入失败: %v", err)
				return
			}

		case <-ticker.C:
			if client.IsClosed() {
				return
			}

			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("❌ WebSocket ping 失败: %v", err)
				return
			}
			client.UpdatePing()
		}
	}
}

// handleMessage 处理收到的 WebSocket 消息
func (wh *WebSocketHandler) handleMessage(client *WebSocketClient, message map[string]interface{}) {
	msgType, ok := message["type"].(string)
	if !ok {
		log.Printf("⚠️ 收到无效的消息类型")
		return
	}

	switch msgType {
	case "advance":
		wh.handleAdvance(client)
	case "choice":
		wh.handleChoice(client, message)
	case "state":
		wh.handleStateQuery(client)
	case "ping":
		wh.handlePing(client)
	default:
		log.Printf("⚠️ 未知的消息类型: %s", msgType)
	}
}

// handleAdvance 处理推进消息
// 新状态经由通知钩子广播给会话的全部连接，这里不再单独回发
func (wh *WebSocketHandler) handleAdvance(client *WebSocketClient) {
	if wh.playerService == nil {
		wh.sendError(client, "播放服务不可用")
		return
	}

	if _, err := wh.playerService.Advance(client.sessionID); err != nil {
		wh.sendError(client, "推进失败: "+err.Error())
	}
}

// handleChoice 处理选择支消息
func (wh *WebSocketHandler) handleChoice(client *WebSocketClient, message map[string]interface{}) {
	rawID, ok := message["choice_id"].(float64)
	if !ok || rawID <= 0 {
		wh.sendError(client, "缺少有效的选项ID")
		return
	}

	if wh.playerService == nil {
		wh.sendError(client, "播放服务不可用")
		return
	}

	if _, err := wh.playerService.SelectChoice(client.sessionID, int(rawID)); err != nil {
		wh.sendError(client, "执行选择失败: "+err.Error())
	}
}

// handleStateQuery 处理状态查询消息
func (wh *WebSocketHandler) handleStateQuery(client *WebSocketClient) {
	if wh.playerService == nil {
		wh.sendError(client, "播放服务不可用")
		return
	}

	state, err := wh.playerService.GetState(client.sessionID)
	if err != nil {
		wh.sendError(client, "获取状态失败: "+err.Error())
		return
	}

	client.SendMessage(map[string]interface{}{
		"type":      "playthrough:state",
		"state":     state,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handlePing 处理ping消息
func (wh *WebSocketHandler) handlePing(client *WebSocketClient) {
	pong := map[string]interface{}{
		"type":      "pong",
		"timestamp": time.Now().Unix(),
	}

	client.SendMessage(pong)
}

// sendWelcomeMessage 发送欢迎消息
func (wh *WebSocketHandler) sendWelcomeMessage(client *WebSocketClient, state *services.PlaythroughState) {
	welcomeMsg := map[string]interface{}{
		"type":       "connected",
		"session_id": client.sessionID,
		"user_id":    client.userID,
		"state":      state,
		"timestamp":  time.Now().Format(time.RFC3339),
		"message":    "WebSocket 连接已建立",
	}

	client.SendMessage(welcomeMsg)
}

// sendError 发送错误消息
func (wh *WebSocketHandler) sendError(client *WebSocketClient, errorMsg string) {
	errorResponse := map[string]interface{}{
		"type":      "error",
		"error":     errorMsg,
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if msgBytes, err := json.Marshal(errorResponse); err == nil {
		select {
		case client.send <- msgBytes:
		default:
			log.Printf("⚠️ 无法发送错误消息到客户端，队列已满")
		}
	}
}
