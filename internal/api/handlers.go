// internal/api/handlers.go
package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/Hoshino/ScriptTheater/internal/errors"
	"github.com/Hoshino/ScriptTheater/internal/models"
	"github.com/Hoshino/ScriptTheater/internal/services"
	"github.com/Hoshino/ScriptTheater/internal/utils"
	"github.com/gin-gonic/gin"
)

// Handler 处理API请求
type Handler struct {
	// 核心服务
	PlayerService    *services.PlayerService // 播放会话服务
	ScriptService    *services.ScriptService // 剧本服务
	UserService      *services.UserService   // 用户服务
	ConfigService    *services.ConfigService // 配置服务
	WebSocketHandler *WebSocketHandler       // WebSocket 处理器
	Response         *ResponseHelper         // 响应助手
}

// NewHandler 创建API处理器
func NewHandler(
	playerService *services.PlayerService,
	scriptService *services.ScriptService,
	userService *services.UserService,
	configService *services.ConfigService,
) *Handler {
	return &Handler{
		PlayerService:    playerService,
		ScriptService:    scriptService,
		UserService:      userService,
		ConfigService:    configService,
		WebSocketHandler: NewWebSocketHandler(playerService),
		Response:         NewResponseHelper(),
	}
}

// CreatePlaythroughRequest 创建播放会话的请求结构
type CreatePlaythroughRequest struct {
	ScriptID string `json:"script_id"` // 剧本ID
	UserID   string `json:"user_id"`   // 玩家ID，缺省按匿名处理
	Region   string `json:"region"`    // 游戏区域，缺省取玩家档案
}

// SelectChoiceRequest 选择分支的请求结构
type SelectChoiceRequest struct {
	ChoiceID int `json:"choice_id"` // 剧本中声明的选项ID
}

// UpdateSettingsRequest 更新播放配置的请求结构
type UpdateSettingsRequest struct {
	AssetBaseURL  string `json:"asset_base_url"`
	DefaultRegion string `json:"default_region"`
	PreloadBlocks int    `json:"preload_blocks"`
	ChangedBy     string `json:"changed_by"`
}

// APIResponse 标准API响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"` // 用于调试和追踪
}

// APIError 标准错误格式
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ------------------------------------------------
// PlaythroughWebSocket 处理播放会话 WebSocket 连接
func (h *Handler) PlaythroughWebSocket(c *gin.Context) {
	h.WebSocketHandler.PlaythroughWebSocket(c)
}

// BroadcastToPlaythrough 提供外部调用的广播方法
func (h *Handler) BroadcastToPlaythrough(sessionID string, message map[string]interface{}) {
	wsManager.BroadcastToPlaythrough(sessionID, message)
}

// GetWebSocketStatus 获取 WebSocket 连接状态（调试用）
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	status := wsManager.GetStatus()
	status["ping_timeout_seconds"] = int(wsManager.pingTimeout.Seconds())
	status["timestamp"] = time.Now().Format(time.RFC3339)

	c.JSON(http.StatusOK, status)
}

// 添加管理器控制API
func (h *Handler) CleanupWebSocketConnections(c *gin.Context) {
	wsManager.cleanupExpiredConnections()
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "连接清理已执行",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// ========================================
// 播放会话处理器
// ========================================

// CreatePlaythrough 加载剧本并创建播放会话
// 会话创建后立即推进到第一个暂停点
func (h *Handler) CreatePlaythrough(c *gin.Context) {
	var req CreatePlaythroughRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}

	if strings.TrimSpace(req.ScriptID) == "" {
		h.Response.BadRequest(c, "缺少剧本ID")
		return
	}
	if req.UserID == "" {
		req.UserID = "anonymous"
	}

	state, err := h.PlayerService.StartPlaythrough(req.ScriptID, req.UserID, req.Region)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Response.Created(c, state, "播放会话已创建")
}

// GetPlaythroughState 获取会话当前的演出状态
func (h *Handler) GetPlaythroughState(c *gin.Context) {
	sessionID := c.Param("id")

	state, err := h.PlayerService.GetState(sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Response.Success(c, state)
}

// AdvancePlaythrough 推进会话到下一个暂停点
func (h *Handler) AdvancePlaythrough(c *gin.Context) {
	sessionID := c.Param("id")

	state, err := h.PlayerService.Advance(sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Response.Success(c, state)
}

// SelectPlaythroughChoice 在选择支暂停点选择一个分支
func (h *Handler) SelectPlaythroughChoice(c *gin.Context) {
	sessionID := c.Param("id")

	var req SelectChoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求数据", err.Error())
		return
	}

	if req.ChoiceID <= 0 {
		h.Response.Error(c, http.StatusBadRequest, ErrorChoiceInvalid, "选项ID必须为正整数")
		return
	}

	state, err := h.PlayerService.SelectChoice(sessionID, req.ChoiceID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Response.Success(c, state)
}

// ReleasePlaythrough 关闭会话并释放音频资源
func (h *Handler) ReleasePlaythrough(c *gin.Context) {
	sessionID := c.Param("id")

	if err := h.PlayerService.Release(sessionID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Response.Success(c, gin.H{"session_id": sessionID}, "播放会话已释放")
}

// ========================================
// 剧本处理器
// ========================================

// GetScripts 列出全部可播放剧本
func (h *Handler) GetScripts(c *gin.Context) {
	scripts, err := h.ScriptService.ListScripts()
	if err != nil {
		h.Response.InternalError(c, "获取剧本列表失败", err.Error())
		return
	}

	h.Response.Success(c, gin.H{
		"scripts": scripts,
		"total":   len(scripts),
	})
}

// GetScriptRaw 下载剧本原始文本
func (h *Handler) GetScriptRaw(c *gin.Context) {
	scriptID := c.Param("id")

	raw, err := h.ScriptService.LoadRaw(scriptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Response.FileResponse(c, raw, scriptID+".txt", "text/plain; charset=utf-8")
}

// ========================================
// 用户处理器
// ========================================

// GetUserProfile 获取玩家档案
func (h *Handler) GetUserProfile(c *gin.Context) {
	userID := c.Param("user_id")

	profile, err := h.UserService.GetProfile(userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Response.Success(c, profile)
}

// UpdateUserProfile 更新玩家档案
func (h *Handler) UpdateUserProfile(c *gin.Context) {
	userID := c.Param("user_id")

	var profile models.PlayerProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		h.Response.BadRequest(c, "无效的档案数据", err.Error())
		return
	}

	if err := h.UserService.SaveProfile(userID, profile); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.Response.Success(c, profile, "档案已更新")
}

// ========================================
// 配置处理器
// ========================================

// GetSettings 获取当前播放配置
func (h *Handler) GetSettings(c *gin.Context) {
	cfg := h.ConfigService.GetCurrentConfig()

	h.Response.Success(c, gin.H{
		"asset_base_url": cfg.AssetBaseURL,
		"default_region": cfg.DefaultRegion,
		"preload_blocks": cfg.PreloadBlocks,
		"debug_mode":     cfg.DebugMode,
	})
}

// SaveSettings 更新播放配置
func (h *Handler) SaveSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的配置数据", err.Error())
		return
	}

	if req.ChangedBy == "" {
		req.ChangedBy = c.ClientIP()
	}

	if err := h.ConfigService.UpdatePlaybackSettings(req.AssetBaseURL, req.DefaultRegion, req.PreloadBlocks, req.ChangedBy); err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorConfigInvalid, "更新配置失败", err.Error())
		return
	}

	h.Response.Success(c, h.ConfigService.GetCurrentConfig(), "配置已更新")
}

// GetConfigHealth 检查配置健康状态
func (h *Handler) GetConfigHealth(c *gin.Context) {
	cfg := h.ConfigService.GetCurrentConfig()

	issues := make([]string, 0)
	if cfg == nil {
		h.Response.Error(c, http.StatusServiceUnavailable, ErrorConfigNotLoaded, "配置未加载")
		return
	}
	if cfg.AssetBaseURL == "" {
		issues = append(issues, "素材服务器地址未配置")
	}
	if cfg.ScriptsDir == "" {
		issues = append(issues, "剧本目录未配置")
	}
	if cfg.PreloadBlocks <= 0 {
		issues = append(issues, "预读块数配置无效")
	}

	healthy := len(issues) == 0
	status := gin.H{
		"healthy":   healthy,
		"issues":    issues,
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetConfigMetrics 获取运行指标快照
func (h *Handler) GetConfigMetrics(c *gin.Context) {
	metrics := utils.GetMetricsCollector().GetMetrics()
	metrics["active_sessions"] = h.PlayerService.SessionCount()
	metrics["timestamp"] = time.Now().Format(time.RFC3339)

	c.JSON(http.StatusOK, metrics)
}

// ========================================
// 错误映射
// ========================================

// handleServiceError 把服务层错误转换为标准API响应
func (h *Handler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrScriptNotFound):
		h.Response.NotFound(c, "剧本", err.Error())
	case errors.Is(err, services.ErrSessionNotFound):
		h.Response.NotFound(c, "会话", err.Error())
	case apperrors.IsValidationError(err):
		h.Response.BadRequest(c, err.Error())
	case apperrors.IsNotFoundError(err):
		h.Response.NotFound(c, "", err.Error())
	case apperrors.IsConflictError(err):
		h.Response.Conflict(c, err.Error())
	default:
		h.Response.InternalError(c, "处理请求失败", err.Error())
	}
}
