// internal/api/router.go
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Hoshino/ScriptTheater/internal/config"
	"github.com/Hoshino/ScriptTheater/internal/di"
	"github.com/Hoshino/ScriptTheater/internal/services"
	"github.com/Hoshino/ScriptTheater/internal/utils"
	"github.com/gin-gonic/gin"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	// 获取配置
	cfg := config.GetCurrentConfig()

	// 获取依赖注入容器
	container := di.GetContainer()

	// 只从容器获取服务，不再创建新实例
	playerService, err := di.Resolve[*services.PlayerService](container, "player")
	if err != nil {
		return nil, fmt.Errorf("播放服务未正确初始化: %w", err)
	}

	scriptService, err := di.Resolve[*services.ScriptService](container, "script")
	if err != nil {
		return nil, fmt.Errorf("剧本服务未正确初始化: %w", err)
	}

	userService, err := di.Resolve[*services.UserService](container, "user")
	if err != nil {
		return nil, fmt.Errorf("用户服务未正确初始化: %w", err)
	}

	configService, err := di.Resolve[*services.ConfigService](container, "config")
	if err != nil {
		return nil, fmt.Errorf("配置服务未正确初始化: %w", err)
	}

	assetService, err := di.Resolve[*services.AssetService](container, "asset")
	if err != nil {
		return nil, fmt.Errorf("素材服务未正确初始化: %w", err)
	}

	// 创建API处理器 - 只传递从容器获取的服务
	handler := NewHandler(playerService, scriptService, userService, configService)

	// 创建路由
	r := gin.Default()

	// 启用CORS
	r.Use(corsMiddleware())

	// 请求指标采集
	r.Use(metricsMiddleware())

	// HTTPS重定向（生产环境）
	if !cfg.DebugMode {
		r.Use(func(c *gin.Context) {
			if c.Request.Header.Get("X-Forwarded-Proto") != "https" {
				c.Redirect(http.StatusPermanentRedirect,
					"https://"+c.Request.Host+c.Request.URL.Path)
				return
			}
			c.Next()
		})
	}

	// 静态文件服务
	r.Static("/static", cfg.StaticDir)

	// 已预热的素材缓存，浏览器端按解析后的本地路径加载
	r.Static("/assets", assetService.AssetLocalDir())

	// WebSocket 支持
	r.GET("/ws/playthrough/:id", handler.PlaythroughWebSocket)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	api.Use(DefaultRateLimit())
	{
		// ===============================
		// 播放会话相关路由
		// ===============================
		playthroughsGroup := api.Group("/playthroughs")
		{
			playthroughsGroup.POST("", handler.CreatePlaythrough)
			playthroughsGroup.GET("/:id/state", handler.GetPlaythroughState)
			playthroughsGroup.POST("/:id/advance", PlaybackRateLimit(), handler.AdvancePlaythrough)
			playthroughsGroup.POST("/:id/choice", PlaybackRateLimit(), handler.SelectPlaythroughChoice)
			playthroughsGroup.DELETE("/:id", handler.ReleasePlaythrough)
		}

		// ===============================
		// 剧本相关路由
		// ===============================
		scriptsGroup := api.Group("/scripts")
		{
			scriptsGroup.GET("", handler.GetScripts)
			scriptsGroup.GET("/:id/raw", handler.GetScriptRaw)
		}

		// ===============================
		// 设置相关路由
		// ===============================
		settingsGroup := api.Group("/settings")
		{
			settingsGroup.GET("", handler.GetSettings)
			settingsGroup.POST("", handler.SaveSettings)
		}

		// ===============================
		// 配置相关路由
		// ===============================
		configGroup := api.Group("/config")
		{
			configGroup.GET("/health", handler.GetConfigHealth)
			configGroup.GET("/metrics", handler.GetConfigMetrics)
		}

		// ===============================
		// 用户管理路由
		// ===============================
		usersGroup := api.Group("/users/:user_id")
		{
			usersGroup.GET("", handler.GetUserProfile)
			usersGroup.PUT("", handler.UpdateUserProfile)
		}

		// WebSocket 管理路由
		wsGroup := api.Group("/ws")
		{
			wsGroup.GET("/status", handler.GetWebSocketStatus)
			wsGroup.POST("/cleanup", handler.CleanupWebSocketConnections)
		}
	}

	return r, nil
}

// corsMiddleware 实现跨域资源共享
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// metricsMiddleware 记录API请求指标
func metricsMiddleware() gin.HandlerFunc {
	metrics := utils.NewPlaybackMetrics()

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metrics.RecordAPIRequest(path, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
