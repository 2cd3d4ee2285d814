// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Hoshino/ScriptTheater/internal/api"
	"github.com/Hoshino/ScriptTheater/internal/config"
	"github.com/Hoshino/ScriptTheater/internal/di"
	"github.com/Hoshino/ScriptTheater/internal/services"
	"github.com/Hoshino/ScriptTheater/internal/storage"
	"github.com/Hoshino/ScriptTheater/internal/utils"
)

// Server 抽象HTTP服务器，便于测试替换
type Server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App 应用实例
type App struct {
	config   *config.AppConfig
	router   http.Handler
	server   Server
	stopChan chan os.Signal
}

// 全局应用实例
var instance *App

// GetApp 获取应用单例
func GetApp() *App {
	if instance == nil {
		instance = &App{
			stopChan: make(chan os.Signal, 1),
		}
	}
	return instance
}

// Initialize 初始化应用：配置、日志、服务、路由
func Initialize(dataDir string) error {
	if err := config.InitConfig(dataDir); err != nil {
		return fmt.Errorf("初始化配置失败: %w", err)
	}

	cfg := config.GetCurrentConfig()
	GetApp().config = cfg

	if err := initLogger(cfg.LogDir); err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}

	if err := InitServices(); err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}

	router, err := api.SetupRouter()
	if err != nil {
		return fmt.Errorf("设置路由失败: %w", err)
	}
	GetApp().router = router

	return nil
}

// initLogger 初始化日志系统
func initLogger(logDir string) error {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("创建日志目录失败: %w", err)
	}

	logFile := filepath.Join(logDir, fmt.Sprintf("server_%s.log", time.Now().Format("2006-01-02")))
	if err := utils.InitLogger(logFile); err != nil {
		return err
	}

	// 写入首条日志，确保日志文件立即创建
	utils.GetLogger().Info("日志系统已初始化", map[string]interface{}{
		"log_file": logFile,
	})
	return nil
}

// InitServices 按依赖顺序初始化所有服务并注册到容器
func InitServices() error {
	cfg := config.GetCurrentConfig()
	container := di.GetContainer()

	// 基础存储
	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("初始化文件存储失败: %w", err)
	}
	container.Register("storage", fileStorage)

	// 剧本服务
	scriptService, err := services.NewScriptService(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("初始化剧本服务失败: %w", err)
	}
	container.Register("script", scriptService)

	// 素材服务
	assetService := services.NewAssetService(cfg.AssetBaseURL, fileStorage)
	container.Register("asset", assetService)

	// 用户服务
	userService := services.NewUserService(fileStorage, cfg.DefaultRegion)
	container.Register("user", userService)

	// 配置服务
	configService := services.NewConfigService()
	configService.StartCacheRefresher(5 * time.Minute)
	container.Register("config", configService)

	// 播放会话服务，依赖剧本、素材和用户服务
	playerService := services.NewPlayerService(scriptService, assetService, userService, cfg.PreloadBlocks)
	container.Register("player", playerService)

	return nil
}

// Run 启动HTTP服务器并等待退出信号
func Run() error {
	app := GetApp()

	if app.server == nil {
		if app.config == nil {
			return fmt.Errorf("应用未初始化")
		}
		app.server = &http.Server{
			Addr:    ":" + app.config.Port,
			Handler: app.router,
		}
	}

	go func() {
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.GetLogger().Fatal("启动服务器失败", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	// 等待中断信号以进行优雅关闭
	signal.Notify(app.stopChan, syscall.SIGINT, syscall.SIGTERM)
	<-app.stopChan

	utils.GetLogger().Info("正在关闭服务器", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app.cleanup()

	return app.server.Shutdown(ctx)
}

// cleanup 释放应用持有的资源
func (a *App) cleanup() {
	container := di.GetContainer()

	// 释放全部播放会话及其音频通道
	if playerService, ok := container.Get("player").(*services.PlayerService); ok && playerService != nil {
		playerService.Shutdown()
	}

	// 关闭 WebSocket 管理器
	api.ShutdownWebSocketManager()

	utils.GetLogger().Info("应用资源已清理", nil)
}

// GetConfig 获取应用配置
func (a *App) GetConfig() *config.AppConfig {
	return a.config
}

// GetDIContainer 获取依赖注入容器
func GetDIContainer() *di.Container {
	return di.GetContainer()
}

// IsDebugMode 检查是否处于调试模式
func IsDebugMode() bool {
	if instance == nil || instance.config == nil {
		return false
	}
	return instance.config.DebugMode
}
