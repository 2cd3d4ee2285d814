// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

// 当前配置的单例实例
var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig 包含应用程序的所有配置
type AppConfig struct {
	// 基础配置
	Port      string `json:"port"`
	DataDir   string `json:"data_dir"`
	StaticDir string `json:"static_dir"`
	LogDir    string `json:"log_dir"`
	DebugMode bool   `json:"debug_mode"`

	// 播放相关配置
	ScriptsDir    string `json:"scripts_dir"`    // 剧本文本目录
	AssetBaseURL  string `json:"asset_base_url"` // 远端素材服务器根地址
	DefaultRegion string `json:"default_region"` // 未指定时的游戏区域
	PreloadBlocks int    `json:"preload_blocks"` // 预读向前扫描的对话块数
}

// Config 存储应用配置
type Config struct {
	Port          string
	DataDir       string
	StaticDir     string
	LogDir        string
	DebugMode     bool
	ScriptsDir    string
	AssetBaseURL  string
	DefaultRegion string
	PreloadBlocks int
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	// 尝试加载.env文件（可选）
	godotenv.Load()

	config := &Config{
		Port:          getEnv("PORT", "8080"),
		DataDir:       getEnvPath("DATA_DIR", "data"),
		StaticDir:     getEnvPath("STATIC_DIR", "static"),
		LogDir:        getEnvPath("LOG_DIR", "logs"),
		DebugMode:     getEnvBool("DEBUG_MODE", true),
		ScriptsDir:    getEnvPath("SCRIPTS_DIR", "data/scripts"),
		AssetBaseURL:  getEnv("ASSET_BASE_URL", "https://static.atlasacademy.io"),
		DefaultRegion: getEnv("DEFAULT_REGION", "JP"),
		PreloadBlocks: getEnvInt("PRELOAD_BLOCKS", 20),
	}

	return config, nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvPath 获取环境变量表示的路径，如果不存在则返回默认值
func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)

	// 确保目录存在
	if _, err := os.Stat(path); os.IsNotExist(err) {
		err = os.MkdirAll(path, 0755)
		if err != nil {
			fmt.Printf("警告: 创建目录失败 %s: %v\n", path, err)
		}
	}

	return path
}

// getEnvBool 获取布尔类型环境变量
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt 获取整数类型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// InitConfig 初始化配置管理器
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	// 加载基础配置
	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = &AppConfig{
		Port:          baseConfig.Port,
		DataDir:       baseConfig.DataDir,
		StaticDir:     baseConfig.StaticDir,
		LogDir:        baseConfig.LogDir,
		DebugMode:     baseConfig.DebugMode,
		ScriptsDir:    baseConfig.ScriptsDir,
		AssetBaseURL:  baseConfig.AssetBaseURL,
		DefaultRegion: baseConfig.DefaultRegion,
		PreloadBlocks: baseConfig.PreloadBlocks,
	}

	// 尝试从文件加载已保存的配置
	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		data, err := os.ReadFile(configFile)
		if err == nil {
			var savedConfig AppConfig
			if json.Unmarshal(data, &savedConfig) == nil {
				// 合并配置：保留文件中的播放设置，基础配置以环境变量为准
				savedConfig.Port = baseConfig.Port
				savedConfig.DataDir = baseConfig.DataDir
				savedConfig.StaticDir = baseConfig.StaticDir
				savedConfig.LogDir = baseConfig.LogDir
				savedConfig.DebugMode = baseConfig.DebugMode

				if savedConfig.AssetBaseURL == "" {
					savedConfig.AssetBaseURL = baseConfig.AssetBaseURL
				}
				if savedConfig.DefaultRegion == "" {
					savedConfig.DefaultRegion = baseConfig.DefaultRegion
				}
				if savedConfig.PreloadBlocks <= 0 {
					savedConfig.PreloadBlocks = baseConfig.PreloadBlocks
				}
				if savedConfig.ScriptsDir == "" {
					savedConfig.ScriptsDir = baseConfig.ScriptsDir
				}

				currentConfig = &savedConfig
			}
		}
	}

	// 保存初始配置到文件
	return SaveConfig()
}

// GetCurrentConfig 返回当前配置的副本
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		// 紧急情况，返回一个基本配置
		baseConfig, _ := Load()
		return &AppConfig{
			Port:          baseConfig.Port,
			DataDir:       baseConfig.DataDir,
			StaticDir:     baseConfig.StaticDir,
			LogDir:        baseConfig.LogDir,
			DebugMode:     baseConfig.DebugMode,
			ScriptsDir:    baseConfig.ScriptsDir,
			AssetBaseURL:  baseConfig.AssetBaseURL,
			DefaultRegion: baseConfig.DefaultRegion,
			PreloadBlocks: baseConfig.PreloadBlocks,
		}
	}

	// 返回配置的副本
	configCopy := *currentConfig
	return &configCopy
}

// UpdatePlaybackConfig 更新播放相关配置
func UpdatePlaybackConfig(assetBaseURL, defaultRegion string, preloadBlocks int) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	if assetBaseURL != "" {
		currentConfig.AssetBaseURL = assetBaseURL
	}
	if defaultRegion != "" {
		currentConfig.DefaultRegion = defaultRegion
	}
	if preloadBlocks > 0 {
		currentConfig.PreloadBlocks = preloadBlocks
	}

	return SaveConfig()
}

// SaveConfig 保存当前配置到文件
func SaveConfig() error {
	if currentConfig == nil {
		return fmt.Errorf("没有配置可保存")
	}

	// 确保目录存在
	dir := filepath.Dir(configFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建配置目录失败: %w", err)
		}
	}

	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
