// internal/services/asset_service.go
package services

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/Hoshino/ScriptTheater/internal/storage"
	"github.com/Hoshino/ScriptTheater/internal/utils"
)

const (
	assetDir            = "assets"
	assetServePrefix    = "/assets"
	maxConcurrentFetch  = 4
	preloadFetchTimeout = 20 * time.Second
)

// AssetService 负责素材地址拼装、预热与本地化解析
// 实现解释器与预读器依赖的AssetPort
type AssetService struct {
	BaseURL string

	storage *storage.FileStorage
	cache   *storage.AssetCache
	client  *http.Client
	logger  *utils.Logger
	metrics *utils.PlaybackMetrics

	// 限制并发抓取并对同一地址去重
	fetchSlots chan struct{}
	inFlight   sync.Map // url -> struct{}
}

// NewAssetService 创建素材服务
func NewAssetService(baseURL string, fs *storage.FileStorage) *AssetService {
	return &AssetService{
		BaseURL:    baseURL,
		storage:    fs,
		cache:      storage.NewAssetCache(2000, 30*time.Minute),
		client:     &http.Client{Timeout: preloadFetchTimeout},
		logger:     utils.GetLogger(),
		metrics:    utils.NewPlaybackMetrics(),
		fetchSlots: make(chan struct{}, maxConcurrentFetch),
	}
}

// ----------------------------------------
// 地址拼装
// ----------------------------------------

// BackgroundURL 背景图地址
func (s *AssetService) BackgroundURL(id, region string) string {
	return fmt.Sprintf("%s/%s/Back/back%s.png", s.BaseURL, region, id)
}

// BGMURL 背景音乐地址
func (s *AssetService) BGMURL(id, region string) string {
	return fmt.Sprintf("%s/%s/Audio/%s/%s.mp3", s.BaseURL, region, id, id)
}

// SEURL 音效地址
func (s *AssetService) SEURL(id, region string) string {
	return fmt.Sprintf("%s/%s/Audio/SE/%s.mp3", s.BaseURL, region, id)
}

// CharacterSpriteURL 角色立绘地址，灵基编号并入图号
func (s *AssetService) CharacterSpriteURL(charaID, ascension int, region string) string {
	return fmt.Sprintf("%s/%s/CharaFigure/%d%d/%d%d_merged.png",
		s.BaseURL, region, charaID, ascension, charaID, ascension)
}

// characterScriptURL 角色脚本元数据地址
func (s *AssetService) characterScriptURL(charaID int, region string) string {
	return fmt.Sprintf("%s/%s/CharaFigure/%d/script.json", s.BaseURL, region, charaID)
}

// ----------------------------------------
// 解析与预热
// ----------------------------------------

// Resolve 已预热的素材返回本地服务地址，否则原样返回远端地址
func (s *AssetService) Resolve(url string) string {
	if local, ok := s.cache.Get(url); ok {
		s.metrics.RecordPreload("resolve", true)
		return local
	}
	s.metrics.RecordPreload("resolve", false)
	return url
}

// PreloadImage 异步预热图像素材
func (s *AssetService) PreloadImage(url string) {
	s.preload(url, "image")
}

// PreloadAudio 异步预热音频素材
func (s *AssetService) PreloadAudio(url string) {
	s.preload(url, "audio")
}

// preload 抓取远端素材并落盘，完成后登记到解析缓存
// 抓取失败只记日志，播放继续使用远端地址
func (s *AssetService) preload(url, kind string) {
	if url == "" {
		return
	}
	if _, ok := s.cache.Get(url); ok {
		return
	}
	if _, loaded := s.inFlight.LoadOrStore(url, struct{}{}); loaded {
		return
	}

	go func() {
		defer s.inFlight.Delete(url)

		s.fetchSlots <- struct{}{}
		defer func() { <-s.fetchSlots }()

		s.metrics.RecordPreload(kind, false)

		filename := utils.HashCacheKey(url) + path.Ext(url)
		if s.storage.FileExists(assetDir, filename) {
			s.cache.Put(url, assetServePrefix+"/"+filename)
			return
		}

		data, err := s.fetch(url)
		if err != nil {
			s.logger.Warn("素材预热失败", map[string]interface{}{
				"url":  url,
				"kind": kind,
				"err":  err.Error(),
			})
			return
		}

		if err := s.storage.SaveTextFile(assetDir, filename, data); err != nil {
			s.logger.Warn("素材落盘失败", map[string]interface{}{
				"url": url,
				"err": err.Error(),
			})
			return
		}

		s.cache.Put(url, assetServePrefix+"/"+filename)
		s.logger.Debug("素材预热完成", map[string]interface{}{
			"url":  url,
			"kind": kind,
			"size": len(data),
		})
	}()
}

// CharacterScript 顺带拉取角色脚本元数据
// 结果只记日志后丢弃，渲染层需要时自行再取
func (s *AssetService) CharacterScript(charaID int, region string) {
	url := s.characterScriptURL(charaID, region)
	if _, loaded := s.inFlight.LoadOrStore(url, struct{}{}); loaded {
		return
	}

	go func() {
		defer s.inFlight.Delete(url)

		s.fetchSlots <- struct{}{}
		defer func() { <-s.fetchSlots }()

		data, err := s.fetch(url)
		if err != nil {
			s.logger.Debug("角色脚本拉取失败", map[string]interface{}{
				"chara_id": charaID,
				"region":   region,
				"err":      err.Error(),
			})
			return
		}

		s.logger.Debug("角色脚本已拉取", map[string]interface{}{
			"chara_id": charaID,
			"region":   region,
			"size":     len(data),
		})
	}()
}

// AssetLocalDir 返回素材落盘目录的绝对路径，供静态文件路由挂载
func (s *AssetService) AssetLocalDir() string {
	return s.storage.LocalPath(assetDir, "")
}

func (s *AssetService) fetch(url string) ([]byte, error) {
	resp, err := s.client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("意外的响应状态: %s", resp.Status)
	}

	return io.ReadAll(resp.Body)
}
