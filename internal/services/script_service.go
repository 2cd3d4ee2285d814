// internal/services/script_service.go
package services

import (
	"errors"
	"strings"

	"github.com/Hoshino/ScriptTheater/internal/models"
	"github.com/Hoshino/ScriptTheater/internal/storage"
	"github.com/Hoshino/ScriptTheater/internal/utils"
)

var (
	ErrScriptNotFound = errors.New("script not found")
)

const (
	scriptDir       = "scripts"
	scriptExt       = ".txt"
	scriptMetaExt   = ".meta.json"
	defaultRegionJP = models.RegionJP
)

// scriptMeta 剧本旁挂的可选元数据文件
type scriptMeta struct {
	Title  string `json:"title"`
	Region string `json:"region"`
}

// ScriptService 管理剧本文本库
// 剧本是预先下载好的纯文本文件，按文件名作为剧本ID
type ScriptService struct {
	BasePath    string
	FileStorage *storage.FileStorage
	logger      *utils.Logger
}

// NewScriptService 创建剧本服务
func NewScriptService(basePath string) (*ScriptService, error) {
	fs, err := storage.NewFileStorage(basePath)
	if err != nil {
		return nil, err
	}
	return &ScriptService{
		BasePath:    basePath,
		FileStorage: fs,
		logger:      utils.GetLogger(),
	}, nil
}

// ListScripts 列出全部可播放剧本
// 元数据缺失时以文件名充当标题，区域按默认值处理
func (s *ScriptService) ListScripts() ([]models.ScriptInfo, error) {
	files, err := s.FileStorage.ListFiles(scriptDir, scriptExt)
	if err != nil {
		return nil, err
	}

	infos := make([]models.ScriptInfo, 0, len(files))
	for _, filename := range files {
		id := strings.TrimSuffix(filename, scriptExt)

		info := models.ScriptInfo{
			ID:     id,
			Title:  id,
			Region: defaultRegionJP,
		}

		var meta scriptMeta
		if err := s.FileStorage.LoadJSONFile(scriptDir, id+scriptMetaExt, &meta); err == nil {
			if meta.Title != "" {
				info.Title = meta.Title
			}
			if meta.Region != "" {
				info.Region = meta.Region
			}
		}

		if lines, err := s.LoadLines(id); err == nil {
			info.LineCount = len(lines)
		}
		if mod, err := s.FileStorage.FileModTime(scriptDir, filename); err == nil {
			info.UpdatedAt = mod
		}

		infos = append(infos, info)
	}

	return infos, nil
}

// ScriptExists 检查剧本是否存在
func (s *ScriptService) ScriptExists(id string) bool {
	return s.FileStorage.FileExists(scriptDir, id+scriptExt)
}

// LoadRaw 读取剧本原始文本
func (s *ScriptService) LoadRaw(id string) (string, error) {
	if !s.ScriptExists(id) {
		return "", ErrScriptNotFound
	}
	data, err := s.FileStorage.LoadTextFile(scriptDir, id+scriptExt)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// LoadLines 读取剧本并切分为执行用的行序列
func (s *ScriptService) LoadLines(id string) ([]string, error) {
	raw, err := s.LoadRaw(id)
	if err != nil {
		return nil, err
	}
	return SplitLines(raw), nil
}

// SaveScript 保存或覆盖一个剧本文本
func (s *ScriptService) SaveScript(id, content string) error {
	if strings.TrimSpace(id) == "" {
		return ErrScriptNotFound
	}
	return s.FileStorage.SaveTextFile(scriptDir, id+scriptExt, []byte(content))
}

// SplitLines 按换行切分剧本并滤除空白行
// 兼容\r\n换行，空白行不进入行序列
func SplitLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
