// internal/services/user_service.go
package services

import (
	"strings"

	apperrors "github.com/Hoshino/ScriptTheater/internal/errors"
	"github.com/Hoshino/ScriptTheater/internal/models"
	"github.com/Hoshino/ScriptTheater/internal/storage"
)

const userDir = "users"

// UserService 处理玩家档案的读写
type UserService struct {
	FileStorage   *storage.FileStorage
	DefaultRegion string
}

// NewUserService 创建用户服务
func NewUserService(fs *storage.FileStorage, defaultRegion string) *UserService {
	if defaultRegion == "" {
		defaultRegion = models.RegionJP
	}
	return &UserService{
		FileStorage:   fs,
		DefaultRegion: defaultRegion,
	}
}

// GetProfile 获取玩家档案
// 档案不存在时返回按默认区域补齐的空档案，名称留空由加载时按区域默认名补齐
func (s *UserService) GetProfile(userID string) (models.PlayerProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return models.PlayerProfile{}, apperrors.NewValidationError("用户ID不能为空", nil)
	}

	var profile models.PlayerProfile
	if err := s.FileStorage.LoadJSONFile(userDir, userID+".json", &profile); err != nil {
		return models.PlayerProfile{
			Gender: "f",
			Region: s.DefaultRegion,
		}, nil
	}

	if profile.Gender != "m" && profile.Gender != "f" {
		profile.Gender = "f"
	}
	if profile.Region == "" {
		profile.Region = s.DefaultRegion
	}

	return profile, nil
}

// SaveProfile 保存玩家档案
func (s *UserService) SaveProfile(userID string, profile models.PlayerProfile) error {
	if strings.TrimSpace(userID) == "" {
		return apperrors.NewValidationError("用户ID不能为空", nil)
	}

	if profile.Gender != "m" && profile.Gender != "f" {
		profile.Gender = "f"
	}
	if profile.Region == "" {
		profile.Region = s.DefaultRegion
	}

	return s.FileStorage.SaveJSONFile(userDir, userID+".json", profile)
}
