// internal/services/player_service.go
package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/Hoshino/ScriptTheater/internal/models"
	"github.com/Hoshino/ScriptTheater/internal/script"
	"github.com/Hoshino/ScriptTheater/internal/utils"
)

var (
	ErrSessionNotFound = fmt.Errorf("playthrough session not found")
)

// PlaythroughSession 一次剧本播放会话
// 每个会话持有独立的解释器与音频通道
type PlaythroughSession struct {
	ID        string
	ScriptID  string
	UserID    string
	Region    string
	CreatedAt time.Time

	interp    *script.Interpreter
	audio     *AudioService
	preloader *script.Preloader
	lines     []string
}

// PlaythroughState 对外暴露的会话状态快照
type PlaythroughState struct {
	SessionID    string                    `json:"session_id"`
	ScriptID     string                    `json:"script_id"`
	Region       string                    `json:"region"`
	State        string                    `json:"state"`
	Presentation *models.PresentationState `json:"presentation"`
}

// StateNotifier 暂停点状态推送钩子，由websocket层注入
type StateNotifier func(sessionID string, state *PlaythroughState)

// PlayerService 管理全部播放会话
// 同一会话的Load/Advance/SelectChoice由会话锁串行化
type PlayerService struct {
	scripts *ScriptService
	assets  *AssetService
	users   *UserService
	device  AudioDevice
	sched   Scheduler
	locks   *LockManager
	logger  *utils.Logger
	metrics *utils.PlaybackMetrics

	preloadBlocks int
	notifier      StateNotifier

	sessions sync.Map // sessionID -> *PlaythroughSession
}

// NewPlayerService 创建播放会话服务
func NewPlayerService(scripts *ScriptService, assets *AssetService, users *UserService, preloadBlocks int) *PlayerService {
	if preloadBlocks <= 0 {
		preloadBlocks = 20
	}
	return &PlayerService{
		scripts:       scripts,
		assets:        assets,
		users:         users,
		device:        VirtualAudioDevice{},
		sched:         TickerScheduler{},
		locks:         NewLockManager(),
		logger:        utils.GetLogger(),
		metrics:       utils.NewPlaybackMetrics(),
		preloadBlocks: preloadBlocks,
	}
}

// SetNotifier 注入暂停点状态推送钩子
func (s *PlayerService) SetNotifier(n StateNotifier) {
	s.notifier = n
}

// StartPlaythrough 加载剧本并创建播放会话
// 区域优先级：请求参数 > 玩家档案 > 服务默认值
func (s *PlayerService) StartPlaythrough(scriptID, userID, region string) (*PlaythroughState, error) {
	lines, err := s.scripts.LoadLines(scriptID)
	if err != nil {
		return nil, err
	}

	profile, err := s.users.GetProfile(userID)
	if err != nil {
		return nil, err
	}
	if region == "" {
		region = profile.Region
	}
	if region == "" {
		region = s.users.DefaultRegion
	}

	sessionID := fmt.Sprintf("play_%d", time.Now().UnixNano())

	audio := NewAudioService(s.device, s.sched, s.assets, region)
	interp := script.NewInterpreter(audio, s.assets)

	session := &PlaythroughSession{
		ID:        sessionID,
		ScriptID:  scriptID,
		UserID:    userID,
		Region:    region,
		CreatedAt: time.Now(),
		interp:    interp,
		audio:     audio,
		preloader: script.NewPreloader(s.assets),
		lines:     lines,
	}

	var state *PlaythroughState
	var cursor int
	err = s.locks.ExecuteWithSessionLock(sessionID, func() error {
		interp.Load(lines, region, profile)
		s.sessions.Store(sessionID, session)
		state = s.snapshot(session)
		cursor = interp.Cursor()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.preloadAhead(session, cursor)
	s.metrics.RecordPlaythroughStarted(scriptID, region)

	return state, nil
}

// GetState 获取当前演出状态
func (s *PlayerService) GetState(sessionID string) (*PlaythroughState, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	var state *PlaythroughState
	err = s.locks.ExecuteWithSessionReadLock(sessionID, func() error {
		state = s.snapshot(session)
		return nil
	})
	return state, err
}

// Advance 推进到下一个暂停点
func (s *PlayerService) Advance(sessionID string) (*PlaythroughState, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	var state *PlaythroughState
	var cursor int
	err = s.locks.ExecuteWithSessionLock(sessionID, func() error {
		session.interp.Advance()
		state = s.snapshot(session)
		cursor = session.interp.Cursor()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.preloadAhead(session, cursor)
	s.push(state)
	return state, nil
}

// SelectChoice 选择一个分支并继续执行
func (s *PlayerService) SelectChoice(sessionID string, choiceID int) (*PlaythroughState, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	var state *PlaythroughState
	var cursor int
	err = s.locks.ExecuteWithSessionLock(sessionID, func() error {
		session.interp.SelectChoice(choiceID)
		state = s.snapshot(session)
		cursor = session.interp.Cursor()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordChoiceSelected(session.ScriptID, choiceID)
	s.preloadAhead(session, cursor)
	s.push(state)
	return state, nil
}

// Release 关闭会话并释放全部音频实例
func (s *PlayerService) Release(sessionID string) error {
	session, err := s.session(sessionID)
	if err != nil {
		return err
	}

	var cursor int
	err = s.locks.ExecuteWithSessionLock(sessionID, func() error {
		session.audio.ReleaseAll()
		s.sessions.Delete(sessionID)
		cursor = session.interp.Cursor()
		return nil
	})
	if err != nil {
		return err
	}

	s.locks.RemoveLock(sessionID)
	s.metrics.RecordPlaythroughFinished(session.ScriptID, cursor, time.Since(session.CreatedAt))
	s.logger.Info("播放会话已释放", map[string]interface{}{
		"session_id": sessionID,
		"script_id":  session.ScriptID,
	})
	return nil
}

// Shutdown 释放全部存活会话，服务退出前调用
func (s *PlayerService) Shutdown() {
	s.sessions.Range(func(key, _ interface{}) bool {
		if err := s.Release(key.(string)); err != nil {
			s.logger.Warn("释放会话失败", map[string]interface{}{
				"session_id": key,
				"error":      err.Error(),
			})
		}
		return true
	})
}

// SessionCount 当前存活的会话数
func (s *PlayerService) SessionCount() int {
	count := 0
	s.sessions.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

// ----------------------------------------
// 内部
// ----------------------------------------

func (s *PlayerService) session(sessionID string) (*PlaythroughSession, error) {
	value, ok := s.sessions.Load(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return value.(*PlaythroughSession), nil
}

// snapshot 生成演出状态的深拷贝，调用方需持有会话锁
func (s *PlayerService) snapshot(session *PlaythroughSession) *PlaythroughState {
	src := session.interp.Presentation()

	copied := *src
	copied.Characters = make(map[string]*models.Character, len(src.Characters))
	for code, ch := range src.Characters {
		chCopy := *ch
		copied.Characters[code] = &chCopy
	}
	if src.ActiveCharacter != nil {
		active := *src.ActiveCharacter
		copied.ActiveCharacter = &active
	}
	if src.Choices != nil {
		copied.Choices = append([]models.ChoiceOption(nil), src.Choices...)
	}

	return &PlaythroughState{
		SessionID:    session.ID,
		ScriptID:     session.ScriptID,
		Region:       session.Region,
		State:        string(session.interp.State()),
		Presentation: &copied,
	}
}

// preloadAhead 在后台从给定游标向前预热素材
// 游标必须在会话锁内取得，后续推进可能并发改写解释器
func (s *PlayerService) preloadAhead(session *PlaythroughSession, cursor int) {
	go session.preloader.Scan(session.lines, cursor, session.Region, s.preloadBlocks)
}

func (s *PlayerService) push(state *PlaythroughState) {
	if s.notifier != nil && state != nil {
		s.notifier(state.SessionID, state)
	}
}
