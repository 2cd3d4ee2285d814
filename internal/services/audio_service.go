// internal/services/audio_service.go
package services

import (
	"strings"
	"sync"
	"time"

	"github.com/Hoshino/ScriptTheater/internal/utils"
)

// AudioHandle 一次播放实例（浏览器端Audio元素的抽象）
type AudioHandle interface {
	Play()
	Pause()
	SetVolume(v float64)
	Volume() float64
	Source() string
	Playing() bool
	OnEnded(fn func())
	Release()
}

// AudioDevice 创建播放实例
type AudioDevice interface {
	NewHandle(source string) AudioHandle
}

// Scheduler 提供帧回调与延迟回调，淡出动画依赖它推进
// 生产实现基于ticker，测试实现同步执行
type Scheduler interface {
	Frame(fn func())
	After(d time.Duration, fn func())
}

// AudioSources 音频服务依赖的地址解析能力
type AudioSources interface {
	BGMURL(id, region string) string
	SEURL(id, region string) string
	Resolve(url string) string
}

// AudioService 音频通道管理器
// 单一BGM通道加按音效ID索引的多个SE通道，随播放会话创建与释放
type AudioService struct {
	device  AudioDevice
	sched   Scheduler
	sources AudioSources
	region  string
	logger  *utils.Logger
	now     func() time.Time

	mu       sync.Mutex
	bgm      map[string]AudioHandle // 来源地址 -> 播放实例
	se       map[string]AudioHandle // 音效ID -> 播放实例
	released bool
}

// NewAudioService 创建音频服务
func NewAudioService(device AudioDevice, sched Scheduler, sources AudioSources, region string) *AudioService {
	return &AudioService{
		device:  device,
		sched:   sched,
		sources: sources,
		region:  region,
		logger:  utils.GetLogger(),
		now:     time.Now,
		bgm:     make(map[string]AudioHandle),
		se:      make(map[string]AudioHandle),
	}
}

// PlayBGM 播放背景音乐
// 脚本中的音量值偏小，按约定放大5倍后截断到1.0
// 同一来源已在播放时仅调整音量，不重新开始
func (s *AudioService) PlayBGM(id string, volume, fade float64) {
	source := s.sources.Resolve(s.sources.BGMURL(id, s.region))

	target := volume * 5
	if target > 1.0 {
		target = 1.0
	}

	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}

	if handle, ok := s.bgm[source]; ok && handle.Playing() {
		s.mu.Unlock()
		s.fadeTo(handle, target, fade, nil)
		return
	}

	// 换曲：先淡出并丢弃旧曲，BGM通道同一时刻至多一首
	previous := make([]AudioHandle, 0, len(s.bgm))
	cleanups := make([]func(), 0, len(s.bgm))
	for oldSource, old := range s.bgm {
		previous = append(previous, old)
		cleanups = append(cleanups, s.removeBGM(oldSource, old))
	}

	handle := s.device.NewHandle(source)
	s.bgm[source] = handle
	s.mu.Unlock()

	for i, old := range previous {
		s.stopChannel(old, fade, cleanups[i])
	}

	if fade > 0 {
		handle.SetVolume(0)
		handle.Play()
		s.fadeTo(handle, target, fade, nil)
	} else {
		handle.SetVolume(target)
		handle.Play()
	}
}

// StopBGM 停止背景音乐
// 按ID子串匹配来源地址，脚本侧的bgmStop参数常常只是文件名片段
func (s *AudioService) StopBGM(id string, fade float64) {
	s.mu.Lock()
	var matched []AudioHandle
	var sources []string
	for source, handle := range s.bgm {
		if strings.Contains(source, id) {
			matched = append(matched, handle)
			sources = append(sources, source)
		}
	}
	s.mu.Unlock()

	for i, handle := range matched {
		s.stopChannel(handle, fade, s.removeBGM(sources[i], handle))
	}
}

// PlaySE 播放音效，满音量立即开始
// 自然播完的音效自行退出通道表
// 同ID重复播放只替换跟踪引用，旧实例继续播完，除非被显式停止
func (s *AudioService) PlaySE(id string) {
	source := s.sources.Resolve(s.sources.SEURL(id, s.region))

	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}

	handle := s.device.NewHandle(source)
	s.se[id] = handle
	s.mu.Unlock()

	handle.OnEnded(func() {
		s.mu.Lock()
		if current, ok := s.se[id]; ok && current == handle {
			delete(s.se, id)
		}
		s.mu.Unlock()
	})

	handle.SetVolume(1.0)
	handle.Play()
}

// StopSE 停止指定音效
func (s *AudioService) StopSE(id string, fade float64) {
	s.mu.Lock()
	handle, ok := s.se[id]
	s.mu.Unlock()
	if !ok {
		return
	}

	s.stopChannel(handle, fade, s.removeSE(id, handle))
}

// StopAll 停止全部通道
func (s *AudioService) StopAll(fade float64) {
	s.mu.Lock()
	handles := make([]AudioHandle, 0, len(s.bgm)+len(s.se))
	cleanups := make([]func(), 0, len(s.bgm)+len(s.se))
	for source, handle := range s.bgm {
		handles = append(handles, handle)
		cleanups = append(cleanups, s.removeBGM(source, handle))
	}
	for id, handle := range s.se {
		handles = append(handles, handle)
		cleanups = append(cleanups, s.removeSE(id, handle))
	}
	s.mu.Unlock()

	for i, handle := range handles {
		s.stopChannel(handle, fade, cleanups[i])
	}
}

// ReleaseAll 立即释放全部播放实例，会话关闭时调用
// 释放后本服务不再接受新的播放请求
func (s *AudioService) ReleaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.released = true
	for _, handle := range s.bgm {
		handle.Release()
	}
	for _, handle := range s.se {
		handle.Release()
	}
	s.bgm = make(map[string]AudioHandle)
	s.se = make(map[string]AudioHandle)
}

// stopChannel 淡出后暂停并在余量时间后移除通道
// 移除时机为淡出时长再加0.1秒，保证最后一帧音量变化已生效
func (s *AudioService) stopChannel(handle AudioHandle, fade float64, cleanup func()) {
	if fade <= 0 {
		handle.Pause()
		handle.Release()
		if cleanup != nil {
			cleanup()
		}
		return
	}

	s.fadeTo(handle, 0, fade, func() {
		handle.Pause()
	})
	s.sched.After(time.Duration((fade+0.1)*float64(time.Second)), func() {
		handle.Release()
		if cleanup != nil {
			cleanup()
		}
	})
}

// fadeTo 按墙钟时间线性插值音量，每帧推进一步
func (s *AudioService) fadeTo(handle AudioHandle, target, seconds float64, done func()) {
	if seconds <= 0 {
		handle.SetVolume(target)
		if done != nil {
			done()
		}
		return
	}

	start := s.now()
	from := handle.Volume()

	var step func()
	step = func() {
		elapsed := s.now().Sub(start).Seconds()
		t := elapsed / seconds
		if t >= 1 {
			handle.SetVolume(target)
			if done != nil {
				done()
			}
			return
		}
		handle.SetVolume(from + (target-from)*t)
		s.sched.Frame(step)
	}
	s.sched.Frame(step)
}

// removeBGM 延迟移除可能与换曲竞争，只清除仍指向同一实例的表项
func (s *AudioService) removeBGM(source string, handle AudioHandle) func() {
	return func() {
		s.mu.Lock()
		if current, ok := s.bgm[source]; ok && current == handle {
			delete(s.bgm, source)
		}
		s.mu.Unlock()
	}
}

func (s *AudioService) removeSE(id string, handle AudioHandle) func() {
	return func() {
		s.mu.Lock()
		if current, ok := s.se[id]; ok && current == handle {
			delete(s.se, id)
		}
		s.mu.Unlock()
	}
}

// ----------------------------------------
// 生产实现
// ----------------------------------------

// TickerScheduler 基于ticker的帧调度，约60fps
type TickerScheduler struct{}

// Frame 在下一帧刻度执行
func (TickerScheduler) Frame(fn func()) {
	time.AfterFunc(16*time.Millisecond, fn)
}

// After 延迟执行
func (TickerScheduler) After(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}
