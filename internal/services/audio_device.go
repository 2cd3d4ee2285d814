// internal/services/audio_device.go
package services

import "sync"

// VirtualAudioDevice 服务端的音频设备实现
// 实际发声在浏览器端，服务端只维护通道状态供状态推送使用
type VirtualAudioDevice struct{}

// NewHandle 创建一个仅记录状态的播放实例
func (VirtualAudioDevice) NewHandle(source string) AudioHandle {
	return &virtualHandle{source: source, volume: 1.0}
}

type virtualHandle struct {
	mu      sync.Mutex
	source  string
	volume  float64
	playing bool
	onEnded func()
}

func (h *virtualHandle) Play() {
	h.mu.Lock()
	h.playing = true
	h.mu.Unlock()
}

func (h *virtualHandle) Pause() {
	h.mu.Lock()
	h.playing = false
	h.mu.Unlock()
}

func (h *virtualHandle) SetVolume(v float64) {
	h.mu.Lock()
	h.volume = v
	h.mu.Unlock()
}

func (h *virtualHandle) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

func (h *virtualHandle) Source() string { return h.source }

func (h *virtualHandle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing
}

// OnEnded 服务端没有播放进度，回调仅保存不触发
func (h *virtualHandle) OnEnded(fn func()) {
	h.mu.Lock()
	h.onEnded = fn
	h.mu.Unlock()
}

func (h *virtualHandle) Release() {
	h.mu.Lock()
	h.playing = false
	h.mu.Unlock()
}
