// internal/services/audio_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ----------------------------------------
// 测试替身
// ----------------------------------------

type fakeHandle struct {
	source   string
	volume   float64
	playing  bool
	released bool
	onEnded  func()
}

func (h *fakeHandle) Play()               { h.playing = true }
func (h *fakeHandle) Pause()              { h.playing = false }
func (h *fakeHandle) SetVolume(v float64) { h.volume = v }
func (h *fakeHandle) Volume() float64     { return h.volume }
func (h *fakeHandle) Source() string      { return h.source }
func (h *fakeHandle) Playing() bool       { return h.playing }
func (h *fakeHandle) OnEnded(fn func())   { h.onEnded = fn }
func (h *fakeHandle) Release()            { h.released = true; h.playing = false }

type fakeDevice struct {
	handles []*fakeHandle
}

func (d *fakeDevice) NewHandle(source string) AudioHandle {
	h := &fakeHandle{source: source}
	d.handles = append(d.handles, h)
	return h
}

// fakeScheduler 同步调度器：帧与定时器都由测试显式推进
type fakeScheduler struct {
	frames []func()
	timers []func()
}

func (s *fakeScheduler) Frame(fn func()) { s.frames = append(s.frames, fn) }

func (s *fakeScheduler) After(d time.Duration, fn func()) { s.timers = append(s.timers, fn) }

func (s *fakeScheduler) runFrame() bool {
	if len(s.frames) == 0 {
		return false
	}
	fn := s.frames[0]
	s.frames = s.frames[1:]
	fn()
	return true
}

func (s *fakeScheduler) fireTimers() {
	timers := s.timers
	s.timers = nil
	for _, fn := range timers {
		fn()
	}
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeSources struct{}

func (fakeSources) BGMURL(id, region string) string { return "audio://" + region + "/bgm/" + id }
func (fakeSources) SEURL(id, region string) string  { return "audio://" + region + "/se/" + id }
func (fakeSources) Resolve(url string) string       { return url }

func newTestAudioService() (*AudioService, *fakeDevice, *fakeScheduler, *fakeClock) {
	device := &fakeDevice{}
	sched := &fakeScheduler{}
	clock := &fakeClock{t: time.Unix(1700000000, 0)}

	svc := NewAudioService(device, sched, fakeSources{}, "JP")
	svc.now = clock.now
	return svc, device, sched, clock
}

// ----------------------------------------
// BGM通道
// ----------------------------------------

func TestPlayBGMScalesVolume(t *testing.T) {
	svc, device, _, _ := newTestAudioService()

	svc.PlayBGM("bgm01", 0.1, 0)

	require.Len(t, device.handles, 1)
	h := device.handles[0]
	assert.Equal(t, "audio://JP/bgm/bgm01", h.source)
	assert.InDelta(t, 0.5, h.volume, 1e-9)
	assert.True(t, h.playing)
}

// 放大后超过1.0的音量截断到1.0
func TestPlayBGMClampsVolume(t *testing.T) {
	svc, device, _, _ := newTestAudioService()

	svc.PlayBGM("bgm01", 0.5, 0)

	assert.Equal(t, 1.0, device.handles[0].volume)
}

func TestPlayBGMSameSourceAdjustsVolumeOnly(t *testing.T) {
	svc, device, _, _ := newTestAudioService()

	svc.PlayBGM("bgm01", 0.1, 0)
	svc.PlayBGM("bgm01", 0.16, 0)

	require.Len(t, device.handles, 1)
	assert.InDelta(t, 0.8, device.handles[0].volume, 1e-9)
}

func TestPlayBGMWithFadeInterpolatesLinearly(t *testing.T) {
	svc, device, sched, clock := newTestAudioService()

	svc.PlayBGM("bgm01", 0.2, 2.0)

	h := device.handles[0]
	assert.Equal(t, 0.0, h.volume)
	assert.True(t, h.playing)

	clock.advance(time.Second)
	require.True(t, sched.runFrame())
	assert.InDelta(t, 0.5, h.volume, 1e-9)

	clock.advance(1100 * time.Millisecond)
	require.True(t, sched.runFrame())
	assert.Equal(t, 1.0, h.volume)
	assert.Empty(t, sched.frames)
}

// 换曲时旧曲必须被停止丢弃，BGM通道同一时刻至多一首
func TestPlayBGMDifferentTrackStopsPrevious(t *testing.T) {
	svc, device, _, _ := newTestAudioService()

	svc.PlayBGM("bgm01", 0.1, 0)
	svc.PlayBGM("bgm02", 0.1, 0)

	require.Len(t, device.handles, 2)
	assert.False(t, device.handles[0].playing)
	assert.True(t, device.handles[0].released)
	assert.True(t, device.handles[1].playing)
	require.Len(t, svc.bgm, 1)
	assert.Contains(t, svc.bgm, "audio://JP/bgm/bgm02")
}

func TestPlayBGMDifferentTrackCrossfades(t *testing.T) {
	svc, device, sched, clock := newTestAudioService()

	svc.PlayBGM("bgm01", 0.1, 0)
	svc.PlayBGM("bgm02", 0.1, 1.0)

	require.Len(t, device.handles, 2)
	old, next := device.handles[0], device.handles[1]

	// 旧曲淡出，新曲从0淡入
	assert.True(t, old.playing)
	assert.Equal(t, 0.0, next.volume)
	assert.True(t, next.playing)

	clock.advance(1100 * time.Millisecond)
	for sched.runFrame() {
	}
	assert.Equal(t, 0.0, old.volume)
	assert.False(t, old.playing)
	assert.InDelta(t, 0.5, next.volume, 1e-9)

	sched.fireTimers()
	assert.True(t, old.released)
	require.Len(t, svc.bgm, 1)
	assert.Contains(t, svc.bgm, "audio://JP/bgm/bgm02")
}

func TestStopBGMMatchesBySubstring(t *testing.T) {
	svc, device, _, _ := newTestAudioService()

	svc.PlayBGM("bgm01", 0.1, 0)
	svc.StopBGM("bgm01", 0)

	h := device.handles[0]
	assert.False(t, h.playing)
	assert.True(t, h.released)
	assert.Empty(t, svc.bgm)
}

func TestStopBGMUnknownIDIsNoop(t *testing.T) {
	svc, device, _, _ := newTestAudioService()

	svc.PlayBGM("bgm01", 0.1, 0)
	svc.StopBGM("bgm99", 0)

	assert.True(t, device.handles[0].playing)
}

func TestStopBGMWithFadeReleasesAfterGracePeriod(t *testing.T) {
	svc, device, sched, clock := newTestAudioService()

	svc.PlayBGM("bgm01", 0.1, 0)
	h := device.handles[0]

	svc.StopBGM("bgm01", 1.0)

	clock.advance(500 * time.Millisecond)
	require.True(t, sched.runFrame())
	assert.InDelta(t, 0.25, h.volume, 1e-9)
	assert.True(t, h.playing)

	clock.advance(600 * time.Millisecond)
	require.True(t, sched.runFrame())
	assert.Equal(t, 0.0, h.volume)
	assert.False(t, h.playing)
	assert.False(t, h.released)

	// 淡出时长加0.1秒后才释放通道
	sched.fireTimers()
	assert.True(t, h.released)
	assert.Empty(t, svc.bgm)
}

// ----------------------------------------
// SE通道
// ----------------------------------------

func TestPlaySEStartsAtFullVolume(t *testing.T) {
	svc, device, _, _ := newTestAudioService()

	svc.PlaySE("ad1000")

	require.Len(t, device.handles, 1)
	h := device.handles[0]
	assert.Equal(t, 1.0, h.volume)
	assert.True(t, h.playing)
}

func TestPlaySENaturalEndRemovesChannel(t *testing.T) {
	svc, device, _, _ := newTestAudioService()

	svc.PlaySE("ad1000")

	h := device.handles[0]
	require.NotNil(t, h.onEnded)
	h.onEnded()

	assert.Empty(t, svc.se)
}

// 同ID重复播放只替换跟踪引用，旧实例不被打断
func TestPlaySESameIDReplacesTrackedReference(t *testing.T) {
	svc, device, _, _ := newTestAudioService()

	svc.PlaySE("ad1000")
	svc.PlaySE("ad1000")

	require.Len(t, device.handles, 2)
	assert.True(t, device.handles[0].playing)
	assert.False(t, device.handles[0].released)
	assert.True(t, device.handles[1].playing)

	// 跟踪引用指向最新实例，按ID停止只作用于它
	require.Len(t, svc.se, 1)
	assert.Same(t, device.handles[1], svc.se["ad1000"])

	svc.StopSE("ad1000", 0)
	assert.True(t, device.handles[0].playing)
	assert.False(t, device.handles[1].playing)
}

// 被替换的旧实例自然播完时不得移除新实例的表项
func TestPlaySEReplacedInstanceEndDoesNotEvictNew(t *testing.T) {
	svc, device, _, _ := newTestAudioService()

	svc.PlaySE("ad1000")
	svc.PlaySE("ad1000")

	require.NotNil(t, device.handles[0].onEnded)
	device.handles[0].onEnded()

	require.Len(t, svc.se, 1)
	assert.Same(t, device.handles[1], svc.se["ad1000"])
}

func TestStopSEWithFade(t *testing.T) {
	svc, device, sched, clock := newTestAudioService()

	svc.PlaySE("ad1000")
	h := device.handles[0]

	svc.StopSE("ad1000", 1.5)

	clock.advance(1600 * time.Millisecond)
	require.True(t, sched.runFrame())
	assert.Equal(t, 0.0, h.volume)
	assert.False(t, h.playing)

	sched.fireTimers()
	assert.True(t, h.released)
	assert.Empty(t, svc.se)
}

// ----------------------------------------
// 全停与释放
// ----------------------------------------

func TestStopAllCoversBothChannelKinds(t *testing.T) {
	svc, device, _, _ := newTestAudioService()

	svc.PlayBGM("bgm01", 0.1, 0)
	svc.PlaySE("ad1000")

	svc.StopAll(0)

	for _, h := range device.handles {
		assert.False(t, h.playing)
		assert.True(t, h.released)
	}
	assert.Empty(t, svc.bgm)
	assert.Empty(t, svc.se)
}

func TestReleaseAllBlocksFurtherPlayback(t *testing.T) {
	svc, device, _, _ := newTestAudioService()

	svc.PlayBGM("bgm01", 0.1, 0)
	svc.PlaySE("ad1000")
	svc.ReleaseAll()

	for _, h := range device.handles {
		assert.True(t, h.released)
	}

	svc.PlayBGM("bgm02", 0.1, 0)
	svc.PlaySE("ad2000")
	assert.Len(t, device.handles, 2)
}
