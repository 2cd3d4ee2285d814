// internal/script/preload_test.go
package script

import (
	"testing"

	"github.com/Hoshino/ScriptTheater/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreloadRequestsAssetsUpToBlockLimit(t *testing.T) {
	assets := &fakeAssets{}
	p := NewPreloader(assets)

	lines := []string{
		"[scene 001]",
		"[bgm bgm01 0.8]",
		"[se ad1000]",
		"[charaSet A 98001000 1 マシュ]",
		"セリフ",
		"[k]",
		"[scene 002]",
		"[k]",
	}

	p.Scan(lines, 0, models.RegionJP, 1)

	assert.Equal(t, []string{
		"asset://JP/back/001",
		"asset://JP/figure/98001000_1",
	}, assets.preloadedImages)
	assert.Equal(t, []string{
		"asset://JP/bgm/bgm01",
		"asset://JP/se/ad1000",
	}, assets.preloadedAudio)
	assert.Equal(t, []int{98001000}, assets.scriptFetches)
}

func TestPreloadScansMultipleBlocks(t *testing.T) {
	assets := &fakeAssets{}
	p := NewPreloader(assets)

	lines := []string{
		"[scene 001]",
		"[k]",
		"[scene 002]",
		"[k]",
		"[scene 003]",
	}

	p.Scan(lines, 0, models.RegionNA, 2)

	assert.Equal(t, []string{
		"asset://NA/back/001",
		"asset://NA/back/002",
	}, assets.preloadedImages)
}

// end指令立即停止扫描
func TestPreloadStopsAtEnd(t *testing.T) {
	assets := &fakeAssets{}
	p := NewPreloader(assets)

	lines := []string{
		"[scene 001]",
		"[end]",
		"[scene 002]",
	}

	p.Scan(lines, 0, models.RegionJP, 5)

	assert.Equal(t, []string{"asset://JP/back/001"}, assets.preloadedImages)
}

// 选项行使块计数归零并扫入分支，直到耗尽额度后的块结束标记
func TestPreloadContinuesIntoChoiceBranches(t *testing.T) {
	assets := &fakeAssets{}
	p := NewPreloader(assets)

	lines := []string{
		"？1：A",
		"[scene 002]",
		"[k]",
		"？2：B",
		"[se s1]",
		"[k]",
		"？！",
		"[scene 003]",
	}

	p.Scan(lines, 0, models.RegionJP, 1)

	require.Equal(t, []string{"asset://JP/back/002"}, assets.preloadedImages)
	assert.Equal(t, []string{"asset://JP/se/s1"}, assets.preloadedAudio)
}

// 从中途游标开始扫描
func TestPreloadScanFromCursor(t *testing.T) {
	assets := &fakeAssets{}
	p := NewPreloader(assets)

	lines := []string{
		"[scene 001]",
		"[k]",
		"[scene 002]",
		"[k]",
	}

	p.Scan(lines, 2, models.RegionJP, 1)

	assert.Equal(t, []string{"asset://JP/back/002"}, assets.preloadedImages)
}
