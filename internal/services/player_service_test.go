// internal/services/player_service_test.go
package services

import (
	"strings"
	"sync"
	"testing"

	"github.com/Hoshino/ScriptTheater/internal/models"
	"github.com/Hoshino/ScriptTheater/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPlayerService(t *testing.T) (*PlayerService, *ScriptService) {
	t.Helper()

	dataDir := t.TempDir()
	fs, err := storage.NewFileStorage(dataDir)
	require.NoError(t, err)

	scripts, err := NewScriptService(dataDir)
	require.NoError(t, err)

	// 不可达的素材地址，预热请求快速失败且不阻塞播放
	assets := NewAssetService("http://127.0.0.1:1", fs)
	users := NewUserService(fs, models.RegionJP)

	return NewPlayerService(scripts, assets, users, 5), scripts
}

func TestStartPlaythroughRunsToFirstPause(t *testing.T) {
	svc, scripts := newTestPlayerService(t)

	require.NoError(t, scripts.SaveScript("demo", "＠マシュ\n先輩、おはようございます\n[k]\n[end]"))

	state, err := svc.StartPlaythrough("demo", "u1", "")
	require.NoError(t, err)

	assert.Equal(t, "demo", state.ScriptID)
	assert.Equal(t, models.RegionJP, state.Region)
	assert.Equal(t, "paused_dialogue", state.State)
	assert.Equal(t, "マシュ", state.Presentation.Speaker)
	assert.Equal(t, "先輩、おはようございます", state.Presentation.Text)
	assert.Equal(t, 1, svc.SessionCount())
}

func TestStartPlaythroughUnknownScript(t *testing.T) {
	svc, _ := newTestPlayerService(t)

	_, err := svc.StartPlaythrough("missing", "u1", "JP")
	assert.ErrorIs(t, err, ErrScriptNotFound)
}

func TestAdvanceReachesFinalState(t *testing.T) {
	svc, scripts := newTestPlayerService(t)

	require.NoError(t, scripts.SaveScript("demo", "一行目\n[k]\n二行目\n[k]\n[end]"))

	state, err := svc.StartPlaythrough("demo", "u1", "JP")
	require.NoError(t, err)
	require.Equal(t, "paused_dialogue", state.State)

	state, err = svc.Advance(state.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "二行目", state.Presentation.Text)

	state, err = svc.Advance(state.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "finished", state.State)
	assert.True(t, state.Presentation.Finished)
}

func TestSelectChoiceFollowsBranch(t *testing.T) {
	svc, scripts := newTestPlayerService(t)

	require.NoError(t, scripts.SaveScript("branch",
		"？1：行く\nBranchA\n？2：残る\nBranchB\n？！\n[k]\n[end]"))

	state, err := svc.StartPlaythrough("branch", "u1", "JP")
	require.NoError(t, err)
	require.Equal(t, "paused_choice", state.State)
	require.Len(t, state.Presentation.Choices, 2)

	state, err = svc.SelectChoice(state.SessionID, 2)
	require.NoError(t, err)
	assert.Equal(t, "BranchB", state.Presentation.Text)
}

func TestNotifierReceivesPauseStates(t *testing.T) {
	svc, scripts := newTestPlayerService(t)

	require.NoError(t, scripts.SaveScript("demo", "一行目\n[k]\n[end]"))

	var pushed []*PlaythroughState
	svc.SetNotifier(func(_ string, state *PlaythroughState) {
		pushed = append(pushed, state)
	})

	state, err := svc.StartPlaythrough("demo", "u1", "JP")
	require.NoError(t, err)

	_, err = svc.Advance(state.SessionID)
	require.NoError(t, err)

	require.Len(t, pushed, 1)
	assert.Equal(t, "finished", pushed[0].State)
}

// 同一会话的并发推进由会话锁串行化，预读游标在锁内取得
func TestConcurrentAdvancesAreSerialized(t *testing.T) {
	svc, scripts := newTestPlayerService(t)

	var sb strings.Builder
	for i := 0; i < 20; i++ {
		sb.WriteString("セリフ\n[k]\n")
	}
	sb.WriteString("[end]")
	require.NoError(t, scripts.SaveScript("long", sb.String()))

	state, err := svc.StartPlaythrough("long", "u1", "JP")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, err := svc.Advance(state.SessionID)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	final, err := svc.GetState(state.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "finished", final.State)
}

func TestReleaseRemovesSession(t *testing.T) {
	svc, scripts := newTestPlayerService(t)

	require.NoError(t, scripts.SaveScript("demo", "一行目\n[k]\n[end]"))

	state, err := svc.StartPlaythrough("demo", "u1", "JP")
	require.NoError(t, err)

	require.NoError(t, svc.Release(state.SessionID))
	assert.Equal(t, 0, svc.SessionCount())

	_, err = svc.GetState(state.SessionID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.ErrorIs(t, svc.Release(state.SessionID), ErrSessionNotFound)
}

// 状态快照与解释器内部状态解耦
func TestSnapshotIsDetached(t *testing.T) {
	svc, scripts := newTestPlayerService(t)

	require.NoError(t, scripts.SaveScript("demo",
		"[charaSet A 98001000 1 マシュ]\n[charaFadein A]\nこんにちは\n[k]\n[end]"))

	state, err := svc.StartPlaythrough("demo", "u1", "JP")
	require.NoError(t, err)

	state.Presentation.Characters["A"].Name = "改名"

	again, err := svc.GetState(state.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "マシュ", again.Presentation.Characters["A"].Name)
}
