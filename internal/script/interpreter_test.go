// internal/script/interpreter_test.go
package script

import (
	"fmt"
	"strings"
	"testing"

	"github.com/Hoshino/ScriptTheater/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ----------------------------------------
// 端口假实现
// ----------------------------------------

type audioCall struct {
	Op     string
	ID     string
	Volume float64
	Fade   float64
}

type fakeAudio struct {
	calls []audioCall
}

func (f *fakeAudio) PlayBGM(id string, volume, fade float64) {
	f.calls = append(f.calls, audioCall{Op: "playBgm", ID: id, Volume: volume, Fade: fade})
}
func (f *fakeAudio) StopBGM(id string, fade float64) {
	f.calls = append(f.calls, audioCall{Op: "stopBgm", ID: id, Fade: fade})
}
func (f *fakeAudio) PlaySE(id string) {
	f.calls = append(f.calls, audioCall{Op: "playSe", ID: id})
}
func (f *fakeAudio) StopSE(id string, fade float64) {
	f.calls = append(f.calls, audioCall{Op: "stopSe", ID: id, Fade: fade})
}
func (f *fakeAudio) StopAll(fade float64) {
	f.calls = append(f.calls, audioCall{Op: "stopAll", Fade: fade})
}

func (f *fakeAudio) ops() []string {
	ops := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		ops = append(ops, c.Op)
	}
	return ops
}

type fakeAssets struct {
	preloadedImages []string
	preloadedAudio  []string
	scriptFetches   []int
}

func (f *fakeAssets) BackgroundURL(id, region string) string {
	return fmt.Sprintf("asset://%s/back/%s", region, id)
}
func (f *fakeAssets) BGMURL(id, region string) string {
	return fmt.Sprintf("asset://%s/bgm/%s", region, id)
}
func (f *fakeAssets) SEURL(id, region string) string {
	return fmt.Sprintf("asset://%s/se/%s", region, id)
}
func (f *fakeAssets) CharacterSpriteURL(charaID, ascension int, region string) string {
	return fmt.Sprintf("asset://%s/figure/%d_%d", region, charaID, ascension)
}
func (f *fakeAssets) Resolve(url string) string {
	return "resolved:" + url
}
func (f *fakeAssets) PreloadImage(url string) {
	f.preloadedImages = append(f.preloadedImages, url)
}
func (f *fakeAssets) PreloadAudio(url string) {
	f.preloadedAudio = append(f.preloadedAudio, url)
}
func (f *fakeAssets) CharacterScript(charaID int, region string) {
	f.scriptFetches = append(f.scriptFetches, charaID)
}

func newTestInterpreter() (*Interpreter, *fakeAudio, *fakeAssets) {
	audio := &fakeAudio{}
	assets := &fakeAssets{}
	return NewInterpreter(audio, assets), audio, assets
}

func loadLines(it *Interpreter, lines ...string) {
	it.Load(lines, models.RegionJP, models.PlayerProfile{Name: "ぐだ子", Gender: "f"})
}

// ----------------------------------------
// 角色指令
// ----------------------------------------

func TestCharaSetCreatesCharacter(t *testing.T) {
	it, _, _ := newTestInterpreter()

	loadLines(it,
		"[charaSet A 98001000 1 マシュ]",
		"[k]",
	)

	ch := it.Presentation().Characters["A"]
	require.NotNil(t, ch)
	assert.Equal(t, 98001000, ch.ID)
	assert.Equal(t, 1, ch.Ascension)
	assert.Equal(t, "マシュ", ch.Name)
	assert.Equal(t, 0, ch.Face)
	assert.False(t, ch.Visible)
	assert.Nil(t, it.Presentation().ActiveCharacter)
}

// 名称含空白时由剩余参数拼接
func TestCharaSetJoinsNameParts(t *testing.T) {
	it, _, _ := newTestInterpreter()

	loadLines(it,
		"[charaSet B 1001000 3 Dr. ロマン]",
		"[k]",
	)

	ch := it.Presentation().Characters["B"]
	require.NotNil(t, ch)
	assert.Equal(t, "Dr. ロマン", ch.Name)
}

func TestCharaFadeinActivates(t *testing.T) {
	it, _, _ := newTestInterpreter()

	loadLines(it,
		"[charaSet A 98001000 1 マシュ]",
		"[charaFadein A]",
		"[k]",
	)

	state := it.Presentation()
	require.NotNil(t, state.ActiveCharacter)
	assert.Equal(t, "A", state.ActiveCharacter.Code)
	assert.True(t, state.Characters["A"].Visible)
}

func TestCharaFadeoutClearsActive(t *testing.T) {
	it, _, _ := newTestInterpreter()

	loadLines(it,
		"[charaSet A 98001000 1 マシュ]",
		"[charaFadein A]",
		"[charaFadeout A]",
		"[k]",
	)

	state := it.Presentation()
	assert.Nil(t, state.ActiveCharacter)
	assert.False(t, state.Characters["A"].Visible)
}

func TestCharaFaceRefreshesActiveCopy(t *testing.T) {
	it, _, _ := newTestInterpreter()

	loadLines(it,
		"[charaSet A 98001000 1 マシュ]",
		"[charaFadein A]",
		"[charaFace A 5]",
		"[k]",
	)

	state := it.Presentation()
	assert.Equal(t, 5, state.Characters["A"].Face)
	require.NotNil(t, state.ActiveCharacter)
	assert.Equal(t, 5, state.ActiveCharacter.Face)
}

// 说话人名称命中可见角色时自动成为演出角色
func TestSpeakerActivatesVisibleCharacter(t *testing.T) {
	it, _, _ := newTestInterpreter()

	loadLines(it,
		"[charaSet A 98001000 1 マシュ]",
		"[charaFadein A]",
		"[charaFadeout A]",
		"[charaFadein A]",
		"＠マシュ",
		"先輩！",
		"[k]",
	)

	state := it.Presentation()
	assert.Equal(t, "マシュ", state.Speaker)
	require.NotNil(t, state.ActiveCharacter)
	assert.Equal(t, "A", state.ActiveCharacter.Code)
}

func TestSpeakerIgnoresInvisibleCharacter(t *testing.T) {
	it, _, _ := newTestInterpreter()

	loadLines(it,
		"[charaSet A 98001000 1 マシュ]",
		"＠マシュ",
		"……",
		"[k]",
	)

	state := it.Presentation()
	assert.Equal(t, "マシュ", state.Speaker)
	assert.Nil(t, state.ActiveCharacter)
}

// 参数不足的指令整体忽略，不得有部分改写
func TestDirectivesWithMissingArgsIgnored(t *testing.T) {
	it, _, _ := newTestInterpreter()

	loadLines(it,
		"[charaSet A 98001000]",
		"[charaFace A]",
		"[charaFadein X]",
		"[k]",
	)

	state := it.Presentation()
	assert.Empty(t, state.Characters)
	assert.Nil(t, state.ActiveCharacter)
	assert.Equal(t, StatePausedDialogue, it.State())
}

func TestUnparsableNumericArgsIgnored(t *testing.T) {
	it, _, _ := newTestInterpreter()

	loadLines(it,
		"[charaSet A xyz 1 マシュ]",
		"[k]",
	)

	assert.Empty(t, it.Presentation().Characters)
}

// ----------------------------------------
// 对话与文本累积
// ----------------------------------------

func TestDialogueAccumulatesWithNewlines(t *testing.T) {
	it, _, _ := newTestInterpreter()

	loadLines(it,
		"一行目",
		"二行目",
		"[k]",
		"三行目",
		"[k]",
	)

	assert.Equal(t, "一行目\n二行目", it.Presentation().Text)

	it.Advance()
	assert.Equal(t, "三行目", it.Presentation().Text)
}

// ----------------------------------------
// 选择分支
// ----------------------------------------

func choiceScript() []string {
	return []string{
		"？1：OptionA",
		"BranchA",
		"？2：OptionB",
		"BranchB",
		"？！",
		"After",
		"[k]",
	}
}

func TestChoiceBlockPausesWithAllOptions(t *testing.T) {
	it, _, _ := newTestInterpreter()

	loadLines(it, choiceScript()...)

	require.Equal(t, StatePausedChoice, it.State())
	require.Len(t, it.Presentation().Choices, 2)
	assert.Equal(t, models.ChoiceOption{ID: 1, Text: "OptionA"}, it.Presentation().Choices[0])
	assert.Equal(t, models.ChoiceOption{ID: 2, Text: "OptionB"}, it.Presentation().Choices[1])
}

// 选择2只执行分支B，绝不执行分支A
func TestSelectSecondChoiceSkipsFirstBranch(t *testing.T) {
	it, _, _ := newTestInterpreter()

	loadLines(it, choiceScript()...)
	it.SelectChoice(2)

	assert.Equal(t, StatePausedDialogue, it.State())
	assert.Equal(t, "BranchB\nAfter", it.Presentation().Text)
	assert.NotContains(t, it.Presentation().Text, "BranchA")
}

// 选择1执行分支A后，遇到下一个选项标记直接跳到块出口
func TestSelectFirstChoiceJumpsOverSiblingBranches(t *testing.T) {
	it, _, _ := newTestInterpreter()

	loadLines(it, choiceScript()...)
	it.SelectChoice(1)

	assert.Equal(t, "BranchA\nAfter", it.Presentation().Text)
	assert.NotContains(t, it.Presentation().Text, "BranchB")
}

func TestSelectChoiceUnknownIDIsNoop(t *testing.T) {
	it, _, _ := newTestInterpreter()

	loadLines(it, choiceScript()...)
	it.SelectChoice(9)

	assert.Equal(t, StatePausedChoice, it.State())
	assert.Len(t, it.Presentation().Choices, 2)
}

// 缺少块结束标记的选择块降级为普通逐行执行
func TestMalformedChoiceBlockDegrades(t *testing.T) {
	it, _, _ := newTestInterpreter()

	loadLines(it,
		"？1：OptionA",
		"そのまま続く",
		"[k]",
	)

	assert.Equal(t, StatePausedDialogue, it.State())
	assert.Empty(t, it.Presentation().Choices)
	assert.Equal(t, "そのまま続く", it.Presentation().Text)
}

// ----------------------------------------
// 音频与场景指令
// ----------------------------------------

func TestSceneResolvesBackground(t *testing.T) {
	it, _, assets := newTestInterpreter()

	loadLines(it, "[scene 001]", "[k]")

	expected := "resolved:" + assets.BackgroundURL("001", models.RegionJP)
	assert.Equal(t, expected, it.Presentation().Background)
}

func TestBGMDirectives(t *testing.T) {
	it, audio, _ := newTestInterpreter()

	loadLines(it,
		"[bgm bgm01 0.5]",
		"[bgmStop bgm01 2.5]",
		"[k]",
	)

	require.Len(t, audio.calls, 2)
	assert.Equal(t, audioCall{Op: "playBgm", ID: "bgm01", Volume: 0.5}, audio.calls[0])
	assert.Equal(t, audioCall{Op: "stopBgm", ID: "bgm01", Fade: 2.5}, audio.calls[1])
	assert.Empty(t, it.Presentation().BGM)
}

func TestSoundEffectDirectives(t *testing.T) {
	it, audio, _ := newTestInterpreter()

	loadLines(it,
		"[se ad1000]",
		"[seStop ad1000 1.5]",
		"[soundStopAll]",
		"[soundStopAllFade 3]",
		"[k]",
	)

	assert.Equal(t, []string{"playSe", "stopSe", "stopAll", "stopAll"}, audio.ops())
	assert.Equal(t, 1.5, audio.calls[1].Fade)
	assert.Equal(t, 0.0, audio.calls[2].Fade)
	assert.Equal(t, 3.0, audio.calls[3].Fade)
}

// ----------------------------------------
// 生命周期
// ----------------------------------------

func TestEndToEndPlayback(t *testing.T) {
	it, audio, _ := newTestInterpreter()

	raw := "[scene 001]\n[bgm bgm01 1.0]\nHello\n[k]\n[end]"
	loadLines(it, strings.Split(raw, "\n")...)

	state := it.Presentation()
	assert.NotEmpty(t, state.Background)
	assert.Equal(t, "bgm01", state.BGM)
	assert.Equal(t, "Hello", state.Text)
	assert.False(t, state.Finished)
	require.Len(t, audio.calls, 1)
	assert.Equal(t, 1.0, audio.calls[0].Volume)

	it.Advance()
	assert.True(t, it.Presentation().Finished)
	assert.Equal(t, StateFinished, it.State())
}

// 终态下的Advance是幂等的
func TestAdvanceAfterFinishIsIdempotent(t *testing.T) {
	it, _, _ := newTestInterpreter()

	loadLines(it, "こんにちは", "[end]")
	require.Equal(t, StateFinished, it.State())
	text := it.Presentation().Text

	it.Advance()
	it.Advance()

	assert.Equal(t, StateFinished, it.State())
	assert.Equal(t, text, it.Presentation().Text)
}

// 空脚本（加载失败的降级结果）立即进入终态
func TestEmptyScriptFinishesImmediately(t *testing.T) {
	it, _, _ := newTestInterpreter()

	it.Load(nil, models.RegionNA, models.PlayerProfile{})

	assert.Equal(t, StateFinished, it.State())
	assert.True(t, it.Presentation().Finished)
}

func TestLoadAppliesRegionDefaultName(t *testing.T) {
	it, _, _ := newTestInterpreter()

	it.Load([]string{"[%1]と申します", "[k]"}, models.RegionNA, models.PlayerProfile{Gender: "f"})

	assert.Equal(t, "Fujimaru", it.Presentation().Player.Name)
	assert.Equal(t, "Fujimaruと申します", it.Presentation().Text)
}

func TestUnknownDirectiveIgnored(t *testing.T) {
	it, _, _ := newTestInterpreter()

	loadLines(it,
		"[wipeFilter 1 2 3]",
		"[label start]",
		"テキスト",
		"[k]",
	)

	assert.Equal(t, StatePausedDialogue, it.State())
	assert.Equal(t, "テキスト", it.Presentation().Text)
}
