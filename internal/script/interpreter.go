// internal/script/interpreter.go
package script

import (
	"strconv"
	"strings"

	"github.com/Hoshino/ScriptTheater/internal/models"
)

// AudioPort 解释器依赖的音频播放能力（依赖注入，便于测试替换）
type AudioPort interface {
	PlayBGM(id string, volume, fade float64)
	StopBGM(id string, fade float64)
	PlaySE(id string)
	StopSE(id string, fade float64)
	StopAll(fade float64)
}

// AssetPort 解释器与预读器依赖的素材解析能力
type AssetPort interface {
	BackgroundURL(id, region string) string
	BGMURL(id, region string) string
	SEURL(id, region string) string
	CharacterSpriteURL(charaID, ascension int, region string) string

	// Resolve 可能返回缓存/本地化后的地址
	Resolve(url string) string
	PreloadImage(url string)
	PreloadAudio(url string)

	// CharacterScript 预读阶段顺带拉取角色脚本元数据，结果由渲染层消费
	CharacterScript(charaID int, region string)
}

// State 解释器状态
type State string

const (
	StateIdle           State = "idle"            // 未加载脚本
	StateRunning        State = "running"         // 执行中（不对外暴露暂停）
	StatePausedDialogue State = "paused_dialogue" // 等待点击推进
	StatePausedChoice   State = "paused_choice"   // 等待选项选择
	StateFinished       State = "finished"        // 终态
)

// Interpreter 脚本解释器 / 执行引擎
// 持有行游标，驱动分类与标记展开，改写演出状态并决定何时暂停
// 调用方必须串行调用 Load/Advance/SelectChoice，不支持重入
type Interpreter struct {
	lines  []string
	cursor int
	state  State
	region string

	tokenizer *Tokenizer
	expander  *Expander

	presentation *models.PresentationState

	// 选择分支状态
	choiceResume      map[int]int // 选项ID -> 恢复行号
	pendingBranchExit *int        // 分支执行中时为选项块出口行号

	audio  AudioPort
	assets AssetPort
}

// NewInterpreter 创建解释器，音频与素材能力由外部注入
func NewInterpreter(audio AudioPort, assets AssetPort) *Interpreter {
	return &Interpreter{
		state:        StateIdle,
		audio:        audio,
		assets:       assets,
		presentation: models.NewPresentationState(models.PlayerProfile{}),
	}
}

// Load 加载脚本并重置全部状态，随后执行到第一个暂停点
// 玩家名为空时按区域默认名称表补齐
func (it *Interpreter) Load(lines []string, region string, profile models.PlayerProfile) {
	if profile.Name == "" {
		profile.Name = models.DefaultPlayerName(region)
	}
	if profile.Gender == "" {
		profile.Gender = "f"
	}
	profile.Region = region

	it.lines = lines
	it.cursor = 0
	it.region = region
	it.expander = NewExpander(profile)
	it.tokenizer = NewTokenizer(it.expander)
	it.choiceResume = nil
	it.pendingBranchExit = nil
	it.presentation = models.NewPresentationState(profile)

	it.state = StateRunning
	it.run()
}

// Advance 从当前游标继续执行到下一个暂停点
// 终态下幂等，不产生任何状态变化
func (it *Interpreter) Advance() {
	if it.state == StateFinished || it.state == StateIdle {
		return
	}
	it.presentation.Text = ""
	it.presentation.Choices = nil
	it.state = StateRunning
	it.run()
}

// SelectChoice 选择一个选项并跳转到其分支继续执行
// 未知的选项ID是无操作
func (it *Interpreter) SelectChoice(choiceID int) {
	if it.state == StateFinished || it.state == StateIdle {
		return
	}
	resume, ok := it.choiceResume[choiceID]
	if !ok {
		return
	}
	it.cursor = resume
	it.choiceResume = nil
	it.presentation.Text = ""
	it.presentation.Choices = nil
	it.state = StateRunning
	it.run()
}

// State 返回当前执行状态
func (it *Interpreter) State() State {
	return it.state
}

// Presentation 返回演出状态（渲染层在每个暂停点读取）
func (it *Interpreter) Presentation() *models.PresentationState {
	return it.presentation
}

// Cursor 返回当前游标位置（供预读器使用）
func (it *Interpreter) Cursor() int {
	return it.cursor
}

// Lines 返回脚本行序列（只读，供预读器使用）
func (it *Interpreter) Lines() []string {
	return it.lines
}

// ----------------------------------------
// 执行循环
// ----------------------------------------

// run 逐行执行直到暂停、结束或行序列耗尽
func (it *Interpreter) run() {
	for {
		if it.cursor >= len(it.lines) {
			// 行序列耗尽：即使没有显式end指令也进入终态
			it.presentation.Finished = true
			it.state = StateFinished
			return
		}

		cmd := it.tokenizer.Tokenize(it.lines[it.cursor])
		it.cursor++

		switch cmd.Type {
		case models.CommandDialogue:
			it.appendDialogue(cmd.Text)

		case models.CommandSpeaker:
			it.setSpeaker(cmd.Text)

		case models.CommandChoice:
			if it.pendingBranchExit != nil {
				// 分支执行中又遇到选项标记：跳到块出口，不再重新询问
				it.cursor = *it.pendingBranchExit
				it.pendingBranchExit = nil
				continue
			}
			if it.openChoiceBlock(cmd) {
				it.state = StatePausedChoice
				return
			}
			// 缺少块结束标记的残缺选择块：降级为逐行普通执行

		case models.CommandChoiceEnd:
			// 最后一个分支自然走到块末尾
			it.pendingBranchExit = nil

		case models.CommandDirective:
			if stop := it.applyDirective(cmd); stop {
				if it.presentation.Finished {
					it.state = StateFinished
				} else {
					it.state = StatePausedDialogue
				}
				return
			}
		}
	}
}

// appendDialogue 将对话文本累积到当前块
func (it *Interpreter) appendDialogue(text string) {
	if it.presentation.Text == "" {
		it.presentation.Text = text
	} else {
		it.presentation.Text += "\n" + text
	}
}

// setSpeaker 切换说话人；可见角色的名称匹配时将其设为演出角色
func (it *Interpreter) setSpeaker(name string) {
	it.presentation.Speaker = name
	for code, ch := range it.presentation.Characters {
		if ch.Name == name && ch.Visible {
			it.setActiveCharacter(code, ch)
			break
		}
	}
}

// setActiveCharacter 刷新演出角色的非规范化副本
func (it *Interpreter) setActiveCharacter(code string, ch *models.Character) {
	it.presentation.ActiveCharacter = &models.ActiveCharacter{Code: code, Character: *ch}
}

// openChoiceBlock 从当前游标向前扫描，构建选项块
// 返回false表示未找到块结束标记（残缺脚本），不建立任何选择状态
func (it *Interpreter) openChoiceBlock(first models.Command) bool {
	options := []models.ChoiceOption{{ID: first.ChoiceID, Text: first.Text}}
	resume := map[int]int{first.ChoiceID: it.cursor}
	exit := -1

	for i := it.cursor; i < len(it.lines); i++ {
		cmd := it.tokenizer.Tokenize(it.lines[i])
		if cmd.Type == models.CommandChoice {
			options = append(options, models.ChoiceOption{ID: cmd.ChoiceID, Text: cmd.Text})
			resume[cmd.ChoiceID] = i + 1
		} else if cmd.Type == models.CommandChoiceEnd {
			exit = i + 1
			break
		}
	}
	if exit < 0 {
		return false
	}

	it.choiceResume = resume
	branchExit := exit
	it.pendingBranchExit = &branchExit
	it.presentation.Choices = options
	return true
}

// applyDirective 执行一条指令，返回true表示执行循环应当停止
// 参数不足或数值残缺的指令整体忽略，不做任何状态改写
func (it *Interpreter) applyDirective(cmd models.Command) bool {
	args := cmd.Args

	switch cmd.Name {
	case models.DirectiveWaitClick:
		return true

	case models.DirectiveEnd:
		it.presentation.Finished = true
		return true

	case models.DirectiveNoop:
		// 空操作

	case models.DirectiveScene:
		if len(args) >= 1 {
			url := it.assets.BackgroundURL(args[0], it.region)
			it.presentation.Background = it.assets.Resolve(url)
		}

	case models.DirectiveBGM:
		if len(args) >= 1 {
			volume := 1.0
			if len(args) >= 2 {
				if v, err := strconv.ParseFloat(args[1], 64); err == nil {
					volume = v
				}
			}
			it.presentation.BGM = args[0]
			it.audio.PlayBGM(args[0], volume, 0)
		}

	case models.DirectiveBGMStop:
		if len(args) >= 1 {
			it.audio.StopBGM(args[0], parseFade(args, 1))
			if strings.Contains(it.presentation.BGM, args[0]) {
				it.presentation.BGM = ""
			}
		}

	case models.DirectiveSE:
		if len(args) >= 1 {
			it.audio.PlaySE(args[0])
		}

	case models.DirectiveSEStop:
		if len(args) >= 1 {
			it.audio.StopSE(args[0], parseFade(args, 1))
		}

	case models.DirectiveSoundStopAll:
		it.audio.StopAll(0)

	case models.DirectiveSoundStopAllFade:
		it.audio.StopAll(parseFade(args, 0))

	case models.DirectiveCharaSet:
		if len(args) >= 3 {
			id, errID := strconv.Atoi(args[1])
			ascension, errAsc := strconv.Atoi(args[2])
			if errID == nil && errAsc == nil {
				it.presentation.Characters[args[0]] = &models.Character{
					ID:        id,
					Ascension: ascension,
					Name:      strings.Join(args[3:], " "),
					Face:      0,
					Visible:   false,
				}
			}
		}

	case models.DirectiveCharaFace:
		if len(args) >= 2 {
			if ch, ok := it.presentation.Characters[args[0]]; ok {
				if face, err := strconv.Atoi(args[1]); err == nil {
					ch.Face = face
					if active := it.presentation.ActiveCharacter; active != nil && active.Code == args[0] {
						it.setActiveCharacter(args[0], ch)
					}
				}
			}
		}

	case models.DirectiveCharaFadein:
		if len(args) >= 1 {
			if ch, ok := it.presentation.Characters[args[0]]; ok {
				ch.Visible = true
				it.setActiveCharacter(args[0], ch)
			}
		}

	case models.DirectiveCharaFadeout:
		if len(args) >= 1 {
			if ch, ok := it.presentation.Characters[args[0]]; ok {
				ch.Visible = false
				if active := it.presentation.ActiveCharacter; active != nil && active.Code == args[0] {
					it.presentation.ActiveCharacter = nil
				}
			}
		}

	default:
		// 未识别指令（label/jump/输入提示/转场效果等）一律忽略
	}

	return false
}

// parseFade 解析可选的淡出时长参数（秒），缺失或残缺时为0
func parseFade(args []string, index int) float64 {
	if len(args) <= index {
		return 0
	}
	v, err := strconv.ParseFloat(args[index], 64)
	if err != nil {
		return 0
	}
	return v
}
