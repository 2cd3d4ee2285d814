// internal/models/command.go
package models

// CommandType 表示脚本行分类后的命令类型
type CommandType string

const (
	CommandDialogue  CommandType = "dialogue"   // 普通对话/旁白文本
	CommandSpeaker   CommandType = "speaker"    // 说话人切换
	CommandChoice    CommandType = "choice"     // 选项行
	CommandChoiceEnd CommandType = "choice_end" // 选项块结束标记
	CommandDirective CommandType = "directive"  // 方括号指令
)

// 指令名称常量
const (
	DirectiveNoop             = "noop"
	DirectiveWaitClick        = "waitClick"
	DirectiveEnd              = "end"
	DirectiveScene            = "scene"
	DirectiveBGM              = "bgm"
	DirectiveBGMStop          = "bgmStop"
	DirectiveSE               = "se"
	DirectiveSEStop           = "seStop"
	DirectiveSoundStopAll     = "soundStopAll"
	DirectiveSoundStopAllFade = "soundStopAllFade"
	DirectiveCharaSet         = "charaSet"
	DirectiveCharaFace        = "charaFace"
	DirectiveCharaFadein      = "charaFadein"
	DirectiveCharaFadeout     = "charaFadeout"
)

// Command 表示一行脚本解析出的命令
// 对话与选项的文本在解析阶段已完成标记展开
type Command struct {
	Type     CommandType `json:"type"`
	Name     string      `json:"name,omitempty"`      // 指令名称（仅 directive 类型）
	Args     []string    `json:"args,omitempty"`      // 指令参数（仅 directive 类型）
	Text     string      `json:"text,omitempty"`      // 对话/说话人/选项文本
	ChoiceID int         `json:"choice_id,omitempty"` // 选项编号（仅 choice 类型）
}
