// internal/script/tokenizer.go
package script

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Hoshino/ScriptTheater/internal/models"
)

// 行首哨兵字符
const (
	noopPrefix    = "；"  // 注释/空操作行
	choicePrefix  = "？"  // 选项行
	choiceEndMark = "？！" // 选项块结束标记
	speakerPrefix = "＠"  // 说话人切换
)

var (
	choiceLinePattern = regexp.MustCompile(`^？(\d+)：(.*)$`)
	directivePattern  = regexp.MustCompile(`^\[([0-9A-Za-z_]+)(?:\s+(.+?))?\s*\]$`)
	hexColorNameCheck = regexp.MustCompile(`^[0-9a-fA-F]{6}$`)
)

// Tokenizer 将一行原始脚本文本分类为命令
// 对话/说话人/选项文本经由展开器完成标记展开
type Tokenizer struct {
	expander *Expander
}

// NewTokenizer 创建行分类器
func NewTokenizer(expander *Expander) *Tokenizer {
	return &Tokenizer{expander: expander}
}

// Tokenize 分类一行脚本，首个匹配的规则生效
// 残缺的语法一律降级为普通对话文本，绝不报错
func (t *Tokenizer) Tokenize(line string) models.Command {
	line = strings.TrimSpace(line)

	if strings.HasPrefix(line, noopPrefix) {
		return models.Command{Type: models.CommandDirective, Name: models.DirectiveNoop}
	}

	if strings.HasPrefix(line, choicePrefix) {
		if line == choiceEndMark {
			return models.Command{Type: models.CommandChoiceEnd}
		}
		if m := choiceLinePattern.FindStringSubmatch(line); m != nil {
			if id, err := strconv.Atoi(m[1]); err == nil {
				return models.Command{
					Type:     models.CommandChoice,
					ChoiceID: id,
					Text:     t.expander.Expand(m[2]),
				}
			}
		}
		// 选项语法残缺：按普通文本处理
		return t.dialogue(line)
	}

	if strings.HasPrefix(line, speakerPrefix) {
		return models.Command{
			Type: models.CommandSpeaker,
			Text: t.expander.Expand(strings.TrimPrefix(line, speakerPrefix)),
		}
	}

	if strings.HasPrefix(line, "[") {
		if line == "[k]" {
			return models.Command{Type: models.CommandDirective, Name: models.DirectiveWaitClick}
		}
		if m := directivePattern.FindStringSubmatch(line); m != nil {
			// 恰好6位十六进制的名称是行内颜色标记的开头，不是指令
			if hexColorNameCheck.MatchString(m[1]) {
				return t.dialogue(line)
			}
			var args []string
			if m[2] != "" {
				args = strings.Fields(m[2])
			}
			return models.Command{Type: models.CommandDirective, Name: m[1], Args: args}
		}
		return t.dialogue(line)
	}

	return t.dialogue(line)
}

func (t *Tokenizer) dialogue(line string) models.Command {
	return models.Command{Type: models.CommandDialogue, Text: t.expander.Expand(line)}
}
