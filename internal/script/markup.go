// internal/script/markup.go
package script

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Hoshino/ScriptTheater/internal/models"
)

// 行内分隔线的像素单位：[line N] 的宽度 = N * linePixelUnit
const linePixelUnit = 6

// 标记规则的正则表达式
// 每条规则封装为独立的转换函数，Expand 按固定顺序应用
// 顺序不可调整：后面的规则不能重新匹配前面规则的输出
var (
	genderPattern      = regexp.MustCompile(`\[&([^:\[\]]*):([^\[\]]*)\]`)
	colorOpenPattern   = regexp.MustCompile(`\[([0-9a-fA-F]{6})\]`)
	lineRulePattern    = regexp.MustCompile(`\[line (\d+)\]`)
	fontSizePattern    = regexp.MustCompile(`\[f ([^\]\s]+)\]`)
	servantNamePattern = regexp.MustCompile(`\[servantName (\d+):([^:\]]*):([^\]]*)\]`)
	imagePattern       = regexp.MustCompile(`\[(?:image|i) ([^:\]]*):([^\]]*)\]`)
	rubyPattern        = regexp.MustCompile(`\[#([^:\]]+):([^\]]+)\]`)
	emphasisPattern    = regexp.MustCompile(`\[#([^\]]+)\]`)
)

// Expander 将脚本的行内标记展开为浏览器可渲染的富文本
// 依赖玩家档案（姓名替换、性别条件文本）
type Expander struct {
	profile models.PlayerProfile
}

// NewExpander 创建文本标记展开器
func NewExpander(profile models.PlayerProfile) *Expander {
	return &Expander{profile: profile}
}

// Expand 按固定顺序应用全部标记规则
// 未识别的方括号序列原样保留，不做剥离
func (e *Expander) Expand(text string) string {
	text = e.expandGender(text)
	text = expandColorOpen(text)
	text = expandColorReset(text)
	text = expandLineRule(text)
	text = expandFontSize(text)
	text = expandServantName(text)
	text = expandImage(text)
	text = expandLineBreak(text)
	text = e.expandPlayerName(text)
	text = expandRuby(text)
	text = expandEmphasis(text)
	return text
}

// expandGender 性别三元标记 [&男性文本:女性文本]
func (e *Expander) expandGender(text string) string {
	return genderPattern.ReplaceAllStringFunc(text, func(m string) string {
		parts := genderPattern.FindStringSubmatch(m)
		if e.profile.Gender == "m" {
			return parts[1]
		}
		return parts[2]
	})
}

// expandColorOpen 颜色标记 [RRGGBB] 展开为着色span的开标签
func expandColorOpen(text string) string {
	return colorOpenPattern.ReplaceAllString(text, `<span style="color:#$1">`)
}

// expandColorReset 重置标记 [-] 关闭最近打开的span
// 不做栈式配对校验，嵌套错误的输入按原样全部替换
func expandColorReset(text string) string {
	return strings.ReplaceAll(text, "[-]", "</span>")
}

// expandLineRule [line N] 展开为宽度与N成比例的行内分隔线
func expandLineRule(text string) string {
	return lineRulePattern.ReplaceAllStringFunc(text, func(m string) string {
		parts := lineRulePattern.FindStringSubmatch(m)
		n, err := strconv.Atoi(parts[1])
		if err != nil {
			return m
		}
		return fmt.Sprintf(`<span style="display:inline-block;width:%dpx;height:0;border-top:1px solid currentColor"></span>`, n*linePixelUnit)
	})
}

// expandFontSize [f SIZE] 展开为字号span的开标签
// SIZE 为关键字 small/medium/large/x-large 或直接的倍率数值
func expandFontSize(text string) string {
	return fontSizePattern.ReplaceAllStringFunc(text, func(m string) string {
		parts := fontSizePattern.FindStringSubmatch(m)
		var size float64
		switch parts[1] {
		case "small":
			size = 0.75
		case "medium":
			size = 1
		case "large":
			size = 1.5
		case "x-large":
			size = 2
		default:
			v, err := strconv.ParseFloat(parts[1], 64)
			if err != nil {
				return m
			}
			size = v
		}
		return fmt.Sprintf(`<span style="font-size:%gem">`, size)
	})
}

// expandServantName [servantName ID:真名:隐藏名] 无条件选取隐藏名槽位
// 与原始脚本语言的真名隐藏逻辑存在已知差异：此处始终揭示
func expandServantName(text string) string {
	return servantNamePattern.ReplaceAllString(text, "$3")
}

// expandImage [image NAME:替代文本] / [i NAME:替代文本] 替换为替代文本
func expandImage(text string) string {
	return imagePattern.ReplaceAllString(text, "$2")
}

// expandLineBreak [r] 显式换行
func expandLineBreak(text string) string {
	return strings.ReplaceAll(text, "[r]", "<br>")
}

// expandPlayerName [%1] 替换为玩家显示名称
func (e *Expander) expandPlayerName(text string) string {
	return strings.ReplaceAll(text, "[%1]", e.profile.Name)
}

// expandRuby [#文本:注音] 展开为带注音的ruby标记
func expandRuby(text string) string {
	return rubyPattern.ReplaceAllString(text, "<ruby>$1<rt>$2</rt></ruby>")
}

// expandEmphasis [#文本] 单参数形式展开为着重标记
// 只在双参数ruby形式未匹配时生效（Expand中顺序保证）
func expandEmphasis(text string) string {
	return emphasisPattern.ReplaceAllString(text, "<em>$1</em>")
}

// ExpandPlain 无玩家档案时的兼容模式
// 只处理颜色/[line n]/[r]标记：剥离为纯文本并保留换行
func ExpandPlain(text string) string {
	text = colorOpenPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "[-]", "")
	text = lineRulePattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "[r]", "\n")
	return text
}
