// internal/script/preload.go
package script

import (
	"strconv"

	"github.com/Hoshino/ScriptTheater/internal/models"
)

// Preloader 从指定游标向前只读扫描，为后续内容预热素材缓存
// 不改写任何执行状态，可与解释器并发重复调用
type Preloader struct {
	tokenizer *Tokenizer
	assets    AssetPort
}

// NewPreloader 创建预读器
// 预读只关心指令行，标记展开结果会被丢弃，档案用空值即可
func NewPreloader(assets AssetPort) *Preloader {
	return &Preloader{
		tokenizer: NewTokenizer(NewExpander(models.PlayerProfile{})),
		assets:    assets,
	}
}

// Scan 向前扫描并请求预加载
// 累计 blockLimit 个 waitClick 后停止；end 指令立即停止
// 遇到选项行时块计数归零并继续扫入分支（分支内容同样需要预热），
// 之后在耗尽块额度后的第一个块结束标记处停止
func (p *Preloader) Scan(lines []string, start int, region string, blockLimit int) {
	blocks := 0
	sawChoice := false

	for i := start; i < len(lines); i++ {
		cmd := p.tokenizer.Tokenize(lines[i])

		switch cmd.Type {
		case models.CommandChoice:
			blocks = 0
			sawChoice = true

		case models.CommandChoiceEnd:
			if sawChoice && blocks >= blockLimit {
				return
			}

		case models.CommandDirective:
			switch cmd.Name {
			case models.DirectiveWaitClick:
				blocks++
				if blocks >= blockLimit && !sawChoice {
					return
				}

			case models.DirectiveEnd:
				return

			case models.DirectiveScene:
				if len(cmd.Args) >= 1 {
					p.assets.PreloadImage(p.assets.BackgroundURL(cmd.Args[0], region))
				}

			case models.DirectiveBGM:
				if len(cmd.Args) >= 1 {
					p.assets.PreloadAudio(p.assets.BGMURL(cmd.Args[0], region))
				}

			case models.DirectiveSE:
				if len(cmd.Args) >= 1 {
					p.assets.PreloadAudio(p.assets.SEURL(cmd.Args[0], region))
				}

			case models.DirectiveCharaSet:
				if len(cmd.Args) >= 3 {
					id, errID := strconv.Atoi(cmd.Args[1])
					ascension, errAsc := strconv.Atoi(cmd.Args[2])
					if errID == nil && errAsc == nil {
						p.assets.PreloadImage(p.assets.CharacterSpriteURL(id, ascension, region))
						p.assets.CharacterScript(id, region)
					}
				}
			}
		}
	}
}
