// internal/models/presentation.go
package models

// ChoiceOption 表示暂停点上等待玩家选择的一个选项
type ChoiceOption struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// PresentationState 演出状态
// 解释器对外唯一可观察的可变结构，渲染层在每个暂停点读取
// 不变量：ActiveCharacter 非空时其引用的角色必须可见
type PresentationState struct {
	Background      string                `json:"background,omitempty"` // 背景图URL
	BGM             string                `json:"bgm,omitempty"`        // 当前背景音乐标识
	Characters      map[string]*Character `json:"characters"`           // 脚本代号 -> 角色
	ActiveCharacter *ActiveCharacter      `json:"active_character,omitempty"`
	Text            string                `json:"text"` // 当前暂停点累积的对话文本
	Speaker         string                `json:"speaker,omitempty"`
	Choices         []ChoiceOption        `json:"choices,omitempty"`
	Finished        bool                  `json:"finished"`
	Player          PlayerProfile         `json:"player"`
}

// NewPresentationState 创建空的演出状态
func NewPresentationState(player PlayerProfile) *PresentationState {
	return &PresentationState{
		Characters: make(map[string]*Character),
		Player:     player,
	}
}
