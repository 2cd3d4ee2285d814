// internal/models/character.go
package models

// Character 表示演出中的一个登场角色
// 由 charaSet 创建，charaFace/charaFadein/charaFadeout 修改
// 一次播放过程中角色不会被销毁，只切换可见性
type Character struct {
	ID        int    `json:"id"`        // 角色数值ID
	Ascension int    `json:"ascension"` // 灵基/立绘变体
	Name      string `json:"name"`      // 显示名称
	Face      int    `json:"face"`      // 当前表情索引
	Visible   bool   `json:"visible"`   // 可见性标志
}

// ActiveCharacter 当前演出角色
// 渲染层使用的非规范化副本，附带脚本中的短代号
type ActiveCharacter struct {
	Code string `json:"code"`
	Character
}

// PlayerProfile 玩家档案（姓名与性别影响文本标记展开）
type PlayerProfile struct {
	Name   string `json:"name"`
	Gender string `json:"gender"` // "m" | "f"
	Region string `json:"region,omitempty"`
}

// 区域常量
const (
	RegionJP = "JP"
	RegionNA = "NA"
	RegionKR = "KR"
	RegionCN = "CN"
	RegionTW = "TW"
)

// DefaultPlayerName 返回指定区域的默认主人公名称
func DefaultPlayerName(region string) string {
	switch region {
	case RegionNA:
		return "Fujimaru"
	case RegionKR:
		return "후지마루"
	default: // JP / CN / TW
		return "藤丸"
	}
}
