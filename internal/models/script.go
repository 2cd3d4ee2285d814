// internal/models/script.go
package models

import "time"

// ScriptInfo 表示一份可播放脚本的元数据
type ScriptInfo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Region    string    `json:"region,omitempty"`
	LineCount int       `json:"line_count,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}
