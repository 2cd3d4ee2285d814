// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"

	// 剧本相关错误
	ErrorScriptNotFound   = "SCRIPT_NOT_FOUND"
	ErrorScriptLoadFailed = "SCRIPT_LOAD_FAILED"
	ErrorScriptInvalid    = "SCRIPT_INVALID"

	// 播放会话相关错误
	ErrorSessionNotFound     = "SESSION_NOT_FOUND"
	ErrorSessionCreateFailed = "SESSION_CREATE_FAILED"
	ErrorSessionReleased     = "SESSION_RELEASED"

	// 选择支相关错误
	ErrorChoiceInvalid     = "CHOICE_INVALID"
	ErrorChoiceNotExpected = "CHOICE_NOT_EXPECTED"

	// 用户相关错误
	ErrorUserNotFound   = "USER_NOT_FOUND"
	ErrorProfileInvalid = "PROFILE_INVALID"

	// 配置相关错误
	ErrorConfigUnhealthy = "CONFIG_UNHEALTHY"
	ErrorConfigNotLoaded = "CONFIG_NOT_LOADED"
	ErrorConfigInvalid   = "CONFIG_INVALID"
)
