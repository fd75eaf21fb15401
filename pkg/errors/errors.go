// Package errors provides structured error handling for the application.
// It defines AppError type with error codes for consistent API responses.
package errors

import (
	"errors"
	"fmt"
)

// Error codes organized by category
const (
	// General errors (1000-1099)
	CodeSuccess       = 0
	CodeUnknown       = 1000
	CodeInvalidParams = 1001
	CodeNotFound      = 1002
	CodeUnauthorized  = 1003

	// Media errors (1100-1199)
	CodeMediaDownload     = 1100
	CodeMissingMedia      = 1101
	CodeDecodeFailed      = 1102
	CodeEncodeFailed      = 1103
	CodeZeroDurationAudio = 1104
	CodeRateLimited       = 1105
	CodeUnsupportedMedia  = 1106

	// Render errors (1200-1299)
	CodeRenderFailed   = 1200
	CodeConcatFailed   = 1201
	CodeAudioMixFailed = 1202
	CodeNoScenes       = 1203

	// Generation errors (1300-1399)
	CodeScriptFailed     = 1300
	CodeStockSearch      = 1301
	CodeLLMQuotaExceeded = 1302
	CodeImageGenFailed   = 1303

	// TTS errors (1400-1499)
	CodeTTSFailed        = 1400
	CodeTTSQuotaExceeded = 1401
	CodeVoiceNotFound    = 1402

	// Storage errors (1500-1599)
	CodeDBError        = 1500
	CodeFileNotFound   = 1501
	CodeFileWriteError = 1502
	CodeUploadFailed   = 1503
)

// AppError represents a structured application error
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
	Cause   error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code int, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapWithDetail wraps an error with additional detail
func WrapWithDetail(code int, message string, detail string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Detail:  detail,
		Cause:   cause,
	}
}

// Is checks if the target error is an AppError with the specified code
func Is(err error, code int) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode extracts error code from error, returns CodeUnknown if not AppError
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetMessage extracts message from error
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// Predefined common errors
var (
	ErrInvalidParams = New(CodeInvalidParams, "参数错误 Invalid parameters")
	ErrNotFound      = New(CodeNotFound, "资源不存在 Resource not found")
	ErrUnauthorized  = New(CodeUnauthorized, "未授权 Unauthorized")

	// Media
	ErrMediaDownload     = New(CodeMediaDownload, "素材下载失败 Media download failed")
	ErrMissingMedia      = New(CodeMissingMedia, "素材文件不存在 Missing media")
	ErrDecode            = New(CodeDecodeFailed, "素材解码失败 Media decode failed")
	ErrEncode            = New(CodeEncodeFailed, "视频编码失败 Encode failed")
	ErrZeroDurationAudio = New(CodeZeroDurationAudio, "背景音乐时长为0 Zero duration audio")
	ErrRateLimited       = New(CodeRateLimited, "请求频率限制 Rate limited")

	// Render
	ErrRenderFailed   = New(CodeRenderFailed, "场景渲染失败 Scene render failed")
	ErrConcatFailed   = New(CodeConcatFailed, "视频拼接失败 Concatenation failed")
	ErrAudioMixFailed = New(CodeAudioMixFailed, "背景音乐混音失败 Background mix failed")
	ErrNoScenes       = New(CodeNoScenes, "没有可用场景 No scenes to assemble")

	// Generation
	ErrScriptFailed     = New(CodeScriptFailed, "脚本生成失败 Script generation failed")
	ErrStockSearch      = New(CodeStockSearch, "素材搜索失败 Stock media search failed")
	ErrLLMQuotaExceeded = New(CodeLLMQuotaExceeded, "LLM配额耗尽 LLM quota exceeded")
	ErrImageGenFailed   = New(CodeImageGenFailed, "图片生成失败 Image generation failed")

	// TTS
	ErrTTSFailed        = New(CodeTTSFailed, "语音合成失败 TTS failed")
	ErrTTSQuotaExceeded = New(CodeTTSQuotaExceeded, "TTS配额耗尽 TTS quota exceeded")
	ErrVoiceNotFound    = New(CodeVoiceNotFound, "音色不存在 Voice not found")

	// Storage
	ErrDBError      = New(CodeDBError, "数据库错误 Database error")
	ErrFileNotFound = New(CodeFileNotFound, "文件不存在 File not found")
	ErrUploadFailed = New(CodeUploadFailed, "上传失败 Upload failed")
)
