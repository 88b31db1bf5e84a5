package analysis

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine-readable error codes carried in the response envelope.
const (
	CodeEmptyInput          = "EMPTY_INPUT"
	CodeTooShort            = "TOO_SHORT"
	CodeUnsupportedFormat   = "UNSUPPORTED_FORMAT"
	CodeInvalidBody         = "INVALID_BODY"
	CodeAudioTooLarge       = "AUDIO_TOO_LARGE"
	CodeNotConfigured       = "NOT_CONFIGURED"
	CodeTranscriptionFailed = "TRANSCRIPTION_FAILED"
	CodeOracleUnavailable   = "ORACLE_UNAVAILABLE"
	CodeOracleTimeout       = "ORACLE_TIMEOUT"
	CodeMalformedResult     = "MALFORMED_RESULT"
	CodeInternal            = "INTERNAL"
)

// TooShortPrefix marks the too-short message so clients can branch on it.
const TooShortPrefix = CodeTooShort + ":"

// User-facing messages.
const (
	msgEmptyInput          = "没有检测到语音内容或文本，请重新录音"
	msgTooShort            = TooShortPrefix + " 录音内容太短（少于%d个字），请录制更长的内容"
	msgUnsupportedFormat   = "不支持的请求格式: %s"
	msgInvalidBody         = "请求内容无法解析"
	msgAudioTooLarge       = "录音文件过大（超过%d字节）"
	msgScorerNotConfigured = "分析服务未配置 (缺少 LLM_API_KEY)"
	msgSTTNotConfigured    = "语音转写服务未配置"
	msgTranscription       = "语音转写失败，请稍后重试或改用文字输入"
	msgSTTDown             = "本地 Whisper 服务未启动，请先启动转写服务"
	msgOracleUnavailable   = "分析服务暂时不可用，请稍后重试"
	msgOracleTimeout       = "分析超时，请稍后重试"
	msgMalformed           = "分析结果格式异常，请重新提交"
	msgInternal            = "服务器内部错误"
)

// Error is an analysis failure with an HTTP status and a stable code.
type Error struct {
	Code    string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Rejected reports whether the error is an input rejection rather than a failure.
func (e *Error) Rejected() bool {
	return e.Status >= 400 && e.Status < 500
}

// AsError converts any error into an *Error, defaulting to an internal failure.
func AsError(err error) *Error {
	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr
	}
	return &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: msgInternal, Err: err}
}

func newError(code string, status int, message string, err error) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}
