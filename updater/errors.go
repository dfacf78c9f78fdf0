package updater

import (
	"errors"
	"fmt"
)

// ErrorKind 失败类型
type ErrorKind string

const (
	QueryFailure    ErrorKind = "QueryFailure"
	DownloadFailure ErrorKind = "DownloadFailure"
	InstallFailure  ErrorKind = "InstallFailure"
)

var (
	ErrQueryFailed    = &UpdateError{Kind: QueryFailure}
	ErrDownloadFailed = &UpdateError{Kind: DownloadFailure}
	ErrInstallFailed  = &UpdateError{Kind: InstallFailure}

	// ErrInvalidPhase 当前阶段不允许执行该操作
	ErrInvalidPhase = errors.New("当前阶段不允许该操作")
	// ErrNotDownloaded 更新包尚未下载完成
	ErrNotDownloaded = errors.New("更新包尚未下载完成")
)

// UpdateError 带类型的更新失败
type UpdateError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *UpdateError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *UpdateError) Unwrap() error {
	return e.Cause
}

// Is 同类型的 UpdateError 视为相等，便于 errors.Is(err, ErrQueryFailed)
func (e *UpdateError) Is(target error) bool {
	t, ok := target.(*UpdateError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func (e *UpdateError) info() *ErrorInfo {
	info := &ErrorInfo{Message: e.Message}
	if e.Cause != nil {
		info.Cause = e.Cause.Error()
	}
	return info
}

func newUpdateError(kind ErrorKind, message string, cause error) *UpdateError {
	return &UpdateError{Kind: kind, Message: message, Cause: cause}
}
