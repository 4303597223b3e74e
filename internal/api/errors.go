package api

import (
	"errors"
	"fmt"
)

// HTTPError 后端返回了非 2xx 状态码
type HTTPError struct {
	StatusCode int
	Detail     string
}

func (e *HTTPError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

// TransportError 网络失败或响应无法解析
type TransportError struct {
	Op  string
	Err error
}

// Error 直接使用底层错误信息，界面上原样展示
func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsNotFound 任务不存在（已删除或后端重启）
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == 404
}
