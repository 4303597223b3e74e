package tour

import "errors"

var (
	// ErrPollInFlight 上一次状态查询还没返回
	ErrPollInFlight = errors.New("a status check is already in flight")
	// ErrNoActiveTask 当前没有进行中的任务
	ErrNoActiveTask = errors.New("no active task")
	// ErrSuperseded 提交被新的提交取代，结果已丢弃
	ErrSuperseded = errors.New("request superseded by a newer submission")
	// ErrClosed 控制器已关闭
	ErrClosed = errors.New("controller closed")
)

const (
	emptyCityMessage   = "City name cannot be empty."
	taskFailedFallback = "Tour generation failed."
)

// ValidationError 本地校验失败，不会发出请求
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// TaskFailedError 后端报告任务失败
type TaskFailedError struct {
	TaskID  string
	Message string
}

func (e *TaskFailedError) Error() string {
	if e.Message == "" {
		return taskFailedFallback
	}
	return e.Message
}
