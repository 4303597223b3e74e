package tour

import "github.com/Zacy-Sokach/foodietour/internal/api"

// Phase 状态机所处阶段
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSubmitting
	PhasePending
	PhaseProcessing
	PhaseCompleted
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSubmitting:
		return "submitting"
	case PhasePending:
		return "pending"
	case PhaseProcessing:
		return "processing"
	case PhaseCompleted:
		return "completed"
	case PhaseFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal 完成或失败后不再轮询
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// State 控制器状态，只有下面五种实现
type State interface {
	Phase() Phase
	isState()
}

// Idle 尚未提交
type Idle struct{}

// Submitting 创建请求已发出，还没有任务 ID
type Submitting struct {
	City string
}

// Polling 任务进行中，TaskID 非空
type Polling struct {
	City     string
	TaskID   string
	Status   api.TourStatus
	Progress *int
	// Notice 后端在进行中状态附带的 error 文本
	Notice string
}

// Completed 终态：拿到了行程
type Completed struct {
	City   string
	Result api.TourResult
}

// Failed 终态：校验、HTTP、网络或后端任务失败
type Failed struct {
	City string
	Err  error
}

func (Idle) Phase() Phase       { return PhaseIdle }
func (Submitting) Phase() Phase { return PhaseSubmitting }
func (Completed) Phase() Phase  { return PhaseCompleted }
func (Failed) Phase() Phase     { return PhaseFailed }

func (p Polling) Phase() Phase {
	if p.Status == api.StatusProcessing {
		return PhaseProcessing
	}
	return PhasePending
}

func (Idle) isState()       {}
func (Submitting) isState() {}
func (Polling) isState()    {}
func (Completed) isState()  {}
func (Failed) isState()     {}

// TaskID 只有轮询中才有任务 ID
func TaskID(s State) string {
	if p, ok := s.(Polling); ok {
		return p.TaskID
	}
	return ""
}

// IsLoading 提交中或轮询中
func IsLoading(s State) bool {
	switch s.(type) {
	case Submitting, Polling:
		return true
	}
	return false
}

// ErrorMessage 失败状态下展示给用户的文本
func ErrorMessage(s State) string {
	if f, ok := s.(Failed); ok && f.Err != nil {
		return f.Err.Error()
	}
	return ""
}
