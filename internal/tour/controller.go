package tour

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Zacy-Sokach/foodietour/internal/api"
	"go.uber.org/zap"
)

// DefaultPollInterval 轮询间隔
const DefaultPollInterval = 3 * time.Second

// Backend 控制器依赖的两个后端接口
type Backend interface {
	CreateTour(ctx context.Context, city string) (string, error)
	TourStatus(ctx context.Context, taskID string) (*api.StatusResponse, error)
}

// TaskDeleter 可选：支持删除已结束的任务
type TaskDeleter interface {
	DeleteTask(ctx context.Context, taskID string) (string, error)
}

type Option func(*Controller)

// WithInterval 设置轮询间隔
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithTicker 替换计时器工厂
func WithTicker(f TickerFunc) Option {
	return func(c *Controller) { c.newTicker = f }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller 管理一次行程请求的生命周期：提交、定时轮询、进入终态
//
// 每次提交都会递增 generation，旧提交的响应一律丢弃。同一时间只有一个
// 轮询 goroutine，也最多只有一个状态查询在途。
type Controller struct {
	backend   Backend
	interval  time.Duration
	newTicker TickerFunc
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	gen         uint64
	inFlightGen uint64
	lastTaskID  string
	taskCtx     context.Context
	cancelTask  context.CancelFunc
	loopDone    chan struct{}
	changed     chan struct{}
	pending     []State
	closed      bool

	// notifyMu 保证订阅者按状态变化的顺序收到通知
	notifyMu sync.Mutex
	subMu    sync.Mutex
	subs     map[int]func(State)
	nextSub  int
}

// New 创建控制器
func New(backend Backend, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		backend:   backend,
		interval:  DefaultPollInterval,
		newTicker: NewTimeTicker,
		logger:    zap.NewNop(),
		ctx:       ctx,
		cancel:    cancel,
		state:     Idle{},
		changed:   make(chan struct{}),
		subs:      make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State 返回当前状态
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe 注册渲染回调，返回取消函数
// 回调在状态变化后同步调用，不能在回调里调用 Submit
func (c *Controller) Subscribe(fn func(State)) func() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		delete(c.subs, id)
	}
}

// Submit 校验城市名并创建任务，成功后开始定时轮询
// 返回 nil 表示任务已创建，之后的进展通过订阅回调或 Await 获取
func (c *Controller) Submit(ctx context.Context, city string) error {
	city = strings.TrimSpace(city)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.stopTaskLocked()
	c.gen++
	gen := c.gen
	// 上一个任务的句柄随新提交作废
	c.lastTaskID = ""

	if city == "" {
		err := &ValidationError{Message: emptyCityMessage}
		c.transitionLocked(Failed{Err: err})
		c.unlockAndNotify()
		return err
	}

	taskCtx, cancelTask := context.WithCancel(c.ctx)
	c.taskCtx, c.cancelTask = taskCtx, cancelTask
	c.transitionLocked(Idle{})
	c.transitionLocked(Submitting{City: city})
	c.unlockAndNotify()

	c.logger.Info("submitting tour request", zap.String("city", city), zap.Uint64("generation", gen))

	reqCtx, stop := linkContext(ctx, taskCtx)
	taskID, err := c.backend.CreateTour(reqCtx, city)
	stop()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if gen != c.gen {
		c.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		c.logger.Warn("tour request failed", zap.String("city", city), zap.Error(err))
		c.stopTaskLocked()
		c.transitionLocked(Failed{City: city, Err: err})
		c.unlockAndNotify()
		return err
	}

	c.lastTaskID = taskID
	c.transitionLocked(Polling{City: city, TaskID: taskID, Status: api.StatusPending})
	done := make(chan struct{})
	c.loopDone = done
	go c.pollLoop(taskCtx, gen, c.newTicker(c.interval), done)
	c.unlockAndNotify()

	c.logger.Info("tour task created", zap.String("city", city), zap.String("task_id", taskID))
	return nil
}

// Poll 立即查询一次状态（例如用户手动刷新）
// 上一次查询未返回时返回 ErrPollInFlight，不会发出新请求
func (c *Controller) Poll(ctx context.Context) error {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	_, err := c.poll(ctx, gen)
	return err
}

// Await 阻塞到当前任务进入终态（或仍处于 idle），返回该状态
func (c *Controller) Await(ctx context.Context) (State, error) {
	for {
		c.mu.Lock()
		s, changed := c.state, c.changed
		c.mu.Unlock()

		if s.Phase().Terminal() || s.Phase() == PhaseIdle {
			return s, nil
		}
		select {
		case <-ctx.Done():
			return s, ctx.Err()
		case <-changed:
		}
	}
}

// Forget 删除本次提交创建的任务，要求任务已进入终态
// 提交在创建任务之前失败时没有可删除的任务，返回 ErrNoActiveTask
func (c *Controller) Forget(ctx context.Context) error {
	c.mu.Lock()
	taskID := c.lastTaskID
	terminal := c.state.Phase().Terminal()
	c.mu.Unlock()

	if taskID == "" || !terminal {
		return ErrNoActiveTask
	}
	deleter, ok := c.backend.(TaskDeleter)
	if !ok {
		return nil
	}
	msg, err := deleter.DeleteTask(ctx, taskID)
	if err != nil {
		c.logger.Warn("delete finished task failed", zap.String("task_id", taskID), zap.Error(err))
		return err
	}

	c.mu.Lock()
	if c.lastTaskID == taskID {
		c.lastTaskID = ""
	}
	c.mu.Unlock()
	c.logger.Debug("finished task deleted", zap.String("task_id", taskID), zap.String("message", msg))
	return nil
}

// Close 停止轮询并释放计时器，可重复调用
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	done := c.loopDone
	c.stopTaskLocked()
	c.cancel()
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (c *Controller) pollLoop(ctx context.Context, gen uint64, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			active, err := c.poll(ctx, gen)
			if errors.Is(err, ErrPollInFlight) {
				c.logger.Debug("skipping tick, status check in flight", zap.Uint64("generation", gen))
			}
			if !active {
				return
			}
		}
	}
}

// poll 查询一次状态，返回任务是否仍在进行
func (c *Controller) poll(ctx context.Context, gen uint64) (bool, error) {
	c.mu.Lock()
	p, ok := c.state.(Polling)
	if gen != c.gen || !ok {
		c.mu.Unlock()
		return false, ErrNoActiveTask
	}
	if c.inFlightGen == gen {
		c.mu.Unlock()
		return true, ErrPollInFlight
	}
	c.inFlightGen = gen
	taskCtx := c.taskCtx
	c.mu.Unlock()

	reqCtx, stop := linkContext(ctx, taskCtx)
	resp, err := c.backend.TourStatus(reqCtx, p.TaskID)
	stop()

	c.mu.Lock()
	if c.inFlightGen == gen {
		c.inFlightGen = 0
	}
	if gen != c.gen || c.closed {
		// 新的提交已经开始，这个响应作废
		c.mu.Unlock()
		return false, ErrSuperseded
	}
	if _, still := c.state.(Polling); !still {
		c.mu.Unlock()
		return false, ErrNoActiveTask
	}

	if err != nil {
		if ctx.Err() != nil && taskCtx.Err() == nil {
			// 调用方放弃了这次查询，任务本身不受影响
			c.mu.Unlock()
			return true, err
		}
		c.logger.Warn("status check failed", zap.String("task_id", p.TaskID), zap.Error(err))
		c.stopTaskLocked()
		c.transitionLocked(Failed{City: p.City, Err: err})
		c.unlockAndNotify()
		return false, err
	}

	next, active := nextState(p, resp)
	if !active {
		c.stopTaskLocked()
	}
	c.transitionLocked(next)
	c.unlockAndNotify()
	return active, nil
}

// nextState 根据状态响应计算下一个状态
func nextState(p Polling, resp *api.StatusResponse) (State, bool) {
	switch resp.Status {
	case api.StatusCompleted:
		if resp.Result == nil {
			return Failed{City: p.City, Err: &TaskFailedError{TaskID: p.TaskID, Message: "Tour completed without a result."}}, false
		}
		return Completed{City: p.City, Result: *resp.Result}, false
	case api.StatusFailed:
		msg := resp.Error
		if msg == "" {
			msg = taskFailedFallback
		}
		return Failed{City: p.City, Err: &TaskFailedError{TaskID: p.TaskID, Message: msg}}, false
	default:
		p.Status = resp.Status
		p.Notice = resp.Error
		if resp.Progress != nil {
			progress := *resp.Progress
			p.Progress = &progress
		}
		return p, true
	}
}

// stopTaskLocked 取消当前任务的上下文，轮询 goroutine 随之退出
func (c *Controller) stopTaskLocked() {
	if c.cancelTask != nil {
		c.cancelTask()
		c.cancelTask = nil
	}
	c.inFlightGen = 0
}

func (c *Controller) transitionLocked(next State) {
	prev := c.state
	c.state = next
	close(c.changed)
	c.changed = make(chan struct{})
	c.pending = append(c.pending, next)
	c.logger.Debug("state transition",
		zap.Stringer("from", prev.Phase()),
		zap.Stringer("to", next.Phase()),
		zap.Uint64("generation", c.gen),
	)
}

// unlockAndNotify 释放 mu 并按顺序通知订阅者
func (c *Controller) unlockAndNotify() {
	states := c.pending
	c.pending = nil
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	c.subMu.Lock()
	subs := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, s := range states {
		for _, fn := range subs {
			fn(s)
		}
	}
}

// linkContext 返回一个在 a 或 b 结束时都会取消的上下文
func linkContext(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	unregister := context.AfterFunc(b, cancel)
	return ctx, func() {
		unregister()
		cancel()
	}
}
