// Package devserver 是一个进程内的假后端，实现与线上服务相同的接口，
// 供测试和 `foodietour dev-server` 使用。
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Zacy-Sokach/foodietour/internal/api"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	apiVersion = "1.0.0"
	// 后端 datetime.now().isoformat() 的格式，不带时区
	createdAtLayout = "2006-01-02T15:04:05.000000"
)

type Options struct {
	// StepDelay 每个阶段（pending→processing→completed）之间的等待
	StepDelay time.Duration
	// FailCities 这些城市的任务会失败，不区分大小写
	FailCities []string
	// RejectCities 这些城市在创建任务时直接返回 500
	RejectCities []string
	Logger       *zap.Logger
	Now          func() time.Time
	NewID        func() string
}

// Server 内存中的任务存储
type Server struct {
	opts Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	tasks map[string]*api.StatusResponse
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string]*api.StatusResponse),
	}
}

// Handler 返回挂好所有路由的 chi 路由器
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.opts.Logger))

	r.Get("/", s.handleHealth)
	r.Post("/tour/async", s.handleCreateTour)
	r.Get("/tour/status/{taskID}", s.handleGetStatus)
	r.Delete("/tour/status/{taskID}", s.handleDeleteTask)
	r.Get("/cities/popular", s.handlePopularCities)
	r.Get("/tour/{city}/preview", s.handlePreview)
	return r
}

// ListenAndServe 监听 addr，ctx 结束时优雅关闭
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.opts.Logger.Info("dev server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			s.Close()
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close 停止所有后台任务
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

// Len 当前保存的任务数
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Server) create(city string) string {
	id := s.opts.NewID()
	progress := 0

	s.mu.Lock()
	s.tasks[id] = &api.StatusResponse{TaskID: id, Status: api.StatusPending, Progress: &progress}
	s.mu.Unlock()

	s.wg.Add(1)
	go s.process(id, city)
	return id
}

func (s *Server) status(id string) (api.StatusResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return api.StatusResponse{}, false
	}
	return *t, true
}

func (s *Server) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	return true
}

// update 修改任务，任务已被删除时返回 false
func (s *Server) update(id string, fn func(*api.StatusResponse)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	fn(t)
	return true
}

func (s *Server) process(id, city string) {
	defer s.wg.Done()

	if !s.wait() {
		return
	}
	if !s.update(id, func(t *api.StatusResponse) {
		t.Status = api.StatusProcessing
		t.Progress = intPtr(10)
	}) {
		return
	}

	if !s.wait() {
		return
	}
	if matches(s.opts.FailCities, city) {
		s.update(id, func(t *api.StatusResponse) {
			t.Status = api.StatusFailed
			t.Error = fmt.Sprintf("Error creating tour for %s: weather service unavailable", city)
		})
		s.opts.Logger.Info("task failed", zap.String("task_id", id), zap.String("city", city))
		return
	}

	result := s.buildTour(city)
	s.update(id, func(t *api.StatusResponse) {
		t.Status = api.StatusCompleted
		t.Progress = intPtr(100)
		t.Result = &result
	})
	s.opts.Logger.Info("task completed", zap.String("task_id", id), zap.String("city", city))
}

// wait 等待一个阶段，服务关闭时返回 false
func (s *Server) wait() bool {
	if s.opts.StepDelay <= 0 {
		return s.ctx.Err() == nil
	}
	t := time.NewTimer(s.opts.StepDelay)
	defer t.Stop()
	select {
	case <-s.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (s *Server) buildTour(city string) api.TourResult {
	weather := weatherFor(city)
	fixture := fixtureFor(city)
	dining := diningType(weather)
	created, _ := api.ParseTimestamp(s.opts.Now().Format(createdAtLayout))

	return api.TourResult{
		City:          city,
		Weather:       weather,
		DiningType:    dining,
		Dishes:        fixture.dishes,
		Restaurants:   fixture.restaurants,
		TourNarrative: narrative(city, weather, dining, fixture.restaurants),
		CreatedAt:     created,
	}
}

func matches(list []string, city string) bool {
	for _, c := range list {
		if strings.EqualFold(strings.TrimSpace(c), strings.TrimSpace(city)) {
			return true
		}
	}
	return false
}

func intPtr(v int) *int { return &v }
