package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Zacy-Sokach/foodietour/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 错误响应体最多读取 64KB
const maxErrorBody = 64 << 10

// 全局共享的HTTP传输层，实现连接池化
var (
	sharedTransport *http.Transport
	transportOnce   sync.Once
)

func getSharedTransport() *http.Transport {
	transportOnce.Do(func() {
		sharedTransport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
		}
	})
	return sharedTransport
}

// Client 访问 foodie tour 后端
//
// 创建任务和查询状态不重试；城市列表、预览等辅助接口走带重试的 doer。
type Client struct {
	baseURL  string
	http     utils.Doer
	retrying utils.Doer
	retry    *utils.RetryConfig
	logger   *zap.Logger
}

type Option func(*Client)

// WithHTTPClient 替换底层 doer，测试里常用
func WithHTTPClient(d utils.Doer) Option {
	return func(c *Client) { c.http = d }
}

// WithRetryConfig 设置辅助接口的重试参数
func WithRetryConfig(cfg *utils.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient 创建后端客户端
// baseURL: 后端地址，例如 http://localhost:8000
// timeout: 单次请求超时
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: getSharedTransport(),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry == nil {
		c.retry = utils.DefaultRetryConfig()
	}
	logger := c.logger
	c.retry.OnRetry = func(attempt int, err error) {
		logger.Warn("retrying request", zap.Int("attempt", attempt), zap.Error(err))
	}
	c.retrying = utils.NewRetryableHTTPClient(c.http, c.retry)
	return c
}

// BaseURL 返回后端地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateTour POST /tour/async，返回任务 ID
func (c *Client) CreateTour(ctx context.Context, city string) (string, error) {
	var resp CreateTourResponse
	if err := c.do(ctx, c.http, http.MethodPost, "/tour/async", TourRequest{City: city}, &resp); err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", &TransportError{Op: "create tour", Err: fmt.Errorf("response has no task_id")}
	}
	return resp.TaskID, nil
}

// TourStatus GET /tour/status/{task_id}
func (c *Client) TourStatus(ctx context.Context, taskID string) (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.do(ctx, c.http, http.MethodGet, "/tour/status/"+url.PathEscape(taskID), nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Status.Valid() {
		return nil, &TransportError{Op: "tour status", Err: fmt.Errorf("unknown task status %q", resp.Status)}
	}
	return &resp, nil
}

// DeleteTask DELETE /tour/status/{task_id}
func (c *Client) DeleteTask(ctx context.Context, taskID string) (string, error) {
	var resp DeleteTaskResponse
	if err := c.do(ctx, c.retrying, http.MethodDelete, "/tour/status/"+url.PathEscape(taskID), nil, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// PopularCities GET /cities/popular
func (c *Client) PopularCities(ctx context.Context) ([]string, error) {
	var resp PopularCitiesResponse
	if err := c.do(ctx, c.retrying, http.MethodGet, "/cities/popular", nil, &resp); err != nil {
		return nil, err
	}
	return resp.PopularCities, nil
}

// Preview GET /tour/{city}/preview
func (c *Client) Preview(ctx context.Context, city string) (*Preview, error) {
	var resp Preview
	if err := c.do(ctx, c.retrying, http.MethodGet, "/tour/"+url.PathEscape(city)+"/preview", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health GET /
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, c.retrying, http.MethodGet, "/", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, doer utils.Doer, method, path string, body, out any) error {
	op := method + " " + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("encode request: %w", err)}
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := doer.Do(req)
	if err != nil {
		c.logger.Debug("request failed", zap.String("op", op), zap.String("request_id", requestID), zap.Error(err))
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("request done",
		zap.String("op", op),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeHTTPError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// decodeHTTPError 优先使用响应中的 detail，否则返回通用状态码信息
func decodeHTTPError(resp *http.Response) error {
	httpErr := &HTTPError{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return httpErr
	}

	var body ErrorResponse
	if err := json.Unmarshal(data, &body); err == nil {
		httpErr.Detail = body.message()
	}
	return httpErr
}
