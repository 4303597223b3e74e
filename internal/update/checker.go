package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Zacy-Sokach/foodietour/internal/utils"
)

const (
	RepoOwner = "Zacy-Sokach"
	RepoName  = "foodietour"
	Repo      = RepoOwner + "/" + RepoName

	defaultAPIBase = "https://api.github.com"
)

type ReleaseInfo struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// statusError GitHub 返回了非 200
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GitHub API returned status %d", e.code)
}

type Option func(*Checker)

// WithBaseURL 替换 GitHub API 地址（测试用）
func WithBaseURL(u string) Option {
	return func(c *Checker) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithDoer(d utils.Doer) Option {
	return func(c *Checker) { c.client = d }
}

func WithRetryConfig(cfg *utils.RetryConfig) Option {
	return func(c *Checker) { c.retry = cfg }
}

type Checker struct {
	client  utils.Doer
	baseURL string
	retry   *utils.RetryConfig
}

func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		client:  http.DefaultClient,
		baseURL: defaultAPIBase,
		retry:   utils.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetLatestVersion 查询最新 release 的 tag，网络错误和 5xx 会重试
func (c *Checker) GetLatestVersion(ctx context.Context) (ReleaseInfo, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", c.baseURL, Repo)

	var release ReleaseInfo
	retry := *c.retry
	retry.RetryableErrors = func(err error) bool {
		var se *statusError
		if errors.As(err, &se) {
			return se.code >= 500 || se.code == http.StatusTooManyRequests
		}
		return c.retry.RetryableErrors == nil || c.retry.RetryableErrors(err)
	}

	err := utils.WithRetry(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/vnd.github+json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch latest version: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return &statusError{code: resp.StatusCode}
		}
		if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}, &retry)
	if err != nil {
		return ReleaseInfo{}, err
	}
	return release, nil
}

// CheckForUpdate 返回是否有新版本以及最新 release
func (c *Checker) CheckForUpdate(ctx context.Context, currentVersion string) (bool, ReleaseInfo, error) {
	latest, err := c.GetLatestVersion(ctx)
	if err != nil {
		return false, ReleaseInfo{}, err
	}
	return compareVersions(currentVersion, latest.TagName) < 0, latest, nil
}

// compareVersions 比较 v1.2.3 形式的版本号，dev 构建视为最旧
func compareVersions(v1, v2 string) int {
	v1 = strings.TrimPrefix(v1, "v")
	v2 = strings.TrimPrefix(v2, "v")

	parts1 := strings.Split(v1, ".")
	parts2 := strings.Split(v2, ".")

	for i := 0; i < len(parts1) && i < len(parts2); i++ {
		var p1, p2 int
		fmt.Sscanf(parts1[i], "%d", &p1)
		fmt.Sscanf(parts2[i], "%d", &p2)

		if p1 < p2 {
			return -1
		}
		if p1 > p2 {
			return 1
		}
	}

	if len(parts1) < len(parts2) {
		return -1
	}
	if len(parts1) > len(parts2) {
		return 1
	}
	return 0
}
