package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func fastRetryConfig(maxRetries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries:           maxRetries,
		InitialDelay:         10 * time.Millisecond, // 使用短延迟加速测试
		MaxDelay:             100 * time.Millisecond,
		BackoffMultiplier:    2.0,
		RetryableStatusCodes: []int{http.StatusInternalServerError},
		RetryableErrors:      func(error) bool { return true },
	}
}

func TestRetryableHTTPClient_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("success"))
	}))
	defer server.Close()

	retryClient := NewRetryableHTTPClient(&http.Client{Timeout: 5 * time.Second}, DefaultRetryConfig())

	req, err := http.NewRequest("GET", server.URL, nil)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := retryClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestRetryableHTTPClient_RetryOn500ReplaysBody(t *testing.T) {
	var requestCount int32
	var mu sync.Mutex
	var bodies []string

	// 前2次返回500，第3次返回200
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requestCount, 1)
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		if n <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var retries []int
	config := fastRetryConfig(3)
	config.OnRetry = func(attempt int, err error) { retries = append(retries, attempt) }
	retryClient := NewRetryableHTTPClient(&http.Client{Timeout: 5 * time.Second}, config)

	req, err := http.NewRequest("POST", server.URL, strings.NewReader(`{"city":"Paris"}`))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	start := time.Now()
	resp, err := retryClient.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if atomic.LoadInt32(&requestCount) != 3 {
		t.Errorf("Expected 3 requests, got %d", atomic.LoadInt32(&requestCount))
	}
	mu.Lock()
	defer mu.Unlock()
	for i, b := range bodies {
		if b != `{"city":"Paris"}` {
			t.Errorf("attempt %d body = %q", i+1, b)
		}
	}
	if len(retries) != 2 || retries[0] != 1 || retries[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", retries)
	}
	// 至少应该有10ms + 20ms的延迟
	if elapsed < 25*time.Millisecond {
		t.Errorf("Expected at least 25ms delay due to retries, got %v", elapsed)
	}
}

func TestRetryableHTTPClient_ReturnsLastResponseAfterMaxRetries(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"boom"}`))
	}))
	defer server.Close()

	retryClient := NewRetryableHTTPClient(&http.Client{Timeout: 5 * time.Second}, fastRetryConfig(2))

	req, _ := http.NewRequest("GET", server.URL, nil)
	resp, err := retryClient.Do(req)
	if err != nil {
		t.Fatalf("Expected final response, got error %v", err)
	}
	defer resp.Body.Close()

	// 1次初始请求 + 2次重试
	if atomic.LoadInt32(&requestCount) != 3 {
		t.Errorf("Expected 3 requests, got %d", atomic.LoadInt32(&requestCount))
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"detail":"boom"}` {
		t.Errorf("Expected error body to be readable, got %q", body)
	}
}

func TestRetryableHTTPClient_NonRetryableStatus(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	retryClient := NewRetryableHTTPClient(&http.Client{}, fastRetryConfig(3))
	req, _ := http.NewRequest("GET", server.URL, nil)
	resp, err := retryClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()

	if atomic.LoadInt32(&requestCount) != 1 {
		t.Errorf("404 must not be retried, got %d requests", atomic.LoadInt32(&requestCount))
	}
}

type failingDoer struct{ calls int }

func (f *failingDoer) Do(*http.Request) (*http.Response, error) {
	f.calls++
	return nil, errors.New("connection refused")
}

func TestRetryableHTTPClient_TransportErrorExhausted(t *testing.T) {
	doer := &failingDoer{}
	retryClient := NewRetryableHTTPClient(doer, fastRetryConfig(2))

	req, _ := http.NewRequest("GET", "http://example.invalid", nil)
	_, err := retryClient.Do(req)
	if err == nil {
		t.Fatal("Expected error after max retries")
	}
	if doer.calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", doer.calls)
	}
	if !strings.HasPrefix(err.Error(), "after 2 retries") {
		t.Errorf("unexpected error message %q", err.Error())
	}
}

func TestRetryableHTTPClient_ContextCancellationDuringDelay(t *testing.T) {
	var requestCount int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	config := fastRetryConfig(3)
	config.InitialDelay = 200 * time.Millisecond
	config.MaxDelay = time.Second
	retryClient := NewRetryableHTTPClient(&http.Client{Timeout: 5 * time.Second}, config)

	// 在第一次重试延迟期间取消
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, "GET", server.URL, nil)

	start := time.Now()
	resp, err := retryClient.Do(req)
	elapsed := time.Since(start)
	if resp != nil {
		resp.Body.Close()
	}

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded, got %v", err)
	}
	if atomic.LoadInt32(&requestCount) != 1 {
		t.Errorf("Expected 1 request before context cancellation, got %d", atomic.LoadInt32(&requestCount))
	}
	if elapsed > 150*time.Millisecond {
		t.Errorf("Expected cancellation within 150ms, took %v", elapsed)
	}
}

func TestWithRetry_Function(t *testing.T) {
	callCount := 0

	err := WithRetry(context.Background(), func(context.Context) error {
		callCount++
		if callCount <= 2 {
			return fmt.Errorf("temporary error")
		}
		return nil
	}, &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      10 * time.Millisecond,
		MaxDelay:          100 * time.Millisecond,
		BackoffMultiplier: 2.0,
	})

	if err != nil {
		t.Fatalf("Expected success after retries, got error: %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestWithRetry_StopsOnNonRetryableError(t *testing.T) {
	permanent := errors.New("permanent")
	callCount := 0

	err := WithRetry(context.Background(), func(context.Context) error {
		callCount++
		return permanent
	}, &RetryConfig{
		MaxRetries:        5,
		InitialDelay:      time.Millisecond,
		MaxDelay:          time.Millisecond,
		BackoffMultiplier: 1,
		RetryableErrors:   func(err error) bool { return !errors.Is(err, permanent) },
	})

	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestWithRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := WithRetry(ctx, func(context.Context) error {
		return fmt.Errorf("temporary error")
	}, &RetryConfig{
		MaxRetries:        10,
		InitialDelay:      20 * time.Millisecond,
		MaxDelay:          100 * time.Millisecond,
		BackoffMultiplier: 2.0,
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected context deadline error, got %v", err)
	}
}
