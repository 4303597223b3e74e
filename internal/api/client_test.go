package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zacy-Sokach/foodietour/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const parisResult = `{
	"city": "Paris",
	"weather": {"description": "Sunny", "temperature": 22},
	"dining_type": "Casual",
	"dishes": ["Croissant"],
	"restaurants": [],
	"tour_narrative": "Enjoy Paris",
	"created_at": "2024-01-01T00:00:00Z"
}`

func fastRetry() *utils.RetryConfig {
	return &utils.RetryConfig{
		MaxRetries:           2,
		InitialDelay:         time.Millisecond,
		MaxDelay:             5 * time.Millisecond,
		BackoffMultiplier:    2,
		RetryableStatusCodes: []int{http.StatusServiceUnavailable},
		RetryableErrors:      func(error) bool { return true },
	}
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 5*time.Second, WithRetryConfig(fastRetry()))
}

func TestCreateTour(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tour/async", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))

		var req TourRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Paris", req.City)

		w.Write([]byte(`{"task_id":"abc123","message":"Tour creation started for Paris"}`))
	}))

	id, err := client.CreateTour(context.Background(), "Paris")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)
}

func TestCreateTourHTTPErrorUsesDetail(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"Error creating tour for Atlantis"}`))
	}))

	_, err := client.CreateTour(context.Background(), "Atlantis")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 500, httpErr.StatusCode)
	assert.Equal(t, "Error creating tour for Atlantis", err.Error())
}

func TestHTTPErrorFallsBackToStatusMessage(t *testing.T) {
	for name, body := range map[string]string{
		"empty":     ``,
		"not json":  `<html>bad gateway</html>`,
		"no detail": `{"foo":"bar"}`,
	} {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				io.WriteString(w, body)
			}))
			_, err := client.CreateTour(context.Background(), "Paris")
			require.Error(t, err)
			assert.Equal(t, "HTTP error! status: 502", err.Error())
		})
	}
}

func TestValidationDetailList(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":[{"loc":["body","city"],"msg":"field required"}]}`))
	}))

	_, err := client.CreateTour(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, "field required", err.Error())
}

func TestCreateTourIsNotRetried(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := client.CreateTour(context.Background(), "Paris")
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestCreateTourMissingTaskID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))

	_, err := client.CreateTour(context.Background(), "Paris")
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestTransportErrorKeepsUnderlyingMessage(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, time.Second)
	_, err := client.TourStatus(context.Background(), "abc123")

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, transportErr.Err.Error(), err.Error())
	assert.Contains(t, err.Error(), "connection refused")
}

func TestTourStatusCompleted(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tour/status/abc123", r.URL.Path)
		io.WriteString(w, `{"task_id":"abc123","status":"completed","progress":100,"result":`+parisResult+`}`)
	}))

	resp, err := client.TourStatus(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, resp.Status)
	require.NotNil(t, resp.Progress)
	assert.Equal(t, 100, *resp.Progress)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "Paris", resp.Result.City)
	assert.Equal(t, 22.0, resp.Result.Weather.Temperature)
	assert.Equal(t, []string{"Croissant"}, resp.Result.Dishes)
	assert.Empty(t, resp.Result.Restaurants)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), resp.Result.CreatedAt.UTC())
}

func TestTourStatusUnknownStatus(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"exploded"}`)
	}))

	_, err := client.TourStatus(context.Background(), "abc123")
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Contains(t, err.Error(), "exploded")
}

func TestTourStatusNotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"Task not found"}`)
	}))

	_, err := client.TourStatus(context.Background(), "gone")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "Task not found", err.Error())
}

func TestPopularCitiesRetries(t *testing.T) {
	var calls int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, `{"popular_cities":["Paris","Tokyo"]}`)
	}))

	cities, err := client.PopularCities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Paris", "Tokyo"}, cities)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestPreviewEscapesCity(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tour/New%20York/preview", r.URL.EscapedPath())
		io.WriteString(w, `{"city":"New York","current_weather":{"description":"Cloudy","temperature":12.5},"popular_dishes":["Bagel"],"estimated_restaurants":"8-12","tour_duration":"4-6 hours"}`)
	}))

	p, err := client.Preview(context.Background(), "New York")
	require.NoError(t, err)
	assert.Equal(t, "New York", p.City)
	assert.Equal(t, 12.5, p.CurrentWeather.Temperature)
	assert.Equal(t, "4-6 hours", p.TourDuration)
}

func TestDeleteTaskAndHealth(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/tour/status/abc123", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		io.WriteString(w, `{"message":"Task abc123 deleted successfully"}`)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"Foodie Tour API is running!","version":"1.0.0"}`)
	})
	client := newTestClient(t, mux)

	msg, err := client.DeleteTask(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "Task abc123 deleted successfully", msg)

	health, err := client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", health.Version)
}

func TestContextCancelledIsTransportError(t *testing.T) {
	block := make(chan struct{})
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.TourStatus(ctx, "abc123")
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.True(t, errors.Is(err, context.Canceled))
}
