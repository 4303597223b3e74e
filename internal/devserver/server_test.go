package devserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Zacy-Sokach/foodietour/internal/api"
	"github.com/Zacy-Sokach/foodietour/internal/tour"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, opts Options) (*Server, *api.Client) {
	t.Helper()
	s := New(opts)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, api.NewClient(ts.URL, 5*time.Second)
}

func waitStatus(t *testing.T, c *api.Client, id string, want api.TourStatus) *api.StatusResponse {
	t.Helper()
	var last *api.StatusResponse
	require.Eventually(t, func() bool {
		resp, err := c.TourStatus(context.Background(), id)
		if err != nil {
			return false
		}
		last = resp
		return resp.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return last
}

func TestCreateAndComplete(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 123456000, time.Local)
	_, client := newTestServer(t, Options{
		StepDelay: 10 * time.Millisecond,
		Now:       func() time.Time { return now },
		NewID:     func() string { return "abc123" },
	})

	id, err := client.CreateTour(context.Background(), "Paris")
	require.NoError(t, err)
	assert.Equal(t, "abc123", id)

	resp := waitStatus(t, client, id, api.StatusCompleted)
	require.NotNil(t, resp.Result)
	require.NotNil(t, resp.Progress)
	assert.Equal(t, 100, *resp.Progress)

	result := resp.Result
	assert.Equal(t, "Paris", result.City)
	assert.Equal(t, []string{"Croissant", "Coq au Vin", "Escargots", "Crêpes", "Macarons", "Ratatouille"}, result.Dishes)
	assert.Len(t, result.Restaurants, 3)
	assert.Contains(t, result.TourNarrative, "## Breakfast")
	assert.Contains(t, result.TourNarrative, "Du Pain et des Idées")
	assert.Equal(t, "2024-01-01T12:00:00.123456", result.CreatedAt.Raw())
	assert.True(t, result.CreatedAt.Equal(now))
}

func TestProcessingReportsProgress(t *testing.T) {
	_, client := newTestServer(t, Options{StepDelay: 200 * time.Millisecond})

	id, err := client.CreateTour(context.Background(), "Rome")
	require.NoError(t, err)

	resp, err := client.TourStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, api.StatusPending, resp.Status)
	require.NotNil(t, resp.Progress)
	assert.Equal(t, 0, *resp.Progress)

	resp = waitStatus(t, client, id, api.StatusProcessing)
	assert.Equal(t, 10, *resp.Progress)
	assert.Nil(t, resp.Result)
}

func TestFailingCity(t *testing.T) {
	_, client := newTestServer(t, Options{FailCities: []string{"atlantis"}})

	id, err := client.CreateTour(context.Background(), "Atlantis")
	require.NoError(t, err)

	resp := waitStatus(t, client, id, api.StatusFailed)
	assert.Equal(t, "Error creating tour for Atlantis: weather service unavailable", resp.Error)
	assert.Nil(t, resp.Result)
}

func TestRejectedCity(t *testing.T) {
	_, client := newTestServer(t, Options{RejectCities: []string{"Paris"}})

	_, err := client.CreateTour(context.Background(), "Paris")

	var httpErr *api.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	assert.Equal(t, "Error creating tour for Paris", err.Error())
}

func TestMissingCityIsValidationError(t *testing.T) {
	s := New(Options{})
	defer s.Close()

	req := httptest.NewRequest(http.MethodPost, "/tour/async", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body struct {
		Detail []struct {
			Msg string `json:"msg"`
		} `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Detail, 1)
	assert.Equal(t, "Field required", body.Detail[0].Msg)
	assert.Zero(t, s.Len())
}

func TestUnknownTask(t *testing.T) {
	_, client := newTestServer(t, Options{})

	_, err := client.TourStatus(context.Background(), "missing")
	assert.True(t, api.IsNotFound(err))
	assert.Equal(t, "Task not found", err.Error())

	_, err = client.DeleteTask(context.Background(), "missing")
	assert.True(t, api.IsNotFound(err))
}

func TestDeleteTask(t *testing.T) {
	s, client := newTestServer(t, Options{NewID: func() string { return "t1" }})

	id, err := client.CreateTour(context.Background(), "Tokyo")
	require.NoError(t, err)
	waitStatus(t, client, id, api.StatusCompleted)

	msg, err := client.DeleteTask(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Task t1 deleted successfully", msg)
	assert.Zero(t, s.Len())
}

func TestSupplementaryEndpoints(t *testing.T) {
	_, client := newTestServer(t, Options{FailCities: []string{"Atlantis"}})
	ctx := context.Background()

	cities, err := client.PopularCities(ctx)
	require.NoError(t, err)
	assert.Equal(t, PopularCities, cities)

	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Foodie Tour API is running!", health.Message)
	assert.Equal(t, "1.0.0", health.Version)

	preview, err := client.Preview(ctx, "Paris")
	require.NoError(t, err)
	assert.Equal(t, "Paris", preview.City)
	assert.Len(t, preview.PopularDishes, 5)
	assert.Equal(t, "8-12", preview.EstimatedRestaurants)
	assert.Equal(t, "4-6 hours", preview.TourDuration)

	preview, err = client.Preview(ctx, "New York")
	require.NoError(t, err)
	assert.Equal(t, "New York", preview.City)
}

func TestWeatherIsStablePerCity(t *testing.T) {
	assert.Equal(t, weatherFor("Lima"), weatherFor("lima"))
}

func TestControllerAgainstDevServer(t *testing.T) {
	_, client := newTestServer(t, Options{StepDelay: 5 * time.Millisecond})

	c := tour.New(client, tour.WithInterval(10*time.Millisecond))
	defer c.Close()

	require.NoError(t, c.Submit(context.Background(), "  Paris  "))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	final, err := c.Await(ctx)
	require.NoError(t, err)

	done, ok := final.(tour.Completed)
	require.True(t, ok, "got %T", final)
	assert.Equal(t, "Paris", done.Result.City)
	assert.Empty(t, tour.TaskID(final))
	assert.False(t, tour.IsLoading(final))

	require.NoError(t, c.Forget(context.Background()))
}

func TestListenAndServeShutsDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	s := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
