package devserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Zacy-Sokach/foodietour/internal/api"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const maxRequestBodySize = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthResponse{
		Message: "Foodie Tour API is running!",
		Version: apiVersion,
		Endpoints: map[string]string{
			"async_tour":  "/tour/async",
			"task_status": "/tour/status/{task_id}",
		},
	})
}

func (s *Server) handleCreateTour(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req struct {
		City *string `json:"city"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, "body", "JSON decode error")
		return
	}
	if req.City == nil {
		writeValidation(w, "city", "Field required")
		return
	}

	city := *req.City
	if matches(s.opts.RejectCities, city) {
		writeDetail(w, http.StatusInternalServerError, "Error creating tour for %s", city)
		return
	}

	id := s.create(city)
	writeJSON(w, http.StatusOK, api.CreateTourResponse{
		TaskID:    id,
		Message:   fmt.Sprintf("Tour creation started for %s", city),
		StatusURL: "/tour/status/" + id,
	})
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	t, ok := s.status(chi.URLParam(r, "taskID"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "taskID")
	if !s.delete(id) {
		writeDetail(w, http.StatusNotFound, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, api.DeleteTaskResponse{Message: fmt.Sprintf("Task %s deleted successfully", id)})
}

func (s *Server) handlePopularCities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.PopularCitiesResponse{PopularCities: PopularCities})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	city := chi.URLParam(r, "city")
	if matches(s.opts.FailCities, city) || matches(s.opts.RejectCities, city) {
		writeDetail(w, http.StatusInternalServerError, "Error getting preview for %s: weather service unavailable", city)
		return
	}

	dishes := fixtureFor(city).dishes
	if len(dishes) > 5 {
		dishes = dishes[:5]
	}
	writeJSON(w, http.StatusOK, api.Preview{
		City:                 city,
		CurrentWeather:       weatherFor(city),
		PopularDishes:        dishes,
		EstimatedRestaurants: "8-12",
		TourDuration:         "4-6 hours",
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, code int, format string, args ...any) {
	writeJSON(w, code, map[string]string{"detail": fmt.Sprintf(format, args...)})
}

// writeValidation 模仿 FastAPI 的 422 响应
func writeValidation(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]any{
			{"loc": []string{"body", field}, "msg": msg, "type": "value_error"},
		},
	})
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
