package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TourStatus 后端报告的任务状态
type TourStatus string

const (
	StatusPending    TourStatus = "pending"
	StatusProcessing TourStatus = "processing"
	StatusCompleted  TourStatus = "completed"
	StatusFailed     TourStatus = "failed"
)

// Terminal 完成或失败后不再轮询
func (s TourStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid 是否为已知状态
func (s TourStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

type TourRequest struct {
	City string `json:"city"`
}

type CreateTourResponse struct {
	TaskID    string `json:"task_id"`
	Message   string `json:"message,omitempty"`
	StatusURL string `json:"status_url,omitempty"`
}

type StatusResponse struct {
	TaskID   string      `json:"task_id,omitempty"`
	Status   TourStatus  `json:"status"`
	Progress *int        `json:"progress,omitempty"`
	Result   *TourResult `json:"result,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// TourResult 任务完成后一次性返回的行程快照
type TourResult struct {
	City          string       `json:"city"`
	Weather       Weather      `json:"weather"`
	DiningType    string       `json:"dining_type"`
	Dishes        []string     `json:"dishes"`
	Restaurants   []Restaurant `json:"restaurants"`
	TourNarrative string       `json:"tour_narrative"`
	CreatedAt     Timestamp    `json:"created_at"`
}

type Weather struct {
	Description string   `json:"description"`
	Temperature float64  `json:"temperature"`
	FeelsLike   *float64 `json:"feels_like,omitempty"`
	Humidity    *int     `json:"humidity,omitempty"`
	WindSpeed   *float64 `json:"wind_speed,omitempty"`
}

type Restaurant struct {
	Name        string   `json:"name"`
	Cuisine     string   `json:"cuisine"`
	Rating      *float64 `json:"rating,omitempty"`
	Address     string   `json:"address,omitempty"`
	Specialties []string `json:"specialties,omitempty"`
}

// UnmarshalJSON 兼容后端直接返回餐厅名字符串的情况
func (r *Restaurant) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*r = Restaurant{Name: name}
		return nil
	}

	type plain Restaurant
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Restaurant(p)
	return nil
}

// 后端用 datetime.now() 生成时间，序列化后没有时区
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp 保留原始文本，重新编码时与响应完全一致
type Timestamp struct {
	time.Time
	raw string
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t, raw: t.Format(time.RFC3339Nano)}
}

// ParseTimestamp 解析后端的时间字符串，无时区的按本地时间处理
func ParseTimestamp(s string) (Timestamp, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return Timestamp{Time: t, raw: s}, nil
		}
	}
	return Timestamp{}, fmt.Errorf("无法解析时间 %q", s)
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("created_at 必须是字符串: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.raw != "" {
		return json.Marshal(t.raw)
	}
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

// Raw 返回后端给出的原始时间文本
func (t Timestamp) Raw() string {
	return t.raw
}

// ErrorResponse 非 2xx 响应体
type ErrorResponse struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

// message 提取可读的错误信息，FastAPI 的 422 会把 detail 设为对象数组
func (e ErrorResponse) message() string {
	if len(e.Detail) > 0 && string(e.Detail) != "null" {
		var s string
		if err := json.Unmarshal(e.Detail, &s); err == nil {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(e.Detail, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return e.Message
}

type HealthResponse struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints,omitempty"`
}

type PopularCitiesResponse struct {
	PopularCities []string `json:"popular_cities"`
}

type Preview struct {
	City                 string   `json:"city"`
	CurrentWeather       Weather  `json:"current_weather"`
	PopularDishes        []string `json:"popular_dishes"`
	EstimatedRestaurants string   `json:"estimated_restaurants"`
	TourDuration         string   `json:"tour_duration"`
}

type DeleteTaskResponse struct {
	Message string `json:"message"`
}
