package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Zacy-Sokach/foodietour/internal/api"
)

// NoRestaurantsMessage 行程没有餐厅时的提示
const NoRestaurantsMessage = "No specific restaurants listed for this plan."

// createdAtLayout 与浏览器 en-US toLocaleString 的格式一致
const createdAtLayout = "1/2/2006, 3:04:05 PM"

// FormatTemperature 去掉多余的小数位：22 -> "22"，22.5 -> "22.5"
func FormatTemperature(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}

// FormatWeather 例如 "Sunny, 22°C"
func FormatWeather(w api.Weather) string {
	return fmt.Sprintf("%s, %s°C", w.Description, FormatTemperature(w.Temperature))
}

// FormatCreatedAt 转换为本地时间显示，解析失败时原样返回后端文本
func FormatCreatedAt(ts api.Timestamp) string {
	if ts.IsZero() {
		if raw := ts.Raw(); raw != "" {
			return raw
		}
		return "unknown"
	}
	return ts.In(time.Local).Format(createdAtLayout)
}

// FormatRestaurant 单行餐厅描述：名字 (菜系) - Rating: 4.5
func FormatRestaurant(r api.Restaurant) string {
	var sb strings.Builder
	sb.WriteString(r.Name)
	if r.Cuisine != "" {
		fmt.Fprintf(&sb, " (%s)", r.Cuisine)
	}
	if r.Rating != nil {
		fmt.Fprintf(&sb, " - Rating: %s", strconv.FormatFloat(*r.Rating, 'f', -1, 64))
	}
	return sb.String()
}

// Text 纯文本行程，用于命令行输出
func Text(r api.TourResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Tour for %s\n", r.City)
	fmt.Fprintf(&sb, "Weather: %s\n", FormatWeather(r.Weather))
	fmt.Fprintf(&sb, "Suggested Dining: %s\n", r.DiningType)
	fmt.Fprintf(&sb, "Recommended Dishes: %s\n", strings.Join(r.Dishes, ", "))

	sb.WriteString("\nRestaurants:\n")
	if len(r.Restaurants) == 0 {
		fmt.Fprintf(&sb, "  %s\n", NoRestaurantsMessage)
	}
	for _, resto := range r.Restaurants {
		fmt.Fprintf(&sb, "  - %s\n", FormatRestaurant(resto))
		if resto.Address != "" {
			fmt.Fprintf(&sb, "    %s\n", resto.Address)
		}
		if len(resto.Specialties) > 0 {
			fmt.Fprintf(&sb, "    Specialties: %s\n", strings.Join(resto.Specialties, ", "))
		}
	}

	sb.WriteString("\nTour Narrative:\n")
	sb.WriteString(strings.TrimRight(r.TourNarrative, "\n"))
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "Created at: %s\n", FormatCreatedAt(r.CreatedAt))

	return sb.String()
}

// Preview 城市预览的纯文本形式
func Preview(p api.Preview) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Preview for %s\n", p.City)
	fmt.Fprintf(&sb, "Current weather: %s\n", FormatWeather(p.CurrentWeather))
	if len(p.PopularDishes) > 0 {
		fmt.Fprintf(&sb, "Popular dishes: %s\n", strings.Join(p.PopularDishes, ", "))
	}
	if p.EstimatedRestaurants != "" {
		fmt.Fprintf(&sb, "Estimated restaurants: %s\n", p.EstimatedRestaurants)
	}
	if p.TourDuration != "" {
		fmt.Fprintf(&sb, "Tour duration: %s\n", p.TourDuration)
	}
	return sb.String()
}
