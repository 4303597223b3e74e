package render

import (
	"strings"

	"github.com/Zacy-Sokach/foodietour/internal/api"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	sectionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	nameStyle    = lipgloss.NewStyle().Bold(true)
)

// Terminal 带样式的行程，供 TUI 的 viewport 显示
func Terminal(r api.TourResult, width int) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Tour for "+r.City) + "\n\n")
	sb.WriteString(labelStyle.Render("Weather:") + " " + FormatWeather(r.Weather) + "\n")
	sb.WriteString(labelStyle.Render("Suggested Dining:") + " " + r.DiningType + "\n")
	sb.WriteString(labelStyle.Render("Recommended Dishes:") + " " + strings.Join(r.Dishes, ", ") + "\n\n")

	sb.WriteString(sectionStyle.Render("Restaurants:") + "\n")
	if len(r.Restaurants) == 0 {
		sb.WriteString(mutedStyle.Render(NoRestaurantsMessage) + "\n")
	}
	for _, resto := range r.Restaurants {
		line := FormatRestaurant(resto)
		line = nameStyle.Render(resto.Name) + strings.TrimPrefix(line, resto.Name)
		sb.WriteString("  • " + line + "\n")
		if resto.Address != "" {
			sb.WriteString("    " + mutedStyle.Italic(true).Render(resto.Address) + "\n")
		}
		if len(resto.Specialties) > 0 {
			sb.WriteString("    Specialties: " + strings.Join(resto.Specialties, ", ") + "\n")
		}
	}

	sb.WriteString("\n" + sectionStyle.Render("Tour Narrative:") + "\n")
	sb.WriteString(Narrative(r.TourNarrative, width) + "\n\n")
	sb.WriteString(mutedStyle.Render("Created at: " + FormatCreatedAt(r.CreatedAt)))

	return sb.String()
}
