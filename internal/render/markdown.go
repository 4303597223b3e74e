package render

import (
	"fmt"
	"strings"

	"github.com/Zacy-Sokach/foodietour/internal/api"
)

// Markdown 导出用的 Markdown 文档
func Markdown(r api.TourResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Tour for %s\n\n", r.City)
	fmt.Fprintf(&sb, "- **Weather:** %s\n", FormatWeather(r.Weather))
	fmt.Fprintf(&sb, "- **Suggested Dining:** %s\n", r.DiningType)
	fmt.Fprintf(&sb, "- **Recommended Dishes:** %s\n\n", strings.Join(r.Dishes, ", "))

	sb.WriteString("## Restaurants\n\n")
	if len(r.Restaurants) == 0 {
		fmt.Fprintf(&sb, "%s\n", NoRestaurantsMessage)
	}
	for _, resto := range r.Restaurants {
		line := FormatRestaurant(resto)
		line = strings.Replace(line, resto.Name, "**"+resto.Name+"**", 1)
		fmt.Fprintf(&sb, "- %s\n", line)
		if resto.Address != "" {
			fmt.Fprintf(&sb, "  - *%s*\n", resto.Address)
		}
		if len(resto.Specialties) > 0 {
			fmt.Fprintf(&sb, "  - Specialties: %s\n", strings.Join(resto.Specialties, ", "))
		}
	}

	sb.WriteString("\n## Tour Narrative\n\n")
	sb.WriteString(demoteHeadings(strings.TrimSpace(r.TourNarrative)))
	sb.WriteString("\n\n---\n\n")
	fmt.Fprintf(&sb, "*Created at: %s*\n", FormatCreatedAt(r.CreatedAt))

	return sb.String()
}

// demoteHeadings 把叙述里的标题降一级，挂到 "Tour Narrative" 之下
func demoteHeadings(md string) string {
	lines := strings.Split(md, "\n")
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence || !strings.HasPrefix(line, "#") {
			continue
		}
		level := len(line) - len(strings.TrimLeft(line, "#"))
		if level < 6 {
			lines[i] = "#" + line
		}
	}
	return strings.Join(lines, "\n")
}
