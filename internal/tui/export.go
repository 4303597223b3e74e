package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/Zacy-Sokach/foodietour/internal/api"
	"github.com/Zacy-Sokach/foodietour/internal/render"
)

// exportFileName 例如 foodietour-new-york-20240101-090000.md
func exportFileName(city string, now time.Time) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(city)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			dash = false
			continue
		}
		if !dash && sb.Len() > 0 {
			sb.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(sb.String(), "-")
	if slug == "" {
		slug = "tour"
	}
	return fmt.Sprintf("foodietour-%s-%s.md", slug, now.Format("20060102-150405"))
}

// exportMarkdown 把行程写成 Markdown 文件，返回文件路径
func exportMarkdown(dir string, result api.TourResult, now time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(dir, exportFileName(result.City, now))
	if err := os.WriteFile(path, []byte(render.Markdown(result)), 0644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}
