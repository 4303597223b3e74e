package tui

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// didYouMean 在候选城市里找拼写最接近的一个，完全匹配或差得太远时返回空
func didYouMean(city string, candidates []string) string {
	needle := strings.ToLower(strings.TrimSpace(city))
	if needle == "" {
		return ""
	}

	limit := 2
	if len([]rune(needle)) <= 4 {
		limit = 1
	}

	best, bestDist := "", limit+1
	for _, c := range candidates {
		lc := strings.ToLower(c)
		if lc == needle {
			return ""
		}
		if d := levenshtein.ComputeDistance(needle, lc); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// mergeCities 去重合并，保持先后顺序
func mergeCities(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, c := range list {
			key := strings.ToLower(strings.TrimSpace(c))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, c)
		}
	}
	return out
}
