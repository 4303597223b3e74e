package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const maxHistoryEntries = 20

// historyMu 串行化同一进程内的读改写
var historyMu sync.Mutex

// HistoryEntry 一次成功规划的城市记录
type HistoryEntry struct {
	City      string    `json:"city"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordCity 把城市写到历史文件最前面，重复的城市会被移到最前
func RecordCity(city string) error {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil
	}

	historyMu.Lock()
	defer historyMu.Unlock()

	history, err := LoadHistory()
	if err != nil {
		// 历史文件损坏时直接覆盖
		history = nil
	}

	entries := make([]HistoryEntry, 0, len(history)+1)
	entries = append(entries, HistoryEntry{City: city, Timestamp: time.Now()})
	for _, e := range history {
		if !strings.EqualFold(e.City, city) {
			entries = append(entries, e)
		}
	}
	if len(entries) > maxHistoryEntries {
		entries = entries[:maxHistoryEntries]
	}

	historyPath, err := getHistoryPath()
	if err != nil {
		return fmt.Errorf("获取历史文件路径失败: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化历史失败: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(historyPath), 0755); err != nil {
		return fmt.Errorf("创建历史目录失败: %w", err)
	}

	if err := os.WriteFile(historyPath, data, 0644); err != nil {
		return fmt.Errorf("写入历史文件失败: %w", err)
	}

	return nil
}

// LoadHistory 读取历史，最近的在前
func LoadHistory() ([]HistoryEntry, error) {
	historyPath, err := getHistoryPath()
	if err != nil {
		return nil, fmt.Errorf("获取历史文件路径失败: %w", err)
	}

	data, err := os.ReadFile(historyPath)
	if os.IsNotExist(err) {
		return []HistoryEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取历史文件失败: %w", err)
	}

	var history []HistoryEntry
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("解析历史文件失败: %w", err)
	}

	return history, nil
}

// RecentCities 返回历史中的城市名
func RecentCities() []string {
	history, err := LoadHistory()
	if err != nil {
		return nil
	}
	cities := make([]string, 0, len(history))
	for _, e := range history {
		cities = append(cities, e.City)
	}
	return cities
}

func getHistoryPath() (string, error) {
	return ConfigFile("history.json")
}
