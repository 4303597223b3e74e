package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRecordCityMovesDuplicatesToFront(t *testing.T) {
	t.Setenv("FOODIETOUR_CONFIG_HOME", t.TempDir())

	for _, city := range []string{"Paris", "Tokyo", "  ", "paris", "Rome"} {
		if err := RecordCity(city); err != nil {
			t.Fatalf("RecordCity(%q): %v", city, err)
		}
	}

	got := RecentCities()
	want := []string{"Rome", "paris", "Tokyo"}
	if len(got) != len(want) {
		t.Fatalf("RecentCities() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("RecentCities()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRecordCityCapsHistory(t *testing.T) {
	t.Setenv("FOODIETOUR_CONFIG_HOME", t.TempDir())

	for i := 0; i < maxHistoryEntries+5; i++ {
		if err := RecordCity(string(rune('A'+i)) + "-city"); err != nil {
			t.Fatal(err)
		}
	}

	history, err := LoadHistory()
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != maxHistoryEntries {
		t.Errorf("history length = %d, want %d", len(history), maxHistoryEntries)
	}
}

func TestLoadHistoryMissingAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FOODIETOUR_CONFIG_HOME", dir)

	history, err := LoadHistory()
	if err != nil {
		t.Fatalf("LoadHistory on missing file: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("expected empty history, got %v", history)
	}

	os.WriteFile(filepath.Join(dir, "history.json"), []byte("{not json"), 0644)
	if _, err := LoadHistory(); err == nil {
		t.Error("expected error for corrupt history file")
	}
	if RecentCities() != nil {
		t.Error("RecentCities should be nil for corrupt history")
	}

	// 损坏的文件会被新记录覆盖
	if err := RecordCity("Lima"); err != nil {
		t.Fatal(err)
	}
	if got := RecentCities(); len(got) != 1 || got[0] != "Lima" {
		t.Errorf("RecentCities() = %v", got)
	}
}

func TestGetConfigDirPrecedence(t *testing.T) {
	t.Setenv("FOODIETOUR_CONFIG_HOME", "")
	t.Setenv("APPDATA", "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	dir, err := GetConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != filepath.Join("/tmp/xdg", "foodietour") {
		t.Errorf("GetConfigDir() = %q", dir)
	}

	t.Setenv("FOODIETOUR_CONFIG_HOME", "/tmp/custom")
	dir, _ = GetConfigDir()
	if dir != "/tmp/custom" {
		t.Errorf("override ignored: %q", dir)
	}
}
