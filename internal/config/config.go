package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Zacy-Sokach/foodietour/internal/utils"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL        = "http://localhost:8000"
	DefaultPollInterval   = 3 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

type Config struct {
	BaseURL              string        `yaml:"base_url"`
	PollInterval         time.Duration `yaml:"poll_interval"`
	RequestTimeout       time.Duration `yaml:"request_timeout"`
	CleanupFinishedTasks bool          `yaml:"cleanup_finished_tasks"`
	RememberCities       *bool         `yaml:"remember_cities,omitempty"`
	LogLevel             string        `yaml:"log_level"`
}

// Default 返回没有配置文件时使用的配置
func Default() *Config {
	remember := true
	return &Config{
		BaseURL:        DefaultBaseURL,
		PollInterval:   DefaultPollInterval,
		RequestTimeout: DefaultRequestTimeout,
		RememberCities: &remember,
		LogLevel:       "info",
	}
}

// ShouldRememberCities 未设置时默认记录
func (c *Config) ShouldRememberCities() bool {
	return c.RememberCities == nil || *c.RememberCities
}

// LoadConfig 读取配置文件，再叠加 .env 和环境变量
func LoadConfig() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom 从指定路径读取配置，文件不存在时使用默认值
func LoadFrom(configPath string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	// .env 不存在是正常情况
	_ = godotenv.Load()

	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	config.fillDefaults()

	return config, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("FOODIETOUR_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("FOODIETOUR_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FOODIETOUR_POLL_INTERVAL 无效: %w", err)
		}
		c.PollInterval = d
	}
	if os.Getenv("FOODIETOUR_DEBUG") == "1" {
		c.LogLevel = "debug"
	}
	return nil
}

func (c *Config) fillDefaults() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// SaveConfig 写入默认路径
func SaveConfig(config *Config) error {
	configPath, err := getConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(configPath, config)
}

// SaveTo 把配置写到指定路径，目录不存在时创建
func SaveTo(configPath string, config *Config) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}

// Path 返回默认配置文件路径
func Path() (string, error) {
	return getConfigPath()
}

func getConfigPath() (string, error) {
	configDir, err := utils.GetConfigDir()
	if err != nil {
		return "", fmt.Errorf("获取配置目录失败: %w", err)
	}
	return filepath.Join(configDir, "config.yaml"), nil
}
