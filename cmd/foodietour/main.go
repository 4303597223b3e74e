package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Zacy-Sokach/foodietour/internal/api"
	"github.com/Zacy-Sokach/foodietour/internal/config"
	"github.com/Zacy-Sokach/foodietour/internal/tour"
	"github.com/Zacy-Sokach/foodietour/internal/tui"
	"github.com/Zacy-Sokach/foodietour/internal/utils"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

var (
	flagBaseURL  string
	flagInterval time.Duration
	flagConfig   string
)

var rootCmd = &cobra.Command{
	Use:   "foodietour",
	Short: "Plan a weather-aware foodie tour for any city",
	Long: `foodietour submits a city to the Foodie Tour service, waits for the
background job to finish and shows the itinerary.

Without a subcommand it starts the interactive terminal UI.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "tour service base URL (overrides config)")
	rootCmd.PersistentFlags().DurationVar(&flagInterval, "interval", 0, "status poll interval, e.g. 3s (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config.yaml")
}

func main() {
	if err := run(); err != nil {
		printError(os.Stderr, "error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	return rootCmd.Execute()
}

// session 每个子命令共用的配置、日志和客户端
type session struct {
	cfg    *config.Config
	logger *zap.Logger
	client *api.Client
}

func newSession(cmd *cobra.Command) (*session, error) {
	var (
		cfg *config.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = config.LoadFrom(flagConfig)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = flagBaseURL
	}
	if flags.Changed("interval") {
		if flagInterval <= 0 {
			return nil, fmt.Errorf("--interval must be positive, got %s", flagInterval)
		}
		cfg.PollInterval = flagInterval
	}

	logger, err := utils.NewFileLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger = logger.With(zap.String("command", cmd.Name()))

	client := api.NewClient(cfg.BaseURL, cfg.RequestTimeout, api.WithLogger(logger))
	return &session{cfg: cfg, logger: logger, client: client}, nil
}

func (s *session) close() {
	_ = s.logger.Sync()
}

func (s *session) controller() *tour.Controller {
	return tour.New(s.client,
		tour.WithInterval(s.cfg.PollInterval),
		tour.WithLogger(s.logger),
	)
}

func runTUI(cmd *cobra.Command, args []string) error {
	if !isTerminal() {
		printWarning(cmd.ErrOrStderr(), "foodietour needs an interactive terminal")
		fmt.Fprintln(cmd.ErrOrStderr(), "Use `foodietour plan <city>` for scripted use.")
		return nil
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	controller := s.controller()
	defer controller.Close()

	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	var recent []string
	if s.cfg.ShouldRememberCities() {
		recent = utils.RecentCities()
	}

	model := tui.New(tui.Options{
		Planner:         controller,
		Cities:          s.client,
		Recent:          recent,
		RememberCities:  s.cfg.ShouldRememberCities(),
		CleanupFinished: s.cfg.CleanupFinishedTasks,
		ExportDir:       wd,
		Logger:          s.logger,
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(commandContext(cmd)))
	unsubscribe := controller.Subscribe(func(st tour.State) {
		p.Send(tui.StateMsg{State: st})
	})
	defer unsubscribe()

	s.logger.Info("tui started", zap.String("base_url", s.cfg.BaseURL), zap.Duration("interval", s.cfg.PollInterval))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

func isTerminal() bool {
	fileInfo, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// commandContext cobra 在 Execute 时没有传入 context 的情况下兜底
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
