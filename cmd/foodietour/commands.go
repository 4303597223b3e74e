package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Zacy-Sokach/foodietour/internal/config"
	"github.com/Zacy-Sokach/foodietour/internal/devserver"
	"github.com/Zacy-Sokach/foodietour/internal/render"
	"github.com/Zacy-Sokach/foodietour/internal/tour"
	"github.com/Zacy-Sokach/foodietour/internal/update"
	"github.com/Zacy-Sokach/foodietour/internal/utils"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 同时进行的 plan 任务上限
const maxParallelPlans = 4

// --- plan ---

var planCmd = &cobra.Command{
	Use:   "plan <city>...",
	Short: "Generate tours for one or more cities and print them",
	Long: `Submit every city at once, poll each task until it finishes and print
the itineraries in argument order.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		ctx := commandContext(cmd)
		if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		finals := make([]tour.State, len(args))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxParallelPlans)
		for i, city := range args {
			i, city := i, city
			g.Go(func() error {
				final, err := s.plan(gctx, city)
				if err != nil {
					return fmt.Errorf("%s: %w", city, err)
				}
				finals[i] = final
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		failed := 0
		for i, final := range finals {
			if i > 0 {
				fmt.Fprintln(out)
			}
			switch st := final.(type) {
			case tour.Completed:
				fmt.Fprint(out, render.Text(st.Result))
			case tour.Failed:
				failed++
				printError(cmd.ErrOrStderr(), "%s: %v", displayCity(args[i]), st.Err)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d tours failed", failed, len(args))
		}
		return nil
	},
}

// plan 提交一个城市并等到终态；只有等待被打断时才返回 error
func (s *session) plan(ctx context.Context, city string) (tour.State, error) {
	c := s.controller()
	defer c.Close()

	// 校验失败时状态已经是 Failed，交给 Await 返回
	_ = c.Submit(ctx, city)
	final, err := c.Await(ctx)
	if err != nil {
		return nil, err
	}

	if done, ok := final.(tour.Completed); ok && s.cfg.ShouldRememberCities() {
		if err := utils.RecordCity(done.Result.City); err != nil {
			s.logger.Warn("record city failed", zap.Error(err))
		}
	}
	if s.cfg.CleanupFinishedTasks {
		if err := c.Forget(ctx); err != nil {
			s.logger.Debug("cleanup skipped", zap.String("city", city), zap.Error(err))
		}
	}
	return final, nil
}

func displayCity(city string) string {
	if c := strings.TrimSpace(city); c != "" {
		return c
	}
	return fmt.Sprintf("%q", city)
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show the status of a tour task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		resp, err := s.client.TourStatus(commandContext(cmd), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printStatus(out, "Task", "%s", args[0])
		printStatus(out, "Status", "%s", resp.Status)
		if resp.Progress != nil {
			printStatus(out, "Progress", "%d%%", *resp.Progress)
		}
		if resp.Error != "" {
			printStatus(out, "Error", "%s", resp.Error)
		}
		if resp.Result != nil {
			fmt.Fprintln(out)
			fmt.Fprint(out, render.Text(*resp.Result))
		}
		return nil
	},
}

// --- cities ---

var citiesCmd = &cobra.Command{
	Use:   "cities",
	Short: "List popular cities known to the service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		cities, err := s.client.PopularCities(commandContext(cmd))
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, c := range cities {
			fmt.Fprintln(out, c)
		}
		return nil
	},
}

// --- preview ---

var previewCmd = &cobra.Command{
	Use:   "preview <city>",
	Short: "Show current weather and popular dishes without generating a tour",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		city := strings.TrimSpace(strings.Join(args, " "))
		if city == "" {
			return &tour.ValidationError{Message: "City name cannot be empty."}
		}

		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		p, err := s.client.Preview(commandContext(cmd), city)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), render.Preview(*p))
		return nil
	},
}

// --- task ---

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tour tasks on the service",
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <task-id>",
	Short: "Delete a finished task from the service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		msg, err := s.client.DeleteTask(commandContext(cmd), args[0])
		if err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "%s", msg)
		return nil
	},
}

// --- dev-server ---

var devServerCmd = &cobra.Command{
	Use:   "dev-server",
	Short: "Run an in-process fake tour service for local development",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		addr, _ := cmd.Flags().GetString("addr")
		step, _ := cmd.Flags().GetDuration("step-delay")
		fail, _ := cmd.Flags().GetStringSlice("fail")

		srv := devserver.New(devserver.Options{
			StepDelay:  step,
			FailCities: fail,
			Logger:     s.logger,
		})

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		printStep(cmd.ErrOrStderr(), "dev server listening on http://%s (Ctrl+C to stop)", addr)
		if err := srv.ListenAndServe(ctx, addr); err != nil {
			return err
		}
		printSuccess(cmd.ErrOrStderr(), "dev server stopped")
		return nil
	},
}

// --- health ---

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the tour service is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		h, err := s.client.Health(commandContext(cmd))
		if err != nil {
			return fmt.Errorf("%s is not reachable: %w", s.client.BaseURL(), err)
		}

		out := cmd.OutOrStdout()
		printSuccess(out, "%s", h.Message)
		printStatus(out, "Service", "%s", s.client.BaseURL())
		if h.Version != "" {
			printStatus(out, "Version", "%s", h.Version)
		}
		return nil
	},
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}

		cfg := config.Default()
		if cmd.Flags().Changed("base-url") {
			cfg.BaseURL = strings.TrimRight(strings.TrimSpace(flagBaseURL), "/")
		}
		if cmd.Flags().Changed("interval") && flagInterval > 0 {
			cfg.PollInterval = flagInterval
		}
		if err := config.SaveTo(path, cfg); err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "config written to %s", path)
		return nil
	},
}

// configPath --config 优先，否则是配置目录下的默认文件
func configPath() (string, error) {
	if flagConfig != "" {
		return flagConfig, nil
	}
	return config.Path()
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version, optionally checking for a newer release",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "foodietour %s\n", version)

		check, _ := cmd.Flags().GetBool("check")
		if !check {
			return nil
		}

		ctx, cancel := context.WithTimeout(commandContext(cmd), 15*time.Second)
		defer cancel()

		hasUpdate, latest, err := newChecker().CheckForUpdate(ctx, version)
		if err != nil {
			return fmt.Errorf("check for update: %w", err)
		}
		if hasUpdate {
			printWarning(out, "new version available: %s", latest.TagName)
			if latest.HTMLURL != "" {
				fmt.Fprintf(out, "  %s\n", latest.HTMLURL)
			}
			return nil
		}
		printSuccess(out, "up to date")
		return nil
	},
}

// newChecker 测试中替换为本地 release 服务
var newChecker = func() *update.Checker {
	return update.NewChecker()
}

func init() {
	planCmd.Flags().Duration("timeout", 0, "give up waiting after this long (0 = no limit)")

	devServerCmd.Flags().String("addr", "127.0.0.1:8000", "listen address")
	devServerCmd.Flags().Duration("step-delay", 2*time.Second, "delay between task stages")
	devServerCmd.Flags().StringSlice("fail", nil, "cities whose tasks fail")

	configInitCmd.Flags().Bool("force", false, "overwrite an existing config file")

	versionCmd.Flags().Bool("check", false, "check GitHub for a newer release")

	taskCmd.AddCommand(taskDeleteCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(citiesCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(devServerCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
