package cli

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/interpretive-systems/erpview/internal/lifecycle"
	"github.com/interpretive-systems/erpview/internal/logging"
	"github.com/interpretive-systems/erpview/internal/loop"
	"github.com/interpretive-systems/erpview/internal/metrics"
	"github.com/interpretive-systems/erpview/internal/notify"
	"github.com/interpretive-systems/erpview/internal/polling"
	"github.com/interpretive-systems/erpview/internal/prefs"
	"github.com/interpretive-systems/erpview/internal/registry"
	"github.com/interpretive-systems/erpview/internal/tui"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [screen]",
		Short: "Open the terminal UI",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var screen string
			if len(args) == 1 {
				screen = args[0]
			}
			props, err := cmd.Flags().GetStringToString("prop")
			if err != nil {
				return err
			}
			if view := mustGetStringFlag(cmd, "view"); view != "" {
				props["view"] = view
			}
			return runTUI(cmd, screen, props, mustGetStringFlag(cmd, "theme"))
		},
	}
	cmd.Flags().String("view", "", "Initial view of the screen")
	cmd.Flags().String("theme", "", "Color theme: dark or light (overrides config)")
	cmd.Flags().StringToString("prop", map[string]string{}, "Screen property, as key=value (repeatable)")
	return cmd
}

func runTUI(cmd *cobra.Command, screen string, props lifecycle.Props, theme string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if theme != "" {
		cfg.UI.Theme = theme
	}

	// The terminal belongs to the UI, so logs go to a file.
	logFile, err := logging.OpenFile(cfg.Log.File)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := newLogger(cfg, logFile)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr, logger); err != nil {
				logger.Error("metrics endpoint failed", slog.Any("error", err))
			}
		}()
	}

	store, err := prefs.Open(cfg.PrefsFile)
	if err != nil {
		return fmt.Errorf("open prefs: %w", err)
	}

	bridge := tui.NewBridge()
	feeds, err := polling.New(bridge, polling.WithLogger(logger), polling.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("start feed scheduler: %w", err)
	}
	defer func() {
		if err := feeds.Shutdown(); err != nil {
			logger.Warn("feed scheduler shutdown failed", slog.Any("error", err))
		}
	}()

	notes := notify.NewHistory(50)
	exec := &loop.Goroutines{}
	reg := registry.New(registry.Env{
		Deps: lifecycle.Deps{
			Loop:     bridge,
			Executor: exec,
			Feeds:    feeds,
			Notify:   notify.Multi{notes, notify.NewLog(logger)},
			Logger:   logger,
			Metrics:  m,
			Renderer: bridge,
		},
		API:     newClient(cfg, logger),
		Prefs:   store,
		Config:  cfg,
		Confirm: bridge.Confirmer(),
	})
	if err := registerScreens(reg); err != nil {
		return err
	}
	defer reg.Close()

	logger.Info("starting", slog.String("api", cfg.API.BaseURL), slog.String("screen", screen))
	err = tui.Run(ctx, tui.Options{
		Registry: reg,
		Bridge:   bridge,
		Notes:    notes,
		Metrics:  m,
		Logger:   logger,
		Theme:    cfg.UI.Theme,
		Screen:   screen,
		Props:    props,
	})
	stop()
	exec.Wait()
	return err
}

