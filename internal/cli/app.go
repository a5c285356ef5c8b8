package cli

import (
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/interpretive-systems/erpview/internal/api"
	"github.com/interpretive-systems/erpview/internal/config"
	"github.com/interpretive-systems/erpview/internal/logging"
	"github.com/interpretive-systems/erpview/internal/registry"
	"github.com/interpretive-systems/erpview/internal/screens/hr"
	"github.com/interpretive-systems/erpview/internal/screens/iot"
)

// registrations lists every screen the binary ships.
var registrations = []func(*registry.Registry) error{
	iot.Register,
	hr.Register,
}

func registerScreens(r *registry.Registry) error {
	var errs []error
	for _, register := range registrations {
		errs = append(errs, register(r))
	}
	return errors.Join(errs...)
}

// loadConfig reads the config file named by --config and applies the
// persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	root := cmd.Root()
	cfg, err := config.Load(mustGetStringFlag(root, "config"))
	if err != nil {
		return nil, err
	}
	if v := mustGetStringFlag(root, "api-url"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := mustGetStringFlag(root, "log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := mustGetStringFlag(root, "metrics-addr"); v != "" {
		cfg.Metrics.Addr = v
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, out io.Writer) *slog.Logger {
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
		Output: out,
	})
}

func newClient(cfg *config.Config, logger *slog.Logger) *api.Client {
	opts := []api.Option{api.WithLogger(logger)}
	if cfg.API.Timeout > 0 {
		opts = append(opts, api.WithTimeout(cfg.API.Timeout))
	}
	if cfg.API.Token != "" {
		opts = append(opts, api.WithToken(cfg.API.Token))
	}
	return api.New(cfg.API.BaseURL, opts...)
}
