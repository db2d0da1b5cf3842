package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/trvlai/lawyerai/internal/config"
	"github.com/trvlai/lawyerai/internal/daemon"
	"github.com/trvlai/lawyerai/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat HTTP service",
	Long: `Run the chat HTTP service in the foreground.
The service answers POST /api/chat and stops gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

var watchConfig bool

func init() {
	serveCmd.Flags().BoolVar(&watchConfig, "watch-config", true, "reload logging.level when the config file changes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	log.Info().
		Str("version", version).
		Str("provider", cfg.AI.Provider).
		Str("model", cfg.AI.Model).
		Msg("Configuration loaded")

	d, err := daemon.New(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize daemon")
		return err
	}

	if path := configFileInUse(); watchConfig && path != "" {
		if err := d.WatchConfig(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Config watching disabled")
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return d.Run(ctx)
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		Secrets:   []string{cfg.AI.APIKey},
		Service:   "lawyerai",
	})
}

// configFileInUse returns the config file the loader reads, or "" when
// configuration comes from defaults and the environment only
func configFileInUse() string {
	if cfgFile != "" {
		return cfgFile
	}
	for _, ext := range []string{"json", "yaml", "yml", "toml"} {
		name := config.DefaultConfigName + "." + ext
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}
