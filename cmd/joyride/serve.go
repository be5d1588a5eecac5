package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/joyride/pkg/config"
	"github.com/cuemby/joyride/pkg/log"
	"github.com/cuemby/joyride/pkg/runtime"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the DNS server, hosts watcher and status API",
	Long: `Start every enabled component in dependency order and run until
SIGINT or SIGTERM, then stop them in reverse order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		if err := initLogging(cmd, cfg); err != nil {
			return err
		}

		rt, err := runtime.New(cfg, runtime.WithVersion(Version))
		if err != nil {
			return fmt.Errorf("failed to create runtime: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Logger.Info().
			Str("version", Version).
			Str("commit", Commit).
			Msg("starting joyride")

		if err := rt.Serve(ctx); err != nil {
			return err
		}

		log.Logger.Info().Msg("shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	serveCmd.Flags().Bool("json-logs", false, "log JSON lines instead of console output")
}

// loadConfig reads the persistent --config and --env-file flags
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	envFiles, _ := cmd.Flags().GetStringSlice("env-file")

	cfg, err := config.Load(path, envFiles...)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// initLogging applies flag overrides to the log section and configures the
// global logger
func initLogging(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("json-logs") {
		cfg.Log.JSON, _ = cmd.Flags().GetBool("json-logs")
	}

	level, ok := log.ParseLevel(cfg.Log.Level)
	if !ok {
		return fmt.Errorf("invalid log level %q", cfg.Log.Level)
	}
	log.Init(log.Config{
		Level:      level,
		JSONOutput: cfg.Log.JSON,
		Output:     cmd.ErrOrStderr(),
	})
	return nil
}
