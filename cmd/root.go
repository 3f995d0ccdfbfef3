// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/pathwright/internal/config"
	"github.com/xkilldash9x/pathwright/internal/observability"
	"github.com/xkilldash9x/pathwright/internal/service"
)

const envPrefix = "PATHWRIGHT"

type contextKey string

const configKey contextKey = "config"

// flagBindings maps command line flags onto configuration keys so that a
// flag, when given, overrides the config file and the environment.
var flagBindings = map[string]string{
	"log-level":         "logger.level",
	"knowledge":         "knowledge.path",
	"knowledge-backend": "knowledge.backend",
	"database-url":      "knowledge.database_url",
	"provider":          "llm.provider",
	"model":             "llm.model",
	"headless":          "browser.headless",
	"concurrency":       "engine.worker_concurrency",
	"timeout":           "engine.default_task_timeout",
	"ws-addr":           "observer.websocket_addr",
}

// Execute builds the command tree and runs it under ctx.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			observability.GetLogger().Warn("Command interrupted.")
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	observability.Sync()
	return err
}

// NewRootCommand returns a fresh command tree wired to the production
// component factory.
func NewRootCommand() *cobra.Command {
	return newRootCommand(service.NewComponentFactory())
}

func newRootCommand(factory service.ComponentFactory) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:           "pathwright",
		Short:         "Pathwright drives a browser through natural language tasks and heals broken selectors as it goes.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			var cfg config.Config
			if err := v.Unmarshal(&cfg); err != nil {
				observability.Initialize(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "pathwright"}, zapcore.Lock(os.Stderr))
				return fmt.Errorf("failed to unmarshal config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			// Progress lines own stdout; logs go to stderr.
			observability.Initialize(cfg.Logger, zapcore.Lock(os.Stderr))
			observability.GetLogger().Debug("Starting pathwright", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, &cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("knowledge", "", "path of the knowledge file")
	rootCmd.PersistentFlags().String("knowledge-backend", "", "knowledge store backend (file, postgres)")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string for the postgres backend")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newRunCmd(factory))
	rootCmd.AddCommand(newLearnCmd(factory))
	rootCmd.AddCommand(newIntentsCmd())
	rootCmd.AddCommand(newAddCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// initializeConfig layers the config file, PATHWRIGHT_* environment variables
// and explicitly set flags on top of the defaults already in v.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return fmt.Errorf("cannot read config file: %w", err)
		}
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagBindings[f.Name]
		if !ok || !f.Changed || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(key, f)
	})
	return bindErr
}

// configFrom returns the configuration loaded by the root command.
func configFrom(cmd *cobra.Command) (*config.Config, error) {
	if ctx := cmd.Context(); ctx != nil {
		if cfg, ok := ctx.Value(configKey).(*config.Config); ok && cfg != nil {
			return cfg, nil
		}
	}
	return nil, errors.New("configuration not loaded")
}
