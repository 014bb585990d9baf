package cli

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/yakoovad/tabletop-hub/internal/config"
	"github.com/yakoovad/tabletop-hub/pkg/logger"
	"go.uber.org/zap"
)

var rootCmdPersistentFlags struct {
	EnvFile  string
	LogLevel string
}

var rootCmd = &cobra.Command{
	Use:   "tabletop",
	Short: "Backend for the tabletop companion app",
	Long:  `tabletop serves the HTTP API for users, sessions, campaigns and join requests.`,
	Example: `tabletop serve --env-file .env
  tabletop migrate up
  tabletop migrate down --steps 1`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.EnvFile, "env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogLevel, "log-level", "", "log level (debug, info, warn, error), overrides LOG_LEVEL")

	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

// bootstrap loads the config and builds the process logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(rootCmdPersistentFlags.EnvFile)
	if err != nil {
		return nil, nil, errors.Wrap(err, "load config")
	}

	if rootCmdPersistentFlags.LogLevel != "" {
		cfg.LogLevel = rootCmdPersistentFlags.LogLevel
	}

	l, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create logger")
	}
	return cfg, l, nil
}
