package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/minmin-app/minmin/internal/config"
)

var configPath string //nolint:gochecknoglobals // bound to the persistent --config flag

func main() {
	setupLogging()

	if err := newRootCommand().Execute(); err != nil {
		log.Fatal().Err(err).Msg("command failed")
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "minmin",
		Short:         "MinMin restaurant platform backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML config file (defaults to ./minmin.yaml or /etc/minmin/minmin.yaml when present)")

	root.AddCommand(newServeCommand())
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newAdminCommand())
	return root
}

// setupLogging configures the global zerolog logger from MINMIN_LOG_LEVEL
// and MINMIN_LOG_FORMAT (json or text).
func setupLogging() {
	level, err := zerolog.ParseLevel(os.Getenv("MINMIN_LOG_LEVEL"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if os.Getenv("MINMIN_LOG_FORMAT") == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
