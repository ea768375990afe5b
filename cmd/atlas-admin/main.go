// Command atlas-admin runs maintenance tasks against the atlas database:
// migrations, account bootstrap, printed reports and mirror inspection.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"atlas/internal/cli"
	applog "atlas/internal/log"
)

var (
	cfgFile string
	logger  *applog.Logger

	rootCmd = &cobra.Command{
		Use:               "atlas-admin",
		Short:             "Administrative tasks for the atlas ledger",
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./atlas.yaml if present)")
	flags.String("backend", "sqlite", "data backend (sqlite, postgres, memory)")
	flags.String("sqlite-path", "./data/atlas.db", "SQLite database path")
	flags.String("database-url", "", "Postgres connection URL")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")

	// Keys match the server's environment variables.
	_ = viper.BindPFlag("data_backend", flags.Lookup("backend"))
	_ = viper.BindPFlag("sqlite_db_path", flags.Lookup("sqlite-path"))
	_ = viper.BindPFlag("database_url", flags.Lookup("database-url"))
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log_format", flags.Lookup("log-format"))

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(mirrorCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	cli.LoadEnvFile()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("atlas")
		viper.SetConfigType("yaml")
	}
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger = applog.New(applog.Config{
		Level:     applog.ParseLevel(viper.GetString("log_level")),
		Format:    viper.GetString("log_format"),
		Component: "admin",
		Output:    os.Stderr,
	})
	applog.SetDefault(logger)
	return nil
}
