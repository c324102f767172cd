package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/andreyvit/constdb"
)

const (
	Version = "0.1.0"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "constdb",
		Short: "embedded multi-tenant key-value database",
		Long: fmt.Sprintf(`ConstDB (v%s)

An embedded multi-tenant key-value database: databases hold tables of JSON
records addressed by typed primary keys. Flags can also be set through
environment variables named CONSTDB_<flag> (e.g. CONSTDB_LOG_LEVEL=debug),
including from .env and .env.local files.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of ConstDB",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ConstDB v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.AddCommand(serveCmd)
	RootCmd.AddCommand(catalogCmd)
	RootCmd.AddCommand(versionCmd)

	key := "root"
	RootCmd.PersistentFlags().String(key, "data", wrapString("Directory holding one subdirectory per database"))

	key = "in-memory"
	RootCmd.PersistentFlags().Bool(key, false, wrapString("Keep every database in memory; nothing is written to the root directory"))

	key = "log-level"
	RootCmd.PersistentFlags().String(key, "info", wrapString("Level at which logs will be output (debug, info, warn, error)"))
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initConfig loads .env files and makes viper read CONSTDB_* variables.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("constdb")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// bindFlags is the PreRunE of every command that reads configuration.
func bindFlags(cmd *cobra.Command, _ []string) error {
	return viper.BindPFlags(cmd.Flags())
}

func newLogger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log-level"))); err != nil {
		return nil, fmt.Errorf("invalid log level %q", viper.GetString("log-level"))
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, nil
}

func openEngine(logger *slog.Logger) (*constdb.Engine, error) {
	return constdb.Open(constdb.Settings{
		Root:     viper.GetString("root"),
		InMemory: viper.GetBool("in-memory"),
		Logger:   logger,
	})
}
