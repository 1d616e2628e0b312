package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Version is the version of the warden CLI.
	Version = "0.3.0"

	// wrap is the number of characters to wrap flag help at.
	wrap = 60
)

var (
	// conf holds the settings resolved from flags and environment
	// variables before any subcommand runs.
	conf settings

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "warden",
		Short: "node reservations and conductor liveness",
		Long: fmt.Sprintf(`warden (v%s)

Reserve managed nodes for exclusive use and track which conductor
processes are alive, against a shared transactional store.

Every flag can also be set through the environment as WARDEN_<FLAG>
(e.g. WARDEN_STORE=postgres, WARDEN_DSN=postgres://...). Values from
.env and .env.local in the working directory are loaded first.`, Version),
		SilenceUsage:      true,
		PersistentPreRunE: processConfig,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of warden",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "warden v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(migrateCmd)
	RootCmd.AddCommand(nodeCmd)
	RootCmd.AddCommand(conductorCmd)

	flags := RootCmd.PersistentFlags()

	key := "store"
	flags.String(key, "memory", wrapString("Backend to use. One of: "+strings.Join(storeKinds, ", ")))

	key = "dsn"
	flags.String(key, "", wrapString("Connection string for the backend (a postgres URL, a MySQL DSN, a SQLite file or a mongodb URI)"))

	key = "database"
	flags.String(key, "warden", wrapString("Database name (mongo only)"))

	key = "log-level"
	flags.String(key, "info", wrapString("Level at which logs are written (debug, info, warn, error)"))

	key = "log-format"
	flags.String(key, "text", wrapString("Log output format (text, json)"))

	key = "heartbeat-interval"
	flags.Duration(key, defaultSettings().HeartbeatInterval, wrapString("How often a running conductor heartbeats"))

	key = "heartbeat-timeout"
	flags.Duration(key, defaultSettings().HeartbeatTimeout, wrapString("Freshness window after which a conductor is no longer alive"))
}

// initConfig loads env files and points viper at WARDEN_* variables.
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("warden")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// processConfig binds the flags of the running command and resolves conf.
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	conf = settings{
		Store:             viper.GetString("store"),
		DSN:               viper.GetString("dsn"),
		Database:          viper.GetString("database"),
		LogLevel:          viper.GetString("log-level"),
		LogFormat:         viper.GetString("log-format"),
		HeartbeatInterval: viper.GetDuration("heartbeat-interval"),
		HeartbeatTimeout:  viper.GetDuration("heartbeat-timeout"),
	}
	return conf.validate()
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// wrapString wraps help text at wrap characters.
func wrapString(text string) string {
	var lines []string
	var line strings.Builder
	for _, word := range strings.Fields(text) {
		if line.Len() > 0 && line.Len()+1+len(word) > wrap {
			lines = append(lines, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}
