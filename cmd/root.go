// Package cmd provides the folio command-line interface.
//
// Configuration is resolved once per command, highest priority first:
//
//  1. command-line flags (--port, --database, ...)
//  2. FOLIO_* environment variables (FOLIO_SERVER_PORT, FOLIO_DATABASE_DSN, ...)
//  3. the config file named by --config or FOLIO_CONFIG_FILE
//  4. .folio.yml in the working directory
//  5. built-in defaults
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/folio/internal/config"
)

const (
	envPrefix      = "FOLIO"
	configFileEnv  = "FOLIO_CONFIG_FILE"
	defaultCfgName = ".folio"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "A minimal server-rendered blog",
	Long: `folio stores posts with authorship, revision history and a publication
lifecycle, and serves a home page listing every published post.

Quick Start:
  folio migrate                  Create or update the database schema
  folio serve                    Start the web server
  folio serve --in-memory        Try it without a database file
  folio config show              Print the resolved configuration`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is .folio.yml, can also use FOLIO_CONFIG_FILE env var)")
	pf.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	pf.String("log-dir", "", "also write JSON logs to a daily file in this directory")

	AddFlagValidation(rootCmd.PersistentFlags(), "log-level", ValidateLogLevel)

	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", pf.Lookup("log-format"))
	_ = viper.BindPFlag("log.dir", pf.Lookup("log-dir"))
}

func initConfig() {
	switch {
	case cfgFile != "":
		viper.SetConfigFile(cfgFile)
	case os.Getenv(configFileEnv) != "":
		viper.SetConfigFile(os.Getenv(configFileEnv))
	default:
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(defaultCfgName)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := config.BindEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning:", err)
	}

	// a missing file is fine; a broken one surfaces again from config.Load
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// configPath names the config file for error messages.
func configPath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return defaultCfgName + ".yml"
}
