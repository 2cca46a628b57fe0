// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pubmap CLI: it synchronizes a
// local SQLite snapshot of robotics papers and their geocoded institutions
// from OpenAlex and exports the static JSON the map frontend reads.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pubmap/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds values loaded from .secrets/ at startup.
var loadedSecrets secrets.Secrets

var (
	quiet   bool
	verbose bool
)

// rootCmd is the base command for the pubmap CLI.
var rootCmd = &cobra.Command{
	Use:   "pubmap",
	Short: "Sync robotics papers from OpenAlex and export a map dataset",
	Long: `pubmap keeps a local SQLite snapshot of robotics-tagged OpenAlex works and
the institutions of their authors, and exports institutions.json and meta.json
for the map frontend.

Run backfill once to load the historical window, then update on a schedule to
pick up papers published since the latest date in the store. Both finish by
running export.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initLogging()

		s, err := secrets.Load(secrets.DefaultDir)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if keys := s.Keys(); len(keys) > 0 {
			log.WithField("keys", keys).Debug("Loaded secrets")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)
	setDefaults()

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./pubmap.yaml or ~/.config/pubmap/config.yaml)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "only log warnings and errors")
	pf.BoolVarP(&verbose, "verbose", "v", false, "log debug output")
	pf.String("db", "", "path to the SQLite database (default data/publications.db)")
	pf.String("data-dir", "", "directory for exported artifacts (default data)")

	bindFlag("db_path", pf.Lookup("db"))
	bindFlag("export.data_dir", pf.Lookup("data-dir"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pubmap")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pubmap"))
		}
	}

	viper.SetEnvPrefix("PUBMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func initLogging() {
	level := log.InfoLevel
	switch {
	case verbose:
		level = log.DebugLevel
	case quiet:
		level = log.WarnLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
