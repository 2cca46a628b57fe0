// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/pubmap/internal/export"
	"github.com/pdiddy/pubmap/internal/openalex"
	"github.com/pdiddy/pubmap/internal/secrets"
	"github.com/pdiddy/pubmap/internal/store"
	"github.com/pdiddy/pubmap/pkg/types"
)

// setDefaults registers every configuration key so that config files,
// PUBMAP_* environment variables, and bound flags can all override it.
func setDefaults() {
	viper.SetDefault("db_path", store.DefaultPath)

	viper.SetDefault("openalex.base_url", openalex.DefaultBaseURL)
	viper.SetDefault("openalex.mailto", "")
	viper.SetDefault("openalex.concept_id", types.DefaultConceptID)
	viper.SetDefault("openalex.per_page", types.DefaultPerPage)
	viper.SetDefault("openalex.page_timeout", types.DefaultPageTimeout)
	viper.SetDefault("openalex.lookup_timeout", types.DefaultLookupTimeout)
	viper.SetDefault("openalex.user_agent", types.DefaultUserAgent)
	viper.SetDefault("openalex.max_retries", 5)

	viper.SetDefault("sync.from_date", types.DefaultFromDate)
	viper.SetDefault("sync.to_date", types.DefaultToDate)
	viper.SetDefault("sync.checkpoint_every", types.DefaultCheckpointEvery)

	viper.SetDefault("export.data_dir", export.DefaultDataDir)
	viper.SetDefault("export.formats", []string{string(types.FormatJSON)})
}

// bindFlag binds a flag to a config key. A flag left at its zero default
// does not shadow the config file.
func bindFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("binding flag %s: %v", flag.Name, err))
	}
}

// loadConfig resolves the effective configuration. The OpenAlex mailto
// falls back to .secrets/openalex-email when not configured.
func loadConfig() (types.Config, error) {
	var cfg types.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding configuration: %w", err)
	}
	cfg.OpenAlex.Mailto = loadedSecrets.Get(secrets.OpenAlexEmail, cfg.OpenAlex.Mailto)

	for _, f := range cfg.Export.Formats {
		if f != types.FormatJSON && f != types.FormatYAML {
			return types.Config{}, fmt.Errorf("unsupported export format %q: use json or yaml", f)
		}
	}
	return cfg, nil
}
