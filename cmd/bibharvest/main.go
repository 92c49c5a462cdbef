// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the bibharvest CLI: browser-driven
// harvesting of bibliographic records from academic portals, and
// unification of the harvested exports into a deduplicated corpus.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/bibharvest/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the bibharvest CLI.
var rootCmd = &cobra.Command{
	Use:   "bibharvest",
	Short: "Harvest and unify bibliographic records from academic portals",
	Long: `bibharvest drives a headless browser through the search interfaces of
academic portals (ACM Digital Library, SAGE Journals), exports the results
as per-source BibTeX files, and unifies every export into a single
deduplicated corpus.

Each pipeline stage is a subcommand: harvest collects records from the
portals into data/raw/, unify folds the exports into the corpus under
data/processed/.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./bibharvest.yaml or ~/.config/bibharvest/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("bibharvest")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "bibharvest"))
		}
	}

	viper.SetEnvPrefix("BIBHARVEST")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// pipelineConfig layers the config file and environment over the built-in
// defaults. Flags override per-command on top of this.
func pipelineConfig() types.PipelineConfig {
	cfg := types.DefaultConfig()

	if viper.IsSet("harvest.raw_dir") {
		cfg.Harvest.RawDir = viper.GetString("harvest.raw_dir")
	}
	if viper.IsSet("harvest.max_pages") {
		cfg.Harvest.MaxPages = viper.GetInt("harvest.max_pages")
	}
	if viper.IsSet("harvest.page_size") {
		cfg.Harvest.PageSize = viper.GetInt("harvest.page_size")
	}
	if viper.IsSet("harvest.page_delay") {
		cfg.Harvest.PageDelay = viper.GetDuration("harvest.page_delay")
	}
	if viper.IsSet("harvest.block_cooldown") {
		cfg.Harvest.BlockCooldown = viper.GetDuration("harvest.block_cooldown")
	}
	if viper.IsSet("harvest.browser.headless") {
		cfg.Harvest.Browser.Headless = viper.GetBool("harvest.browser.headless")
	}
	if viper.IsSet("harvest.browser.user_agent") {
		cfg.Harvest.Browser.UserAgent = viper.GetString("harvest.browser.user_agent")
	}
	if viper.IsSet("harvest.browser.timeout") {
		cfg.Harvest.Browser.Timeout = viper.GetDuration("harvest.browser.timeout")
	}
	if viper.IsSet("harvest.retry.max_transient_retries") {
		cfg.Harvest.Retry.MaxTransientRetries = viper.GetInt("harvest.retry.max_transient_retries")
	}
	if viper.IsSet("harvest.retry.max_block_retries") {
		cfg.Harvest.Retry.MaxBlockRetries = viper.GetInt("harvest.retry.max_block_retries")
	}
	if viper.IsSet("harvest.retry.block_backoff") {
		cfg.Harvest.Retry.BlockBackoff = viper.GetDuration("harvest.retry.block_backoff")
	}
	if viper.IsSet("unify.raw_dir") {
		cfg.Unify.RawDir = viper.GetString("unify.raw_dir")
	}
	if viper.IsSet("unify.processed_dir") {
		cfg.Unify.ProcessedDir = viper.GetString("unify.processed_dir")
	}
	if viper.IsSet("store.path") {
		cfg.Store.Path = viper.GetString("store.path")
	}

	return cfg
}

// durationFlag reads a duration flag only when the user set it.
func durationFlag(cmd *cobra.Command, name string, into *time.Duration) {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetDuration(name)
		*into = v
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
