package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/astrolabium/internal/cache"
	"github.com/ppiankov/astrolabium/internal/logging"
	"github.com/ppiankov/astrolabium/internal/metrics"
	"github.com/ppiankov/astrolabium/internal/model"
	"github.com/ppiankov/astrolabium/internal/pipeline"
)

// Version is set at build time
var Version = "v0.1.0"

var (
	cfgFile string
	verbose bool
	noCache bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "astrolabium",
	Short: "Astrolabium - multiple star systems from the Hipparcos, WDS and ORB6 catalogues",
	Long: `Astrolabium parses the Hipparcos 2007 reduction, the Washington Double
Star catalogue and the Sixth Catalog of Orbits of Visual Binary Stars,
cross-references them, and assembles named multiple-star systems.

Names come from the IAU WGSN list, Wikidata and local name files; stars
without one keep a "<WDS> <component>" placeholder.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configureLogging()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "astrolabium %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.astrolabium/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "disable the download, entry and system caches")
	rootCmd.PersistentFlags().String("data-dir", "", "directory holding the downloaded catalogues")
	rootCmd.PersistentFlags().String("log-format", "", "log format (json, console, auto)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("catalogues.data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	setDefaults(viper.GetViper(), model.DefaultConfig())

	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		// Search for config in home directory
		viper.AddConfigPath(filepath.Join(home, ".astrolabium"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match ASTROLABIUM_*, with
	// nested keys joined by underscores (ASTROLABIUM_HTTP_TIMEOUT)
	viper.SetEnvPrefix("ASTROLABIUM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key so environment variables can
// override keys that no config file mentions
func setDefaults(v *viper.Viper, cfg model.Config) {
	v.SetDefault("catalogues.data_dir", cfg.Catalogues.DataDir)
	v.SetDefault("catalogues.hipparcos_url", cfg.Catalogues.HipparcosURL)
	v.SetDefault("catalogues.wds_url", cfg.Catalogues.WDSURL)
	v.SetDefault("catalogues.orb6_url", cfg.Catalogues.Orb6URL)

	v.SetDefault("parse.workers", cfg.Parse.Workers)
	v.SetDefault("parse.chunk_size", cfg.Parse.ChunkSize)
	v.SetDefault("parse.strict", cfg.Parse.Strict)

	v.SetDefault("http.timeout", cfg.HTTP.Timeout)
	v.SetDefault("http.user_agent", cfg.HTTP.UserAgent)
	v.SetDefault("http.respect_robots", cfg.HTTP.RespectRobots)
	v.SetDefault("http.retries", cfg.HTTP.Retries)
	v.SetDefault("http.rate_per_second", cfg.HTTP.RatePerSecond)
	v.SetDefault("http.retry_base", cfg.HTTP.RetryBase)
	v.SetDefault("http.max_body_bytes", cfg.HTTP.MaxBodyBytes)
	v.SetDefault("http.http_proxy", cfg.HTTP.HTTPProxy)
	v.SetDefault("http.https_proxy", cfg.HTTP.HTTPSProxy)
	v.SetDefault("http.no_proxy", cfg.HTTP.NoProxy)

	v.SetDefault("names.file", cfg.Names.File)
	v.SetDefault("names.sources", cfg.Names.Sources)
	v.SetDefault("names.iau_url", cfg.Names.IAUURL)
	v.SetDefault("names.sparql_url", cfg.Names.SPARQLURL)
	v.SetDefault("names.wikidata_api", cfg.Names.WikidataAPI)
	v.SetDefault("names.batch_size", cfg.Names.BatchSize)
	v.SetDefault("names.catalogue_qids", cfg.Names.CatalogueQIDs)

	v.SetDefault("cache.enabled", cfg.Cache.Enabled)
	v.SetDefault("cache.dir", cfg.Cache.Dir)
	v.SetDefault("cache.ttl", cfg.Cache.TTL)

	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("metrics.textfile", cfg.Metrics.Textfile)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}

// loadConfig merges defaults, config file, environment and flags
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	return &cfg, nil
}

func configureLogging() {
	level := viper.GetString("log.level")
	if verbose {
		level = "debug"
	}
	logging.Configure(logging.Config{Level: level, Format: viper.GetString("log.format")})
}

// newPipeline builds the pipeline for a command, with its cache and metrics
func newPipeline(cfg *model.Config) (*pipeline.Pipeline, *metrics.Metrics, error) {
	c, err := cache.New(cfg.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}
	m := metrics.New()
	return pipeline.NewPipeline(cfg, c, m), m, nil
}

// writeMetrics writes the textfile when one is configured
func writeMetrics(cfg *model.Config, m *metrics.Metrics) {
	if cfg.Metrics.Textfile == "" {
		return
	}
	if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logging.Default().Warn().Err(err).Str("path", cfg.Metrics.Textfile).Msg("writing metrics failed")
	}
}
