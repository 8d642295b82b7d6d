package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/astrolabium/internal/pipeline"
	"github.com/ppiankov/astrolabium/internal/store"
	"github.com/ppiankov/astrolabium/internal/util"
)

var (
	rebuild       bool
	namesFile     string
	outFile       string
	dbPath        string
	metricsFile   string
	createTimeout time.Duration
)

// createCmd represents the create command
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Build the galaxy of multiple star systems",
	Long: `Create parses and cross-references the three catalogues, names the stars
from the configured name sources, and stores the result.

Resolved systems are cached keyed by catalogue content; --rebuild ignores
the cache. Missing catalogues are downloaded first.

Example:
  astrolabium create
  astrolabium create --names ./names.json --out galaxy.yaml
  astrolabium create --rebuild --metrics /var/lib/node_exporter/astrolabium.prom`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().BoolVar(&rebuild, "rebuild", false, "resolve systems again instead of using the cache")
	createCmd.Flags().StringVar(&namesFile, "names", "", "additional JSON name list")
	createCmd.Flags().StringVar(&outFile, "out", "", "write the galaxy to this file (.json or .yaml)")
	createCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database to store the galaxy in (default: store.path)")
	createCmd.Flags().StringVar(&metricsFile, "metrics", "", "write Prometheus metrics to this textfile")
	createCmd.Flags().DurationVar(&createTimeout, "timeout", time.Hour, "overall timeout, downloads included")
}

func runCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if metricsFile != "" {
		cfg.Metrics.Textfile = metricsFile
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}

	ctx, cancel := commandContext(createTimeout)
	defer cancel()

	p, m, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	defer writeMetrics(cfg, m)

	build, err := p.Create(ctx, pipeline.CreateOptions{Rebuild: rebuild, NamesFile: namesFile})
	if err != nil {
		return err
	}

	if cfg.Store.Path != "" {
		path, err := util.ExpandHome(cfg.Store.Path)
		if err != nil {
			return err
		}
		db, err := store.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		if err := db.Save(ctx, build.Galaxy, build.Warnings); err != nil {
			return fmt.Errorf("save galaxy: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Stored galaxy: %s\n", path)
	}

	if outFile != "" {
		if err := pipeline.RenderBuild(cmd.OutOrStdout(), build, outFile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Wrote %s\n", outFile)
	}

	pipeline.RenderSummary(cmd.OutOrStdout(), build.Galaxy, build.Warnings)
	return nil
}
