package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/astrolabium/internal/logging"
	"github.com/ppiankov/astrolabium/internal/pipeline"
)

var (
	timeout     time.Duration
	parseErrors bool
	parseLimit  int
)

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download the Hipparcos, WDS and ORB6 catalogues",
	Long: `Download fetches the three catalogues into the data directory. Gzipped
files are stored decompressed. Later commands read the local copies.

Example:
  astrolabium download
  astrolabium download --data-dir ./catalogues --timeout 30m`,
	Args: cobra.NoArgs,
	RunE: runDownload,
}

// parseCmd represents the parse command
var parseCmd = &cobra.Command{
	Use:   "parse <catalogue> [file]",
	Short: "Parse one catalogue and print its entries as JSON lines",
	Long: `Parse decodes a catalogue (hipparcos, wds or orb6) from the given file,
or from the data directory, and prints one JSON object per entry. Lines that
fail to parse are reported on stderr unless --strict is set, in which case
the first one aborts.

Example:
  astrolabium parse orb6
  astrolabium parse wds ./wdsweb_summ2.txt --limit 10`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(parseCmd)

	downloadCmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "overall download timeout")

	parseCmd.Flags().Bool("strict", false, "abort on the first bad line")
	parseCmd.Flags().BoolVar(&parseErrors, "errors", false, "print skipped lines instead of entries")
	parseCmd.Flags().IntVar(&parseLimit, "limit", 0, "print at most this many entries (0 for all)")
}

// commandContext cancels on interrupt and after d, when d is positive
func commandContext(d time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	ctx = logging.WithLogger(ctx, logging.Default())
	if d <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, func() {
		cancel()
		stop()
	}
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(timeout)
	defer cancel()

	p, m, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	defer writeMetrics(cfg, m)

	paths, err := p.Download(ctx)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %-10s %s\n", name, paths[name])
	}
	return nil
}

func runParse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if strict, _ := cmd.Flags().GetBool("strict"); strict {
		cfg.Parse.Strict = true
	}
	ctx, cancel := commandContext(0)
	defer cancel()

	p, m, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	defer writeMetrics(cfg, m)

	catalogue := args[0]
	var lines []string
	if len(args) == 2 {
		lines, err = pipeline.ReadLines(args[1])
	} else {
		lines, err = p.Lines(ctx, catalogue)
	}
	if err != nil {
		return err
	}

	result, err := p.Parse(ctx, catalogue, lines)
	if err != nil {
		return err
	}

	out := bufio.NewWriter(cmd.OutOrStdout())
	defer func() { _ = out.Flush() }()

	if parseErrors {
		for _, perr := range result.Skipped {
			fmt.Fprintln(out, perr.Error())
		}
		return nil
	}

	enc := json.NewEncoder(out)
	for i, e := range result.Entries {
		if parseLimit > 0 && i >= parseLimit {
			break
		}
		if err := enc.Encode(e.ToMap()); err != nil {
			return fmt.Errorf("encode entry %s: %w", e.Key(), err)
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d entries, %d skipped, %d header lines\n",
		result.Catalogue, len(result.Entries), len(result.Skipped), result.Headers)
	return nil
}
