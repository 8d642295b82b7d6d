package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/astrolabium/internal/errors"
	"github.com/ppiankov/astrolabium/internal/model"
	"github.com/ppiankov/astrolabium/internal/pipeline"
	"github.com/ppiankov/astrolabium/internal/store"
	"github.com/ppiankov/astrolabium/internal/util"
	"github.com/ppiankov/astrolabium/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	selectFile   string
	selectFormat string
)

// selectCmd represents the select command
var selectCmd = &cobra.Command{
	Use:   "select [name...]",
	Short: "Look up star systems in the stored galaxy",
	Long: `Select finds systems by canonical name, WDS designation, star name or
placeholder ("14396-6050 C") in the galaxy stored by 'astrolabium create'.

Names can also be read from a file, one per line. With --output-dir each
system is written to its own file; otherwise systems are printed.

Example:
  astrolabium select Sirius "Alpha Centauri"
  astrolabium select --file names.txt --output-dir ./systems --format yaml`,
	RunE: runSelect,
}

func init() {
	rootCmd.AddCommand(selectCmd)

	selectCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent lookups")
	selectCmd.Flags().StringVar(&outputDir, "output-dir", "", "write one file per system to this directory")
	selectCmd.Flags().StringVar(&selectFile, "file", "", "read names from this file, one per line")
	selectCmd.Flags().StringVar(&selectFormat, "format", pipeline.FormatJSON, "output format (json, yaml)")
	selectCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database holding the galaxy (default: store.path)")
}

func runSelect(cmd *cobra.Command, args []string) error {
	queries := append([]string(nil), args...)
	if selectFile != "" {
		fromFile, err := readNames(selectFile)
		if err != nil {
			return err
		}
		queries = append(queries, fromFile...)
	}
	if len(queries) == 0 {
		return fmt.Errorf("%w: no names given", errors.ErrInvalidInput)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.Store.Path = dbPath
	}
	path, err := util.ExpandHome(cfg.Store.Path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no galaxy at %s, run 'astrolabium create' first: %w", path, err)
	}

	db, err := store.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := commandContext(0)
	defer cancel()

	processor := worker.NewBatchProcessor(func(ctx context.Context, name string) (*model.StarSystem, error) {
		return db.Get(ctx, name)
	}, concurrency)
	results := processor.Process(ctx, queries)

	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	failures := 0
	for _, r := range results {
		name := queries[r.Index]
		if r.Error != nil {
			failures++
			fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", name, r.Error)
			continue
		}

		if outputDir == "" {
			if err := pipeline.Render(cmd.OutOrStdout(), r.Value, selectFormat); err != nil {
				return err
			}
			continue
		}

		file := filepath.Join(outputDir, sanitizeFilename(r.Value.Name)+"."+selectFormat)
		if err := writeSystem(file, r.Value); err != nil {
			failures++
			fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %v\n", name, err)
			continue
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ %s → %s\n", name, file)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d names not resolved", failures, len(queries))
	}
	return nil
}

func writeSystem(file string, sys *model.StarSystem) error {
	f, err := os.Create(file)
	if err != nil {
		return errors.WrapIO("create", file, err)
	}
	if err := pipeline.Render(f, sys, selectFormat); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// readNames reads one name per line, skipping blanks and # comments
func readNames(file string) ([]string, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, errors.WrapIO("open", file, err)
	}
	defer func() { _ = f.Close() }()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, scanner.Err()
}

// sanitizeFilename turns a system name into a file name
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(strings.TrimSpace(s))

	// Limit length
	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		s = "system"
	}
	return s
}
