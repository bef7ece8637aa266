// Command fingerprint is a one-shot CLI for extracting fingerprints from
// a single file or a directory tree, without standing up the daemon,
// its worker pool, or its database connections.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matiaszanolli/auralis/internal/analyzer"
	"github.com/matiaszanolli/auralis/internal/audio"
	"github.com/matiaszanolli/auralis/internal/models"
)

var supportedExtensions = map[string]bool{
	".mp3": true, ".flac": true, ".wav": true, ".m4a": true,
	".ogg": true, ".aac": true, ".opus": true, ".wma": true,
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var recursive bool

	root := &cobra.Command{
		Use:   "fingerprint [path]",
		Short: "Extract acoustic fingerprints from audio files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], recursive)
		},
	}

	root.Flags().BoolVarP(&recursive, "recursive", "r", false, "recurse into subdirectories when path is a directory")
	return root
}

func run(ctx context.Context, path string, recursive bool) error {
	if err := audio.CheckFFmpegAvailable(); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	a := analyzer.New()

	if !info.IsDir() {
		return analyzeOne(ctx, a, path)
	}

	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != path && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !supportedExtensions[strings.ToLower(filepath.Ext(p))] {
			return nil
		}
		if err := analyzeOne(ctx, a, p); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", p, err)
		}
		return nil
	})
}

// result is the CLI's one-line-per-file JSON output shape.
type result struct {
	Path        string             `json:"path"`
	Fingerprint models.Fingerprint `json:"fingerprint"`
}

func analyzeOne(ctx context.Context, a *analyzer.Analyzer, path string) error {
	fp, err := a.Analyze(ctx, path)
	if err != nil {
		return err
	}

	out := result{Path: path, Fingerprint: fp}
	enc := json.NewEncoder(os.Stdout)
	return enc.Encode(out)
}
