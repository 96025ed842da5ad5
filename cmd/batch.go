package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kozaktomas/face-service/internal/batch"
	"github.com/kozaktomas/face-service/internal/config"
	"github.com/kozaktomas/face-service/internal/detector"
	"github.com/kozaktomas/face-service/internal/queue"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var batchCmd = &cobra.Command{
	Use:   "batch [photo...]",
	Short: "Detect faces in a set of photos",
	Long: `Detect faces in many photos at once using the dynamic batch scheduler.
Photos are given as arguments or collected from a directory. Results
are written as JSON, keyed by photo path.

Examples:
  # Process specific photos
  face-service batch photo1.jpg photo2.jpg

  # Process a whole directory
  face-service batch --dir ./photos

  # Write results to a file
  face-service batch --dir ./photos --out faces.json`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().String("dir", "", "Directory to collect photos from")
	batchCmd.Flags().String("out", "", "Write JSON results to this file instead of stdout")
	batchCmd.Flags().Int("workers", 0, "Number of batch workers (0 = use FACE_BATCH_WORKERS)")
}

// imageExtensions are the file types picked up by --dir.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

func collectPhotos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	dir := mustGetString(cmd, "dir")
	out := mustGetString(cmd, "out")
	workers := mustGetInt(cmd, "workers")

	cfg := config.Load()
	log := slog.Default()

	paths := args
	if dir != "" {
		collected, err := collectPhotos(dir)
		if err != nil {
			return err
		}
		paths = append(paths, collected...)
	}
	if len(paths) == 0 {
		return errors.New("no photos to process; pass paths or --dir")
	}
	if workers <= 0 {
		workers = cfg.Batch.MaxWorkers
	}

	det := detector.NewClient(cfg.Detector.URL, cfg.Detector.Model)
	resolver := queue.NewResolver(cfg.Lookup.BaseURL, cfg.Image.MaxSize)

	accelerated := false
	if info, err := det.ModelInfo(cmd.Context()); err != nil {
		log.Warn("detector info unavailable, using sequential processing", "error", err)
	} else {
		accelerated = info.UsingGPU && !cfg.Detector.ForceCPU
	}

	scheduler := batch.New(det, resolver, workers, accelerated, log)

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Detecting faces"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)
	scheduler.OnProgress = func(completed, total int) {
		_ = bar.Set(completed)
	}

	results := scheduler.ProcessBatch(cmd.Context(), paths)
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}

	if out != "" {
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
		log.Info("results written", "file", out, "photos", len(results))
		return nil
	}

	fmt.Println(string(data))
	return nil
}
