package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kozaktomas/face-service/internal/config"
	"github.com/kozaktomas/face-service/internal/detector"
	"github.com/kozaktomas/face-service/internal/imaging"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect <photo>",
	Short: "Detect faces in a single photo",
	Long: `Detect faces in one photo and print them as JSON.
Useful for checking the detector sidecar and inspecting embeddings.`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	normalized, err := imaging.Normalize(data, cfg.Image.MaxSize)
	if err != nil {
		return fmt.Errorf("could not decode image %s: %w", args[0], err)
	}

	det := detector.NewClient(cfg.Detector.URL, cfg.Detector.Model)
	faces, err := det.DetectFaces(cmd.Context(), normalized)
	if err != nil {
		return fmt.Errorf("face detection failed: %w", err)
	}

	out, err := json.MarshalIndent(faces, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding faces: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
