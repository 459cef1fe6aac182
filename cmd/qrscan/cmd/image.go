package cmd

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	_ "golang.org/x/image/bmp"

	"github.com/inchinet/qrscanner/internal/detect"
)

// imageCmd represents the image command.
var imageCmd = &cobra.Command{
	Use:   "image <files...>",
	Short: "Detect QR codes in image files",
	Long: `Run multi-strategy QR detection over one or more image files.

Supported formats: JPEG, PNG, BMP

Examples:
  qrscan image photo.jpg
  qrscan image *.png --format json
  qrscan image receipt.jpg --output results.yaml --format yaml`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no input files provided")
		}

		cfg, err := GetConfig()
		if err != nil {
			return err
		}

		format := cfg.Output.Format
		outputFile := cfg.Output.File
		if !validOutputFormat(format) {
			return fmt.Errorf("invalid output format: %s (must be one of: text, json, yaml)", format)
		}

		det, err := buildDetector(cmd)
		if err != nil {
			return err
		}

		results := make([]fileResult, 0, len(args))
		for _, path := range args {
			img, err := loadImage(path)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", path, err)
			}
			outcome, err := det.Run(cmd.Context(), img)
			if err != nil {
				return fmt.Errorf("detection failed for %s: %w", path, err)
			}
			results = append(results, newFileResult(path, outcome))
		}

		return writeResults(cmd, format, outputFile, results)
	},
}

// buildDetector assembles a detector from the resolved configuration plus
// per-command flag overrides.
func buildDetector(cmd *cobra.Command) (*detect.Detector, error) {
	cfg, err := GetConfig()
	if err != nil {
		return nil, err
	}

	detectCfg := detect.DefaultConfig()
	detectCfg.Progress = detect.LogProgress{Level: slog.LevelDebug}
	if len(cfg.Detect.PrepassScales) > 0 {
		detectCfg.PrepassScales = cfg.Detect.PrepassScales
	}
	detectCfg.DisablePrepass = cfg.Detect.DisablePrepass
	if cmd.Flags().Changed("no-prepass") {
		detectCfg.DisablePrepass, _ = cmd.Flags().GetBool("no-prepass")
	}
	if cmd.Flags().Changed("prepass-scales") {
		raw, _ := cmd.Flags().GetString("prepass-scales")
		scales, err := parseScales(raw)
		if err != nil {
			return nil, err
		}
		detectCfg.PrepassScales = scales
	}

	det, err := detect.New(detectCfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build detector: %w", err)
	}
	return det, nil
}

// parseScales parses a comma-separated list of positive scale factors.
func parseScales(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	scales := make([]float64, 0, len(parts))
	for _, part := range parts {
		scale, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid pre-pass scale %q", part)
		}
		scales = append(scales, scale)
	}
	return scales, nil
}

// loadImage reads and decodes one image file.
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is a user-supplied CLI argument
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// writeResults renders results and writes them to the output file or stdout.
func writeResults(cmd *cobra.Command, format, outputFile string, results []fileResult) error {
	rendered, err := renderResults(format, results)
	if err != nil {
		return err
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(rendered), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", outputFile); err != nil {
			return err
		}
		return nil
	}

	if _, err := fmt.Fprint(cmd.OutOrStdout(), rendered); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func addDetectFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "output format (text, json, yaml)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().Bool("no-prepass", false, "skip the robust multi-scale pre-pass")
	cmd.Flags().String("prepass-scales", "", "comma-separated pre-pass scale factors (e.g. 1.0,0.5,2.0)")
}

// bindDetectFlags binds detection flags to viper configuration keys.
func bindDetectFlags(cmd *cobra.Command) {
	flagBindings := []struct {
		key  string
		flag string
	}{
		{"output.format", "format"},
		{"output.file", "output"},
		{"detect.disable_prepass", "no-prepass"},
	}

	for _, binding := range flagBindings {
		if err := viper.BindPFlag(binding.key, cmd.Flags().Lookup(binding.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", binding.flag, err))
		}
	}
}

func init() {
	rootCmd.AddCommand(imageCmd)

	addDetectFlags(imageCmd)
	bindDetectFlags(imageCmd)
}

// GetImageCommand returns the image command for testing purposes.
func GetImageCommand() *cobra.Command {
	return imageCmd
}
