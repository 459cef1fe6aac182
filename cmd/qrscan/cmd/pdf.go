package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/inchinet/qrscanner/internal/pdf"
)

// pdfCmd represents the pdf command.
var pdfCmd = &cobra.Command{
	Use:   "pdf <file>",
	Short: "Detect QR codes in images embedded in a PDF",
	Long: `Extract embedded raster images from a PDF document and run multi-strategy
QR detection over each one.

Examples:
  qrscan pdf flyer.pdf
  qrscan pdf catalog.pdf --pages 1-4 --format json`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no PDF file provided")
		}
		if len(args) > 1 {
			return errors.New("expected exactly one PDF file")
		}
		filename := args[0]

		cfg, err := GetConfig()
		if err != nil {
			return err
		}

		format := cfg.Output.Format
		if cmd.Flags().Changed("format") {
			format, _ = cmd.Flags().GetString("format")
		}
		outputFile := cfg.Output.File
		if cmd.Flags().Changed("output") {
			outputFile, _ = cmd.Flags().GetString("output")
		}
		if !validOutputFormat(format) {
			return fmt.Errorf("invalid output format: %s (must be one of: text, json, yaml)", format)
		}

		pageRange, _ := cmd.Flags().GetString("pages")

		pages, err := pdf.ExtractImages(filename, pageRange)
		if err != nil {
			return fmt.Errorf("failed to extract images from %s: %w", filename, err)
		}
		if len(pages) == 0 {
			return fmt.Errorf("no embedded images found in %s", filename)
		}

		det, err := buildDetector(cmd)
		if err != nil {
			return err
		}

		results := make([]fileResult, 0, len(pages))
		for _, page := range pages {
			outcome, err := det.Run(cmd.Context(), page.Image)
			if err != nil {
				return fmt.Errorf("detection failed for %s page %d: %w", filename, page.Page, err)
			}
			res := newFileResult(filename, outcome)
			res.Page = page.Page
			results = append(results, res)
		}

		return writeResults(cmd, format, outputFile, results)
	},
}

func init() {
	rootCmd.AddCommand(pdfCmd)

	pdfCmd.Flags().StringP("format", "f", "text", "output format (text, json, yaml)")
	pdfCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	pdfCmd.Flags().StringP("pages", "p", "", "page range to process (e.g. 1-4 or 1,3,5)")
	pdfCmd.Flags().Bool("no-prepass", false, "skip the robust multi-scale pre-pass")
	pdfCmd.Flags().String("prepass-scales", "", "comma-separated pre-pass scale factors (e.g. 1.0,0.5,2.0)")
}

// GetPdfCommand returns the pdf command for testing purposes.
func GetPdfCommand() *cobra.Command {
	return pdfCmd
}
