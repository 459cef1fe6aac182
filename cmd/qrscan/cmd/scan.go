package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/inchinet/qrscanner/internal/scan"
)

// fileFrameSource replays image files as a frame sequence, standing in for a
// camera on systems where capture happens out of process.
type fileFrameSource struct {
	paths []string
	next  int
}

func (f *fileFrameSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.next >= len(f.paths) {
		return nil, io.EOF
	}
	img, err := loadImage(f.paths[f.next])
	f.next++
	return img, err
}

func (f *fileFrameSource) Close() error { return nil }

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan <frames...>",
	Short: "Run the live-scan loop over a sequence of frame images",
	Long: `Feed a sequence of image files through the live-scan loop, stopping at the
first frame that contains a decodable QR code. Each frame gets a single fast
decode attempt, the same per-frame budget a camera feed would get.

Examples:
  qrscan scan frame-*.png
  qrscan scan capture/*.jpg --interval 100ms`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no frame files provided")
		}

		cfg, err := GetConfig()
		if err != nil {
			return err
		}

		scanCfg := scan.DefaultConfig()
		if cfg.Scan.MaxFrameDim > 0 {
			scanCfg.MaxFrameDim = cfg.Scan.MaxFrameDim
		}
		if cfg.Scan.FrameIntervalMS > 0 {
			scanCfg.FrameInterval = time.Duration(cfg.Scan.FrameIntervalMS) * time.Millisecond
		}
		if cmd.Flags().Changed("interval") {
			interval, _ := cmd.Flags().GetDuration("interval")
			scanCfg.FrameInterval = interval
		}

		scanner := scan.NewScanner(scanCfg, nil)

		var found *scan.Result
		session, err := scanner.Start(cmd.Context(), &fileFrameSource{paths: args}, func(r scan.Result) {
			found = &r
		})
		if err != nil {
			return err
		}
		<-session.Done()
		session.Stop()

		if found == nil {
			return fmt.Errorf("no QR code found in %d frame(s)", len(args))
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "frame %d (%s): %s\n",
			found.FrameIndex, args[found.FrameIndex-1], found.Text)
		return err
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().Duration("interval", 0, "pause between frames (e.g. 100ms)")
}
