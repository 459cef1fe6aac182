package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inchinet/qrscanner/internal/detect"
)

// strategiesCmd lists the detection strategies in execution order.
var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the detection strategies in execution order",
	Long: `Print the robust pre-pass scales and the ordered filter-chain strategy
table the detector runs through until a QR code decodes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		scales := detect.DefaultPrepassScales()
		scaleStrs := make([]string, len(scales))
		for i, s := range scales {
			scaleStrs[i] = fmt.Sprintf("%g", s)
		}
		if _, err := fmt.Fprintf(out, "Robust pre-pass scales: %s\n\n", strings.Join(scaleStrs, ", ")); err != nil {
			return err
		}

		w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "INDEX\tNAME\tSCALE\tFILTERS\tENGINE")
		for i, strat := range detect.DefaultStrategies() {
			fmt.Fprintf(w, "%d\t%s\t%g\t%s\t%s\n", i+1, strat.Name, strat.Scale, strat.Filters, strat.Engine)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}
