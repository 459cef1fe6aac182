package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/inchinet/qrscanner/internal/detect"
)

const (
	outputFormatText = "text"
	outputFormatJSON = "json"
	outputFormatYAML = "yaml"
)

// fileResult is the detection outcome for one input, as rendered to the user.
type fileResult struct {
	File            string  `json:"file" yaml:"file"`
	Page            int     `json:"page,omitempty" yaml:"page,omitempty"`
	Found           bool    `json:"found" yaml:"found"`
	Text            string  `json:"text,omitempty" yaml:"text,omitempty"`
	Strategy        string  `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	StrategyIndex   int     `json:"strategy_index,omitempty" yaml:"strategy_index,omitempty"`
	PrepassScale    float64 `json:"prepass_scale,omitempty" yaml:"prepass_scale,omitempty"`
	StrategiesTried int     `json:"strategies_tried" yaml:"strategies_tried"`
}

func newFileResult(file string, outcome detect.Outcome) fileResult {
	res := fileResult{
		File:            file,
		Found:           outcome.Found,
		StrategiesTried: outcome.StrategiesTried,
	}
	if outcome.Found {
		res.Text = outcome.Text
		res.Strategy = outcome.Strategy
		res.StrategyIndex = outcome.StrategyIndex
		res.PrepassScale = outcome.PrepassScale
	}
	return res
}

// validOutputFormat reports whether format is one of text, json, yaml.
func validOutputFormat(format string) bool {
	switch format {
	case outputFormatText, outputFormatJSON, outputFormatYAML:
		return true
	}
	return false
}

// renderResults formats detection results for output.
func renderResults(format string, results []fileResult) (string, error) {
	switch format {
	case outputFormatJSON:
		bts, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return "", fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return string(bts) + "\n", nil
	case outputFormatYAML:
		bts, err := yaml.Marshal(results)
		if err != nil {
			return "", fmt.Errorf("failed to marshal YAML: %w", err)
		}
		return string(bts), nil
	default:
		var b strings.Builder
		for _, res := range results {
			label := res.File
			if res.Page > 0 {
				label = fmt.Sprintf("%s page %d", res.File, res.Page)
			}
			if res.Found {
				fmt.Fprintf(&b, "%s: %s (via %s)\n", label, res.Text, res.Strategy)
			} else {
				fmt.Fprintf(&b, "%s: no QR code found (%d strategies tried)\n", label, res.StrategiesTried)
			}
		}
		return b.String(), nil
	}
}
