package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/biblio-cli/internal/model"
)

var (
	processInput string
	processStyle string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the full reference pipeline for one manuscript",
	Long:  "Reads a ReferenceState envelope from a JSON file, runs extract/match/enrich/dedupe/format/assess, and prints the ReferenceResult.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(processInput)
		if err != nil {
			return eris.Wrapf(err, "read input %s", processInput)
		}

		var state model.ReferenceState
		if err := json.Unmarshal(data, &state); err != nil {
			return eris.Wrap(err, "decode input envelope")
		}
		if processStyle != "" {
			state.TargetStyle = model.CitationStyle(processStyle)
		}

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := e.Pipeline.Process(ctx, state)
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("processing complete",
			zap.String("study_id", state.StudyID),
			zap.Int("references", result.TotalReferences),
			zap.Float64("style_compliance", result.StyleCompliance),
			zap.Int("api_calls", result.Telemetry.APICalls),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	processCmd.Flags().StringVar(&processInput, "input", "", "path to ReferenceState JSON (required)")
	processCmd.Flags().StringVar(&processStyle, "style", "", "override target citation style")
	_ = processCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(processCmd)
}
