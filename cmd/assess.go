package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/biblio-cli/internal/model"
)

var (
	assessInput   string
	assessField   string
	assessContext string
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Score references on the five quality dimensions",
	RunE: func(cmd *cobra.Command, args []string) error {
		refs, err := readReferences(assessInput)
		if err != nil {
			return err
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		out := struct {
			Scores   []model.QualityScore   `json:"scores"`
			Warnings []model.QualityWarning `json:"warnings,omitempty"`
		}{}
		for _, ref := range refs {
			out.Scores = append(out.Scores, e.Assessor.Assess(ref, assessContext, assessField))
		}
		out.Warnings = e.Assessor.FlagProblematic(cmd.Context(), refs)

		zap.L().Info("assessment complete",
			zap.Int("references", len(refs)),
			zap.Int("warnings", len(out.Warnings)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	assessCmd.Flags().StringVar(&assessInput, "input", "", "path to references JSON array (required)")
	assessCmd.Flags().StringVar(&assessField, "field", "", "research field for citation percentiles")
	assessCmd.Flags().StringVar(&assessContext, "context", "", "manuscript context for relevance scoring")
	_ = assessCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(assessCmd)
}
