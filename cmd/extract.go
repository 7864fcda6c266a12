package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/biblio-cli/internal/extract"
)

var extractInput string

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Scan manuscript text for citation markers and un-cited claims",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(extractInput)
		if err != nil {
			return eris.Wrapf(err, "read manuscript %s", extractInput)
		}

		needs := extract.NewExtractor().ExtractCitations(string(data))
		zap.L().Info("extraction complete", zap.Int("needs", len(needs)))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(needs)
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractInput, "input", "", "path to manuscript text file (required)")
	_ = extractCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(extractCmd)
}
