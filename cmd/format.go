package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/biblio-cli/internal/model"
	"github.com/sells-group/biblio-cli/internal/styles"
)

var (
	formatInput string
	formatStyle string
	formatBib   bool
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Render references in a citation style",
	RunE: func(cmd *cobra.Command, args []string) error {
		refs, err := readReferences(formatInput)
		if err != nil {
			return err
		}

		style := model.CitationStyle(formatStyle)
		citations, err := styles.Format(refs, style)
		if err != nil {
			return err
		}

		if formatBib {
			fmt.Println(styles.BuildBibliography(citations, refs, style))
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(citations)
	},
}

func init() {
	formatCmd.Flags().StringVar(&formatInput, "input", "", "path to references JSON array (required)")
	formatCmd.Flags().StringVar(&formatStyle, "style", "apa", "citation style (apa, ama, vancouver, harvard, chicago, nature, cell, jama, mla, ieee)")
	formatCmd.Flags().BoolVar(&formatBib, "bibliography", false, "print the assembled bibliography instead of citation JSON")
	_ = formatCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(formatCmd)
}
