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
	dedupeInput string
	dedupeMerge bool
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Find (and optionally merge) duplicate references",
	RunE: func(cmd *cobra.Command, args []string) error {
		refs, err := readReferences(dedupeInput)
		if err != nil {
			return err
		}

		e, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		groups := e.Detector.FindDuplicates(refs)
		zap.L().Info("duplicate detection complete",
			zap.Int("references", len(refs)),
			zap.Int("groups", len(groups)),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if dedupeMerge {
			return enc.Encode(e.Detector.Merge(refs, groups))
		}
		return enc.Encode(groups)
	},
}

func readReferences(path string) ([]model.Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read references %s", path)
	}
	var refs []model.Reference
	if err := json.Unmarshal(data, &refs); err != nil {
		return nil, eris.Wrap(err, "decode references")
	}
	return refs, nil
}

func init() {
	dedupeCmd.Flags().StringVar(&dedupeInput, "input", "", "path to references JSON array (required)")
	dedupeCmd.Flags().BoolVar(&dedupeMerge, "merge", false, "output the merged reference list instead of groups")
	_ = dedupeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(dedupeCmd)
}
