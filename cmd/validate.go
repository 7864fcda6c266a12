package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var validateFetch bool

var validateCmd = &cobra.Command{
	Use:   "validate DOI [DOI...]",
	Short: "Validate DOIs against the registry",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		var out any
		if len(args) == 1 && !validateFetch {
			out, err = e.Validator.Validate(ctx, args[0], false)
		} else if len(args) == 1 {
			out, err = e.Validator.Validate(ctx, args[0], true)
		} else {
			out, err = e.Validator.ValidateBatch(ctx, args)
		}
		if err != nil {
			return err
		}

		stats := e.Store.Stats()
		zap.L().Info("validation complete",
			zap.Int("dois", len(args)),
			zap.Int64("cache_hits", stats.Hits),
			zap.Int64("cache_misses", stats.Misses),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateFetch, "fetch", false, "resolve metadata, not just format")
	rootCmd.AddCommand(validateCmd)
}
