package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var sessionEditor string

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and manage collaborative editing sessions",
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open a new editing session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		id := e.Coordinator.CreateSession(ctx, sessionEditor)
		return json.NewEncoder(os.Stdout).Encode(map[string]string{"session_id": id})
	},
}

var sessionHistoryCmd = &cobra.Command{
	Use:   "history SESSION_ID",
	Short: "Print a session's accepted edits in order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		// Sessions live in the shared cache; pull the snapshot before
		// reading, so the command works against a running server too.
		if err := e.Coordinator.RestoreSession(ctx, args[0]); err != nil {
			return err
		}
		history, err := e.Coordinator.History(args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	},
}

var sessionLeaveCmd = &cobra.Command{
	Use:   "leave SESSION_ID",
	Short: "Leave a session, releasing any held locks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Coordinator.RestoreSession(ctx, args[0]); err != nil {
			return err
		}
		return e.Coordinator.LeaveSession(ctx, args[0], sessionEditor)
	},
}

func init() {
	for _, c := range []*cobra.Command{sessionCreateCmd, sessionLeaveCmd} {
		c.Flags().StringVar(&sessionEditor, "editor", "", "editor identifier")
		_ = c.MarkFlagRequired("editor")
	}

	sessionCmd.AddCommand(sessionCreateCmd, sessionHistoryCmd, sessionLeaveCmd)
	rootCmd.AddCommand(sessionCmd)
}
