package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var endCmd = &cobra.Command{
	Use:   "end <session_id>",
	Short: "End a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		if err := newClient().End(ctx, args[0]); err != nil {
			return fmt.Errorf("end session failed: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Session ended")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(endCmd)
}
