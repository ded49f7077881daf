package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status [session_id]",
		Short: "Show the progress of an upload session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := clientFromFlags(cmd)
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session:  %s\n", status.SessionId)
			fmt.Fprintf(out, "File:     %s\n", status.FileName)
			fmt.Fprintf(out, "State:    %s\n", status.State)
			fmt.Fprintf(out, "Received: %d/%d\n", status.ReceivedCount, status.TotalChunks)
			if len(status.MissingIndices) > 0 {
				fmt.Fprintf(out, "Missing:  %v\n", status.MissingIndices)
			}
			if !status.ExpiresAt.IsZero() {
				fmt.Fprintf(out, "Expires:  %s\n", status.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}
