// Package cli implements scangate-upload, the command line uploader for the
// gateway's resumable upload protocol.
package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/moyoez/scangate/tool"
)

const envToken = "SCANGATE_TOKEN"

// NewRootCommand builds the scangate-upload command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "scangate-upload",
		Short: "Resumable chunked uploads to a scangate gateway",
		Long: `scangate-upload sends files to a scangate gateway in chunks. An interrupted
upload can be resumed: only the chunks the gateway is missing are sent again.
`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringP("server", "s", "http://localhost:8080", "Gateway base URL")
	root.PersistentFlags().StringP("token", "t", "", "Bearer token (default $"+envToken+")")
	root.PersistentFlags().Duration("timeout", 60*time.Second, "Per-request timeout")
	root.PersistentFlags().String("log", "prod", "Log mode: dev, prod or none")

	root.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		mode, _ := cmd.Flags().GetString("log")
		tool.SetLogMode(mode)
	}
	root.AddCommand(newPushCommand(), newStatusCommand())
	return root
}

// Execute runs the command tree. This is called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func clientFromFlags(cmd *cobra.Command) (*APIClient, error) {
	server, err := cmd.Flags().GetString("server")
	if err != nil {
		return nil, err
	}
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = os.Getenv(envToken)
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	return NewAPIClient(server, token, timeout), nil
}
