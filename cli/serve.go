package cli

import "github.com/spf13/cobra"

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			return app.Run()
		},
	}
}
