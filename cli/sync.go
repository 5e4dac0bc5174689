package cli

import (
	"github.com/spf13/cobra"

	"coursesync/internal/syncer"
)

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Re-run a sync by hand (there is no automatic retry)",
	}

	var opts syncer.Options
	enrollment := &cobra.Command{
		Use:   "enrollment <enrollment-id>",
		Short: "Sync one enrollment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			defer app.Close()
			rep, err := app.Orchestrator.SyncEnrollment(cmd.Context(), args[0], opts)
			_ = printJSON(cmd.OutOrStdout(), rep)
			return err
		},
	}
	enrollment.Flags().StringVar(&opts.PipelineID, "pipeline", "", "pipeline id (default: \"Course Enrollments\")")
	enrollment.Flags().StringVar(&opts.StageID, "stage", "", "stage id (default: first stage of the pipeline)")
	enrollment.Flags().StringVar(&opts.AutomationID, "automation", "", "automation id (default: crm.default_automation_id)")

	purchase := &cobra.Command{
		Use:   "purchase <purchase-id>",
		Short: "Sync one completed purchase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			defer app.Close()
			rep, err := app.Orchestrator.SyncPurchase(cmd.Context(), args[0])
			_ = printJSON(cmd.OutOrStdout(), rep)
			return err
		},
	}

	var userID, courseID string
	revoke := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke course access for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			defer app.Close()
			rep, err := app.Orchestrator.RevokeEnrollment(cmd.Context(), userID, courseID)
			_ = printJSON(cmd.OutOrStdout(), rep)
			return err
		},
	}
	revoke.Flags().StringVar(&userID, "user", "", "user id")
	revoke.Flags().StringVar(&courseID, "course", "", "course id")
	_ = revoke.MarkFlagRequired("user")
	_ = revoke.MarkFlagRequired("course")

	cmd.AddCommand(enrollment, purchase, revoke)
	return cmd
}
