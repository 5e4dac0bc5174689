package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"coursesync/internal/tenancy"
)

func tenantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "Manage white-label subaccounts",
	}

	var in tenancy.ProvisionInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Provision a subaccount location and its tenant record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			defer app.Close()
			t, err := app.Provisioner.Provision(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), t)
		},
	}
	create.Flags().StringVar(&in.OwnerUserID, "owner", "", "owner user id")
	create.Flags().StringVar(&in.Name, "name", "", "subaccount name")
	create.Flags().StringVar(&in.Email, "email", "", "subaccount contact email")
	_ = create.MarkFlagRequired("owner")
	_ = create.MarkFlagRequired("name")

	del := &cobra.Command{
		Use:   "delete <tenant-id>",
		Short: "Delete the subaccount location and the tenant record",
		Long: `Deletes the CRM location and the tenant record. Users assigned to the tenant
keep their tenant link and cached contact ids; their next sync falls back to the
default location and re-finds the contact by email.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			defer app.Close()
			if err := app.Provisioner.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "tenant %s deleted\n", args[0])
			return err
		},
	}

	assign := &cobra.Command{
		Use:   "assign <tenant-id> <user-id>",
		Short: "Assign a user to a tenant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := bootstrap()
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Provisioner.AssignUser(cmd.Context(), args[0], args[1])
		},
	}

	cmd.AddCommand(create, del, assign)
	return cmd
}
