package commands

import (
	"fmt"

	"github.com/DrSkyle/tagguard/pkg/engine/permissions"
	"github.com/spf13/cobra"
)

var permissionsCmd = &cobra.Command{
	Use:   "permissions",
	Short: "Generate the least-privilege IAM policy",
	Long: `Prints the IAM policy TagGuard needs for the configured resource kinds.

Use --read-only for a policy that only supports --dry-run audits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, _, err := loadSettings()
		if err != nil {
			return err
		}
		if raw, _ := cmd.Flags().GetStringSlice("kinds"); len(raw) > 0 {
			settings.Kinds = raw
		}
		kinds, err := settings.ResolveKinds()
		if err != nil {
			return err
		}
		readOnly, _ := cmd.Flags().GetBool("read-only")

		data, err := permissions.GeneratePolicy(kinds, readOnly)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	permissionsCmd.Flags().StringSlice("kinds", nil, "Resource kinds (ec2, rds, rds-cluster, s3, efs)")
	permissionsCmd.Flags().Bool("read-only", false, "Omit tag write permissions")
}
