package commands

import (
	"errors"
	"fmt"

	"github.com/DrSkyle/tagguard/pkg/engine/policy"
	"github.com/spf13/cobra"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect and validate tag policies",
}

var policyValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a policy file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := policy.Load(args[0])
		if err != nil {
			var verr *policy.ValidationError
			if errors.As(err, &verr) {
				for _, problem := range verr.Problems {
					fmt.Fprintln(cmd.ErrOrStderr(), failStyle.Render("  ✗ "+problem))
				}
			}
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("✓ %s: %d rules, classification key %q", args[0], len(p.Rules), p.ClassificationKey)))
		return nil
	},
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, _, err := loadSettings()
		if err != nil {
			return err
		}
		p, err := settings.ResolvePolicy()
		if err != nil {
			return err
		}
		out, err := policy.Marshal(p)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	policyCmd.AddCommand(policyValidateCmd)
	policyCmd.AddCommand(policyShowCmd)
}
