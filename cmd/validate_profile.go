package cmd

import (
	"fmt"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/visionfill/internal/profile"
)

func newValidateProfileCmd() *cobra.Command {
	validateCmd := &cobra.Command{
		Use:   "validate-profile",
		Short: "Check the applicant profile and print what the model will see",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("profile") {
				v, _ := cmd.Flags().GetString("profile")
				cfg.SetFilesProfile(v)
			}

			p, err := profile.Load(cfg.Files().Profile)
			if err != nil {
				return err
			}
			if err := p.Validate(); err != nil {
				return err
			}

			condensed, err := json.ConfigCompatibleWithStandardLibrary.MarshalIndent(p.Condense(), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to render profile: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Profile OK: %s <%s>\n%s\n", p.FullName(), p.PersonalInfo.Email, condensed)
			return nil
		},
	}
	validateCmd.Flags().String("profile", "", "Path to the applicant profile JSON. (Overrides config/env)")
	return validateCmd
}
