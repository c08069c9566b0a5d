// File: cmd/profiles.go
package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/loopguard/internal/observability"
	"github.com/xkilldash9x/loopguard/internal/profile"
)

// newProfilesCmd creates the `profiles` command group.
func newProfilesCmd() *cobra.Command {
	profilesCmd := &cobra.Command{
		Use:   "profiles",
		Short: "Manages the profile document",
	}
	profilesCmd.AddCommand(newProfilesListCmd(), newProfilesValidateCmd(), newProfilesInitCmd())
	return profilesCmd
}

func newProfilesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Lists the stored profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig(cmd)
			if err != nil {
				return err
			}
			doc, err := profile.Load(cfg.Profiles.Path)
			if err != nil {
				return err
			}
			if len(doc.Profiles) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No profiles in %s\n", cfg.Profiles.Path)
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tREGIONS\tACTIONS\tINTERVAL")
			for _, p := range doc.Profiles {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%gs\n", p.ID, p.Name, len(p.Regions), len(p.Actions), p.Trigger.CheckIntervalSec)
			}
			return w.Flush()
		},
	}
}

func newProfilesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [profile-id...]",
		Short: "Checks that profiles can be built, without running them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig(cmd)
			if err != nil {
				return err
			}
			doc, err := profile.Load(cfg.Profiles.Path)
			if err != nil {
				return err
			}

			targets := doc.Profiles
			if len(args) > 0 {
				targets = targets[:0:0]
				for _, id := range args {
					p, err := doc.Find(id)
					if err != nil {
						return err
					}
					targets = append(targets, p)
				}
			}

			var invalid int
			for _, p := range targets {
				// The mock provider always resolves, so an LLM is always available.
				if err := profile.Validate(p, cfg.OCR.Enabled, true); err != nil {
					invalid++
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tinvalid\t%v\n", p.ID, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tok\n", p.ID)
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d profiles are invalid", invalid, len(targets))
			}
			return nil
		},
	}
}

func newProfilesInitCmd() *cobra.Command {
	var id, name string
	var force bool

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Adds a default profile to the profile document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfig(cmd)
			if err != nil {
				return err
			}
			doc, err := profile.Load(cfg.Profiles.Path)
			if err != nil {
				return err
			}

			p := profile.DefaultProfile()
			p.ID = id
			if p.ID == "" {
				p.ID = uuid.New().String()
			}
			if name != "" {
				p.Name = name
			}
			if _, err := doc.Find(p.ID); err == nil && !force {
				return fmt.Errorf("profile '%s' already exists (use --force to replace it)", p.ID)
			}

			doc.Upsert(p)
			if err := profile.Save(cfg.Profiles.Path, doc); err != nil {
				return err
			}
			observability.GetLogger().Info("Profile written.", zap.String("profile_id", p.ID), zap.String("path", cfg.Profiles.Path))
			fmt.Fprintln(cmd.OutOrStdout(), p.ID)
			return nil
		},
	}

	initCmd.Flags().StringVar(&id, "id", "", "Profile id. A random id is generated when empty.")
	initCmd.Flags().StringVar(&name, "name", "", "Display name.")
	initCmd.Flags().BoolVar(&force, "force", false, "Replace an existing profile with the same id.")
	return initCmd
}
