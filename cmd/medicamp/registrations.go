package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/RahatInCode/medicamp-public/internal/domain"
	"github.com/RahatInCode/medicamp-public/internal/engine"
	"github.com/RahatInCode/medicamp-public/internal/engine/auth"
)

func registrationCmd() *cobra.Command {
	c := &cobra.Command{Use: "registration", Aliases: []string{"reg"}, Short: "Manage registrations"}
	c.AddCommand(registrationCreateCmd())
	c.AddCommand(registrationListCmd())
	c.AddCommand(registrationShowCmd())
	c.AddCommand(registrationActionCmd("cancel", "Cancel a registration", engine.Engine.CancelRegistration))
	c.AddCommand(registrationActionCmd("confirm", "Confirm a registration (organizer)", engine.Engine.ConfirmRegistration))
	return c
}

func registrationCreateCmd() *cobra.Command {
	var d domain.ParticipantDetails
	cmd := &cobra.Command{
		Use:   "create <camp-id>",
		Short: "Register the acting participant for a camp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				reg, err := e.CreateRegistration(ctx, actor(), args[0], d)
				if err != nil {
					return err
				}
				return printJSON(reg)
			})
		},
	}
	cmd.Flags().StringVar(&d.Name, "name", "", "participant name (defaults to --actor-name)")
	cmd.Flags().StringVar(&d.Email, "email", "", "participant email (defaults to --actor-email)")
	cmd.Flags().IntVar(&d.Age, "age", 0, "age")
	cmd.Flags().StringVar(&d.Phone, "phone", "", "phone")
	cmd.Flags().StringVar(&d.Gender, "gender", "", "gender")
	cmd.Flags().StringVar(&d.EmergencyContact, "emergency-contact", "", "emergency contact")
	return cmd
}

func registrationListCmd() *cobra.Command {
	var (
		campID           string
		includeCancelled bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List own registrations, or a camp's with --camp (organizer)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var (
					regs []domain.Registration
					err  error
				)
				if campID != "" {
					regs, err = e.ListCampRegistrations(ctx, actor(), campID, includeCancelled)
				} else {
					regs, err = e.ListParticipantRegistrations(ctx, actor(), includeCancelled)
				}
				if err != nil {
					return err
				}
				return printRegistrations(regs)
			})
		},
	}
	cmd.Flags().StringVar(&campID, "camp", "", "camp id")
	cmd.Flags().BoolVar(&includeCancelled, "include-cancelled", false, "include cancelled registrations")
	return cmd
}

func registrationShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <registration-id>",
		Short: "Show a registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				reg, err := e.GetRegistration(ctx, actor(), args[0])
				if err != nil {
					return err
				}
				return printJSON(reg)
			})
		},
	}
}

type registrationAction func(engine.Engine, context.Context, auth.Identity, string) (domain.Registration, error)

func registrationActionCmd(use, short string, action registrationAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <registration-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				reg, err := action(e, ctx, actor(), args[0])
				if err != nil {
					return err
				}
				return printRegistrations([]domain.Registration{reg})
			})
		},
	}
}
