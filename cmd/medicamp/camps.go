package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RahatInCode/medicamp-public/internal/engine"
	"github.com/RahatInCode/medicamp-public/internal/repo"
)

func campCmd() *cobra.Command {
	c := &cobra.Command{Use: "camp", Short: "Manage camps"}
	c.AddCommand(campCreateCmd())
	c.AddCommand(campListCmd())
	c.AddCommand(campShowCmd())
	c.AddCommand(campDeleteCmd())
	return c
}

func campCreateCmd() *cobra.Command {
	var in engine.CampInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a camp (organizer)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CreateCamp(ctx, actor(), in)
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "camp name")
	cmd.Flags().Int64Var(&in.Fee, "fee", 0, "fee in minor currency units")
	cmd.Flags().StringVar(&in.Currency, "currency", "usd", "currency code")
	cmd.Flags().StringVar(&in.ScheduledAt, "at", "", "schedule (RFC3339)")
	cmd.Flags().StringVar(&in.Location, "location", "", "location")
	cmd.Flags().StringVar(&in.HealthcareProfessional, "professional", "", "healthcare professional")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func campListCmd() *cobra.Command {
	var f repo.CampFilter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List camps",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				camps, err := e.ListCamps(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(camps)
				}
				tw := newTable(table.Row{"ID", "Name", "When", "Location", "Fee", "Participants"})
				for _, c := range camps {
					tw.AppendRow(table.Row{c.ID, c.Name, c.ScheduledAt, c.Location, formatMoney(c.Fee, c.Currency), c.ParticipantCount})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Search, "search", "", "match name, location or professional")
	cmd.Flags().StringVar(&f.OrganizerID, "organizer-id", "", "organizer filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max camps")
	return cmd
}

func campShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <camp-id>",
		Short: "Show a camp",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.GetCamp(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
}

func campDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <camp-id>",
		Short: "Delete a camp (organizer)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteCamp(ctx, actor(), args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}
