package main

import (
	"context"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RahatInCode/medicamp-public/internal/engine"
)

func paymentCmd() *cobra.Command {
	c := &cobra.Command{Use: "payment", Short: "Payments and checkout sessions"}
	c.AddCommand(paymentInitiateCmd())
	c.AddCommand(paymentCallbackCmd())
	c.AddCommand(paymentHistoryCmd())
	c.AddCommand(paymentSessionsCmd())
	return c
}

func paymentInitiateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "initiate <registration-id>",
		Short: "Open a checkout session for an unpaid registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				start, err := e.InitiatePayment(ctx, actor(), args[0])
				if err != nil {
					return err
				}
				return printJSON(start)
			})
		},
	}
}

func paymentCallbackCmd() *cobra.Command {
	var in engine.CallbackInput
	cmd := &cobra.Command{
		Use:   "callback",
		Short: "Apply a gateway success callback by hand",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.HandlePaymentCallback(ctx, in)
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}
	cmd.Flags().StringVar(&in.SessionID, "session", "", "checkout session id")
	cmd.Flags().StringVar(&in.CampID, "camp", "", "camp id")
	cmd.Flags().StringVar(&in.TransactionID, "transaction", "", "gateway transaction id")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("camp")
	return cmd
}

func paymentHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List the acting participant's payments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				records, err := e.PaymentHistory(ctx, actor())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(records)
				}
				tw := newTable(table.Row{"Registration", "Camp", "Amount", "Transaction", "Paid at", "Confirmation"})
				for _, r := range records {
					tw.AppendRow(table.Row{r.RegistrationID, r.CampName, formatMoney(r.Amount, r.Currency), r.TransactionID, r.PaidAt, r.ConfirmationStatus})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func paymentSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions <registration-id>",
		Short: "List checkout sessions of a registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				sessions, err := e.ListSessions(ctx, actor(), args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(sessions)
				}
				tw := newTable(table.Row{"Session", "Status", "Amount", "Created"})
				for _, s := range sessions {
					tw.AppendRow(table.Row{s.ID, s.Status, formatMoney(s.Amount, s.Currency), s.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
}
