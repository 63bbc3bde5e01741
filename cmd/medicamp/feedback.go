package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/RahatInCode/medicamp-public/internal/domain"
	"github.com/RahatInCode/medicamp-public/internal/engine"
	"github.com/RahatInCode/medicamp-public/internal/repo"
)

func feedbackCmd() *cobra.Command {
	c := &cobra.Command{Use: "feedback", Short: "Participant feedback"}
	c.AddCommand(feedbackSubmitCmd())
	c.AddCommand(feedbackListCmd())
	c.AddCommand(feedbackApproveCmd())
	c.AddCommand(feedbackDeleteCmd())
	return c
}

func feedbackSubmitCmd() *cobra.Command {
	var (
		rating  int
		comment string
	)
	cmd := &cobra.Command{
		Use:   "submit <registration-id>",
		Short: "Rate a paid registration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				fb, err := e.SubmitFeedback(ctx, actor(), args[0], rating, comment)
				if err != nil {
					return err
				}
				return printJSON(fb)
			})
		},
	}
	cmd.Flags().IntVar(&rating, "rating", 0, "rating 1-5")
	cmd.Flags().StringVar(&comment, "comment", "", "comment")
	_ = cmd.MarkFlagRequired("rating")
	return cmd
}

func feedbackListCmd() *cobra.Command {
	var (
		campID  string
		pending bool
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List approved feedback, or all feedback of a camp with --all (organizer)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var (
					items []domain.Feedback
					err   error
				)
				if pending {
					items, err = e.ListCampFeedback(ctx, actor(), campID)
				} else {
					items, err = e.ListPublicFeedback(ctx, campID, limit)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable(table.Row{"ID", "Camp", "Participant", "Rating", "Approved", "Comment"})
				for _, fb := range items {
					tw.AppendRow(table.Row{fb.ID, fb.CampID, fb.ParticipantName, fb.Rating, fb.Approved, fb.Comment})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&campID, "camp", "", "camp id")
	cmd.Flags().BoolVar(&pending, "all", false, "include unapproved feedback (organizer)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max items")
	return cmd
}

func feedbackApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <feedback-id>",
		Short: "Publish feedback (organizer)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				fb, err := e.ApproveFeedback(ctx, actor(), args[0])
				if err != nil {
					return err
				}
				return printJSON(fb)
			})
		},
	}
}

func feedbackDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <feedback-id>",
		Short: "Delete feedback (organizer)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteFeedback(ctx, actor(), args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	c := &cobra.Command{Use: "log", Short: "Event log"}
	var f repo.EventFilter
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print committed lifecycle events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				evts, err := e.ListEvents(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(evts)
				}
				tw := newTable(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
				for _, evt := range evts {
					entity := evt.EntityKind
					if evt.EntityID != nil {
						entity += ":" + *evt.EntityID
					}
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, entity, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().StringVar(&f.CampID, "camp", "", "camp id")
	tail.Flags().StringVar(&f.Type, "type", "", "event type")
	tail.Flags().Int64Var(&f.AfterID, "after", 0, "only events after this id")
	tail.Flags().IntVar(&f.Limit, "limit", 100, "max events")
	c.AddCommand(tail)
	return c
}
