package main

import (
	"context"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pecpulse/internal/engine"
	"pecpulse/internal/repo"
)

func actionCmd() *cobra.Command {
	a := &cobra.Command{
		Use:   "action",
		Short: "Track follow-up actions",
		Long:  "Actions move open -> in_progress -> completed; open and in_progress may be canceled, completed may be reopened. --force skips the check.",
	}
	a.AddCommand(actionCreateCmd())
	a.AddCommand(actionListCmd())
	a.AddCommand(actionStatusCmd())
	return a
}

func actionCreateCmd() *cobra.Command {
	var opts engine.ActionCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create action",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ActorID = viper.GetString("actor-id")
				a, err := e.CreateAction(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&opts.WorkbodyID, "workbody-id", "", "owning workbody")
	cmd.Flags().StringVar(&opts.MeetingID, "meeting-id", "", "meeting the action was raised in")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "responsible person")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("workbody-id")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func actionListCmd() *cobra.Command {
	var f repo.ActionFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f.OrgID = e.Config.Organization.ID
				items, err := e.Repo.ListActions(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Owner", "Due"})
				for _, a := range items {
					due := ""
					if a.DueDate != nil {
						due = *a.DueDate
					}
					tw.AppendRow(table.Row{a.ID, a.Title, a.Status, a.Owner, due})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.WorkbodyID, "workbody-id", "", "workbody filter")
	cmd.Flags().StringVar(&f.MeetingID, "meeting-id", "", "meeting filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Owner, "owner", "", "owner filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "maximum number of actions")
	return cmd
}

func actionStatusCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Change action status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.SetActionStatus(ctx, args[0], args[1], viper.GetString("actor-id"), force)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "skip the transition check")
	return cmd
}
