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

func workbodyCmd() *cobra.Command {
	wb := &cobra.Command{
		Use:     "workbody",
		Aliases: []string{"wb"},
		Short:   "Manage workbodies",
		Long:    "Workbodies are the committees, working groups, and task forces that hold meetings. Types come from pulse.yml.",
	}
	wb.AddCommand(workbodyCreateCmd())
	wb.AddCommand(workbodyListCmd())
	wb.AddCommand(workbodyShowCmd())
	wb.AddCommand(workbodyUpdateCmd())
	wb.AddCommand(workbodyDeleteCmd())
	return wb
}

func workbodyCreateCmd() *cobra.Command {
	var opts engine.WorkbodyCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create workbody",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts.ActorID = viper.GetString("actor-id")
				w, err := e.CreateWorkbody(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "workbody id (generated when empty)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "workbody name")
	cmd.Flags().StringVar(&opts.Type, "type", "", "workbody type (first configured type when empty)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func workbodyListCmd() *cobra.Command {
	var f repo.WorkbodyFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workbodies",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f.OrgID = e.Config.Organization.ID
				items, err := e.Repo.ListWorkbodies(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Type", "Status"})
				for _, w := range items {
					tw.AppendRow(table.Row{w.ID, w.Name, w.Type, w.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Type, "type", "", "type filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter (active, dormant, dissolved)")
	return cmd
}

func workbodyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a workbody",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.Repo.GetWorkbody(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
}

func workbodyUpdateCmd() *cobra.Command {
	var name, wbType, description, status string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a workbody",
		Long:  "Renaming a workbody also renames it on its scheduled meetings.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.UpdateWorkbody(ctx, engine.WorkbodyUpdateOptions{
					ID:          args[0],
					Name:        optionalString(cmd, "name", name),
					Type:        optionalString(cmd, "type", wbType),
					Description: optionalString(cmd, "description", description),
					Status:      optionalString(cmd, "status", status),
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "new name")
	cmd.Flags().StringVar(&wbType, "type", "", "new type")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", "", "status (active, dormant, dissolved)")
	return cmd
}

func workbodyDeleteCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a workbody",
		Long:  "A workbody with scheduled meetings is only deleted with --force, which removes its meetings and actions too.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteWorkbody(ctx, args[0], viper.GetString("actor-id"), force)
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "delete even when meetings are scheduled")
	return cmd
}
