package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"pecpulse/internal/calendar"
	"pecpulse/internal/domain"
	"pecpulse/internal/engine"
	"pecpulse/internal/repo"
	"pecpulse/internal/schedule"
)

func meetingCmd() *cobra.Command {
	m := &cobra.Command{
		Use:   "meeting",
		Short: "Schedule and inspect meetings",
		Long: `Every meeting is validated against all stored meetings before it is saved.
Errors block: a missing field, or a meeting identical to an existing one (same
workbody, date, time, and location). Warnings do not block: the same workbody
meeting elsewhere in the same slot, or a date in the past.`,
	}
	m.AddCommand(meetingScheduleCmd())
	m.AddCommand(meetingListCmd())
	m.AddCommand(meetingShowCmd())
	m.AddCommand(meetingValidateCmd())
	m.AddCommand(meetingCheckCmd())
	m.AddCommand(meetingRescheduleCmd())
	m.AddCommand(meetingCancelCmd())
	m.AddCommand(meetingExportCmd())
	return m
}

// candidateFlags binds the scheduling form fields to a command.
type candidateFlags struct {
	workbody         string
	date             string
	time             string
	location         string
	agenda           []string
	notificationFile string
	agendaFile       string
}

func (f *candidateFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.workbody, "workbody", "", "workbody id or name")
	cmd.Flags().StringVar(&f.date, "date", "", "date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.time, "time", "", "time (HH:MM)")
	cmd.Flags().StringVar(&f.location, "location", "", "location")
	cmd.Flags().StringArrayVar(&f.agenda, "agenda", nil, "agenda item (repeatable)")
	cmd.Flags().StringVar(&f.notificationFile, "notification-file", "", "path to the notification document")
	cmd.Flags().StringVar(&f.agendaFile, "agenda-file", "", "path to the agenda document")
}

// candidate resolves --workbody as an id first and as a name otherwise.
func (f *candidateFlags) candidate(ctx context.Context, e engine.Engine) domain.CandidateMeeting {
	c := domain.CandidateMeeting{
		Date:        f.date,
		Time:        f.time,
		Location:    f.location,
		AgendaItems: f.agenda,
	}
	if f.workbody != "" {
		if _, err := e.Repo.GetWorkbody(ctx, f.workbody); err == nil {
			c.WorkbodyID = f.workbody
		} else {
			c.WorkbodyName = f.workbody
		}
	}
	if f.notificationFile != "" {
		c.NotificationFilePath = f.notificationFile
		c.NotificationFile = baseName(f.notificationFile)
	}
	if f.agendaFile != "" {
		c.AgendaFilePath = f.agendaFile
		c.AgendaFile = baseName(f.agendaFile)
	}
	return c
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

func meetingScheduleCmd() *cobra.Command {
	var f candidateFlags
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Validate and save a meeting",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, warnings, err := e.ScheduleMeeting(ctx, f.candidate(ctx, e), viper.GetString("actor-id"))
				if err != nil {
					return reportValidation(err)
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"meeting": m, "warnings": warnings})
				}
				printWarnings(warnings)
				return printJSONOrTable(m)
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func meetingRescheduleCmd() *cobra.Command {
	var f candidateFlags
	cmd := &cobra.Command{
		Use:   "reschedule <id>",
		Short: "Move or edit a meeting",
		Long:  "Only the flags given are changed. The result is validated against every other meeting.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				current, err := e.Repo.GetMeeting(ctx, args[0])
				if err != nil {
					return err
				}
				next := f.candidate(ctx, e)
				c := current.CandidateMeeting
				if cmd.Flags().Changed("workbody") {
					c.WorkbodyID, c.WorkbodyName = next.WorkbodyID, next.WorkbodyName
				}
				if cmd.Flags().Changed("date") {
					c.Date = next.Date
				}
				if cmd.Flags().Changed("time") {
					c.Time = next.Time
				}
				if cmd.Flags().Changed("location") {
					c.Location = next.Location
				}
				if cmd.Flags().Changed("agenda") {
					c.AgendaItems = next.AgendaItems
				}
				if cmd.Flags().Changed("notification-file") {
					c.NotificationFile, c.NotificationFilePath = next.NotificationFile, next.NotificationFilePath
				}
				if cmd.Flags().Changed("agenda-file") {
					c.AgendaFile, c.AgendaFilePath = next.AgendaFile, next.AgendaFilePath
				}
				m, warnings, err := e.RescheduleMeeting(ctx, current.ID, c, viper.GetString("actor-id"))
				if err != nil {
					return reportValidation(err)
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"meeting": m, "warnings": warnings})
				}
				printWarnings(warnings)
				return printJSONOrTable(m)
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func meetingValidateCmd() *cobra.Command {
	var f candidateFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a meeting without saving it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				chk, err := e.ValidateMeeting(ctx, f.candidate(ctx, e))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"is_valid":  chk.Result.IsValid,
						"errors":    chk.Result.Errors,
						"warnings":  chk.Result.Warnings,
						"conflicts": chk.Conflicts,
						"duplicate": chk.Duplicate,
					})
				}
				printResult(chk.Result)
				for _, m := range chk.Conflicts {
					fmt.Printf("  conflicts with %s at %s\n", m.ID, m.Location)
				}
				return nil
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func meetingCheckCmd() *cobra.Command {
	var f candidateFlags
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Look for a stored meeting identical to the given one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, found, err := e.CheckDuplicate(ctx, f.candidate(ctx, e))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					out := map[string]any{"found": found}
					if found {
						out["meeting"] = m
					}
					return printJSON(out)
				}
				if !found {
					fmt.Println("no duplicate")
					return nil
				}
				fmt.Printf("duplicate of %s (%s %s %s at %s)\n", m.ID, m.WorkbodyName, m.Date, m.Time, m.Location)
				return nil
			})
		},
	}
	f.bind(cmd)
	return cmd
}

func meetingListCmd() *cobra.Command {
	var f repo.MeetingFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List meetings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f.OrgID = e.Config.Organization.ID
				items, err := e.Repo.ListMeetings(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Workbody", "Date", "Time", "Location", "Agenda"})
				for _, m := range items {
					tw.AppendRow(table.Row{m.ID, m.WorkbodyName, m.Date, m.Time, m.Location, len(m.AgendaItems)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.WorkbodyID, "workbody-id", "", "workbody filter")
	cmd.Flags().StringVar(&f.From, "from", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.To, "to", "", "last date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&f.Limit, "limit", 0, "maximum number of meetings")
	return cmd
}

func meetingShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.Repo.GetMeeting(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
}

func meetingCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a meeting",
		Long:  "The meeting is removed. Actions raised in it stay on the workbody.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.CancelMeeting(ctx, args[0], viper.GetString("actor-id"))
			})
		},
	}
}

func meetingExportCmd() *cobra.Command {
	var f repo.MeetingFilters
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export meetings as an iCalendar file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f.OrgID = e.Config.Organization.ID
				items, err := e.Repo.ListMeetings(ctx, f)
				if err != nil {
					return err
				}
				data, skipped := calendar.Export(items, calendar.Options{
					OrgID:    e.Config.Organization.ID,
					Name:     e.Config.Organization.Name,
					Location: e.Config.Location(),
					Duration: e.Config.MeetingDuration(),
				})
				for _, m := range skipped {
					fmt.Fprintf(os.Stderr, "skipped %s: unparseable date or time %q %q\n", m.ID, m.Date, m.Time)
				}
				if out == "" || out == "-" {
					_, err := os.Stdout.Write(data)
					return err
				}
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "wrote %d meetings to %s\n", len(items)-len(skipped), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.WorkbodyID, "workbody-id", "", "workbody filter")
	cmd.Flags().StringVar(&f.From, "from", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.To, "to", "", "last date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (stdout when empty)")
	return cmd
}

// reportValidation prints a rejected meeting's errors and warnings before
// returning the error.
func reportValidation(err error) error {
	var ve *engine.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	if viper.GetBool("json") {
		out := map[string]any{"errors": ve.Result.Errors, "warnings": ve.Result.Warnings}
		if ve.Duplicate != nil {
			out["duplicate_of"] = ve.Duplicate.ID
		}
		_ = printJSON(out)
		return errors.New("meeting not saved")
	}
	printResult(ve.Result)
	if ve.Duplicate != nil {
		fmt.Printf("  duplicate of %s\n", ve.Duplicate.ID)
	}
	return errors.New("meeting not saved")
}

func printResult(r schedule.Result) {
	if r.IsValid {
		fmt.Println("valid")
	} else {
		fmt.Println("invalid")
	}
	for _, msg := range r.Errors {
		fmt.Println("  error:", msg)
	}
	printWarnings(r.Warnings)
}

func printWarnings(warnings []string) {
	for _, msg := range warnings {
		fmt.Println("  warning:", msg)
	}
}
