package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/tutorportal/internal/client"
	"github.com/pavelanni/tutorportal/internal/grade"
	appI18n "github.com/pavelanni/tutorportal/internal/i18n"
	"github.com/pavelanni/tutorportal/internal/status"
	"github.com/pavelanni/tutorportal/internal/weekly"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print a student's weekly progress fetched from a running server",
		RunE:  runReport,
	}
	f := cmd.Flags()
	f.String("server", "http://localhost:8080", "Server base URL")
	f.StringP("username", "u", "", "Username to log in with")
	f.StringP("password", "p", "", "Password (or set TUTORPORTAL_PASSWORD)")
	f.Int64("student-id", 0, "Student to report on (staff only; 0 reports on yourself)")
	f.StringP("format", "f", "text", "Output format (text, json)")
	f.Duration("timeout", time.Minute, "Overall time limit")
	addCommonFlags(cmd)
	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	v := setup(cmd)
	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	loc, err := loadLocation(v.GetString("timezone"))
	if err != nil {
		return err
	}
	username, password := v.GetString("username"), v.GetString("password")
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), v.GetDuration("timeout"))
	defer cancel()

	c := client.New(v.GetString("server"))
	if _, err := c.Login(ctx, username, password); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	snap, err := c.Snapshot(ctx, v.GetInt64("student-id"))
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	entries := status.ResolveAll(snap.Questions, snap.Answers, snap.Corrections, time.Now())
	return renderReport(ctx, os.Stdout, weekly.Summarize(entries, loc), v.GetString("format"))
}

// renderReport writes the weekly summaries as labelled text or JSON.
func renderReport(ctx context.Context, w io.Writer, weeks []weekly.Summary, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(weeks)
	case "text", "":
	default:
		return fmt.Errorf("unknown report format %q", format)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, s := range weeks {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		label := appI18n.T(ctx, "NoDate")
		if s.Start != nil {
			label = appI18n.Td(ctx, "WeekOf", map[string]any{"Date": s.Week})
		}
		progress := appI18n.Tp(ctx, "QuestionsAnswered", s.Completion.Total, map[string]any{"Answered": s.Completion.Answered})
		if s.Suggested != "" {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", label, progress, grade.Display(string(s.Suggested)))
		} else {
			fmt.Fprintf(tw, "%s\t%s\t\n", label, progress)
		}
		for _, e := range s.Entries {
			g := ""
			if e.Correction != nil {
				g = grade.Display(string(e.Correction.Grade))
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", e.Question.Title, appI18n.StatusLabel(ctx, string(e.Status)), g)
		}
	}
	return tw.Flush()
}
