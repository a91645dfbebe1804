package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"planevent/internal/export"
)

func newICSCmd(a *app) *cobra.Command {
	var formPath, out string

	c := &cobra.Command{
		Use:   "ics",
		Short: "Write the event as an .ics calendar file",
		Long: `Validate the form and write it as an iCalendar file.

The file name is derived from the title unless --out is given. Use --out -
to print the calendar to standard output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			form, err := a.readForm(cmd, formPath)
			if err != nil {
				return err
			}
			f, err := a.exporter(nil).File(form)
			if err != nil {
				return reportExportError(cmd, err)
			}

			if out == "-" {
				_, err = cmd.OutOrStdout().Write(f.Body)
				return err
			}
			if out == "" {
				out = f.Name
			}
			if err := os.WriteFile(out, f.Body, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	addFormFlag(c, &formPath)
	c.Flags().StringVarP(&out, "out", "o", "", "output path (default: <title>.ics)")
	return c
}

func newLinkCmd(a *app) *cobra.Command {
	var formPath string

	c := &cobra.Command{
		Use:   "link",
		Short: `Print an "add to calendar" web link for the event`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			form, err := a.readForm(cmd, formPath)
			if err != nil {
				return err
			}
			link, err := a.exporter(nil).Link(form)
			if err != nil {
				return reportExportError(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
	addFormFlag(c, &formPath)
	return c
}

func newMailCmd(a *app) *cobra.Command {
	var (
		formPath string
		wait     bool
	)

	c := &cobra.Command{
		Use:   "mail",
		Short: "Print a mailto: invitation for the event",
		Long: `Validate the form and print a mailto: target addressed to every contact.

In advanced mode a local reminder is scheduled at start minus the reminder
lead time. With --wait the command stays alive until that reminder fires.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			form, err := a.readForm(cmd, formPath)
			if err != nil {
				return err
			}

			fired := make(chan struct{}, 1)
			s := a.scheduler(func(error) { fired <- struct{}{} })
			s.Start()
			defer func() { <-s.Stop() }()

			m, err := a.exporter(s).Mail(form)
			if err != nil {
				return reportExportError(cmd, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), m.Target)
			if m.Reminder == nil {
				return nil
			}
			fmt.Fprintln(cmd.ErrOrStderr(), m.Reminder.Message)

			if wait && m.Reminder.Status == export.ReminderScheduled {
				select {
				case <-fired:
				case <-cmd.Context().Done():
				}
			}
			return nil
		},
	}
	addFormFlag(c, &formPath)
	c.Flags().BoolVar(&wait, "wait", false, "block until the scheduled reminder fires")
	return c
}
