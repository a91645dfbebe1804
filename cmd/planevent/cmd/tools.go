package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"planevent/internal/recur"
)

func newRRuleCmd(a *app) *cobra.Command {
	b := recur.NewBuilder()
	var toggle []string

	c := &cobra.Command{
		Use:   "rrule",
		Short: "Build a recurrence rule from frequency, interval, weekdays and end date",
		Example: `  planevent rrule --freq WEEKLY --interval 2 --days MO,WE --until 2025-01-31
  planevent rrule --toggle TU          # weekly on MO,TU`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, d := range toggle {
				b.Toggle(d)
			}
			rule, err := b.Rule()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rule)
			return nil
		},
	}
	c.Flags().StringVar(&b.Freq, "freq", b.Freq, "DAILY, WEEKLY, MONTHLY or YEARLY")
	c.Flags().IntVar(&b.Interval, "interval", b.Interval, "repeat every n periods")
	c.Flags().StringSliceVar(&b.Days, "days", b.Days, "weekday codes (MO..SU), in order")
	c.Flags().StringSliceVar(&toggle, "toggle", nil, "weekday codes to switch on or off after --days")
	c.Flags().StringVar(&b.Until, "until", "", "last date, YYYY-MM-DD")
	return c
}

func newImportCmd(a *app) *cobra.Command {
	var existing string

	c := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Append the valid addresses of a CSV file to a contacts list",
		Long: `Read a newline-delimited address list and append every line that looks like
an email address to --contacts. The merged contacts text is printed on
standard output, the summary on standard error. "-" reads standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open csv: %w", err)
				}
				defer f.Close()
				src = f
			}

			res, err := a.exporter(nil).ImportContacts(existing, src, a.cfg.Language)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Contacts)
			fmt.Fprintln(cmd.ErrOrStderr(), res.Message)
			return nil
		},
	}
	c.Flags().StringVar(&existing, "contacts", "", "current contacts text to append to")
	return c
}
