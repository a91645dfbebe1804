package cmd

import (
	"github.com/spf13/cobra"

	appLog "planevent/internal/log"
	"planevent/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	var listen string

	c := &cobra.Command{
		Use:   "serve",
		Short: "Serve the form API over HTTP",
		Long: `Start the HTTP API used by the event form: validation, the three exports,
the rule builder, contact parsing and CSV import. Reminders scheduled through
/api/export/mail fire while the server runs and are lost on shutdown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				a.cfg.Listen = listen
			}

			sched := a.scheduler(nil)
			sched.Start()
			defer func() {
				<-sched.Stop()
				appLog.Info("reminder scheduler stopped", "dropped", sched.Pending())
			}()

			appLog.Info("effective config",
				"listen", a.cfg.Listen,
				"timezone", a.cfg.Timezone,
				"language", a.cfg.Language,
				"timezones", len(a.cfg.Timezones),
				"notifications", a.cfg.Notifications,
				"basic_auth", a.cfg.BasicAuth != nil,
			)

			srv := web.NewServer(a.cfg, a.exporter(sched), a.clock, a.metrics)
			return srv.ListenAndServe(cmd.Context())
		},
	}
	c.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return c
}
