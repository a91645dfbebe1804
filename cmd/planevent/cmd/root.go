package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"planevent/internal/clock"
	"planevent/internal/config"
	"planevent/internal/export"
	"planevent/internal/i18n"
	appLog "planevent/internal/log"
	"planevent/internal/metrics"
	"planevent/internal/model"
	"planevent/internal/notify"
)

// app is the state shared by all subcommands once the config is loaded.
type app struct {
	cfgPath  string
	language string

	cfg     *config.Config
	clock   clock.Clock
	catalog *i18n.Catalog
	metrics *metrics.Metrics
}

func newRootCmd() *cobra.Command {
	a := &app{clock: clock.System{}}

	root := &cobra.Command{
		Use:   "planevent",
		Short: "Turn an event form into a calendar file, a web-calendar link or a mail invitation",
		Long: `planevent validates event details (title, date, time, recurrence, attendees,
attachments) and exports them as an .ics file, an "add to calendar" link or a
mailto: invitation. Run "planevent serve" for the HTTP API behind the form.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}

	root.PersistentFlags().StringVar(&a.cfgPath, "config", defaultConfigPath(), "config file")
	root.PersistentFlags().StringVarP(&a.language, "language", "l", "", "message language (pl or en); defaults to the config value")

	root.AddCommand(
		newServeCmd(a),
		newICSCmd(a),
		newLinkCmd(a),
		newMailCmd(a),
		newRRuleCmd(a),
		newImportCmd(a),
	)
	return root
}

// Execute runs the command tree. Validation errors have already been
// printed line by line when it returns.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func defaultConfigPath() string {
	if v := os.Getenv("PLANEVENT_CONFIG"); v != "" {
		return v
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "planevent.yaml"
	}
	return filepath.Join(dir, "planevent", "config.yaml")
}

func (a *app) load(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv()
	if a.language != "" {
		cfg.Language = a.language
		cfg.Normalize()
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	a.cfg = cfg
	a.catalog = i18n.New(cfg.Language)
	a.metrics = metrics.New()

	appLog.Debug("effective config",
		"config_path", a.cfgPath,
		"timezone", cfg.Timezone,
		"language", cfg.Language,
		"notifications", cfg.Notifications,
	)
	return nil
}

func (a *app) exporter(s *notify.Scheduler) *export.Exporter {
	return export.New(export.Options{
		Clock:     a.clock,
		Catalog:   a.catalog,
		Scheduler: s,
		Metrics:   a.metrics,
		LinkBase:  a.cfg.LinkBaseURL,
	})
}

// scheduler builds a reminder scheduler whose permission follows the
// configured notification policy. then, if set, runs after each delivery.
func (a *app) scheduler(then func(error)) *notify.Scheduler {
	perm := notify.NewCapability(permissionPolicy(a.cfg.Notifications))
	state := perm.Request()
	appLog.Debug("notification permission", "state", string(state))
	s := notify.NewScheduler(a.clock, perm, notify.LogNotifier{})
	s.OnFire(func(err error) {
		if err != nil {
			a.metrics.Reminder(metrics.OutcomeUndelivered)
		} else {
			a.metrics.Reminder(metrics.OutcomeDelivered)
		}
		if then != nil {
			then(err)
		}
	})
	return s
}

func permissionPolicy(setting string) func() notify.Permission {
	return func() notify.Permission {
		switch setting {
		case config.NotificationsAllow:
			return notify.PermissionGranted
		case config.NotificationsDeny:
			return notify.PermissionDenied
		default:
			return notify.PermissionDefault
		}
	}
}

// readForm layers a YAML or JSON form file over the configured defaults.
// "-" reads standard input.
func (a *app) readForm(cmd *cobra.Command, path string) (model.FormState, error) {
	form := a.cfg.NewForm()
	if path == "" {
		return form, errors.New("--form is required")
	}

	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return form, fmt.Errorf("open form: %w", err)
		}
		defer f.Close()
		r = f
	}

	if err := yaml.NewDecoder(r).Decode(&form); err != nil && !errors.Is(err, io.EOF) {
		return form, fmt.Errorf("decode form %s: %w", path, err)
	}
	if form.Language == "" {
		form.Language = a.cfg.Language
	}
	return form, nil
}

// reportExportError prints rejected-form messages one per line.
func reportExportError(cmd *cobra.Command, err error) error {
	var verr *export.ValidationError
	if errors.As(err, &verr) {
		w := cmd.ErrOrStderr()
		for _, msg := range verr.Errors {
			fmt.Fprintln(w, msg)
		}
		return err
	}
	var serr *export.SerializationError
	if errors.As(err, &serr) {
		fmt.Fprintln(cmd.ErrOrStderr(), serr.Message)
		return err
	}
	return err
}

func addFormFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "form", "f", "", `form file (YAML or JSON, "-" for stdin)`)
}
