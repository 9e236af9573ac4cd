package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hackgods/medical-appointments/internal/app"
	"github.com/hackgods/medical-appointments/internal/config"
	"github.com/hackgods/medical-appointments/internal/db"
	"github.com/hackgods/medical-appointments/internal/logging"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinicctl",
		Short:        "Operator tool for the appointment service",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(agendaCmd())
	rootCmd.AddCommand(remindCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openApp(ctx context.Context, name string) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if cfg.StoreDriver != config.StoreDriverPostgres {
		return nil, fmt.Errorf("%s requires STORE_DRIVER=postgres", name)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, "clinicctl")
	return app.New(ctx, cfg, logger, "clinicctl")
}

func migrator(ctx context.Context, dir string) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.PostgresDSN == "" {
		return nil, nil, fmt.Errorf("POSTGRES_DSN is required")
	}

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.WithApplicationName("clinicctl"))
	if err != nil {
		return nil, nil, err
	}

	if dir != "" {
		return db.NewMigratorFS(pool, os.DirFS(dir)), pool.Close, nil
	}
	return db.NewMigrator(pool), pool.Close, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			m, closeFn, err := migrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := m.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			m, closeFn, err := migrator(ctx, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := m.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format(time.DateTime)
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

// parseRange reads --from and --to as dates in the clinic's timezone. The
// upper bound covers the whole day.
func parseRange(cmd *cobra.Command, loc *time.Location) (time.Time, time.Time, error) {
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")

	from, err := time.ParseInLocation(time.DateOnly, fromStr, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --from %q: %w", fromStr, err)
	}
	to, err := time.ParseInLocation(time.DateOnly, toStr, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid --to %q: %w", toStr, err)
	}
	return from, to.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print appointment reports as JSON",
	}

	sub := func(use, short string, run func(ctx context.Context, a *app.App, from, to time.Time) (any, error)) *cobra.Command {
		c := &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				a, err := openApp(ctx, "report")
				if err != nil {
					return err
				}
				defer a.Close()

				from, to, err := parseRange(cmd, a.Service.Location())
				if err != nil {
					return err
				}

				out, err := run(ctx, a, from, to)
				if err != nil {
					return err
				}
				return printJSON(out)
			},
		}
		c.Flags().String("from", "", "First day, YYYY-MM-DD")
		c.Flags().String("to", "", "Last day, YYYY-MM-DD")
		_ = c.MarkFlagRequired("from")
		_ = c.MarkFlagRequired("to")
		return c
	}

	cmd.AddCommand(sub("completed", "Appointments that ran their course", func(ctx context.Context, a *app.App, from, to time.Time) (any, error) {
		return a.Service.ReportCompletedAppointments(ctx, from, to)
	}))
	cmd.AddCommand(sub("cancellations", "Cancelled appointments", func(ctx context.Context, a *app.App, from, to time.Time) (any, error) {
		return a.Service.ReportCancellations(ctx, from, to)
	}))
	cmd.AddCommand(sub("summary", "Appointment counts by status", func(ctx context.Context, a *app.App, from, to time.Time) (any, error) {
		return a.Service.ReportStatusSummary(ctx, from, to)
	}))

	return cmd
}

func agendaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agenda",
		Short: "Print a doctor's appointments for one day",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorStr, _ := cmd.Flags().GetString("doctor")
			dateStr, _ := cmd.Flags().GetString("date")

			doctorID, err := uuid.Parse(doctorStr)
			if err != nil {
				return fmt.Errorf("invalid --doctor: %w", err)
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, "agenda")
			if err != nil {
				return err
			}
			defer a.Close()

			day := time.Now().In(a.Service.Location())
			if dateStr != "" {
				day, err = time.ParseInLocation(time.DateOnly, dateStr, a.Service.Location())
				if err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
			}

			appts, err := a.Service.DoctorAgenda(ctx, doctorID, day)
			if err != nil {
				return err
			}

			fmt.Printf("%-6s %-6s %-10s %-14s %s\n", "START", "END", "STATUS", "TYPE", "PATIENT")
			for _, ap := range appts {
				fmt.Printf("%-6s %-6s %-10s %-14s %s\n",
					ap.Start.In(a.Service.Location()).Format("15:04"),
					ap.End().In(a.Service.Location()).Format("15:04"),
					ap.Status, ap.Type, ap.PatientID)
			}
			return nil
		},
	}
	cmd.Flags().String("doctor", "", "Doctor id")
	cmd.Flags().String("date", "", "Day, YYYY-MM-DD (defaults to today)")
	_ = cmd.MarkFlagRequired("doctor")
	return cmd
}

func remindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Run one reminder dispatch pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, "remind")
			if err != nil {
				return err
			}
			defer a.Close()

			lead, _ := cmd.Flags().GetDuration("lead")
			if lead <= 0 {
				lead = a.Config.ReminderLead
			}

			sent, err := a.Service.DispatchReminders(ctx, lead)
			if err != nil {
				return err
			}
			fmt.Printf("Sent %d reminder(s).\n", sent)
			return nil
		},
	}
	cmd.Flags().Duration("lead", 0, "How far ahead to remind (defaults to REMINDER_LEAD)")
	return cmd
}
