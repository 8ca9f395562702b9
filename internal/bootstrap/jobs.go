package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/medbooking/config"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const jobTimeout = 2 * time.Minute

// Job is a periodic task that reports how many items it handled.
type Job func(ctx context.Context) (int, error)

// ScheduleJobs registers the worker jobs on c. A job with an empty spec is
// not scheduled.
func ScheduleJobs(ctx context.Context, c *cron.Cron, cfg config.WorkerConfig, app *App) error {
	jobs := []struct {
		name string
		spec string
		run  Job
	}{
		{"reconcile_payments", cfg.ReconcileCron, app.Payments.ReconcilePending},
		{"retry_refunds", cfg.RefundRetryCron, app.Payments.RetryRefunds},
		{"send_reminders", cfg.RemindersCron, app.Appointments.SendReminders},
	}

	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := c.AddFunc(j.spec, runJob(ctx, app.Log, j.name, j.run)); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", j.name, j.spec, err)
		}
		app.Log.Info().Str("job", j.name).Str("spec", j.spec).Msg("job scheduled")
	}
	return nil
}

func runJob(ctx context.Context, log zerolog.Logger, name string, job Job) func() {
	return func() {
		ctx, cancel := context.WithTimeout(ctx, jobTimeout)
		defer cancel()

		start := time.Now()
		n, err := job(ctx)
		if err != nil {
			log.Error().Err(err).Str("job", name).Msg("job failed")
			return
		}
		log.Info().Str("job", name).Int("handled", n).Dur("took", time.Since(start)).Msg("job finished")
	}
}
