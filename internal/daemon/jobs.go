package daemon

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

const jobTimeout = 5 * time.Minute

// scheduleJobs registers the periodic maintenance work: sweeping expired
// tokens, re-syncing accounts from the identity provider and probing the
// registration agency. Each job skips its run when the previous one is
// still going.
func (d *Daemon) scheduleJobs() error {
	jobs := []struct {
		spec string
		name string
		run  func(ctx context.Context) error
	}{
		{"@hourly", "token sweep", d.sweepTokens},
		{"@every 6h", "identity sync", d.syncIdentities},
		{"@every 5m", "agency probe", d.datacite.Test},
	}

	for _, job := range jobs {
		var busy atomic.Bool

		name, run := job.name, job.run

		_, err := d.cron.AddFunc(job.spec, func() {
			if !busy.CompareAndSwap(false, true) {
				log.Warn().Str("job", name).Msg("previous run still active, skipping")
				return
			}
			defer busy.Store(false)

			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()

			if err := run(ctx); err != nil {
				log.Error().Err(err).Str("job", name).Msg("maintenance job failed")
			}
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (d *Daemon) sweepTokens(ctx context.Context) error {
	removed, err := d.tokens.DeleteExpired(ctx, time.Now())
	if err != nil {
		return err
	}

	if removed > 0 {
		log.Info().Int64("removed", removed).Msg("expired tokens swept")
	}

	return nil
}

func (d *Daemon) syncIdentities(ctx context.Context) error {
	return seed(ctx, d.identity, d.users)
}
