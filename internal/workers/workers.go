package workers

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Job is a maintenance task run on a fixed interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Run starts every job and blocks until ctx is cancelled and all jobs have
// returned. Each job runs once immediately, then on every tick.
func Run(ctx context.Context, jobs ...Job) {
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			loop(ctx, job)
		}(job)
	}
	wg.Wait()
}

func loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	log.Info().Str("job", job.Name).Dur("interval", job.Interval).Msg("worker started")
	for {
		if err := job.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Str("job", job.Name).Msg("worker run failed")
		}

		select {
		case <-ctx.Done():
			log.Info().Str("job", job.Name).Msg("worker stopped")
			return
		case <-ticker.C:
		}
	}
}

type statePurger interface {
	PurgeStates(ctx context.Context) (int64, error)
}

// PurgeOAuthStates removes OAuth state records that expired or were consumed.
func PurgeOAuthStates(p statePurger, interval time.Duration) Job {
	return Job{
		Name:     "purge_oauth_states",
		Interval: interval,
		Run: func(ctx context.Context) error {
			n, err := p.PurgeStates(ctx)
			if err != nil {
				return err
			}
			if n > 0 {
				log.Info().Int64("deleted", n).Msg("purged oauth states")
			}
			return nil
		},
	}
}
