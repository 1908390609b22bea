package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper removes expired rows of one kind and reports how many went.
type Sweeper func(ctx context.Context) (int64, error)

// CleanupJob periodically removes expired linking codes and prunes session
// indexes left behind by Redis expiry.
type CleanupJob struct {
	linkingCodes Sweeper
	sessions     Sweeper
	interval     time.Duration
	done         chan struct{}
	stopped      chan struct{}
}

func NewCleanupJob(linkingCodes, sessions Sweeper, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		linkingCodes: linkingCodes,
		sessions:     sessions,
		interval:     interval,
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

// Stop ends the job and waits for a running sweep to finish.
func (j *CleanupJob) Stop() {
	close(j.done)
	<-j.stopped
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	defer close(j.stopped)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if j.linkingCodes != nil {
		j.runCleanup(ctx, "linking codes", j.linkingCodes)
	}
	if j.sessions != nil {
		j.runCleanup(ctx, "session indexes", j.sessions)
	}
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn Sweeper) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
