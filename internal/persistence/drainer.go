package persistence

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
)

// DefaultDrainInterval is how often the retry queue is drained.
const DefaultDrainInterval = 5 * time.Second

// Drainer runs the gateway's queue drain on a fixed schedule.
type Drainer struct {
	scheduler *gocron.Scheduler
	gateway   *Gateway
	interval  time.Duration
}

// NewDrainer creates a drainer for the gateway. A non-positive interval
// falls back to the default.
func NewDrainer(gateway *Gateway, interval time.Duration) *Drainer {
	if interval <= 0 {
		interval = DefaultDrainInterval
	}
	return &Drainer{
		scheduler: gocron.NewScheduler(time.UTC),
		gateway:   gateway,
		interval:  interval,
	}
}

// Start recovers leftover mirror entries from previous runs and begins
// draining in the background.
func (d *Drainer) Start() {
	d.gateway.RecoverMirror()

	d.scheduler.Every(d.interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.interval)
		defer cancel()
		d.gateway.DrainOnce(ctx)
	})

	// Start the scheduler in a non-blocking manner
	d.scheduler.StartAsync()
}

// Stop terminates the drain schedule after flushing one final pass.
func (d *Drainer) Stop() {
	d.scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), d.interval)
	defer cancel()
	d.gateway.DrainOnce(ctx)
}
