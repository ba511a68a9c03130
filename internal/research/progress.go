package research

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Publisher converts a tracker's live state into an ordered sequence of
// immutable snapshots per subscriber. It only ever reads; workers never wait
// on a subscriber.
//
// Delivery policy is at-most-one-outstanding-frame: each subscriber channel
// buffers a single snapshot, and a newer snapshot replaces an unconsumed
// older one. A slow subscriber therefore sees fewer, fresher frames instead
// of a growing backlog. The final frame carries the terminal marker, is
// never replaced by anything, and is followed by channel close.
type Publisher struct {
	tracker  *Tracker
	interval time.Duration
	log      zerolog.Logger
}

// NewPublisher creates a publisher over a tracker. interval is the fallback
// tick; state changes push frames sooner.
func NewPublisher(tracker *Tracker, interval time.Duration, log zerolog.Logger) *Publisher {
	return &Publisher{
		tracker:  tracker,
		interval: interval,
		log:      log.With().Str("component", "progress").Str("batch_id", tracker.BatchID()).Logger(),
	}
}

// Subscribe starts a fresh snapshot sequence from current state. The
// returned channel closes after the terminal frame, or when ctx is done.
func (p *Publisher) Subscribe(ctx context.Context) <-chan ProgressSnapshot {
	out := make(chan ProgressSnapshot, 1)
	go p.run(ctx, out)
	return out
}

func (p *Publisher) run(ctx context.Context, out chan ProgressSnapshot) {
	defer close(out)

	wakeup := p.tracker.addListener()
	defer p.tracker.removeListener(wakeup)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		snap := p.tracker.Snapshot()
		offer(out, snap)
		if snap.Terminal {
			p.log.Debug().
				Int("completed", snap.CompletedSecurities).
				Int("total", snap.TotalSecurities).
				Msg("terminal frame published")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-wakeup:
		case <-ticker.C:
		}
	}
}

// offer places a snapshot in the subscriber's single-slot buffer, replacing
// an unconsumed older frame rather than blocking.
func offer(out chan ProgressSnapshot, snap ProgressSnapshot) {
	for {
		select {
		case out <- snap:
			return
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}
