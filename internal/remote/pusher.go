package remote

import (
	"context"
	"time"

	"github.com/amirbrooks/medtodo/internal/app"
	"github.com/amirbrooks/medtodo/internal/task"
)

const pushTimeout = 5 * time.Second

// Pusher forwards local changes to Redis. Notify never blocks: when pushes
// fall behind only the newest collection is kept.
type Pusher struct {
	s       *Syncer
	pending chan []task.Task
}

func NewPusher(s *Syncer) *Pusher {
	return &Pusher{s: s, pending: make(chan []task.Task, 1)}
}

// Notify implements app.Observer. Changes that came from a remote snapshot
// are not pushed back.
func (p *Pusher) Notify(c app.Change) {
	if IsRemote(c.Origin) {
		return
	}
	for {
		select {
		case p.pending <- c.Tasks:
			return
		default:
		}
		select {
		case <-p.pending:
		default:
		}
	}
}

// Run pushes queued collections until ctx is done. A failed push is logged
// and dropped; the next change carries the full collection anyway.
func (p *Pusher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case tasks := <-p.pending:
			pctx, cancel := context.WithTimeout(ctx, pushTimeout)
			if err := p.s.Push(pctx, tasks); err != nil {
				p.s.logger.WithError(err).Warn("push failed")
			}
			cancel()
		}
	}
}

// Flush pushes whatever is queued and returns once it is sent.
func (p *Pusher) Flush(ctx context.Context) error {
	select {
	case tasks := <-p.pending:
		return p.s.Push(ctx, tasks)
	default:
		return nil
	}
}
