package replica

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dyluth/bento/pkg/feed"
)

type publishJob struct {
	entry   *feed.Entry
	flushed chan struct{}
}

// publisher appends entries to the feed on its own goroutine in the order they
// were queued. Callers never wait for the feed; failures are only logged.
type publisher struct {
	feed Feed
	log  *slog.Logger

	mu     sync.Mutex
	queue  chan publishJob
	closed bool
	done   chan struct{}
}

func newPublisher(ctx context.Context, f Feed, queueSize int, logger *slog.Logger) *publisher {
	if queueSize <= 0 {
		queueSize = 64
	}
	p := &publisher{
		feed:  f,
		log:   logger,
		queue: make(chan publishJob, queueSize),
		done:  make(chan struct{}),
	}
	go p.run(ctx)
	return p
}

func (p *publisher) run(ctx context.Context) {
	defer close(p.done)

	for job := range p.queue {
		if job.flushed != nil {
			close(job.flushed)
			continue
		}

		if _, err := p.feed.Append(ctx, job.entry); err != nil {
			p.log.Error("failed to publish state update",
				slog.String("root_id", job.entry.ParentID),
				slog.Int64("sequence_key", job.entry.SequenceKey),
				slog.String("error", err.Error()))
			continue
		}
		p.log.Debug("published state update",
			slog.String("root_id", job.entry.ParentID),
			slog.String("entry_id", job.entry.ID),
			slog.Int64("sequence_key", job.entry.SequenceKey))
	}
}

// enqueue hands an entry to the publisher. It blocks only while the queue is full.
func (p *publisher) enqueue(e *feed.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.queue <- publishJob{entry: e}
	return nil
}

// flush waits until every entry queued before the call was handed to the feed.
func (p *publisher) flush(ctx context.Context) error {
	flushed := make(chan struct{})

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.queue <- publishJob{flushed: flushed}
	p.mu.Unlock()

	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close drains the queue and stops the goroutine.
func (p *publisher) close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
}
