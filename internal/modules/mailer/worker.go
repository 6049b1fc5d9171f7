// Package mailer drains the email queue and delivers each job through the
// mail transport with bounded concurrency.
package mailer

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ordbokapi/notify/internal/modules/subscription"
	"github.com/ordbokapi/notify/internal/pkg/concurrent"
	"github.com/ordbokapi/notify/internal/pkg/mail"
	tpl "github.com/ordbokapi/notify/internal/pkg/template"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultConcurrency  = 5
)

// Sender delivers a single rendered message. Satisfied by *mail.Sender.
type Sender interface {
	Send(msg mail.Message) error
}

// Options tune the dispatch loop. Zero values fall back to the defaults.
type Options struct {
	PollInterval       time.Duration
	Concurrency        int
	MaxErrorsPerSecond int
}

// Worker polls the queue and dispatches at most one job per poll. Sends
// within a job run concurrently up to Concurrency; when the per-second error
// rate trips, the unsent remainder of the job is re-enqueued at the tail so
// delivery resumes on a later poll.
type Worker struct {
	svc    *subscription.Service
	sender Sender
	engine *tpl.Engine
	log    *zap.Logger
	opts   Options

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(svc *subscription.Service, sender Sender, engine *tpl.Engine, log *zap.Logger, opts Options) *Worker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxErrorsPerSecond <= 0 {
		opts.MaxErrorsPerSecond = concurrent.DefaultMaxErrorsPerSecond
	}
	return &Worker{svc: svc, sender: sender, engine: engine, log: log, opts: opts}
}

// Start launches the poll loop. Calling Start on a running worker is a no-op.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})

	go w.loop(ctx)
	w.log.Info("mail worker started", zap.Duration("pollInterval", w.opts.PollInterval))
}

// Stop halts polling and blocks until in-flight sends have finished. Sends
// that never started are re-enqueued by the dispatch in progress.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done
	w.log.Info("mail worker stopped")
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		w.Poll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Poll dequeues at most one job and dispatches it. A corrupt queue entry is
// dropped with an error log; the loop keeps going on the next tick.
func (w *Worker) Poll(ctx context.Context) {
	job, err := w.svc.DequeueEmail(ctx)
	if err != nil {
		w.log.Error("dequeue failed, entry dropped", zap.Error(err))
		return
	}
	if job == nil {
		return
	}
	w.dispatch(ctx, job)
}

// sendUnit is one address-level delivery within a job.
type sendUnit struct {
	address          string
	unsubscribeToken string
}

func (w *Worker) dispatch(ctx context.Context, job *subscription.Job) {
	w.log.Info("dispatching job",
		zap.String("template", string(job.Template)),
		zap.String("subject", job.Subject),
		zap.Int("addresses", len(job.Addresses)))

	units, err := w.resolveUnits(ctx, job)
	if err != nil {
		w.log.Error("resolve unsubscribe tokens failed, job re-enqueued", zap.Error(err))
		w.requeue(ctx, job, nil)
		return
	}
	if len(units) == 0 {
		return
	}

	links := w.svc.Links()
	results, errs, runErr := concurrent.RunAll(ctx, units, w.opts.Concurrency, w.opts.MaxErrorsPerSecond,
		func(_ context.Context, unit sendUnit) (string, error) {
			if err := w.send(job, unit, links); err != nil {
				w.log.Error("send failed", zap.String("address", unit.address), zap.Error(err))
				return "", err
			}
			return unit.address, nil
		})

	var rateErr *concurrent.RateError[string]
	switch {
	case errors.As(runErr, &rateErr):
		w.log.Warn("error rate tripped, re-enqueueing remainder",
			zap.Int("errors", len(rateErr.Errors)),
			zap.Int("succeeded", len(rateErr.Results)))
		w.requeue(ctx, job, rateErr.Results)
	case runErr != nil:
		// cancelled mid-job; keep the part that never went out
		w.requeue(ctx, job, results)
	case len(errs) > 0:
		w.log.Warn("job finished with failures",
			zap.Int("failed", len(errs)),
			zap.Int("succeeded", len(results)))
	default:
		w.log.Info("job delivered", zap.Int("sent", len(results)))
	}
}

// resolveUnits pairs each address with its unsubscribe token. When the job
// needs unsubscribe links, addresses with no token are dropped with an error
// log rather than being mailed a broken link.
func (w *Worker) resolveUnits(ctx context.Context, job *subscription.Job) ([]sendUnit, error) {
	if !job.NeedsUnsubscribeLink {
		units := make([]sendUnit, len(job.Addresses))
		for i, addr := range job.Addresses {
			units[i] = sendUnit{address: addr}
		}
		return units, nil
	}

	tokens, err := w.svc.GetUnsubscribeTokens(ctx, job.Addresses)
	if err != nil {
		return nil, err
	}

	units := make([]sendUnit, 0, len(job.Addresses))
	for i, addr := range job.Addresses {
		if tokens[i] == "" {
			w.log.Error("no unsubscribe token for address, skipping", zap.String("address", addr))
			continue
		}
		units = append(units, sendUnit{address: addr, unsubscribeToken: tokens[i]})
	}
	return units, nil
}

func (w *Worker) send(job *subscription.Job, unit sendUnit, links subscription.Links) error {
	var unsubscribeURL, listUnsubscribeURL string
	if unit.unsubscribeToken != "" {
		unsubscribeURL = links.UnsubscribeURL(unit.unsubscribeToken)
		listUnsubscribeURL = links.AutoUnsubscribeURL(unit.unsubscribeToken)
	}

	data, err := tpl.ForJob(job.Template, job.Params, unsubscribeURL)
	if err != nil {
		return err
	}
	html, text, err := w.engine.Render(data)
	if err != nil {
		return err
	}

	return w.sender.Send(mail.Message{
		To:                 unit.address,
		Subject:            job.Subject,
		Text:               text,
		HTML:               html,
		ListUnsubscribeURL: listUnsubscribeURL,
	})
}

// requeue pushes the job back on the tail of the queue minus the addresses
// already delivered. Uses a fresh context: the worker context may already be
// cancelled and losing the remainder is worse than a slightly late Stop.
func (w *Worker) requeue(ctx context.Context, job *subscription.Job, succeeded []string) {
	done := make(map[string]bool, len(succeeded))
	for _, addr := range succeeded {
		done[addr] = true
	}

	remainder := make([]string, 0, len(job.Addresses))
	for _, addr := range job.Addresses {
		if !done[addr] {
			remainder = append(remainder, addr)
		}
	}
	if len(remainder) == 0 {
		return
	}

	requeued := *job
	requeued.Addresses = remainder
	if err := w.svc.QueueEmail(context.WithoutCancel(ctx), requeued); err != nil {
		w.log.Error("re-enqueue failed, remainder lost",
			zap.Error(err),
			zap.Int("addresses", len(remainder)))
	}
}
