// Package dispatch fans a campaign out to its recipients.
//
// One pass delivers at most once per distinct recipient id: repeats of an
// id that was already delivered in the same pass are recorded as
// duplicates. Per-recipient failures are recorded on the recipient and
// counted; only Entity Store failures abort the pass.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Mutter0815/Announcer/internal/campaign"
	"github.com/Mutter0815/Announcer/internal/notify"
	"github.com/Mutter0815/Announcer/pkg/logx"
	"github.com/Mutter0815/Announcer/pkg/metrics"
)

var errNoHandle = errors.New("delivery returned no message id")

// Directory resolves transport identities.
type Directory interface {
	GetUser(ctx context.Context, emailID string) (*campaign.User, bool, error)
	GetTeam(ctx context.Context, id string) (*campaign.Team, bool, error)
}

type Options struct {
	Workers     int
	RatePerSec  int
	SendTimeout time.Duration
	// SkipDelivered treats entries that already carry a MessageID from an
	// earlier pass as delivered instead of sending them again.
	SkipDelivered bool
	ServiceURL    string
	BotID         string
}

type Engine struct {
	dir      Directory
	notifier notify.Notifier
	opts     Options
	limiter  *rate.Limiter
}

func New(dir Directory, n notify.Notifier, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	e := &Engine{dir: dir, notifier: n, opts: opts}
	if opts.RatePerSec > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), opts.RatePerSec)
	}
	return e
}

type pass struct {
	campaignID string

	mu       sync.Mutex
	notified map[string]struct{}
	tally    campaign.Tally
}

func (p *pass) isNotified(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.notified[id]
	return ok
}

func (p *pass) succeed(d deliverable, messageID string) {
	p.mu.Lock()
	d.details().MarkDelivered(messageID)
	p.notified[d.details().ID] = struct{}{}
	p.tally.Success++
	p.mu.Unlock()
	metrics.DispatchOutcomes.WithLabelValues(d.kind(), "success").Inc()
}

func (p *pass) fail(d deliverable, reason string) {
	p.mu.Lock()
	d.details().MarkFailed(reason)
	p.tally.Failure++
	p.mu.Unlock()
	metrics.DispatchOutcomes.WithLabelValues(d.kind(), "failure").Inc()
	logx.L().Warnw("dispatch_recipient_failed",
		"campaign_id", p.campaignID,
		"kind", d.kind(),
		"parent_id", d.parentID(),
		"recipient_id", d.details().ID,
		"reason", reason,
	)
}

func (p *pass) duplicate(d deliverable) {
	p.mu.Lock()
	d.details().MarkFailed(campaign.FailureDuplicate)
	p.tally.Duplicate++
	p.mu.Unlock()
	metrics.DispatchOutcomes.WithLabelValues(d.kind(), "duplicate").Inc()
}

func (p *pass) snapshot() campaign.Tally {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tally
}

// Dispatch runs one pass over c. On a Store error c is left untouched and
// the error is returned. If ctx ends mid-pass, the outcomes recorded so far
// are written to c and the context error is returned with the partial tally.
func (e *Engine) Dispatch(ctx context.Context, c *campaign.Campaign) (campaign.Tally, error) {
	start := time.Now()
	defer func() { metrics.DispatchDuration.Observe(time.Since(start).Seconds()) }()

	work := c.Clone()
	entries := collect(work, e.opts)
	base := notify.Render(work)
	p := &pass{campaignID: c.ID, notified: make(map[string]struct{}, len(entries))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for _, bucket := range bucketize(entries) {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			for _, d := range bucket {
				if err := e.process(gctx, p, d, base); err != nil {
					return err
				}
			}
			return nil
		})
	}
	err := g.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		c.Recipients = work.Recipients
		t := p.snapshot()
		logx.L().Warnw("dispatch_interrupted", "campaign_id", c.ID, "success", t.Success, "failure", t.Failure, "duplicate", t.Duplicate, "error", ctxErr)
		return t, fmt.Errorf("dispatch %s interrupted: %w", c.ID, ctxErr)
	}
	if err != nil {
		logx.L().Errorw("dispatch_aborted", "campaign_id", c.ID, "error", err)
		return campaign.Tally{}, fmt.Errorf("dispatch %s: %w", c.ID, err)
	}

	c.Recipients = work.Recipients
	t := p.snapshot()
	logx.L().Infow("dispatch_completed",
		"campaign_id", c.ID,
		"total", len(entries),
		"success", t.Success,
		"failure", t.Failure,
		"duplicate", t.Duplicate,
		"duration", time.Since(start).Seconds(),
	)
	return t, nil
}

func (e *Engine) process(ctx context.Context, p *pass, d deliverable, base notify.Content) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := d.details()
	if e.opts.SkipDelivered && rec.Notified() {
		p.succeed(d, rec.MessageID)
		return nil
	}

	found, err := d.resolve(ctx, e.dir)
	if err != nil {
		return err
	}
	if !found {
		p.fail(d, campaign.FailureNotInstalled)
		return nil
	}
	if p.isNotified(rec.ID) {
		p.duplicate(d)
		return nil
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.fail(d, err.Error())
			return nil
		}
	}

	sendCtx, cancel := ctx, context.CancelFunc(func() {})
	if e.opts.SendTimeout > 0 {
		sendCtx, cancel = context.WithTimeout(ctx, e.opts.SendTimeout)
	}
	messageID, err := d.deliver(sendCtx, e.notifier, base)
	cancel()

	if err == nil && messageID != "" {
		p.succeed(d, messageID)
		return nil
	}
	// A send cut short by the caller is not a recipient failure.
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		err = errNoHandle
	}
	p.fail(d, err.Error())
	return nil
}
