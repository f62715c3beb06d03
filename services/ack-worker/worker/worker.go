// Package worker consumes acknowledgement events and records them against
// the campaign they belong to.
package worker

import (
	"context"
	"errors"
	"math"
	"time"

	json "github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Mutter0815/Announcer/internal/campaign"
	"github.com/Mutter0815/Announcer/pkg/logx"
	"github.com/Mutter0815/Announcer/pkg/metrics"
	"github.com/Mutter0815/Announcer/pkg/model"
)

const retriesHeader = "x-retries"

type tracker interface {
	Acknowledge(ctx context.Context, campaignID, groupID, userID string) (campaign.AckResult, error)
}

type consumer interface {
	Consume() (<-chan amqp.Delivery, error)
}

type requeuer interface {
	PublishJSONWithHeaders(ctx context.Context, body []byte, headers amqp.Table) error
}

type Worker struct {
	Tracker tracker
	Cons    consumer
	Pub     requeuer

	// RetryMax is how many times an event failing on the store is
	// republished before it is dropped.
	RetryMax  int
	OpTimeout time.Duration
	Delay     func(retries int) time.Duration
}

func New(t tracker, cons consumer, pub requeuer, retryMax int) *Worker {
	return &Worker{
		Tracker:   t,
		Cons:      cons,
		Pub:       pub,
		RetryMax:  retryMax,
		OpTimeout: 5 * time.Second,
		Delay:     backoffDelay,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	msgs, err := w.Cons.Consume()
	if err != nil {
		return err
	}
	logx.L().Infow("worker_started", "retry_max", w.RetryMax)

	for {
		select {
		case <-ctx.Done():
			logx.L().Infow("worker_stopping")
			return ctx.Err()

		case d, ok := <-msgs:
			if !ok {
				logx.L().Warnw("consumer_channel_closed")
				return nil
			}
			w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	start := time.Now()
	metrics.WorkerEventsConsumed.Inc()
	defer func() { metrics.WorkerProcessDuration.Observe(time.Since(start).Seconds()) }()

	var ev model.AckEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil || !ev.Valid() {
		logx.L().Warnw("ack_event_malformed", "error", err, "body", string(d.Body))
		w.drop(d)
		return
	}
	fields := []any{
		"campaign_id", ev.CampaignID,
		"group_id", ev.GroupID,
		"user_id", ev.UserID,
	}

	opCtx, cancel := context.WithTimeout(ctx, w.OpTimeout)
	res, err := w.Tracker.Acknowledge(opCtx, ev.CampaignID, ev.GroupID, ev.UserID)
	cancel()

	switch {
	case err == nil:
		logx.L().Infow("ack_event_processed", append(fields, "result", res.String())...)
		_ = d.Ack(false)

	case errors.Is(err, campaign.ErrNotFound), errors.Is(err, campaign.ErrRecipientNotFound):
		logx.L().Warnw("ack_event_rejected", append(fields, "error", err)...)
		w.drop(d)

	default:
		retries := headerRetries(d.Headers)
		if retries >= w.RetryMax {
			logx.L().Warnw("drop_after_retries", append(fields, "retries", retries, "error", err)...)
			w.drop(d)
			return
		}
		delay := w.Delay(retries + 1)
		metrics.WorkerEventRetries.Inc()
		logx.L().Infow("retry_requeue", append(fields, "retries", retries+1, "delay", delay.String(), "error", err)...)
		if err := w.requeue(ctx, d, retries+1, delay); err != nil {
			logx.L().Errorw("retry_publish_error", append(fields, "retries", retries+1, "error", err)...)
			_ = d.Nack(false, true)
		}
	}
}

func (w *Worker) drop(d amqp.Delivery) {
	metrics.WorkerEventsDropped.Inc()
	_ = d.Ack(false)
}

// requeue republishes the event with a bumped retry counter and only then
// acks the original, so a failed republish leaves the event on the queue.
func (w *Worker) requeue(ctx context.Context, d amqp.Delivery, retries int, delay time.Duration) error {
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[retriesHeader] = int32(retries)

	pubCtx, cancel := context.WithTimeout(ctx, w.OpTimeout)
	defer cancel()
	if err := w.Pub.PublishJSONWithHeaders(pubCtx, d.Body, headers); err != nil {
		return err
	}
	return d.Ack(false)
}

func headerRetries(h amqp.Table) int {
	switch t := h[retriesHeader].(type) {
	case int32:
		return int(t)
	case int64:
		return int(t)
	case int:
		return t
	case uint8:
		return int(t)
	}
	return 0
}

func backoffDelay(retries int) time.Duration {
	if retries <= 0 {
		return 0
	}
	return time.Duration(math.Pow(2, float64(retries-1))) * time.Second
}
