package announce

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mutter0815/Announcer/internal/campaign"
	"github.com/Mutter0815/Announcer/pkg/logx"
	"github.com/Mutter0815/Announcer/pkg/metrics"
)

// Send dispatches a Draft campaign and marks it Sent. The campaign is
// written once, after dispatch; a crash mid-dispatch leaves it in Draft.
func (s *Service) Send(ctx context.Context, campaignID string) (campaign.Tally, error) {
	unlock := s.sends.Lock(campaignID)
	defer unlock()

	c, ok, err := s.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return campaign.Tally{}, err
	}
	if !ok {
		return campaign.Tally{}, campaign.ErrNotFound
	}
	if c.Status == campaign.StatusSent {
		return campaign.Tally{}, campaign.ErrAlreadySent
	}
	if c.Recipients.Empty() {
		return campaign.Tally{}, campaign.ErrNoRecipients
	}

	logx.L().Infow("send_started", "campaign_id", c.ID, "recipients", c.Recipients.Len())

	tally, err := s.engine.Dispatch(ctx, c)
	if err != nil {
		if ctx.Err() == nil {
			return campaign.Tally{}, err
		}
		return tally, s.persistPartial(ctx, c, err)
	}

	now := s.Now()
	c.Status = campaign.StatusSent
	c.SentAt = &now
	if err := s.store.UpdateCampaign(ctx, c.ID, replaceDraft(c)); err != nil {
		logx.L().Errorw("send_persist_error", "campaign_id", c.ID, "error", err)
		return tally, err
	}

	metrics.CampaignsSent.Inc()
	logx.L().Infow("send_completed",
		"campaign_id", c.ID,
		"success", tally.Success,
		"failure", tally.Failure,
		"duplicate", tally.Duplicate,
	)
	return tally, nil
}

// persistPartial keeps whatever the interrupted pass recorded. The campaign
// stays in Draft.
func (s *Service) persistPartial(ctx context.Context, c *campaign.Campaign, cause error) error {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.PersistTimeout)
	defer cancel()

	if err := s.store.UpdateCampaign(pctx, c.ID, replaceDraft(c)); err != nil {
		logx.L().Errorw("send_partial_persist_error", "campaign_id", c.ID, "error", err)
		return errors.Join(cause, fmt.Errorf("persist partial outcomes: %w", err))
	}
	logx.L().Warnw("send_interrupted", "campaign_id", c.ID, "error", cause)
	return cause
}

// replaceDraft overwrites the stored campaign with c unless another writer
// has already marked it Sent.
func replaceDraft(c *campaign.Campaign) func(stored *campaign.Campaign) (bool, error) {
	return func(stored *campaign.Campaign) (bool, error) {
		if stored.Status == campaign.StatusSent {
			return false, campaign.ErrAlreadySent
		}
		*stored = *c
		return true, nil
	}
}
