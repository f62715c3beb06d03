package announce

import (
	"context"

	"github.com/Mutter0815/Announcer/internal/campaign"
	"github.com/Mutter0815/Announcer/pkg/logx"
	"github.com/Mutter0815/Announcer/pkg/metrics"
)

// Acknowledge marks one (group, user) delivery record as acknowledged. The
// check and the write run inside a single store update, so concurrent
// calls for the same record record it once.
func (s *Service) Acknowledge(ctx context.Context, campaignID, groupID, userID string) (campaign.AckResult, error) {
	var res campaign.AckResult
	err := s.store.UpdateCampaign(ctx, campaignID, func(c *campaign.Campaign) (bool, error) {
		if c.Status != campaign.StatusSent {
			res = campaign.AckIgnored
			return false, nil
		}
		r := c.FindRecipient(groupID, userID)
		if r == nil {
			return false, campaign.ErrRecipientNotFound
		}
		if r.IsAcknowledged {
			res = campaign.AckAlreadyAcknowledged
			return false, nil
		}
		r.IsAcknowledged = true
		res = campaign.AckRecorded
		return true, nil
	})
	if err != nil {
		return campaign.AckIgnored, err
	}

	metrics.AckResults.WithLabelValues(res.String()).Inc()
	logx.L().Infow("ack_"+res.String(), "campaign_id", campaignID, "group_id", groupID, "user_id", userID)
	return res, nil
}
