package announce

import (
	"context"
	"errors"
	"fmt"

	"github.com/Mutter0815/Announcer/internal/campaign"
	"github.com/Mutter0815/Announcer/pkg/logx"
)

// CreateDraft stores a new campaign, or replaces an existing draft when
// req.ID is set. Group rosters are copied into the campaign as they are now.
// An edit holds the campaign's send lock and checks the stored status inside
// the write, so a campaign that became Sent is never turned back into Draft.
func (s *Service) CreateDraft(ctx context.Context, req campaign.CreateCampaignReq) (*campaign.Campaign, error) {
	if req.ID != "" {
		unlock := s.sends.Lock(req.ID)
		defer unlock()
	}

	c := &campaign.Campaign{
		ID:           req.ID,
		TenantID:     req.TenantID,
		OwnerID:      req.OwnerID,
		Status:       campaign.StatusDraft,
		Title:        req.Title,
		SubTitle:     req.SubTitle,
		Body:         req.Body,
		Preview:      req.Preview,
		ImageURL:     req.ImageURL,
		Author:       campaign.Author{EmailID: req.AuthorEmail},
		AckRequested: req.AckRequested,
		CreatedAt:    s.Now(),
	}

	recipients, err := s.snapshotRecipients(ctx, req)
	if err != nil {
		return nil, err
	}
	c.Recipients = recipients

	if req.AuthorEmail != "" {
		if author, ok, err := s.store.GetUser(ctx, req.AuthorEmail); err != nil {
			return nil, err
		} else if ok {
			c.Author.Name = author.Name
		}
	}

	isNew := req.ID == ""
	if isNew {
		c.ID = s.NewID()
	} else {
		err := s.store.UpdateCampaign(ctx, c.ID, func(prev *campaign.Campaign) (bool, error) {
			if prev.Status == campaign.StatusSent {
				return false, campaign.ErrAlreadySent
			}
			c.CreatedAt = prev.CreatedAt
			*prev = *c
			return true, nil
		})
		switch {
		case errors.Is(err, campaign.ErrNotFound):
			isNew = true
		case err != nil:
			return nil, err
		}
	}

	if isNew {
		if err := s.store.UpsertCampaign(ctx, c); err != nil {
			return nil, err
		}
		if err := s.index(ctx, c.TenantID, func(t *campaign.Tenant) bool { return t.AddAnnouncement(c.ID) }); err != nil {
			return nil, err
		}
	}

	logx.L().Infow("draft_saved", "campaign_id", c.ID, "tenant_id", c.TenantID, "new", isNew, "recipients", c.Recipients.Len())
	return c, nil
}

func (s *Service) snapshotRecipients(ctx context.Context, req campaign.CreateCampaignReq) (campaign.Recipients, error) {
	r := campaign.Recipients{
		Groups:   make([]campaign.GroupRecipient, 0, len(req.Groups)),
		Channels: make([]campaign.ChannelRecipient, 0, len(req.Channels)),
	}
	for _, gid := range req.Groups {
		g, ok, err := s.store.GetGroup(ctx, gid)
		if err != nil {
			return r, err
		}
		if !ok {
			return r, fmt.Errorf("%w: %s", campaign.ErrGroupNotFound, gid)
		}
		gr := campaign.GroupRecipient{GroupID: gid, Users: make([]campaign.RecipientDetails, 0, len(g.Users))}
		for _, u := range g.Users {
			gr.Users = append(gr.Users, campaign.RecipientDetails{ID: u})
		}
		r.Groups = append(r.Groups, gr)
	}
	for _, ch := range req.Channels {
		r.Channels = append(r.Channels, campaign.ChannelRecipient{
			TeamID:  ch.TeamID,
			Channel: campaign.RecipientDetails{ID: ch.ChannelID},
		})
	}
	return r, nil
}

// ListDrafts returns the tenant's campaigns that have not been sent yet,
// in the order they were indexed.
func (s *Service) ListDrafts(ctx context.Context, tenantID string) ([]campaign.CampaignListItem, error) {
	t, ok, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	out := []campaign.CampaignListItem{}
	if !ok {
		return out, nil
	}
	for _, id := range t.Announcements {
		c, ok, err := s.store.GetCampaign(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok || c.Status != campaign.StatusDraft {
			continue
		}
		author := c.Author.Name
		if author == "" {
			author = c.Author.EmailID
		}
		out = append(out, campaign.CampaignListItem{
			ID:        c.ID,
			Title:     c.Title,
			Author:    author,
			Status:    c.Status,
			CreatedAt: c.CreatedAt,
		})
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*campaign.CampaignDetails, error) {
	c, ok, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, campaign.ErrNotFound
	}
	return &campaign.CampaignDetails{Campaign: *c, Stats: c.Stats(), Failures: c.Failures()}, nil
}
