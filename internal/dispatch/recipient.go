package dispatch

import (
	"context"

	"github.com/Mutter0815/Announcer/internal/campaign"
	"github.com/Mutter0815/Announcer/internal/notify"
)

const (
	kindUser    = "user"
	kindChannel = "channel"
)

// deliverable is one recipient entry of a campaign. The engine treats
// users and channels the same way through it.
type deliverable interface {
	kind() string
	parentID() string
	details() *campaign.RecipientDetails
	resolve(ctx context.Context, dir Directory) (bool, error)
	deliver(ctx context.Context, n notify.Notifier, base notify.Content) (string, error)
}

type userRecipient struct {
	campaignID string
	tenantID   string
	groupID    string
	serviceURL string
	rec        *campaign.RecipientDetails
	user       *campaign.User
}

func (u *userRecipient) kind() string                        { return kindUser }
func (u *userRecipient) parentID() string                    { return u.groupID }
func (u *userRecipient) details() *campaign.RecipientDetails { return u.rec }

func (u *userRecipient) resolve(ctx context.Context, dir Directory) (bool, error) {
	user, ok, err := dir.GetUser(ctx, u.rec.ID)
	if err != nil || !ok {
		return false, err
	}
	u.user = user
	return true, nil
}

func (u *userRecipient) deliver(ctx context.Context, n notify.Notifier, base notify.Content) (string, error) {
	to := notify.UserTarget{
		ServiceURL:     u.serviceURL,
		TenantID:       u.tenantID,
		ConversationID: u.user.BotConversationID,
	}
	return n.SendToUser(ctx, to, base.ForUser(u.campaignID, u.user.EmailID, u.groupID))
}

type channelRecipient struct {
	teamID     string
	serviceURL string
	botID      string
	rec        *campaign.RecipientDetails
}

func (c *channelRecipient) kind() string                        { return kindChannel }
func (c *channelRecipient) parentID() string                    { return c.teamID }
func (c *channelRecipient) details() *campaign.RecipientDetails { return c.rec }

func (c *channelRecipient) resolve(ctx context.Context, dir Directory) (bool, error) {
	_, ok, err := dir.GetTeam(ctx, c.teamID)
	return ok, err
}

func (c *channelRecipient) deliver(ctx context.Context, n notify.Notifier, base notify.Content) (string, error) {
	to := notify.ChannelTarget{
		ServiceURL: c.serviceURL,
		BotID:      c.botID,
		ChannelID:  c.rec.ID,
	}
	return n.SendToChannel(ctx, to, base.ForChannel())
}

// collect lists every entry of c in stored order: group members first,
// then channels. Entries point into c.
func collect(c *campaign.Campaign, opts Options) []deliverable {
	out := make([]deliverable, 0, c.Recipients.Len())
	for gi := range c.Recipients.Groups {
		g := &c.Recipients.Groups[gi]
		for ui := range g.Users {
			out = append(out, &userRecipient{
				campaignID: c.ID,
				tenantID:   c.TenantID,
				groupID:    g.GroupID,
				serviceURL: opts.ServiceURL,
				rec:        &g.Users[ui],
			})
		}
	}
	for ci := range c.Recipients.Channels {
		ch := &c.Recipients.Channels[ci]
		out = append(out, &channelRecipient{
			teamID:     ch.TeamID,
			serviceURL: opts.ServiceURL,
			botID:      opts.BotID,
			rec:        &ch.Channel,
		})
	}
	return out
}

// bucketize groups entries by recipient id, keeping first-occurrence order
// both across and within buckets.
func bucketize(entries []deliverable) [][]deliverable {
	idx := make(map[string]int, len(entries))
	var out [][]deliverable
	for _, e := range entries {
		id := e.details().ID
		i, ok := idx[id]
		if !ok {
			i = len(out)
			idx[id] = i
			out = append(out, nil)
		}
		out[i] = append(out[i], e)
	}
	return out
}
