// Package notify defines the outbound delivery contract used by dispatch
// and its AMQP-backed implementation.
package notify

import (
	"context"

	"github.com/Mutter0815/Announcer/internal/campaign"
)

//go:generate mockgen -destination=mocks/notifier.go -package=mocks github.com/Mutter0815/Announcer/internal/notify Notifier

// Notifier pushes rendered content to a single recipient. A non-nil error
// is the failure reason for that recipient only.
type Notifier interface {
	SendToUser(ctx context.Context, to UserTarget, c Content) (string, error)
	SendToChannel(ctx context.Context, to ChannelTarget, c Content) (string, error)
}

type UserTarget struct {
	ServiceURL     string `json:"service_url"`
	TenantID       string `json:"tenant_id"`
	ConversationID string `json:"conversation_id"`
}

type ChannelTarget struct {
	ServiceURL string `json:"service_url"`
	BotID      string `json:"bot_id"`
	ChannelID  string `json:"channel_id"`
}

// AckAction binds an acknowledgement button to one group membership.
type AckAction struct {
	CampaignID string `json:"campaign_id"`
	UserEmail  string `json:"user_email"`
	GroupID    string `json:"group_id"`
}

type Content struct {
	Title    string     `json:"title"`
	SubTitle string     `json:"sub_title,omitempty"`
	Preview  string     `json:"preview,omitempty"`
	Body     string     `json:"body"`
	ImageURL string     `json:"image_url,omitempty"`
	Author   string     `json:"author,omitempty"`
	Ack      *AckAction `json:"ack,omitempty"`

	ackRequested bool
}

func Render(c *campaign.Campaign) Content {
	author := c.Author.Name
	if author == "" {
		author = c.Author.EmailID
	}
	return Content{
		Title:    c.Title,
		SubTitle: c.SubTitle,
		Preview:  c.Preview,
		Body:     c.Body,
		ImageURL: c.ImageURL,
		Author:   author,

		ackRequested: c.AckRequested,
	}
}

// ForUser returns a copy addressed to one group member. The acknowledgement
// action is attached only when the campaign asked for acknowledgements.
func (c Content) ForUser(campaignID, userEmail, groupID string) Content {
	if !c.ackRequested {
		c.Ack = nil
		return c
	}
	c.Ack = &AckAction{CampaignID: campaignID, UserEmail: userEmail, GroupID: groupID}
	return c
}

// ForChannel returns a copy without any acknowledgement action.
func (c Content) ForChannel() Content {
	c.Ack = nil
	return c
}
