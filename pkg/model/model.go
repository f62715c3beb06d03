package model

import json "github.com/goccy/go-json"

const (
	OutboundKindUser    = "user"
	OutboundKindChannel = "channel"
)

// OutboundMessage is the envelope handed to the connector gateway through
// the outbound queue.
type OutboundMessage struct {
	ID             string          `json:"id"`
	Kind           string          `json:"kind"`
	ServiceURL     string          `json:"service_url"`
	TenantID       string          `json:"tenant_id,omitempty"`
	ConversationID string          `json:"conversation_id,omitempty"`
	BotID          string          `json:"bot_id,omitempty"`
	ChannelID      string          `json:"channel_id,omitempty"`
	Alert          bool            `json:"alert"`
	Content        json.RawMessage `json:"content"`
}

// AckEvent is produced when a recipient presses the acknowledgement action.
type AckEvent struct {
	CampaignID string `json:"campaign_id"`
	GroupID    string `json:"group_id"`
	UserID     string `json:"user_id"`
}

func (e AckEvent) Valid() bool {
	return e.CampaignID != "" && e.GroupID != "" && e.UserID != ""
}
