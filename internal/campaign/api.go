package campaign

import "time"

type ChannelRef struct {
	TeamID    string `json:"team_id"    binding:"required"`
	ChannelID string `json:"channel_id" binding:"required"`
}

type CreateCampaignReq struct {
	ID           string       `json:"id"`
	TenantID     string       `json:"tenant_id"     binding:"required"`
	OwnerID      string       `json:"owner_id"`
	Title        string       `json:"title"         binding:"required"`
	SubTitle     string       `json:"sub_title"`
	Body         string       `json:"body"          binding:"required"`
	Preview      string       `json:"preview"`
	ImageURL     string       `json:"image_url"`
	AuthorEmail  string       `json:"author_email"`
	AckRequested bool         `json:"ack_requested"`
	Groups       []string     `json:"groups"        binding:"dive,required"`
	Channels     []ChannelRef `json:"channels"      binding:"dive"`
}

type CreateCampaignResp struct {
	ID string `json:"id"`
}

type SendCampaignResp struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	Tally  Tally  `json:"tally"`
}

type AckReq struct {
	GroupID string `json:"group_id" binding:"required"`
	UserID  string `json:"user_id"  binding:"required"`
}

type AckResp struct {
	Result string `json:"result"`
}

type RegisterUserReq struct {
	EmailID           string `json:"email_id"            binding:"required"`
	BotConversationID string `json:"bot_conversation_id" binding:"required"`
	Name              string `json:"name"`
}

type RegisterTeamReq struct {
	ID   string `json:"id"   binding:"required"`
	Name string `json:"name"`
}

type UpsertGroupReq struct {
	Name  string   `json:"name"`
	Users []string `json:"users" binding:"dive,required"`
}

type CampaignListItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type CampaignDetails struct {
	Campaign
	Stats    Stats     `json:"stats"`
	Failures []Failure `json:"failures,omitempty"`
}
