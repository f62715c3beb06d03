package campaign

import "time"

type Status string

const (
	StatusDraft Status = "draft"
	StatusSent  Status = "sent"
)

const (
	FailureNotInstalled = "App not installed"
	FailureDuplicate    = "Duplicated. Message already sent."
)

type Author struct {
	EmailID      string `json:"email_id"`
	Name         string `json:"name,omitempty"`
	Role         string `json:"role,omitempty"`
	ProfilePhoto string `json:"profile_photo,omitempty"`
}

// RecipientDetails is one delivery record. A recipient counts as notified
// iff MessageID is set.
type RecipientDetails struct {
	ID             string `json:"id"`
	MessageID      string `json:"message_id,omitempty"`
	FailureMessage string `json:"failure_message,omitempty"`
	IsAcknowledged bool   `json:"is_acknowledged,omitempty"`
}

func (r *RecipientDetails) Notified() bool { return r.MessageID != "" }

func (r *RecipientDetails) MarkDelivered(messageID string) {
	r.MessageID = messageID
	r.FailureMessage = ""
}

func (r *RecipientDetails) MarkFailed(reason string) {
	r.MessageID = ""
	r.FailureMessage = reason
}

type GroupRecipient struct {
	GroupID string             `json:"group_id"`
	Users   []RecipientDetails `json:"users"`
}

type ChannelRecipient struct {
	TeamID  string           `json:"team_id"`
	Channel RecipientDetails `json:"channel"`
}

type Recipients struct {
	Groups   []GroupRecipient   `json:"groups"`
	Channels []ChannelRecipient `json:"channels"`
}

func (r Recipients) Empty() bool { return len(r.Groups) == 0 && len(r.Channels) == 0 }

// Len counts recipient entries: every group member plus every channel.
func (r Recipients) Len() int {
	n := len(r.Channels)
	for _, g := range r.Groups {
		n += len(g.Users)
	}
	return n
}

type Campaign struct {
	ID           string     `json:"id"`
	TenantID     string     `json:"tenant_id"`
	OwnerID      string     `json:"owner_id,omitempty"`
	Status       Status     `json:"status"`
	Title        string     `json:"title"`
	SubTitle     string     `json:"sub_title,omitempty"`
	Body         string     `json:"body"`
	Preview      string     `json:"preview,omitempty"`
	ImageURL     string     `json:"image_url,omitempty"`
	Author       Author     `json:"author"`
	AckRequested bool       `json:"ack_requested"`
	Recipients   Recipients `json:"recipients"`
	CreatedAt    time.Time  `json:"created_at"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
}

// Clone returns a copy whose recipient records can be mutated without
// touching c.
func (c *Campaign) Clone() *Campaign {
	out := *c
	if c.SentAt != nil {
		t := *c.SentAt
		out.SentAt = &t
	}
	out.Recipients.Groups = make([]GroupRecipient, len(c.Recipients.Groups))
	for i, g := range c.Recipients.Groups {
		out.Recipients.Groups[i] = GroupRecipient{
			GroupID: g.GroupID,
			Users:   append([]RecipientDetails(nil), g.Users...),
		}
	}
	out.Recipients.Channels = append([]ChannelRecipient(nil), c.Recipients.Channels...)
	return &out
}

// FindRecipient looks a user record up by (groupID, userID).
func (c *Campaign) FindRecipient(groupID, userID string) *RecipientDetails {
	for gi := range c.Recipients.Groups {
		g := &c.Recipients.Groups[gi]
		if g.GroupID != groupID {
			continue
		}
		for ui := range g.Users {
			if g.Users[ui].ID == userID {
				return &g.Users[ui]
			}
		}
	}
	return nil
}

type Tenant struct {
	ID               string   `json:"id"`
	IsAdminConsented bool     `json:"is_admin_consented"`
	Users            []string `json:"users"`
	Groups           []string `json:"groups"`
	Announcements    []string `json:"announcements"`
}

// appendUnique keeps tenant indices append-only and free of repeats.
func appendUnique(list []string, id string) ([]string, bool) {
	for _, v := range list {
		if v == id {
			return list, false
		}
	}
	return append(list, id), true
}

func (t *Tenant) AddUser(id string) bool {
	var added bool
	t.Users, added = appendUnique(t.Users, id)
	return added
}

func (t *Tenant) AddGroup(id string) bool {
	var added bool
	t.Groups, added = appendUnique(t.Groups, id)
	return added
}

func (t *Tenant) AddAnnouncement(id string) bool {
	var added bool
	t.Announcements, added = appendUnique(t.Announcements, id)
	return added
}

type Group struct {
	ID    string   `json:"id"`
	Name  string   `json:"name,omitempty"`
	Users []string `json:"users"`
}

type User struct {
	EmailID           string `json:"email_id"`
	BotConversationID string `json:"bot_conversation_id"`
	Name              string `json:"name"`
}

type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
