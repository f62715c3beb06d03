package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Mutter0815/Announcer/internal/campaign"
	"github.com/Mutter0815/Announcer/pkg/logx"
)

type announcer interface {
	CreateDraft(ctx context.Context, req campaign.CreateCampaignReq) (*campaign.Campaign, error)
	Get(ctx context.Context, id string) (*campaign.CampaignDetails, error)
	ListDrafts(ctx context.Context, tenantID string) ([]campaign.CampaignListItem, error)
	Send(ctx context.Context, campaignID string) (campaign.Tally, error)
	Acknowledge(ctx context.Context, campaignID, groupID, userID string) (campaign.AckResult, error)
	RegisterUser(ctx context.Context, tenantID string, u *campaign.User) error
	RegisterTeam(ctx context.Context, tenantID string, t *campaign.Team) error
	UpsertGroup(ctx context.Context, tenantID string, g *campaign.Group) error
}

type Handlers struct {
	Svc announcer
	// SendTimeout bounds a whole dispatch pass started over HTTP.
	SendTimeout time.Duration
}

func NewHandlers(svc announcer) *Handlers {
	return &Handlers{Svc: svc, SendTimeout: 5 * time.Minute}
}

func (h *Handlers) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *Handlers) CreateCampaign(c *gin.Context) {
	var req campaign.CreateCampaignReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	camp, err := h.Svc.CreateDraft(ctx, req)
	if err != nil {
		writeError(c, "create_campaign_error", err, "tenant_id", req.TenantID, "campaign_id", req.ID)
		return
	}
	c.JSON(http.StatusCreated, campaign.CreateCampaignResp{ID: camp.ID})
}

func (h *Handlers) GetCampaign(c *gin.Context) {
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	details, err := h.Svc.Get(ctx, id)
	if err != nil {
		writeError(c, "get_campaign_error", err, "campaign_id", id)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *Handlers) SendCampaign(c *gin.Context) {
	id := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.SendTimeout)
	defer cancel()

	tally, err := h.Svc.Send(ctx, id)
	if err != nil {
		writeError(c, "send_campaign_error", err, "campaign_id", id)
		return
	}
	c.JSON(http.StatusOK, campaign.SendCampaignResp{ID: id, Status: campaign.StatusSent, Tally: tally})
}

func (h *Handlers) Acknowledge(c *gin.Context) {
	id := c.Param("id")
	var req campaign.AckReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Svc.Acknowledge(ctx, id, req.GroupID, req.UserID)
	if err != nil {
		writeError(c, "ack_error", err, "campaign_id", id, "group_id", req.GroupID, "user_id", req.UserID)
		return
	}
	c.JSON(http.StatusOK, campaign.AckResp{Result: res.String()})
}

func (h *Handlers) ListDrafts(c *gin.Context) {
	tenantID := c.Param("id")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	items, err := h.Svc.ListDrafts(ctx, tenantID)
	if err != nil {
		writeError(c, "list_drafts_error", err, "tenant_id", tenantID)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *Handlers) RegisterUser(c *gin.Context) {
	tenantID := c.Param("id")
	var req campaign.RegisterUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	u := &campaign.User{EmailID: req.EmailID, BotConversationID: req.BotConversationID, Name: req.Name}
	if err := h.Svc.RegisterUser(ctx, tenantID, u); err != nil {
		writeError(c, "register_user_error", err, "tenant_id", tenantID, "user_id", req.EmailID)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) RegisterTeam(c *gin.Context) {
	tenantID := c.Param("id")
	var req campaign.RegisterTeamReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.Svc.RegisterTeam(ctx, tenantID, &campaign.Team{ID: req.ID, Name: req.Name}); err != nil {
		writeError(c, "register_team_error", err, "tenant_id", tenantID, "team_id", req.ID)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) UpsertGroup(c *gin.Context) {
	tenantID := c.Param("id")
	groupID := c.Param("groupId")
	var req campaign.UpsertGroupReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	g := &campaign.Group{ID: groupID, Name: req.Name, Users: req.Users}
	if err := h.Svc.UpsertGroup(ctx, tenantID, g); err != nil {
		writeError(c, "upsert_group_error", err, "tenant_id", tenantID, "group_id", groupID)
		return
	}
	c.Status(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, campaign.ErrNotFound),
		errors.Is(err, campaign.ErrRecipientNotFound),
		errors.Is(err, campaign.ErrGroupNotFound):
		return http.StatusNotFound
	case errors.Is(err, campaign.ErrAlreadySent):
		return http.StatusConflict
	case errors.Is(err, campaign.ErrNoRecipients):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError answers with the status matching err. Server-side failures are
// logged and their details are not exposed to the client.
func writeError(c *gin.Context, event string, err error, fields ...any) {
	status := statusFor(err)
	if status < http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	logx.L().Errorw(event, append(fields, "rid", requestID(c), "error", err)...)
	c.JSON(status, gin.H{"error": http.StatusText(status)})
}
