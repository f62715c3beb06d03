package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Mutter0815/Announcer/docs"
	"github.com/Mutter0815/Announcer/pkg/metrics"
)

func NewHTTPServer(addr string, h *Handlers) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), Observability())

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.GET("/docs", serveDocsHTML)
	r.GET("/docs/announcement-api/openapi.yaml", serveOpenAPI)

	r.POST("/campaigns", h.CreateCampaign)
	r.GET("/campaigns/:id", h.GetCampaign)
	r.POST("/campaigns/:id/send", h.SendCampaign)
	r.POST("/campaigns/:id/ack", h.Acknowledge)

	r.GET("/tenants/:id/drafts", h.ListDrafts)
	r.POST("/tenants/:id/users", h.RegisterUser)
	r.POST("/tenants/:id/teams", h.RegisterTeam)
	r.PUT("/tenants/:id/groups/:groupId", h.UpsertGroup)

	return &http.Server{
		Addr:    addr,
		Handler: r,
	}
}

func serveDocsHTML(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", docs.SwaggerHTML)
}

func serveOpenAPI(c *gin.Context) {
	c.Data(http.StatusOK, "application/yaml", docs.AnnouncementOpenAPI)
}
