package subscription

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ordbokapi/notify/internal/pkg/response"
)

// Handler exposes the subscription lifecycle over HTTP.
type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// RegisterRoutes mounts the public lifecycle endpoints and the API-key
// guarded publishing endpoints.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/subscribe", h.subscribe)
	rg.GET("/verify", h.verify)
	rg.GET("/unsubscribe", h.unsubscribe)
	rg.POST("/new-post", authMW, h.newPost)
	rg.GET("/subscribers", authMW, h.list)
}

func (h *Handler) subscribe(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		response.BadRequest(c, "no email provided")
		return
	}

	sanitized, err := SanitizeEmail(email)
	if err != nil {
		response.BadRequest(c, "invalid email")
		return
	}

	if err := h.svc.Subscribe(c.Request.Context(), sanitized); err != nil {
		h.log.Error("subscribe failed", zap.Error(err))
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"message": "subscribed"})
}

func (h *Handler) verify(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.BadRequest(c, "no token provided")
		return
	}

	ok, err := h.svc.Verify(c.Request.Context(), SanitizeToken(token))
	if err != nil {
		h.log.Error("verify failed", zap.Error(err))
		response.InternalError(c, err)
		return
	}
	if !ok {
		response.NotFoundMsg(c, "token not found")
		return
	}
	response.OK(c, gin.H{"message": "verified"})
}

func (h *Handler) unsubscribe(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.BadRequest(c, "no token provided")
		return
	}

	ok, err := h.svc.Unsubscribe(c.Request.Context(), SanitizeToken(token))
	if err != nil {
		h.log.Error("unsubscribe failed", zap.Error(err))
		response.InternalError(c, err)
		return
	}
	if !ok {
		response.NotFoundMsg(c, "token not found")
		return
	}
	response.OK(c, gin.H{"message": "unsubscribed"})
}

type newPostDTO struct {
	Title   string `json:"title"   binding:"required"`
	URL     string `json:"url"     binding:"required"`
	Summary string `json:"summary" binding:"required"`
}

func (h *Handler) newPost(c *gin.Context) {
	var dto newPostDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	url, err := SanitizeURL(dto.URL)
	if err != nil {
		response.BadRequest(c, "invalid url")
		return
	}

	err = h.svc.QueueNewPostEmail(c.Request.Context(),
		SanitizeText(dto.Title, 100),
		url,
		SanitizeText(dto.Summary, 0),
	)
	if err != nil {
		h.log.Error("queue new-post email failed", zap.Error(err))
		response.InternalError(c, err)
		return
	}
	response.Accepted(c, gin.H{"message": "queued"})
}

func (h *Handler) list(c *gin.Context) {
	subs, err := h.svc.Subscribers(c.Request.Context())
	if err != nil {
		h.log.Error("list subscribers failed", zap.Error(err))
		response.InternalError(c, err)
		return
	}

	emails := make([]string, len(subs))
	for i, sub := range subs {
		emails[i] = sub.Email
	}
	response.OK(c, gin.H{"data": emails, "count": len(emails)})
}
