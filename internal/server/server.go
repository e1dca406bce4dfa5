package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	errx "github.com/pidebot/engine/internal/core/error"
	"github.com/pidebot/engine/internal/domain"
	"github.com/pidebot/engine/internal/engine"
	logx "github.com/pidebot/engine/pkg/logger"
)

// RestaurantResolver supplies the read-only restaurant context for a turn.
// Catalog and restaurant CRUD live outside this service.
type RestaurantResolver interface {
	Resolve(ctx context.Context, restaurantID string) (domain.RestaurantContext, error)
}

// Server is the thin HTTP surface in front of the engine: decode, validate,
// call, encode. Provider-specific webhook parsing belongs to the channel
// adapter, not here.
type Server struct {
	engine   *engine.Engine
	resolver RestaurantResolver
	validate *validator.Validate
}

func New(eng *engine.Engine, resolver RestaurantResolver) *Server {
	return &Server{
		engine:   eng,
		resolver: resolver,
		validate: validator.New(),
	}
}

// Router builds the gin handler.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/webhook/:restaurantID", s.handleInbound)
	r.POST("/conversations/:id/complete", s.handleComplete)

	return r
}

type inboundRequest struct {
	From string `json:"from" validate:"required,min=5,max=32"`
	Text string `json:"text" validate:"required,max=4096"`
}

type inboundResponse struct {
	Reply          string   `json:"reply"`
	ConversationID string   `json:"conversation_id"`
	Step           string   `json:"step"`
	Actions        []string `json:"actions,omitempty"`
}

func (s *Server) handleInbound(c *gin.Context) {
	restaurantID := c.Param("restaurantID")

	var req inboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	rc, err := s.resolver.Resolve(c.Request.Context(), restaurantID)
	if err != nil {
		status, msg := httpError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}

	result, err := s.engine.HandleTurn(c.Request.Context(), rc, req.From, req.Text)
	if err != nil {
		logx.Error().Err(err).Str("restaurant_id", restaurantID).Msg("turn failed")
		status, _ := httpError(err)
		// the customer never sees raw errors; the adapter forwards the
		// restaurant's own apology and redelivers the message later
		c.JSON(status, gin.H{
			"error": "turn failed",
			"reply": genericError(rc.Profile),
		})
		return
	}

	actions := make([]string, 0, len(result.ActionsApplied))
	for _, a := range result.ActionsApplied {
		actions = append(actions, string(a))
	}
	c.JSON(http.StatusOK, inboundResponse{
		Reply:          result.ReplyText,
		ConversationID: result.Conversation.ID.String(),
		Step:           string(result.Conversation.CurrentStep),
		Actions:        actions,
	})
}

type completeRequest struct {
	OrderReference string `json:"order_reference" validate:"required,min=1,max=128"`
}

func (s *Server) handleComplete(c *gin.Context) {
	var req completeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	conv, err := s.engine.Complete(c.Request.Context(), c.Param("id"), req.OrderReference)
	if err != nil {
		status, msg := httpError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": conv.ID.String(),
		"status":          string(conv.Status),
		"order_reference": conv.OrderDraft.OrderReference,
	})
}

func genericError(p domain.RestaurantProfile) string {
	if p.ErrorMessage != "" {
		return p.ErrorMessage
	}
	return "Lo sentimos, tuvimos un problema con tu mensaje. Inténtalo de nuevo en un momento."
}

func httpError(err error) (int, string) {
	var e *errx.Error
	if errors.As(err, &e) {
		return e.Status, e.Message
	}
	return http.StatusInternalServerError, errx.SystemErrorMessage
}
