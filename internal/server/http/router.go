// Package httpserver exposes the auction core over HTTP with gin.
package httpserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/bidhouse/internal/service"
)

// Verifier resolves a bearer token to a user id.
type Verifier interface {
	Verify(token string) (uuid.UUID, error)
}

// Check is a named dependency probe for /healthz.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Deps are the collaborators the router serves.
type Deps struct {
	Bids          service.BidService
	Items         service.ItemService
	Notifications service.NotificationService
	Verifier      Verifier
	Realtime      http.Handler // websocket endpoint, optional
	Checks        []Check
	Log           *zap.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(d.Log), Logging(d.Log))

	h := &handlers{
		bids:          d.Bids,
		items:         d.Items,
		notifications: d.Notifications,
		checks:        d.Checks,
		log:           d.Log,
	}

	r.GET("/healthz", h.health)
	if d.Realtime != nil {
		r.GET("/ws", gin.WrapH(d.Realtime))
	}

	api := r.Group("/api/v1")
	api.GET("/items/:id", h.getItem)

	authed := api.Group("", RequireAuth(d.Verifier))
	{
		authed.POST("/bids", h.placeBid)
		authed.POST("/items", h.createItem)

		n := authed.Group("/notifications")
		n.GET("", h.listNotifications)
		n.GET("/unread-count", h.unreadCount)
		n.PATCH("/read-all", h.markAllRead)
		n.PATCH("/:id/read", h.markRead)
		n.DELETE("/:id", h.deleteNotification)
	}
	return r
}
