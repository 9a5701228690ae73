package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/and161185/bidhouse/internal/auth"
	"github.com/and161185/bidhouse/internal/convert"
	"github.com/and161185/bidhouse/internal/model"
	"github.com/and161185/bidhouse/internal/service"
)

const healthTimeout = 2 * time.Second

type handlers struct {
	bids          service.BidService
	items         service.ItemService
	notifications service.NotificationService
	checks        []Check
	log           *zap.Logger
}

type placeBidRequest struct {
	ItemID string          `json:"itemId" binding:"required,uuid"`
	Amount decimal.Decimal `json:"amount"`
}

type createItemRequest struct {
	Title         string          `json:"title" binding:"required,max=200"`
	Description   string          `json:"description" binding:"max=5000"`
	StartingPrice decimal.Decimal `json:"startingPrice"`
	StartTime     *time.Time      `json:"startTime"`
	EndTime       time.Time       `json:"endTime" binding:"required"`
}

func userID(c *gin.Context) uuid.UUID {
	id, _ := auth.UserIDFromCtx(c.Request.Context())
	return id
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// placeBid handles POST /api/v1/bids.
func (h *handlers) placeBid(c *gin.Context) {
	var req placeBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	itemID := uuid.FromStringOrNil(req.ItemID)

	res, err := h.bids.PlaceBid(c.Request.Context(), itemID, userID(c), req.Amount)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, convert.ToBidAccepted(res))
}

// createItem handles POST /api/v1/items.
func (h *handlers) createItem(c *gin.Context) {
	var req createItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	in := model.NewItem{
		Title:         req.Title,
		Description:   req.Description,
		StartingPrice: req.StartingPrice,
		EndTime:       req.EndTime,
	}
	if req.StartTime != nil {
		in.StartTime = *req.StartTime
	}

	it, err := h.items.Create(c.Request.Context(), userID(c), in)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, convert.ToItem(it))
}

// getItem handles GET /api/v1/items/:id.
func (h *handlers) getItem(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	it, err := h.items.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, convert.ToItem(*it))
}

func (h *handlers) listNotifications(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			badRequest(c, "invalid limit")
			return
		}
		limit = n
	}
	ns, err := h.notifications.List(c.Request.Context(), userID(c), limit)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, convert.ToNotifications(ns))
}

func (h *handlers) unreadCount(c *gin.Context) {
	n, err := h.notifications.UnreadCount(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

func (h *handlers) markRead(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), userID(c), id); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *handlers) markAllRead(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context(), userID(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": n})
}

func (h *handlers) deleteNotification(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.notifications.Delete(c.Request.Context(), userID(c), id); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// health reports 503 when any dependency probe fails.
func (h *handlers) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for _, chk := range h.checks {
		if err := chk.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			deps[chk.Name] = err.Error()
			continue
		}
		deps[chk.Name] = "ok"
	}
	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "deps": deps})
}
