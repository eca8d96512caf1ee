package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-announcement-api/internal/middleware"
	"github.com/noah-isme/lms-announcement-api/internal/models"
	"github.com/noah-isme/lms-announcement-api/internal/service"
	"github.com/noah-isme/lms-announcement-api/pkg/response"
)

type deliveryTrigger interface {
	TriggerNow(ctx context.Context, actor models.Actor) (*service.TriggerResult, error)
}

// DeliveryHandler exposes the manual announcement email trigger.
type DeliveryHandler struct {
	delivery deliveryTrigger
}

// NewDeliveryHandler constructs the handler.
func NewDeliveryHandler(delivery deliveryTrigger) *DeliveryHandler {
	return &DeliveryHandler{delivery: delivery}
}

// Trigger godoc
// @Summary Send today's scheduled announcement emails now
// @Description Runs synchronously and returns the run report. Selection failures are reported in report.error.
// @Tags Announcements Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/announcements/delivery/trigger [post]
func (h *DeliveryHandler) Trigger(c *gin.Context) {
	result, err := h.delivery.TriggerNow(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	// A run has no stored id; its trigger time identifies it in the audit trail.
	middleware.SetAuditResource(c, "delivery-run:"+result.TriggeredAt.UTC().Format(time.RFC3339))
	response.JSON(c, http.StatusOK, result, nil)
}
