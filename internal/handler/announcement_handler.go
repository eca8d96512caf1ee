package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-announcement-api/internal/middleware"
	"github.com/noah-isme/lms-announcement-api/internal/models"
	"github.com/noah-isme/lms-announcement-api/internal/service"
	appErrors "github.com/noah-isme/lms-announcement-api/pkg/errors"
	"github.com/noah-isme/lms-announcement-api/pkg/response"
)

type announcementService interface {
	List(ctx context.Context, actor models.Actor, req service.AnnouncementListRequest) ([]models.Announcement, *models.Pagination, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Announcement, error)
	Create(ctx context.Context, actor models.Actor, req service.CreateAnnouncementRequest) (*models.Announcement, error)
	Update(ctx context.Context, actor models.Actor, id string, req service.UpdateAnnouncementRequest) (*models.Announcement, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
	ToggleActive(ctx context.Context, actor models.Actor, id string) (*service.ToggleResult, error)
	UserFeed(ctx context.Context, actor models.Actor) ([]models.Announcement, error)
	PublicFeed(ctx context.Context) ([]models.Announcement, error)
	BannerFeed(ctx context.Context, actor models.Actor) ([]models.Announcement, error)
	TagFeed(ctx context.Context, actor models.Actor, tags []string) ([]models.Announcement, error)
	Stats(ctx context.Context, actor models.Actor) (*models.AnnouncementStats, error)
	Export(ctx context.Context, actor models.Actor, req service.AnnouncementListRequest, rawFormat string) (*service.ExportResult, error)
}

// AnnouncementHandler exposes announcement feeds and administration.
type AnnouncementHandler struct {
	service announcementService
}

// NewAnnouncementHandler constructs the handler.
func NewAnnouncementHandler(service announcementService) *AnnouncementHandler {
	return &AnnouncementHandler{service: service}
}

// Feed godoc
// @Summary Announcements visible to the current user
// @Tags Announcements
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /announcements/feed [get]
func (h *AnnouncementHandler) Feed(c *gin.Context) {
	items, err := h.service.UserFeed(c.Request.Context(), actorFromContext(c))
	h.respondList(c, items, err)
}

// Public godoc
// @Summary Public announcements
// @Tags Announcements
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /announcements/public [get]
func (h *AnnouncementHandler) Public(c *gin.Context) {
	items, err := h.service.PublicFeed(c.Request.Context())
	h.respondList(c, items, err)
}

// Banners godoc
// @Summary Visible banner announcements
// @Tags Announcements
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /announcements/banners [get]
func (h *AnnouncementHandler) Banners(c *gin.Context) {
	items, err := h.service.BannerFeed(c.Request.Context(), actorFromContext(c))
	h.respondList(c, items, err)
}

// ByTags godoc
// @Summary Visible announcements carrying any of the given tags
// @Tags Announcements
// @Produce json
// @Security BearerAuth
// @Param tags query string true "Comma separated tags"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /announcements/tags [get]
func (h *AnnouncementHandler) ByTags(c *gin.Context) {
	var tags []string
	for _, raw := range c.QueryArray("tags") {
		for _, tag := range strings.Split(raw, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	items, err := h.service.TagFeed(c.Request.Context(), actorFromContext(c), tags)
	h.respondList(c, items, err)
}

// List godoc
// @Summary List announcements for administration
// @Tags Announcements Admin
// @Produce json
// @Security BearerAuth
// @Param is_active query bool false "Active flag"
// @Param priority query string false "P1, P2 or P3"
// @Param type query string false "Announcement type"
// @Param category query string false "Category"
// @Param display_type query string false "Display type"
// @Param created_by query string false "Creator user ID"
// @Param course_id query string false "Course ID"
// @Param starts_after query string false "RFC3339 or YYYY-MM-DD"
// @Param starts_before query string false "RFC3339 or YYYY-MM-DD"
// @Param expires_after query string false "RFC3339 or YYYY-MM-DD"
// @Param expires_before query string false "RFC3339 or YYYY-MM-DD"
// @Param tags query string false "Comma separated tags"
// @Param show_as_banner query bool false "Banner flag"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/announcements [get]
func (h *AnnouncementHandler) List(c *gin.Context) {
	var req service.AnnouncementListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	items, pagination, err := h.service.List(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, nonNil(items), pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get announcement
// @Tags Announcements Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/announcements/{id} [get]
func (h *AnnouncementHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Create announcement
// @Tags Announcements Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateAnnouncementRequest true "Announcement payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /admin/announcements [post]
func (h *AnnouncementHandler) Create(c *gin.Context) {
	var req service.CreateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetAuditResource(c, item.ID)
	response.Created(c, item)
}

// Update godoc
// @Summary Update announcement
// @Tags Announcements Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Announcement ID"
// @Param payload body service.UpdateAnnouncementRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/announcements/{id} [put]
func (h *AnnouncementHandler) Update(c *gin.Context) {
	var req service.UpdateAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}
	item, err := h.service.Update(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Toggle godoc
// @Summary Flip the active flag
// @Tags Announcements Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "Announcement ID"
// @Success 200 {object} response.Envelope
// @Router /admin/announcements/{id}/toggle [patch]
func (h *AnnouncementHandler) Toggle(c *gin.Context) {
	result, err := h.service.ToggleActive(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete announcement
// @Tags Announcements Admin
// @Security BearerAuth
// @Param id path string true "Announcement ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /admin/announcements/{id} [delete]
func (h *AnnouncementHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Stats godoc
// @Summary Announcement counts
// @Tags Announcements Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/announcements/stats [get]
func (h *AnnouncementHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Export godoc
// @Summary Export announcements
// @Tags Announcements Admin
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /admin/announcements/export [get]
func (h *AnnouncementHandler) Export(c *gin.Context) {
	var req service.AnnouncementListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	result, err := h.service.Export(c.Request.Context(), actorFromContext(c), req, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Body)
}

func (h *AnnouncementHandler) respondList(c *gin.Context, items []models.Announcement, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", len(items))
	response.JSON(c, http.StatusOK, nonNil(items), nil, middleware.ExtractMeta(c))
}

func nonNil(items []models.Announcement) []models.Announcement {
	if items == nil {
		return []models.Announcement{}
	}
	return items
}
