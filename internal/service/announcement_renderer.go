package service

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/noah-isme/lms-announcement-api/internal/models"
)

// RenderedEmail is a fully formatted announcement message for one recipient.
type RenderedEmail struct {
	Subject  string
	HTMLBody string
	TextBody string
}

const (
	defaultCategoryLabel = "Announcement"
	emailDateLayout      = "January 2, 2006"
)

var priorityMarkers = map[models.AnnouncementPriority]string{
	models.AnnouncementPriorityP1: "🚨",
	models.AnnouncementPriorityP2: "⚠️",
	models.AnnouncementPriorityP3: "ℹ️",
}

var categoryLabels = map[string]string{
	models.AnnouncementCategoryGeneral:      "General",
	models.AnnouncementCategoryAcademic:     "Academic",
	models.AnnouncementCategoryCourseUpdate: "Course Update",
	models.AnnouncementCategorySystem:       "System",
	models.AnnouncementCategoryMaintenance:  "Maintenance",
	models.AnnouncementCategoryPromotion:    "Promotion",
	models.AnnouncementCategoryEvent:        "Event",
	models.AnnouncementCategoryDeadline:     "Deadline",
}

var typeLabels = map[models.AnnouncementType]string{
	models.AnnouncementTypeAllUsers:        "All Users",
	models.AnnouncementTypeRegisteredUsers: "Registered Users",
	models.AnnouncementTypeInstructors:     "Instructors",
	models.AnnouncementTypeCourseStudents:  "Course Students",
	models.AnnouncementTypeSpecificRoles:   "Selected Roles",
	models.AnnouncementTypeSpecificUsers:   "Selected Users",
	models.AnnouncementTypePromotional:     "Promotional",
	models.AnnouncementTypePublicUsers:     "Public",
	models.AnnouncementTypeSystemUpdate:    "System Update",
}

// PriorityMarker returns the subject marker for p. Unknown priorities get the info marker.
func PriorityMarker(p models.AnnouncementPriority) string {
	if marker, ok := priorityMarkers[p]; ok {
		return marker
	}
	return priorityMarkers[models.AnnouncementPriorityP3]
}

// CategoryLabel returns the display label for a category.
func CategoryLabel(category string) string {
	if label, ok := categoryLabels[strings.ToUpper(strings.TrimSpace(category))]; ok {
		return label
	}
	return defaultCategoryLabel
}

// TypeLabel returns the display label for an announcement type.
func TypeLabel(t models.AnnouncementType) string {
	if label, ok := typeLabels[t]; ok {
		return label
	}
	return string(t)
}

// AnnouncementRenderer formats announcement emails. It holds no state.
type AnnouncementRenderer struct{}

// NewAnnouncementRenderer constructs a renderer. Announcement text is plain
// text and is escaped, never interpreted, when placed into the HTML body.
func NewAnnouncementRenderer() *AnnouncementRenderer {
	return &AnnouncementRenderer{}
}

// Subject builds "{marker} {category label}: {title}".
func (r *AnnouncementRenderer) Subject(a *models.Announcement) string {
	return fmt.Sprintf("%s %s: %s", PriorityMarker(a.Priority), CategoryLabel(a.Category), strings.TrimSpace(a.Title))
}

// Render formats a for recipient.
func (r *AnnouncementRenderer) Render(a *models.Announcement, recipient Recipient) RenderedEmail {
	return RenderedEmail{
		Subject:  r.Subject(a),
		HTMLBody: r.html(a, recipient),
		TextBody: r.text(a, recipient),
	}
}

func (r *AnnouncementRenderer) html(a *models.Announcement, recipient Recipient) string {
	var b strings.Builder
	b.WriteString(`<html><body style="font-family: Arial, sans-serif; color: #1f2933;">`)
	b.WriteString(`<div style="max-width: 600px; margin: 0 auto; padding: 24px;">`)
	fmt.Fprintf(&b, `<p>Hello %s,</p>`, r.escape(recipient.Name))
	fmt.Fprintf(&b, `<h2 style="margin-bottom: 8px;">%s</h2>`, r.escape(a.Title))
	if src, ok := safeURL(a.ImageURL); ok {
		fmt.Fprintf(&b, `<img src="%s" alt="" style="max-width: 100%%; border-radius: 6px;">`, r.escape(src))
	}
	fmt.Fprintf(&b, `<div style="line-height: 1.5;">%s</div>`, r.escapeMultiline(a.Content))
	if href, ok := safeURL(a.ActionURL); ok {
		fmt.Fprintf(&b, `<p><a href="%s" style="display: inline-block; padding: 10px 18px; background: #2563eb; color: #ffffff; text-decoration: none; border-radius: 4px;">%s</a></p>`,
			r.escape(href), r.escape(actionText(a)))
	}
	b.WriteString(`<hr style="border: none; border-top: 1px solid #e4e7eb;">`)
	fmt.Fprintf(&b, `<p style="font-size: 12px; color: #7b8794;">Posted by %s on %s &middot; %s</p>`,
		r.escape(creatorName(a)), a.CreatedAt.Format(emailDateLayout), r.escape(TypeLabel(a.Type)))
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func (r *AnnouncementRenderer) text(a *models.Announcement, recipient Recipient) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", recipient.Name)
	fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(a.Title))
	fmt.Fprintf(&b, "%s\n", strings.TrimSpace(a.Content))
	if href, ok := safeURL(a.ActionURL); ok {
		fmt.Fprintf(&b, "\n%s: %s\n", actionText(a), href)
	}
	fmt.Fprintf(&b, "\nPosted by %s on %s (%s)\n", creatorName(a), a.CreatedAt.Format(emailDateLayout), TypeLabel(a.Type))
	return b.String()
}

func (r *AnnouncementRenderer) escape(s string) string {
	return html.EscapeString(s)
}

func (r *AnnouncementRenderer) escapeMultiline(s string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(s), "\r\n", "\n")
	lines := strings.Split(normalized, "\n")
	for i, line := range lines {
		lines[i] = r.escape(line)
	}
	return strings.Join(lines, "<br>")
}

func actionText(a *models.Announcement) string {
	if a.ActionText != nil && strings.TrimSpace(*a.ActionText) != "" {
		return strings.TrimSpace(*a.ActionText)
	}
	return "Learn more"
}

func creatorName(a *models.Announcement) string {
	if a.CreatorName != nil && strings.TrimSpace(*a.CreatorName) != "" {
		return strings.TrimSpace(*a.CreatorName)
	}
	return "the platform team"
}

// safeURL accepts absolute http(s) and mailto links only.
func safeURL(raw *string) (string, bool) {
	if raw == nil {
		return "", false
	}
	value := strings.TrimSpace(*raw)
	if value == "" {
		return "", false
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return "", false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		if parsed.Host == "" {
			return "", false
		}
		return parsed.String(), true
	case "mailto":
		return parsed.String(), true
	default:
		return "", false
	}
}
