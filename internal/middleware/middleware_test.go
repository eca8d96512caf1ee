package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-announcement-api/internal/models"
	appErrors "github.com/noah-isme/lms-announcement-api/pkg/errors"
)

type stubValidator struct {
	tokens map[string]*models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s.tokens[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type recordingAuditWriter struct {
	entries []*models.AuditLog
	err     error
}

func (r *recordingAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.entries = append(r.entries, log)
	return r.err
}

type recordingObserver struct {
	path   string
	status int
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	r.path, r.status = path, status
}

func init() {
	gin.SetMode(gin.TestMode)
}

func testValidator() stubValidator {
	return stubValidator{tokens: map[string]*models.JWTClaims{
		"admin":   {UserID: "u-admin", Role: models.RoleAdmin},
		"student": {UserID: "u-student", Role: models.RoleStudent},
	}}
}

func perform(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWTAndRoles(t *testing.T) {
	r := gin.New()
	r.GET("/admin", JWT(testValidator()), RequireRoles(models.RoleAdmin), func(c *gin.Context) {
		c.String(http.StatusOK, Claims(c).UserID)
	})

	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/admin", "").Code)
	assert.Equal(t, http.StatusUnauthorized, perform(r, http.MethodGet, "/admin", "forged").Code)
	assert.Equal(t, http.StatusForbidden, perform(r, http.MethodGet, "/admin", "student").Code)

	rec := perform(r, http.MethodGet, "/admin", "admin")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-admin", rec.Body.String())
}

func TestOptionalJWT(t *testing.T) {
	r := gin.New()
	r.GET("/feed", OptionalJWT(testValidator()), func(c *gin.Context) {
		if claims := Claims(c); claims != nil {
			c.String(http.StatusOK, claims.UserID)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})

	assert.Equal(t, "anonymous", perform(r, http.MethodGet, "/feed", "").Body.String())
	assert.Equal(t, "anonymous", perform(r, http.MethodGet, "/feed", "forged").Body.String())
	assert.Equal(t, "u-student", perform(r, http.MethodGet, "/feed", "student").Body.String())
}

func TestAuditRecordsSuccessfulWrites(t *testing.T) {
	writer := &recordingAuditWriter{}
	r := gin.New()
	r.DELETE("/items/:id", JWT(testValidator()), Audit(writer, nil, models.AuditActionAnnouncementDelete, models.AuditResourceAnnouncement), func(c *gin.Context) {
		if c.Param("id") == "missing" {
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusNoContent)
	})

	perform(r, http.MethodDelete, "/items/a1", "admin")
	perform(r, http.MethodDelete, "/items/missing", "admin")

	require.Len(t, writer.entries, 1)
	entry := writer.entries[0]
	assert.Equal(t, models.AuditActionAnnouncementDelete, entry.Action)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "a1", *entry.ResourceID)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "u-admin", *entry.UserID)
	assert.Contains(t, string(entry.NewValues), `"status":204`)
}

func TestAuditUsesResourceSetByHandler(t *testing.T) {
	writer := &recordingAuditWriter{}
	r := gin.New()
	r.POST("/items", JWT(testValidator()), Audit(writer, nil, models.AuditActionAnnouncementCreate, models.AuditResourceAnnouncement), func(c *gin.Context) {
		SetAuditResource(c, "new-1")
		c.Status(http.StatusCreated)
	})
	r.PUT("/items/:id", Audit(writer, nil, models.AuditActionAnnouncementUpdate, models.AuditResourceAnnouncement), func(c *gin.Context) {
		SetAuditResource(c, "")
		c.Status(http.StatusOK)
	})

	perform(r, http.MethodPost, "/items", "admin")
	perform(r, http.MethodPut, "/items/a7", "")

	require.Len(t, writer.entries, 2)
	require.NotNil(t, writer.entries[0].ResourceID)
	assert.Equal(t, "new-1", *writer.entries[0].ResourceID)
	require.NotNil(t, writer.entries[1].ResourceID)
	assert.Equal(t, "a7", *writer.entries[1].ResourceID)
}

func TestAuditFailureDoesNotAffectResponse(t *testing.T) {
	writer := &recordingAuditWriter{err: errors.New("db down")}
	r := gin.New()
	r.POST("/items", Audit(writer, nil, models.AuditActionAnnouncementCreate, models.AuditResourceAnnouncement), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	rec := perform(r, http.MethodPost, "/items", "")
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, writer.entries, 1)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	observer := &recordingObserver{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	perform(r, http.MethodGet, "/items/42", "")
	assert.Equal(t, "/items/:id", observer.path)
	assert.Equal(t, http.StatusOK, observer.status)

	perform(r, http.MethodGet, "/nowhere", "")
	assert.Equal(t, "unmatched", observer.path)
}

func TestResponseMeta(t *testing.T) {
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/", func(c *gin.Context) {
		SetMeta(c, "cache", "hit")
		c.JSON(http.StatusOK, ExtractMeta(c))
	})

	rec := perform(r, http.MethodGet, "/", "")
	assert.Contains(t, rec.Body.String(), `"cache":"hit"`)
	assert.Contains(t, rec.Body.String(), `"received_at"`)
}
