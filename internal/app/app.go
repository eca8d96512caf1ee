// Package app assembles repositories, services and handlers from configuration.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-announcement-api/internal/repository"
	"github.com/noah-isme/lms-announcement-api/internal/service"
	"github.com/noah-isme/lms-announcement-api/pkg/cache"
	"github.com/noah-isme/lms-announcement-api/pkg/config"
	"github.com/noah-isme/lms-announcement-api/pkg/database"
	"github.com/noah-isme/lms-announcement-api/pkg/mail"
)

// App holds the wired dependencies of the announcement service.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *sqlx.DB
	Redis  *redis.Client

	Users         *repository.UserRepository
	Courses       *repository.CourseRepository
	Announcements *repository.AnnouncementRepository
	CacheRepo     *repository.CacheRepository

	Metrics      *service.MetricsService
	Tokens       *service.TokenService
	Announcement *service.AnnouncementService
	Delivery     *service.AnnouncementDeliveryService
}

// New connects to PostgreSQL and Redis and builds every service.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc, err := cfg.Announcements.Location()
	if err != nil {
		return nil, fmt.Errorf("load business timezone: %w", err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	a := &App{
		Config:        cfg,
		Logger:        logger,
		DB:            db,
		Redis:         redisClient,
		Users:         repository.NewUserRepository(db),
		Courses:       repository.NewCourseRepository(db),
		Announcements: repository.NewAnnouncementRepository(db),
		CacheRepo:     repository.NewCacheRepository(redisClient, logger),
		Tokens:        service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}),
	}
	if cfg.Metrics.Enabled {
		a.Metrics = service.NewMetricsService()
	}

	var feedStore service.CacheRepository
	if redisClient != nil {
		feedStore = a.CacheRepo
	}
	feeds := service.NewFeedCache(feedStore, a.Metrics, cfg.Announcements.FeedCacheTTL, logger.Named("feed_cache"))
	a.Announcement = service.NewAnnouncementService(
		a.Announcements,
		a.Courses,
		a.Users,
		feeds,
		validator.New(),
		logger.Named("announcements"),
		service.AnnouncementServiceConfig{ExportMaxRows: cfg.Announcements.ExportMaxRows},
	)

	resolver := service.NewAudienceResolver(a.Users, a.Courses, logger.Named("audience"))
	a.Delivery = service.NewAnnouncementDeliveryService(
		a.Announcements,
		resolver,
		service.NewAnnouncementRenderer(),
		NewMailer(cfg.Mail, logger),
		a.Metrics,
		service.SystemClock(),
		service.DeliveryConfig{
			Interval:    cfg.Announcements.DeliveryInterval,
			Location:    loc,
			FromAddress: cfg.Mail.FromAddress,
			FromName:    cfg.Mail.FromName,
		},
		logger.Named("delivery"),
	)
	return a, nil
}

// NewMailer picks SMTP when a host is configured and the log mailer otherwise.
func NewMailer(cfg config.MailConfig, logger *zap.Logger) mail.Mailer {
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		logger.Warn("SMTP host not configured; announcement emails will only be logged")
		return mail.NewLogMailer(logger.Named("mail"))
	}
	return mail.NewSMTPMailer(cfg)
}

// Close releases database and cache connections.
func (a *App) Close() {
	if err := a.CacheRepo.Close(); err != nil {
		a.Logger.Warn("failed to close redis", zap.Error(err))
	}
	if err := a.DB.Close(); err != nil {
		a.Logger.Warn("failed to close postgres", zap.Error(err))
	}
}
