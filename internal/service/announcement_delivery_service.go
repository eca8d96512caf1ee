package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-announcement-api/internal/models"
	appErrors "github.com/noah-isme/lms-announcement-api/pkg/errors"
	"github.com/noah-isme/lms-announcement-api/pkg/mail"
)

// Ticker delivers periodic wake-ups.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock abstracts time for the delivery loop.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type systemClock struct{}

type systemTicker struct{ t *time.Ticker }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTicker(d time.Duration) Ticker { return systemTicker{t: time.NewTicker(d)} }

func (s systemTicker) C() <-chan time.Time { return s.t.C }

func (s systemTicker) Stop() { s.t.Stop() }

// SystemClock returns a Clock backed by the time package.
func SystemClock() Clock { return systemClock{} }

type scheduledEmailSource interface {
	ListScheduledEmail(ctx context.Context, windowStart, windowEnd, now time.Time) ([]models.Announcement, error)
}

type audienceResolver interface {
	Resolve(ctx context.Context, announcement *models.Announcement) (*AudienceResolution, error)
}

type emailRenderer interface {
	Render(a *models.Announcement, recipient Recipient) RenderedEmail
}

// Delivery outcome statuses.
const (
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusPartial   = "partial"
	DeliveryStatusSkipped   = "skipped"
	DeliveryStatusFailed    = "failed"
)

// DeliveryConfig configures the scheduled trigger.
type DeliveryConfig struct {
	Interval    time.Duration
	Location    *time.Location
	FromAddress string
	FromName    string
}

// AnnouncementOutcome describes what happened to one announcement in a run.
type AnnouncementOutcome struct {
	AnnouncementID    string             `json:"announcement_id"`
	Title             string             `json:"title"`
	Status            string             `json:"status"`
	Recipients        int                `json:"recipients"`
	Sent              int                `json:"sent"`
	Failed            int                `json:"failed"`
	SkippedRecipients []SkippedRecipient `json:"skipped_recipients,omitempty"`
	Error             string             `json:"error,omitempty"`
}

// DeliveryReport summarises one delivery run.
type DeliveryReport struct {
	StartedAt     time.Time             `json:"started_at"`
	FinishedAt    time.Time             `json:"finished_at"`
	WindowStart   time.Time             `json:"window_start"`
	WindowEnd     time.Time             `json:"window_end"`
	Selected      int                   `json:"selected"`
	EmailsSent    int                   `json:"emails_sent"`
	EmailsFailed  int                   `json:"emails_failed"`
	Announcements []AnnouncementOutcome `json:"announcements"`
	Error         string                `json:"error,omitempty"`
}

// TriggerResult acknowledges a manual trigger.
type TriggerResult struct {
	TriggeredAt time.Time       `json:"triggered_at"`
	Report      *DeliveryReport `json:"report"`
}

// AnnouncementDeliveryService emails announcements scheduled to start today.
// Runs are serialized; there is no record of past deliveries, so every run
// resends whatever falls in today's window.
type AnnouncementDeliveryService struct {
	source   scheduledEmailSource
	resolver audienceResolver
	renderer emailRenderer
	mailer   mail.Mailer
	metrics  *MetricsService
	clock    Clock
	cfg      DeliveryConfig
	logger   *zap.Logger

	runMu  sync.Mutex
	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAnnouncementDeliveryService wires the delivery trigger.
func NewAnnouncementDeliveryService(source scheduledEmailSource, resolver audienceResolver, renderer emailRenderer, mailer mail.Mailer, metrics *MetricsService, clock Clock, cfg DeliveryConfig, logger *zap.Logger) *AnnouncementDeliveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = SystemClock()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &AnnouncementDeliveryService{
		source:   source,
		resolver: resolver,
		renderer: renderer,
		mailer:   mailer,
		metrics:  metrics,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// Start launches the timer loop. Calling Start twice is a no-op.
func (s *AnnouncementDeliveryService) Start(ctx context.Context) {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	if s.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	ticker := s.clock.NewTicker(s.cfg.Interval)
	s.logger.Sugar().Infow("announcement delivery scheduler started", "interval", s.cfg.Interval.String(), "location", s.cfg.Location.String())

	go func(done chan struct{}) {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C():
				if _, err := s.RunOnce(loopCtx); err != nil {
					s.logger.Sugar().Errorw("scheduled announcement delivery failed", "error", err)
				}
			}
		}
	}(s.done)
}

// Stop ends the timer loop and waits for an in-flight run to finish.
func (s *AnnouncementDeliveryService) Stop() {
	s.loopMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.loopMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("announcement delivery scheduler stopped")
}

// TriggerNow runs delivery synchronously on behalf of an admin.
func (s *AnnouncementDeliveryService) TriggerNow(ctx context.Context, actor models.Actor) (*TriggerResult, error) {
	if err := Authorize(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	triggeredAt := s.clock.Now()
	s.logger.Sugar().Infow("manual announcement delivery triggered", "user_id", actor.UserID)
	report, err := s.RunOnce(ctx)
	if err != nil {
		s.logger.Sugar().Errorw("manual announcement delivery failed", "error", err)
	}
	return &TriggerResult{TriggeredAt: triggeredAt, Report: report}, nil
}

// RunOnce performs one delivery pass. Only a failed selection query is
// returned as an error; per-announcement failures are logged and reported.
func (s *AnnouncementDeliveryService) RunOnce(ctx context.Context) (*DeliveryReport, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	now := s.clock.Now()
	windowStart, windowEnd := DayWindow(now, s.cfg.Location)
	report := &DeliveryReport{
		StartedAt:     now,
		WindowStart:   windowStart,
		WindowEnd:     windowEnd,
		Announcements: []AnnouncementOutcome{},
	}

	announcements, err := s.source.ListScheduledEmail(ctx, windowStart, windowEnd, now)
	if err != nil {
		report.Error = "failed to select scheduled announcements"
		report.FinishedAt = s.clock.Now()
		s.metrics.RecordDeliveryRun(DeliveryStatusFailed)
		return report, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to select scheduled announcements")
	}
	report.Selected = len(announcements)

	for i := range announcements {
		outcome := s.deliver(ctx, &announcements[i])
		report.EmailsSent += outcome.Sent
		report.EmailsFailed += outcome.Failed
		report.Announcements = append(report.Announcements, outcome)
	}
	report.FinishedAt = s.clock.Now()
	s.metrics.RecordDeliveryRun("success")
	s.logger.Sugar().Infow("announcement delivery run finished",
		"selected", report.Selected,
		"emails_sent", report.EmailsSent,
		"emails_failed", report.EmailsFailed,
		"window_start", windowStart,
	)
	return report, nil
}

func (s *AnnouncementDeliveryService) deliver(ctx context.Context, a *models.Announcement) (outcome AnnouncementOutcome) {
	outcome = AnnouncementOutcome{AnnouncementID: a.ID, Title: a.Title}
	log := s.logger.With(zap.String("announcement_id", a.ID))
	defer func() {
		if r := recover(); r != nil {
			outcome.Status = DeliveryStatusFailed
			outcome.Error = fmt.Sprintf("panic: %v", r)
			log.Error("announcement delivery panicked", zap.Any("panic", r))
		}
	}()

	resolution, err := s.resolver.Resolve(ctx, a)
	if err != nil {
		outcome.Status = DeliveryStatusFailed
		outcome.Error = err.Error()
		log.Error("audience resolution failed", zap.Error(err))
		return outcome
	}
	outcome.SkippedRecipients = resolution.Skipped
	for _, skipped := range resolution.Skipped {
		log.Warn("recipient skipped", zap.String("user_id", skipped.UserID), zap.String("reason", skipped.Reason))
	}
	s.metrics.RecordDeliveryEmails("skipped", len(resolution.Skipped))
	if len(resolution.Recipients) == 0 {
		outcome.Status = DeliveryStatusSkipped
		log.Warn("announcement has no addressable recipients")
		return outcome
	}
	outcome.Recipients = len(resolution.Recipients)

	batch := mail.Batch{FromAddress: s.cfg.FromAddress, FromName: s.cfg.FromName, Messages: make([]mail.Message, 0, len(resolution.Recipients))}
	for _, recipient := range resolution.Recipients {
		rendered := s.renderer.Render(a, recipient)
		batch.Messages = append(batch.Messages, mail.Message{
			To:       recipient.Email,
			ToName:   recipient.Name,
			Subject:  rendered.Subject,
			HTMLBody: rendered.HTMLBody,
			TextBody: rendered.TextBody,
		})
	}

	result, err := s.mailer.SendBatch(ctx, batch)
	if err != nil {
		outcome.Status = DeliveryStatusFailed
		outcome.Failed = len(batch.Messages)
		outcome.Error = err.Error()
		s.metrics.RecordDeliveryEmails("failed", outcome.Failed)
		log.Error("email batch failed", zap.Error(err))
		return outcome
	}
	for _, failed := range result.Failed() {
		log.Warn("email delivery failed", zap.String("to", failed.To), zap.Error(failed.Err))
	}
	outcome.Sent = result.Sent()
	outcome.Failed = len(result.Failed())
	s.metrics.RecordDeliveryEmails("sent", outcome.Sent)
	s.metrics.RecordDeliveryEmails("failed", outcome.Failed)
	outcome.Status = DeliveryStatusDelivered
	if outcome.Failed > 0 {
		outcome.Status = DeliveryStatusPartial
	}
	log.Info("announcement emails sent", zap.Int("sent", outcome.Sent), zap.Int("failed", outcome.Failed))
	return outcome
}

// DayWindow returns [start of day, start of next day) for now in loc.
func DayWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
