package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/lms-announcement-api/internal/models"
	"github.com/noah-isme/lms-announcement-api/pkg/mail"
)

type fakeAnnouncementRepo struct {
	items       map[string]*models.Announcement
	nextID      int
	creates     int
	listErr     error
	scheduled   []models.Announcement
	scheduleErr error
	lastWindow  [3]time.Time
	candidates  int
}

func newFakeAnnouncementRepo(items ...models.Announcement) *fakeAnnouncementRepo {
	repo := &fakeAnnouncementRepo{items: map[string]*models.Announcement{}}
	for i := range items {
		item := items[i]
		repo.items[item.ID] = &item
	}
	return repo
}

func (f *fakeAnnouncementRepo) all() []models.Announcement {
	out := make([]models.Announcement, 0, len(f.items))
	for _, item := range f.items {
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeAnnouncementRepo) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	var out []models.Announcement
	for _, item := range f.all() {
		if filter.IsActive != nil && item.IsActive != *filter.IsActive {
			continue
		}
		if filter.Type != nil && item.Type != *filter.Type {
			continue
		}
		out = append(out, item)
	}
	models.SortAnnouncements(out)
	return out, len(out), nil
}

func (f *fakeAnnouncementRepo) ListForExport(ctx context.Context, filter models.AnnouncementFilter, limit int) ([]models.Announcement, error) {
	rows, _, err := f.List(ctx, filter)
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, err
}

func (f *fakeAnnouncementRepo) ListCandidates(ctx context.Context, query models.AnnouncementCandidateQuery) ([]models.Announcement, error) {
	f.candidates++
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Announcement
	for _, item := range f.all() {
		if item.IsActive {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeAnnouncementRepo) ListScheduledEmail(ctx context.Context, windowStart, windowEnd, now time.Time) ([]models.Announcement, error) {
	f.lastWindow = [3]time.Time{windowStart, windowEnd, now}
	if f.scheduleErr != nil {
		return nil, f.scheduleErr
	}
	return f.scheduled, nil
}

func (f *fakeAnnouncementRepo) GetByID(ctx context.Context, id string) (*models.Announcement, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *item
	return &copy, nil
}

func (f *fakeAnnouncementRepo) Create(ctx context.Context, a *models.Announcement) error {
	f.creates++
	f.nextID++
	if a.ID == "" {
		a.ID = fmt.Sprintf("ann-%d", f.nextID)
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	copy := *a
	f.items[a.ID] = &copy
	return nil
}

func (f *fakeAnnouncementRepo) Update(ctx context.Context, a *models.Announcement) error {
	if _, ok := f.items[a.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *a
	f.items[a.ID] = &copy
	return nil
}

func (f *fakeAnnouncementRepo) ToggleActive(ctx context.Context, id string) (bool, error) {
	item, ok := f.items[id]
	if !ok {
		return false, sql.ErrNoRows
	}
	item.IsActive = !item.IsActive
	return item.IsActive, nil
}

func (f *fakeAnnouncementRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.items, id)
	return nil
}

func (f *fakeAnnouncementRepo) CountByActive(ctx context.Context) (int, int, error) {
	active := 0
	for _, item := range f.items {
		if item.IsActive {
			active++
		}
	}
	return len(f.items), active, nil
}

func (f *fakeAnnouncementRepo) CountGrouped(ctx context.Context, column string) ([]models.GroupCount, error) {
	counts := map[string]int{}
	for _, item := range f.items {
		switch column {
		case "type":
			counts[string(item.Type)]++
		case "priority":
			counts[string(item.Priority)]++
		case "category":
			counts[item.Category]++
		case "display_type":
			counts[string(item.DisplayType)]++
		default:
			return nil, errors.New("unsupported column")
		}
	}
	var rows []models.GroupCount
	for k, v := range counts {
		rows = append(rows, models.GroupCount{Key: k, Count: v})
	}
	return rows, nil
}

type fakeCourseDirectory struct {
	courses     map[string]bool
	enrollments map[string][]string
	enrolled    map[string][]models.User
	enrolledErr map[string]error
}

func (f *fakeCourseDirectory) Exists(ctx context.Context, id string) (bool, error) {
	return f.courses[id], nil
}

func (f *fakeCourseDirectory) ListEnrolledCourseIDs(ctx context.Context, userID string) ([]string, error) {
	return f.enrollments[userID], nil
}

func (f *fakeCourseDirectory) ListEnrolledUsers(ctx context.Context, courseID string) ([]models.User, error) {
	if err := f.enrolledErr[courseID]; err != nil {
		return nil, err
	}
	return f.enrolled[courseID], nil
}

type fakeUserDirectory struct {
	users []models.User
	err   error
	calls int
}

func (f *fakeUserDirectory) ListActive(ctx context.Context) ([]models.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.User(nil), f.users...), nil
}

func (f *fakeUserDirectory) ListActiveByRoles(ctx context.Context, roles []models.UserRole) ([]models.User, error) {
	f.calls++
	var out []models.User
	for _, u := range f.users {
		for _, r := range roles {
			if u.Role == r {
				out = append(out, u)
				break
			}
		}
	}
	return out, f.err
}

func (f *fakeUserDirectory) ListActiveByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	f.calls++
	var out []models.User
	for _, u := range f.users {
		for _, id := range ids {
			if u.ID == id {
				out = append(out, u)
				break
			}
		}
	}
	return out, f.err
}

func (f *fakeUserDirectory) MissingIDs(ctx context.Context, ids []string) ([]string, error) {
	known := map[string]bool{}
	for _, u := range f.users {
		known[u.ID] = true
	}
	var missing []string
	for _, id := range ids {
		if !known[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

type fakeFeedCache struct {
	entries     map[string][]models.Announcement
	invalidated int
}

func newFakeFeedCache() *fakeFeedCache {
	return &fakeFeedCache{entries: map[string][]models.Announcement{}}
}

func (f *fakeFeedCache) Candidates(ctx context.Context, feed string) ([]models.Announcement, bool) {
	items, ok := f.entries[feed]
	if !ok {
		return nil, false
	}
	return append([]models.Announcement(nil), items...), true
}

func (f *fakeFeedCache) StoreCandidates(ctx context.Context, feed string, items []models.Announcement) {
	f.entries[feed] = append([]models.Announcement(nil), items...)
}

func (f *fakeFeedCache) InvalidateFeeds(ctx context.Context) {
	f.invalidated++
	f.entries = map[string][]models.Announcement{}
}

type fakeMailer struct {
	batches []mail.Batch
	failFor map[string]error
	err     error
}

func (f *fakeMailer) SendBatch(ctx context.Context, batch mail.Batch) (*mail.BatchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.batches = append(f.batches, batch)
	result := &mail.BatchResult{}
	for _, msg := range batch.Messages {
		result.Results = append(result.Results, mail.Result{To: msg.To, Err: f.failFor[msg.To]})
	}
	return result, nil
}

func (f *fakeMailer) recipients() []string {
	var out []string
	for _, b := range f.batches {
		for _, m := range b.Messages {
			out = append(out, m.To)
		}
	}
	return out
}

type fakeTicker struct {
	ch      chan time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() { t.stopped = true }

type fakeClock struct {
	mu       sync.Mutex
	now      time.Time
	ticker   *fakeTicker
	interval time.Duration
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now, ticker: &fakeTicker{ch: make(chan time.Time)}}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = d
	return c.ticker
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func boolPtr(b bool) *bool { return &b }
