package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"socialnet/internal/models"
	"socialnet/internal/observability"
	"socialnet/internal/repository"
)

const (
	defaultReportDays = 30
	maxReportDays     = 365
	topUsersLimit     = 5
	chartDateLayout   = "2006-01-02"
)

// AnalyticsService maintains the daily rollups and serves the admin reports.
type AnalyticsService struct {
	analyticsRepo repository.AnalyticsRepository
	userRepo      repository.UserRepository
	now           func() time.Time
}

func NewAnalyticsService(analyticsRepo repository.AnalyticsRepository, userRepo repository.UserRepository) *AnalyticsService {
	return &AnalyticsService{
		analyticsRepo: analyticsRepo,
		userRepo:      userRepo,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// dayBounds returns the UTC calendar day containing t as [start, end).
func dayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// reportRange covers the last days calendar days, today included.
func (s *AnalyticsService) reportRange(days int) (int, time.Time, time.Time, error) {
	if days == 0 {
		days = defaultReportDays
	}
	if days < 1 || days > maxReportDays {
		return 0, time.Time{}, time.Time{}, models.NewValidationError(fmt.Sprintf("days must be between 1 and %d", maxReportDays))
	}
	todayStart, tomorrow := dayBounds(s.now())
	return days, todayStart.AddDate(0, 0, -(days - 1)), tomorrow, nil
}

// UpdateDailyMetrics recomputes every aggregate for the day containing day and
// upserts the row. Running it again without new activity yields the same values.
func (s *AnalyticsService) UpdateDailyMetrics(ctx context.Context, day time.Time) (*models.DailyMetrics, error) {
	start := time.Now()
	defer observability.ObserveRollup(start)

	from, to := dayBounds(day)
	m := &models.DailyMetrics{Date: from}

	counters := []struct {
		count func(context.Context, time.Time, time.Time) (int64, error)
		dest  *int64
	}{
		{s.analyticsRepo.CountActiveUsers, &m.ActiveUsers},
		{s.analyticsRepo.CountNewUsers, &m.NewUsers},
		{s.analyticsRepo.CountPosts, &m.Posts},
		{s.analyticsRepo.CountComments, &m.Comments},
		{s.analyticsRepo.CountLikes, &m.Likes},
		{s.analyticsRepo.CountFriendships, &m.Friendships},
		{s.analyticsRepo.CountMessages, &m.Messages},
	}
	for _, c := range counters {
		n, err := c.count(ctx, from, to)
		if err != nil {
			return nil, err
		}
		*c.dest = n
	}

	if err := s.analyticsRepo.UpsertDailyMetrics(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// RefreshUserActivity recomputes a user's content counters for one day.
// The login counter is owned by RecordLogin and is left alone.
func (s *AnalyticsService) RefreshUserActivity(ctx context.Context, userID uint, day time.Time) (*models.UserActivity, error) {
	from, to := dayBounds(day)
	counts, err := s.analyticsRepo.UserDayCounts(ctx, userID, from, to)
	if err != nil {
		return nil, err
	}
	counts.Date = from
	if err := s.analyticsRepo.UpsertUserActivityCounts(ctx, counts); err != nil {
		return nil, err
	}
	return counts, nil
}

// RollupDay recomputes the platform metrics for day and the activity row of
// every user active on it.
func (s *AnalyticsService) RollupDay(ctx context.Context, day time.Time) (*models.DailyMetrics, error) {
	m, err := s.UpdateDailyMetrics(ctx, day)
	if err != nil {
		return nil, err
	}
	from, to := dayBounds(day)
	ids, err := s.analyticsRepo.ActiveUserIDs(ctx, from, to)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, err := s.RefreshUserActivity(ctx, id, from); err != nil {
			return nil, fmt.Errorf("refresh activity for user %d: %w", id, err)
		}
	}
	return m, nil
}

// RecordLogin adds one login to today's activity row for userID.
func (s *AnalyticsService) RecordLogin(ctx context.Context, userID uint) error {
	today, _ := dayBounds(s.now())
	return s.analyticsRepo.IncrementLogin(ctx, userID, today)
}

func (s *AnalyticsService) Dashboard(ctx context.Context, days int) (*models.Dashboard, error) {
	days, from, to, err := s.reportRange(days)
	if err != nil {
		return nil, err
	}

	metrics, err := s.analyticsRepo.ListDailyMetrics(ctx, from, to)
	if err != nil {
		return nil, err
	}
	totals, err := s.analyticsRepo.Totals(ctx)
	if err != nil {
		return nil, err
	}
	top, err := s.analyticsRepo.TopUsers(ctx, topUsersLimit)
	if err != nil {
		return nil, err
	}

	return &models.Dashboard{
		Days:     days,
		Metrics:  metrics,
		Totals:   *totals,
		Averages: averagesOf(metrics),
		TopUsers: top,
		Charts:   chartsOf(metrics),
	}, nil
}

func averagesOf(metrics []models.DailyMetrics) models.DashboardAverages {
	if len(metrics) == 0 {
		return models.DashboardAverages{}
	}
	var active, newUsers, posts, comments int64
	for _, m := range metrics {
		active += m.ActiveUsers
		newUsers += m.NewUsers
		posts += m.Posts
		comments += m.Comments
	}
	n := float64(len(metrics))
	return models.DashboardAverages{
		ActiveUsers: round1(float64(active) / n),
		NewUsers:    round1(float64(newUsers) / n),
		Posts:       round1(float64(posts) / n),
		Comments:    round1(float64(comments) / n),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func chartsOf(metrics []models.DailyMetrics) models.DashboardCharts {
	charts := models.DashboardCharts{
		Dates:       make([]string, 0, len(metrics)),
		ActiveUsers: make([]int64, 0, len(metrics)),
		NewUsers:    make([]int64, 0, len(metrics)),
		Posts:       make([]int64, 0, len(metrics)),
		Comments:    make([]int64, 0, len(metrics)),
		Messages:    make([]int64, 0, len(metrics)),
	}
	for _, m := range metrics {
		charts.Dates = append(charts.Dates, m.Date.UTC().Format(chartDateLayout))
		charts.ActiveUsers = append(charts.ActiveUsers, m.ActiveUsers)
		charts.NewUsers = append(charts.NewUsers, m.NewUsers)
		charts.Posts = append(charts.Posts, m.Posts)
		charts.Comments = append(charts.Comments, m.Comments)
		charts.Messages = append(charts.Messages, m.Messages)
	}
	return charts
}

// UserActivityReport returns a user's per-day activity rows and their sums.
func (s *AnalyticsService) UserActivityReport(ctx context.Context, username string, days int) (*models.UserActivityReport, error) {
	username = strings.TrimSpace(username)
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}

	days, from, to, err := s.reportRange(days)
	if err != nil {
		return nil, err
	}
	rows, err := s.analyticsRepo.ListUserActivity(ctx, user.ID, from, to)
	if err != nil {
		return nil, err
	}

	report := &models.UserActivityReport{User: *user, Days: days, Activities: rows}
	for _, a := range rows {
		report.Totals.Posts += a.PostCount
		report.Totals.Comments += a.CommentCount
		report.Totals.Likes += a.LikeCount
		report.Totals.Messages += a.MessageCount
		report.Totals.Logins += a.LoginCount
	}
	return report, nil
}

// RunScheduler refreshes today's metrics every interval until ctx is done.
// When the UTC day rolls over, the previous day is closed out once more.
func (s *AnalyticsService) RunScheduler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastDay, _ := dayBounds(s.now())
	s.refresh(ctx, lastDay)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			today, _ := dayBounds(s.now())
			if today.After(lastDay) {
				s.refresh(ctx, lastDay)
				lastDay = today
			}
			s.refresh(ctx, today)
		}
	}
}

func (s *AnalyticsService) refresh(ctx context.Context, day time.Time) {
	const op = "analytics.rollup_day"
	observability.LogAsyncOperationStart(ctx, op, "date", day.Format(chartDateLayout))
	if _, err := s.RollupDay(ctx, day); err != nil {
		observability.LogAsyncOperationError(ctx, op, err)
		return
	}
	observability.LogAsyncOperationEnd(ctx, op, "date", day.Format(chartDateLayout))
}
