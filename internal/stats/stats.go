// Package stats answers the read-only queries of an authenticated session:
// account statistics, the activity feed, the hourly chart and session status.
package stats

import (
	"context"
	"log/slog"
	"time"

	"github.com/Veraticus/tgpulse/internal/apperr"
	"github.com/Veraticus/tgpulse/internal/session"
)

const (
	// DialogLimit is how many dialogs are fetched for the statistics.
	DialogLimit = 100

	// ChartBuckets is the number of hourly chart points.
	ChartBuckets = 12

	chartLabelLayout = "15:04"
)

// Stats is the account statistics summary.
type Stats struct {
	TotalMessages  int  `json:"totalMessages"`
	TotalChats     int  `json:"totalChats"`
	UnreadMessages int  `json:"unreadMessages"`
	MessagesChange int  `json:"messagesChange"`
	ActiveNow      bool `json:"activeNow"`
}

// ChartPoint is one hourly bucket of the activity chart.
type ChartPoint struct {
	Time     string `json:"time"`
	Messages int    `json:"messages"`
}

// Status describes the session behind a token.
type Status struct {
	Phone         string `json:"phone"`
	Activities    int    `json:"activities"`
	Authenticated bool   `json:"authenticated"`
}

// Service serves queries from the session registry.
type Service struct {
	registry *session.Registry
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock sets the time source used for the chart.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a query service.
func NewService(registry *session.Registry, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		logger:   slog.Default(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With(slog.String("component", "stats"))
	return s
}

// Stats combines the session's activity log with its live dialog list.
func (s *Service) Stats(ctx context.Context, token string) (Stats, error) {
	sess, ok := s.registry.Session(token)
	if !ok {
		return Stats{}, apperr.SessionNotFound("session not found")
	}

	dialogs, err := sess.Conn.Dialogs(ctx, DialogLimit)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to fetch dialogs",
			slog.String("phone", sess.Phone),
			slog.Any("error", err))
		return Stats{}, apperr.Upstream("failed to fetch dialogs", err)
	}

	activities := s.registry.Activities(token)

	out := Stats{
		TotalMessages: len(activities),
		TotalChats:    len(dialogs),
		ActiveNow:     true,
	}
	for _, d := range dialogs {
		out.UnreadMessages += d.UnreadCount
	}
	for _, a := range activities {
		if a.Type == session.ActivityMessage {
			out.MessagesChange++
		}
	}
	return out, nil
}

// Activities returns the session's feed, newest first. An unknown token
// yields an empty feed.
func (s *Service) Activities(token string) []session.Activity {
	return s.registry.Activities(token)
}

// Chart counts activities per hour over the last twelve hours, oldest bucket
// first. Bucket i covers (now-i h, now-(i-1) h] and is labelled with its
// start time.
func (s *Service) Chart(token string) []ChartPoint {
	now := s.now()
	points := make([]ChartPoint, ChartBuckets)

	for i := ChartBuckets; i >= 1; i-- {
		start := now.Add(-time.Duration(i) * time.Hour)
		points[ChartBuckets-i] = ChartPoint{Time: start.Format(chartLabelLayout)}
	}

	for _, a := range s.registry.Activities(token) {
		at, err := a.Time()
		if err != nil {
			s.logger.Debug("skipping activity with bad timestamp", slog.String("id", a.ID))
			continue
		}

		age := now.Sub(at)
		if age < 0 || age >= ChartBuckets*time.Hour {
			continue
		}
		// age in [k h, (k+1) h) falls in the bucket k places from the end.
		k := int(age / time.Hour)
		points[ChartBuckets-1-k].Messages++
	}

	return points
}

// Status reports the session behind token.
func (s *Service) Status(token string) (Status, error) {
	sess, ok := s.registry.Session(token)
	if !ok {
		return Status{}, apperr.SessionNotFound("session not found")
	}
	return Status{
		Authenticated: true,
		Phone:         sess.Phone,
		Activities:    len(s.registry.Activities(token)),
	}, nil
}
