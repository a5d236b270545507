package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"

	"github.com/crimespot/backend/internal/domain"
	"github.com/crimespot/backend/internal/repository"
	"github.com/crimespot/backend/internal/ws"
)

var (
	// ErrValidation reports a malformed report payload.
	ErrValidation = errors.New("report: invalid payload")
	// ErrInvalidRange reports an unknown time range selector.
	ErrInvalidRange = errors.New("report: invalid time range")
)

// incident timestamps arrive either with or without a zone suffix.
var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"}

// Service persists crime reports and fans them out to live subscribers.
type Service struct {
	reports repository.ReportRepository
	hub     *ws.Hub
	logger  *slog.Logger
}

// New constructs a Service. The hub may be nil when streaming is disabled.
func New(reports repository.ReportRepository, hub *ws.Hub, logger *slog.Logger) Service {
	return Service{reports: reports, hub: hub, logger: logger}
}

// Hub exposes the live feed for transport-level subscriptions.
func (s Service) Hub() *ws.Hub {
	return s.hub
}

// SubmitInput is the report submission payload.
type SubmitInput struct {
	CrimeType   string
	Location    domain.Location
	Description string
	DateTime    string
	MediaPath   string
}

// Validate checks the payload shape before persistence.
func (in SubmitInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.CrimeType, validation.Required, validation.Length(2, 64)),
		validation.Field(&in.Description, validation.Required, validation.Length(1, 2000)),
		validation.Field(&in.DateTime, validation.Required),
		validation.Field(&in.Location, validation.Required),
	)
}

func validateLocation(loc domain.Location) error {
	return validation.Errors{
		"latitude":  validation.Validate(loc.Latitude, validation.Required, is.Latitude),
		"longitude": validation.Validate(loc.Longitude, validation.Required, is.Longitude),
	}.Filter()
}

// Submit stores a report on behalf of reporterID and broadcasts it to the
// live feed.
func (s Service) Submit(ctx context.Context, reporterID string, in SubmitInput) (*domain.CrimeReport, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := validateLocation(in.Location); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	occurredAt, err := parseIncidentTime(in.DateTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	report := &domain.CrimeReport{
		ID:          uuid.NewString(),
		ReporterID:  reporterID,
		CrimeType:   in.CrimeType,
		Location:    in.Location,
		Description: in.Description,
		OccurredAt:  occurredAt,
		MediaPath:   in.MediaPath,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.reports.CreateReport(ctx, report); err != nil {
		return nil, err
	}
	s.logger.Info("crime report submitted", "report_id", report.ID, "crime_type", report.CrimeType)
	s.publish(report)
	return report, nil
}

// ListRange returns reports whose incident time falls within the named
// window: day, week, month, or year.
func (s Service) ListRange(ctx context.Context, timeRange string, limit int) ([]domain.CrimeReport, error) {
	now := time.Now().UTC()
	var since time.Time
	switch timeRange {
	case "day":
		since = now.AddDate(0, 0, -1)
	case "week", "":
		since = now.AddDate(0, 0, -7)
	case "month":
		since = now.AddDate(0, 0, -30)
	case "year":
		since = now.AddDate(0, 0, -365)
	default:
		return nil, ErrInvalidRange
	}
	return s.reports.ListReportsSince(ctx, since, limit)
}

func (s Service) publish(report *domain.CrimeReport) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		s.logger.Error("marshal report for feed", "error", err)
		return
	}
	s.hub.Broadcast(payload)
}

func parseIncidentTime(value string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", value)
}
