package repository

import (
	"context"
	"time"

	"github.com/crimespot/backend/internal/domain"
)

// UserRepository persists citizen accounts.
//
// CreateUser must be atomic with respect to the username and email uniqueness
// checks: when two registrations race on the same identity, exactly one
// succeeds and the other observes ErrDuplicate with no partial record.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// ReportRepository persists crime reports.
type ReportRepository interface {
	CreateReport(ctx context.Context, report *domain.CrimeReport) error
	ListReportsSince(ctx context.Context, since time.Time, limit int) ([]domain.CrimeReport, error)
}
