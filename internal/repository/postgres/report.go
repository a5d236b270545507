package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/crimespot/backend/internal/domain"
	"github.com/crimespot/backend/internal/repository"
)

// CreateReport inserts a crime report.
func (r *Repository) CreateReport(ctx context.Context, report *domain.CrimeReport) error {
	const query = `INSERT INTO crime_reports (id, reporter_id, crime_type, latitude, longitude, description, occurred_at, media_path, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query,
		report.ID,
		report.ReporterID,
		report.CrimeType,
		report.Location.Latitude,
		report.Location.Longitude,
		report.Description,
		report.OccurredAt,
		nilIfEmpty(report.MediaPath),
		report.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23503":
				return repository.ErrNotFound
			case "23514", "22P02":
				return repository.ErrInvalidArgument
			}
		}
		return err
	}
	return nil
}

// ListReportsSince returns reports whose incident time falls after the
// cutoff, newest first.
func (r *Repository) ListReportsSince(ctx context.Context, since time.Time, limit int) ([]domain.CrimeReport, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `SELECT id, reporter_id, crime_type, latitude, longitude, description, occurred_at, media_path, created_at
		FROM crime_reports WHERE occurred_at >= $1 ORDER BY occurred_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]domain.CrimeReport, 0)
	for rows.Next() {
		var (
			report    domain.CrimeReport
			mediaPath sql.NullString
		)
		if err := rows.Scan(
			&report.ID,
			&report.ReporterID,
			&report.CrimeType,
			&report.Location.Latitude,
			&report.Location.Longitude,
			&report.Description,
			&report.OccurredAt,
			&mediaPath,
			&report.CreatedAt,
		); err != nil {
			return nil, err
		}
		if mediaPath.Valid {
			report.MediaPath = mediaPath.String
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func nilIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
