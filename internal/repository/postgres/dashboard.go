package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/mortuary-api/internal/model"
)

type dashboardRepository struct {
	BaseRepository
}

func (r *dashboardRepository) Stats(ctx context.Context) (*model.DashboardStats, error) {
	stats := &model.DashboardStats{GeneratedAt: time.Now().UTC()}

	var units []model.CountRow
	if err := sqlx.SelectContext(ctx, r.db, &units,
		`SELECT status AS key, COUNT(*) AS count FROM storage_units GROUP BY status`); err != nil {
		return nil, fmt.Errorf("failed to count storage units: %w", err)
	}
	for _, row := range units {
		switch model.UnitStatus(row.Key) {
		case model.UnitStatusOccupied:
			stats.OccupiedUnits = row.Count
		case model.UnitStatusAvailable:
			stats.AvailableUnits = row.Count
		case model.UnitStatusMaintenance:
			stats.MaintenanceUnits = row.Count
		}
	}

	if err := sqlx.GetContext(ctx, r.db, &stats.PendingReleases,
		`SELECT COUNT(*) FROM body_release_requests WHERE approval_status = 'pending'`); err != nil {
		return nil, fmt.Errorf("failed to count pending releases: %w", err)
	}
	if err := sqlx.GetContext(ctx, r.db, &stats.UnclaimedBodies,
		`SELECT COUNT(*) FROM deceased_patients WHERE status = 'unclaimed'`); err != nil {
		return nil, fmt.Errorf("failed to count unclaimed bodies: %w", err)
	}

	stats.RecentRegistrations = []model.DeceasedPatient{}
	if err := sqlx.SelectContext(ctx, r.db, &stats.RecentRegistrations,
		`SELECT `+patientColumns+` FROM deceased_patients ORDER BY registration_date DESC, id DESC LIMIT 5`); err != nil {
		return nil, fmt.Errorf("failed to list recent registrations: %w", err)
	}

	stats.PendingTasks = []model.Task{}
	if err := sqlx.SelectContext(ctx, r.db, &stats.PendingTasks, `
		SELECT `+taskColumns+` FROM tasks
		WHERE status = 'pending'
		ORDER BY CASE priority WHEN 'urgent' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END DESC,
			due_date ASC NULLS LAST, id ASC
		LIMIT 4`); err != nil {
		return nil, fmt.Errorf("failed to list pending tasks: %w", err)
	}

	stats.ActiveAlerts = []model.SystemAlert{}
	if err := sqlx.SelectContext(ctx, r.db, &stats.ActiveAlerts, `
		SELECT `+alertColumns+` FROM system_alerts
		WHERE status = 'active' AND severity IN ('critical', 'warning')
		ORDER BY CASE severity WHEN 'critical' THEN 0 ELSE 1 END, created_at DESC
		LIMIT 3`); err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}

	return stats, nil
}

type reportRepository struct {
	BaseRepository
}

func (r *reportRepository) counts(ctx context.Context, query string, args ...interface{}) (map[string]int, error) {
	var rows []model.CountRow
	if err := sqlx.SelectContext(ctx, r.db, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Key] = row.Count
	}
	return out, nil
}

// Summary covers patients registered within the period, and the
// postmortems and release requests that belong to them.
func (r *reportRepository) Summary(ctx context.Context, period model.Period) (*model.ReportSummary, error) {
	summary := &model.ReportSummary{Period: period}
	var err error

	if summary.PatientsByStatus, err = r.counts(ctx, `
		SELECT status AS key, COUNT(*) AS count FROM deceased_patients
		WHERE registration_date BETWEEN $1 AND $2
		GROUP BY status`, period.From, period.To); err != nil {
		return nil, fmt.Errorf("failed to count patients by status: %w", err)
	}

	if summary.PatientsByWard, err = r.counts(ctx, `
		SELECT ward_from AS key, COUNT(*) AS count FROM deceased_patients
		WHERE registration_date BETWEEN $1 AND $2
		GROUP BY ward_from`, period.From, period.To); err != nil {
		return nil, fmt.Errorf("failed to count patients by ward: %w", err)
	}

	if summary.ReleasesByStatus, err = r.counts(ctx, `
		SELECT r.approval_status AS key, COUNT(*) AS count
		FROM body_release_requests r
		JOIN deceased_patients d ON d.id = r.deceased_id
		WHERE d.registration_date BETWEEN $1 AND $2
		GROUP BY r.approval_status`, period.From, period.To); err != nil {
		return nil, fmt.Errorf("failed to count release requests: %w", err)
	}

	if summary.PostmortemsByStatus, err = r.counts(ctx, `
		SELECT p.status AS key, COUNT(*) AS count
		FROM postmortems p
		JOIN deceased_patients d ON d.id = p.deceased_id
		WHERE d.registration_date BETWEEN $1 AND $2
		GROUP BY p.status`, period.From, period.To); err != nil {
		return nil, fmt.Errorf("failed to count postmortems: %w", err)
	}

	if err := sqlx.GetContext(ctx, r.db, &summary.ForensicPostmortems, `
		SELECT COUNT(*) FROM postmortems p
		JOIN deceased_patients d ON d.id = p.deceased_id
		WHERE p.is_forensic AND d.registration_date BETWEEN $1 AND $2`, period.From, period.To); err != nil {
		return nil, fmt.Errorf("failed to count forensic postmortems: %w", err)
	}

	for _, n := range summary.PatientsByStatus {
		summary.Registrations += n
	}
	return summary, nil
}
