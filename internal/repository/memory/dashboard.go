package memory

import (
	"context"

	"github.com/jwalitptl/mortuary-api/internal/model"
)

type dashboardRepository struct {
	q queries
}

func (r dashboardRepository) Stats(ctx context.Context) (*model.DashboardStats, error) {
	stats := &model.DashboardStats{GeneratedAt: now()}
	err := r.q.read(func(d *dataset) error {
		for _, u := range d.units {
			switch u.Status {
			case model.UnitStatusOccupied:
				stats.OccupiedUnits++
			case model.UnitStatusAvailable:
				stats.AvailableUnits++
			case model.UnitStatusMaintenance:
				stats.MaintenanceUnits++
			}
		}
		for _, req := range d.releases {
			if req.ApprovalStatus == model.ApprovalStatusPending {
				stats.PendingReleases++
			}
		}
		for _, p := range d.patients {
			if p.Status == model.PatientStatusUnclaimed {
				stats.UnclaimedBodies++
			}
		}

		stats.RecentRegistrations = firstN(collect(d.patients, nil, byRegistrationDesc), 5)

		stats.PendingTasks = firstN(collect(d.tasks, func(t *model.Task) bool {
			return t.Status == model.TaskStatusPending
		}, func(a, b *model.Task) bool {
			if a.Priority.Rank() != b.Priority.Rank() {
				return a.Priority.Rank() > b.Priority.Rank()
			}
			switch {
			case a.DueDate == nil && b.DueDate == nil:
				return a.ID < b.ID
			case a.DueDate == nil:
				return false
			case b.DueDate == nil:
				return true
			case !a.DueDate.Equal(*b.DueDate):
				return a.DueDate.Before(*b.DueDate)
			}
			return a.ID < b.ID
		}), 4)

		stats.ActiveAlerts = firstN(collect(d.alerts, func(a *model.SystemAlert) bool {
			return a.Status == model.AlertStatusActive &&
				(a.Severity == model.AlertSeverityCritical || a.Severity == model.AlertSeverityWarning)
		}, func(a, b *model.SystemAlert) bool {
			if a.Severity != b.Severity {
				return a.Severity == model.AlertSeverityCritical
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		}), 3)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func firstN[T any](items []*T, n int) []T {
	if len(items) > n {
		items = items[:n]
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		out = append(out, *it)
	}
	return out
}

type reportRepository struct {
	q queries
}

func (r reportRepository) Summary(ctx context.Context, period model.Period) (*model.ReportSummary, error) {
	summary := &model.ReportSummary{
		Period:              period,
		PatientsByStatus:    map[string]int{},
		PatientsByWard:      map[string]int{},
		ReleasesByStatus:    map[string]int{},
		PostmortemsByStatus: map[string]int{},
	}

	err := r.q.read(func(d *dataset) error {
		inPeriod := map[int64]bool{}
		for _, p := range d.patients {
			if p.RegistrationDate.Before(period.From) || p.RegistrationDate.After(period.To) {
				continue
			}
			inPeriod[p.ID] = true
			summary.Registrations++
			summary.PatientsByStatus[string(p.Status)]++
			summary.PatientsByWard[p.WardFrom]++
		}
		for _, req := range d.releases {
			if inPeriod[req.DeceasedID] {
				summary.ReleasesByStatus[string(req.ApprovalStatus)]++
			}
		}
		for _, pm := range d.postmortems {
			if !inPeriod[pm.DeceasedID] {
				continue
			}
			summary.PostmortemsByStatus[string(pm.Status)]++
			if pm.IsForensic {
				summary.ForensicPostmortems++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}
